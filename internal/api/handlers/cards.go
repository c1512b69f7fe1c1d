package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/codyseavey/card-valuer/internal/services"
)

type CardHandler struct {
	catalog *services.CatalogService
	store   *services.ResultStore
}

func NewCardHandler(catalog *services.CatalogService, store *services.ResultStore) *CardHandler {
	return &CardHandler{
		catalog: catalog,
		store:   store,
	}
}

func (h *CardHandler) GetCard(c *gin.Context) {
	card, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if card == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	c.JSON(http.StatusOK, card)
}

// GetCardHistory returns the per-day fair value history of one card
func (h *CardHandler) GetCardHistory(c *gin.Context) {
	if !h.exists(c) {
		return
	}

	history, err := h.store.LoadHistory(c.Param("id"))
	if err != nil {
		log.Errorf("Failed to load history for %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, history)
}

// GetCardSales returns the archived raw sales and latest stats of one card
func (h *CardHandler) GetCardSales(c *gin.Context) {
	if !h.exists(c) {
		return
	}

	record, err := h.store.LoadCardRecord(c.Param("id"))
	if err != nil {
		log.Errorf("Failed to load sales for %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sales"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card has not been scraped yet"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// ArchiveCard excludes a card from future runs
func (h *CardHandler) ArchiveCard(c *gin.Context) {
	h.setArchived(c, true)
}

// RestoreCard brings an archived card back
func (h *CardHandler) RestoreCard(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *CardHandler) setArchived(c *gin.Context, archived bool) {
	id := c.Param("id")
	var err error
	if archived {
		err = h.catalog.Archive(id)
	} else {
		err = h.catalog.Restore(id)
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"id": id, "archived": archived})
	}
}

func (h *CardHandler) exists(c *gin.Context) bool {
	card, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
	if card == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return false
	}
	return true
}
