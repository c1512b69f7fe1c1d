package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-valuer/internal/models"
	"github.com/codyseavey/card-valuer/internal/services"
)

type PortfolioHandler struct {
	catalog         *services.CatalogService
	snapshotService *services.SnapshotService
}

func NewPortfolioHandler(catalog *services.CatalogService, snapshot *services.SnapshotService) *PortfolioHandler {
	return &PortfolioHandler{
		catalog:         catalog,
		snapshotService: snapshot,
	}
}

// GetStats returns the current catalog totals
func (h *PortfolioHandler) GetStats(c *gin.Context) {
	totals, err := h.catalog.Totals()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var avg float64
	if totals.CardCount > 0 {
		avg = totals.TotalValue / float64(totals.CardCount)
	}
	c.JSON(http.StatusOK, gin.H{
		"card_count":    totals.CardCount,
		"total_value":   totals.TotalValue,
		"average_value": avg,
	})
}

// GetValueHistory returns portfolio value snapshots for charting
func (h *PortfolioHandler) GetValueHistory(c *gin.Context) {
	if h.snapshotService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot service not available"})
		return
	}

	period := c.DefaultQuery("period", "month")

	snapshots, err := h.snapshotService.GetHistory(period)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.ValueHistoryResponse{
		Snapshots: snapshots,
		Period:    period,
	})
}
