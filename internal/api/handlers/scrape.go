package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-valuer/internal/services"
)

type ScrapeHandler struct {
	worker *services.ScrapeWorker
}

func NewScrapeHandler(worker *services.ScrapeWorker) *ScrapeHandler {
	return &ScrapeHandler{
		worker: worker,
	}
}

// GetScrapeStatus returns the scheduler state and live run progress
func (h *ScrapeHandler) GetScrapeStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.worker.GetStatus())
}

// RunScrape queues an immediate pass over the catalog
func (h *ScrapeHandler) RunScrape(c *gin.Context) {
	queued := h.worker.QueueRun()
	status := h.worker.GetStatus()

	c.JSON(http.StatusAccepted, gin.H{
		"queued":  queued,
		"running": status.Running,
	})
}
