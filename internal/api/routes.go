package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/card-valuer/internal/api/handlers"
	"github.com/codyseavey/card-valuer/internal/services"
)

// Services are the dependencies the router serves
type Services struct {
	Catalog   *services.CatalogService
	Store     *services.ResultStore
	Worker    *services.ScrapeWorker
	Snapshots *services.SnapshotService
}

func SetupRouter(svc Services, corsOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), Metrics())

	// CORS configuration
	config := cors.DefaultConfig()
	if len(corsOrigins) > 0 {
		config.AllowOrigins = corsOrigins
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false // Explicitly set
	router.Use(cors.New(config))

	// Initialize handlers
	cardHandler := handlers.NewCardHandler(svc.Catalog, svc.Store)
	scrapeHandler := handlers.NewScrapeHandler(svc.Worker)
	portfolioHandler := handlers.NewPortfolioHandler(svc.Catalog, svc.Snapshots)

	// API routes
	api := router.Group("/api")
	{
		// Card routes
		cards := api.Group("/cards")
		{
			cards.GET("/:id", cardHandler.GetCard)
			cards.GET("/:id/history", cardHandler.GetCardHistory)
			cards.GET("/:id/sales", cardHandler.GetCardSales)
			cards.POST("/:id/archive", cardHandler.ArchiveCard)
			cards.POST("/:id/restore", cardHandler.RestoreCard)
		}

		// Scrape routes
		scrape := api.Group("/scrape")
		{
			scrape.GET("/status", scrapeHandler.GetScrapeStatus)
			scrape.POST("/run", scrapeHandler.RunScrape)
		}

		// Portfolio routes
		portfolio := api.Group("/portfolio")
		{
			portfolio.GET("/stats", portfolioHandler.GetStats)
			portfolio.GET("/history", portfolioHandler.GetValueHistory)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
