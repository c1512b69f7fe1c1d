package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/codyseavey/card-valuer/internal/api"
	"github.com/codyseavey/card-valuer/internal/app"
	"github.com/codyseavey/card-valuer/internal/config"
	"github.com/codyseavey/card-valuer/internal/services"
)

func main() {
	v := config.New()
	if err := config.ReadFile(v, os.Getenv("CARDVALUE_CONFIG")); err != nil {
		log.Fatalf("Failed to read config: %v", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	worker := services.NewScrapeWorker(a.Catalog, a.Orchestrator, a.Snapshots, a.Filter(), cfg.ScrapeInterval, cfg.DryRun)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start scrape worker in background with panic recovery
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Errorf("PANIC in scrape worker: %v - restarting in 30 seconds", r)
					}
				}()
				worker.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
				log.Println("Scrape worker restarting after panic recovery...")
			}
		}
	}()

	// Start snapshot service in background
	go a.Snapshots.Start(ctx)

	router := api.SetupRouter(api.Services{
		Catalog:   a.Catalog,
		Store:     a.Store,
		Worker:    worker,
		Snapshots: a.Snapshots,
	}, cfg.CORSAllowedOrigins)

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = api.NewMetricsServer(cfg.MetricsAddr)
		go func() {
			log.Printf("Serving metrics on %s", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the workers; an in-flight run checkpoints and exits
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Metrics server forced to shutdown: %v", err)
		}
	}

	log.Println("Server exited")
}
