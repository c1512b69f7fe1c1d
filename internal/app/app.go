// Package app wires configuration into the services shared by the server
// and the CLI.
package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/codyseavey/card-valuer/internal/config"
	"github.com/codyseavey/card-valuer/internal/database"
	"github.com/codyseavey/card-valuer/internal/logging"
	"github.com/codyseavey/card-valuer/internal/services"
)

// App holds the services built from one configuration
type App struct {
	Config       *config.Config
	DB           *gorm.DB
	Catalog      *services.CatalogService
	Store        *services.ResultStore
	Checkpoints  *services.FileCheckpointStore
	Orchestrator *services.ScrapeOrchestrator
	Snapshots    *services.SnapshotService
}

// New sets up logging, opens the catalog database and builds every service
func New(cfg *config.Config) (*App, error) {
	if err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile}); err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	if err := database.Initialize(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db := database.GetDB()

	tables, err := services.LoadKeywordTables(cfg.KeywordTables)
	if err != nil {
		return nil, err
	}

	store := services.NewResultStore(cfg.DataDir, cfg.ArchiveCap(), cfg.SnapshotFile())
	checkpoints := services.NewFileCheckpointStore(cfg.DataDir)
	render := services.NewRenderClient(cfg.RenderURL, cfg.PageTimeout, cfg.RequestsPerSecond)

	orchestrator := services.NewScrapeOrchestrator(services.OrchestratorOptions{
		Workers:         cfg.Workers,
		MaxListings:     cfg.MaxListings,
		CheckpointEvery: cfg.CheckpointEvery,
		DefaultPrice:    cfg.DefaultPrice,
		MinDelay:        cfg.MinDelay,
		MaxDelay:        cfg.MaxDelay,
		GradedVariants:  cfg.GradedVariants,
		Force:           cfg.Force,
		DryRun:          cfg.DryRun,
		XLSX:            cfg.XLSX,
	}, services.NewQueryBuilder(tables), services.NewSerialPriceNormalizer(nil), render.NewSession, checkpoints, store)

	catalog := services.NewCatalogService(db)

	log.Printf("Mode: %s, workers: %d, data dir: %s, render service: %s", cfg.Mode, cfg.Workers, cfg.DataDir, cfg.RenderURL)

	return &App{
		Config:       cfg,
		DB:           db,
		Catalog:      catalog,
		Store:        store,
		Checkpoints:  checkpoints,
		Orchestrator: orchestrator,
		Snapshots:    services.NewSnapshotService(db, catalog, store, cfg.Mode, cfg.SnapshotHour),
	}, nil
}

// Filter is the catalog filter selected by the configuration
func (a *App) Filter() services.CatalogFilter {
	return services.CatalogFilter{
		Season:   a.Config.Season,
		Category: a.Config.Category,
		Limit:    a.Config.Limit,
	}
}

// Close releases the database handle
func (a *App) Close() {
	if a.DB == nil {
		return
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
