package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/codyseavey/card-valuer/internal/app"
	"github.com/codyseavey/card-valuer/internal/config"
)

// errRunFailed marks a scrape in which every attempted job errored
var errRunFailed = errors.New("scrape run failed: no card could be priced")

var (
	cfgFile string
	v       = config.New()
	rootCmd = &cobra.Command{
		Use:   "cardvalue",
		Short: "Estimate fair market values for a trading card catalog",
		Long: `cardvalue scrapes recent completed sales for every card in the catalog,
reduces them to a fair value and trend, and keeps per-card history files
and a daily portfolio snapshot.`,
		SilenceUsage: true,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("db-path", "", "catalog database path")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for history, archives and checkpoints")
	rootCmd.PersistentFlags().String("mode", "", "run mode (collection, market)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	// Bind flags to viper
	bindFlag("db_path", rootCmd.PersistentFlags().Lookup("db-path"))
	bindFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	bindFlag("mode", rootCmd.PersistentFlags().Lookup("mode"))
	bindFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	bindFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add commands
	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(exportCmd())
}

func main() {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received interrupt signal, checkpointing and shutting down...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel() // Always cleanup

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadApp reads the config file, validates the merged configuration and
// builds the services
func loadApp() (*app.App, error) {
	if err := config.ReadFile(v, cfgFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}
