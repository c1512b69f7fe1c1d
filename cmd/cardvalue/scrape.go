package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/codyseavey/card-valuer/internal/api"
	"github.com/codyseavey/card-valuer/internal/models"
	"github.com/codyseavey/card-valuer/internal/services"
)

func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape recent sales and price the catalog",
		Long: `Run one pass over the catalog. An interrupted run leaves a checkpoint and the
next scrape resumes it, skipping cards that already completed.

The command exits non-zero only when every attempted card failed.`,
		RunE: runScrape,
	}

	cmd.Flags().Int("workers", 0, "concurrent fetch sessions (0 = mode default)")
	cmd.Flags().String("season", "", "only scrape cards from this season")
	cmd.Flags().String("category", "", "only scrape cards in this category")
	cmd.Flags().Int("limit", 0, "scrape at most this many catalog cards")
	cmd.Flags().Bool("force", false, "ignore an unfinished checkpoint and start over")
	cmd.Flags().Bool("dry-run", false, "scrape without writing any files or catalog updates")
	cmd.Flags().Int("max-listings", 0, "listings requested per query")
	cmd.Flags().IntSlice("graded-variants", nil, "also price these PSA grades for raw cards")
	cmd.Flags().Bool("xlsx", false, "also write summary.xlsx")
	cmd.Flags().String("render-url", "", "page rendering service URL")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")
	cmd.Flags().String("metrics-addr", "", "serve /metrics on this address while the run lasts")

	bindFlag("workers", cmd.Flags().Lookup("workers"))
	bindFlag("season", cmd.Flags().Lookup("season"))
	bindFlag("category", cmd.Flags().Lookup("category"))
	bindFlag("limit", cmd.Flags().Lookup("limit"))
	bindFlag("force", cmd.Flags().Lookup("force"))
	bindFlag("dry_run", cmd.Flags().Lookup("dry-run"))
	bindFlag("max_listings", cmd.Flags().Lookup("max-listings"))
	bindFlag("graded_variants", cmd.Flags().Lookup("graded-variants"))
	bindFlag("xlsx", cmd.Flags().Lookup("xlsx"))
	bindFlag("render_url", cmd.Flags().Lookup("render-url"))
	bindFlag("metrics_addr", cmd.Flags().Lookup("metrics-addr"))

	return cmd
}

func runScrape(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cards, err := a.Catalog.Load(a.Filter())
	if err != nil {
		return err
	}

	if addr := a.Config.MetricsAddr; addr != "" {
		srv := api.NewMetricsServer(addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("Metrics server failed: %v", err)
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	if !noProgress {
		bar := newProgressBar(len(cards))
		a.Orchestrator.OnResult(func(r models.CardResult, p services.Progress) {
			bar.Describe(fmt.Sprintf("found %d, not found %d, errored %d", p.Found, p.NotFound, p.Errored))
			_ = bar.Set(p.Skipped + p.Completed)
		})
		defer func() { _ = bar.Finish() }()
	}

	report, err := a.Orchestrator.Run(cmd.Context(), cards)
	if err != nil {
		return err
	}

	if !a.Config.DryRun {
		if _, err := a.Catalog.ApplyResults(report.ResultList()); err != nil {
			return fmt.Errorf("failed to update catalog: %w", err)
		}
		if !report.Interrupted {
			if _, err := a.Snapshots.TakeSnapshot(); err != nil {
				log.Errorf("Snapshot failed: %v", err)
			}
		}
	}

	s := report.Stats
	fmt.Fprintf(os.Stdout, "\nRun %s: %d cards, %d skipped, %d found, %d not found, %d errored, %d retries\n",
		s.RunID, s.Total, s.Skipped, s.Found, s.NotFound, s.Errored, s.Retries)
	if report.Interrupted {
		fmt.Fprintln(os.Stdout, "Interrupted: run scrape again to resume from the checkpoint")
	}

	if s.Failed() {
		return errRunFailed
	}
	return nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetDescription("scraping"),
	)
}
