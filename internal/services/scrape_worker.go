package services

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/codyseavey/card-valuer/internal/models"
)

// ErrRunInProgress is returned when a pass is requested while one is running
var ErrRunInProgress = errors.New("scrape run already in progress")

// ScrapeStatus is what the status API reports about the scheduler
type ScrapeStatus struct {
	Running     bool             `json:"running"`
	Queued      bool             `json:"queued"`
	LastRunTime time.Time        `json:"last_run_time,omitempty"`
	NextRunTime time.Time        `json:"next_run_time,omitempty"`
	Interval    string           `json:"interval"`
	LastStats   *models.RunStats `json:"last_stats,omitempty"`
	LastError   string           `json:"last_error,omitempty"`
	Progress    *Progress        `json:"progress,omitempty"`
}

// ScrapeWorker runs orchestrated passes over the catalog on a schedule.
// Passes never overlap.
type ScrapeWorker struct {
	catalog      *CatalogService
	orchestrator *ScrapeOrchestrator
	snapshots    *SnapshotService
	filter       CatalogFilter
	interval     time.Duration
	dryRun       bool

	trigger chan struct{}

	mu          sync.RWMutex
	running     bool
	lastRunTime time.Time
	nextRunTime time.Time
	lastStats   *models.RunStats
	lastError   string
}

// NewScrapeWorker creates a scheduler. snapshots may be nil.
func NewScrapeWorker(catalog *CatalogService, orchestrator *ScrapeOrchestrator, snapshots *SnapshotService,
	filter CatalogFilter, interval time.Duration, dryRun bool) *ScrapeWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &ScrapeWorker{
		catalog:      catalog,
		orchestrator: orchestrator,
		snapshots:    snapshots,
		filter:       filter,
		interval:     interval,
		dryRun:       dryRun,
		trigger:      make(chan struct{}, 1),
	}
}

// Start runs one pass immediately, then one every interval and whenever a
// pass is queued, until ctx is cancelled
func (w *ScrapeWorker) Start(ctx context.Context) {
	log.Printf("Scrape worker started (interval: %v)", w.interval)

	w.runAndLog(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.setNextRun(time.Now().Add(w.interval))

	for {
		select {
		case <-ctx.Done():
			log.Println("Scrape worker stopping...")
			return
		case <-ticker.C:
			w.runAndLog(ctx)
			w.setNextRun(time.Now().Add(w.interval))
		case <-w.trigger:
			log.Println("Scrape worker: running queued pass")
			w.runAndLog(ctx)
		}
	}
}

func (w *ScrapeWorker) runAndLog(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrCatalogEmpty) {
			log.Warnf("Scrape worker: %v, nothing to do", err)
			return
		}
		log.Errorf("Scrape worker: pass failed: %v", err)
	}
}

// QueueRun asks the worker to start a pass as soon as it is idle. It returns
// false when a pass is already queued.
func (w *ScrapeWorker) QueueRun() bool {
	select {
	case w.trigger <- struct{}{}:
		log.Println("Scrape worker: pass queued")
		return true
	default:
		return false
	}
}

// RunOnce performs one pass: load the catalog, scrape it, write the results
// back and record the day's snapshot
func (w *ScrapeWorker) RunOnce(ctx context.Context) (*RunReport, error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil, ErrRunInProgress
	}
	w.running = true
	w.mu.Unlock()

	report, err := w.run(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	w.lastRunTime = time.Now()
	w.lastError = ""
	if err != nil {
		w.lastError = err.Error()
	}
	if report != nil {
		stats := report.Stats
		w.lastStats = &stats
	}
	return report, err
}

func (w *ScrapeWorker) run(ctx context.Context) (*RunReport, error) {
	cards, err := w.catalog.Load(w.filter)
	if err != nil {
		return nil, err
	}

	report, err := w.orchestrator.Run(ctx, cards)
	if err != nil {
		return nil, err
	}

	if w.dryRun {
		return report, nil
	}

	updated, err := w.catalog.ApplyResults(report.ResultList())
	if err != nil {
		return report, err
	}
	log.Printf("Scrape worker: updated %d cards from run %s", updated, report.Stats.RunID)

	if w.snapshots != nil && !report.Interrupted {
		if _, err := w.snapshots.TakeSnapshot(); err != nil {
			log.Errorf("Scrape worker: snapshot failed: %v", err)
		}
	}
	return report, nil
}

func (w *ScrapeWorker) setNextRun(t time.Time) {
	w.mu.Lock()
	w.nextRunTime = t
	w.mu.Unlock()
}

// GetStatus returns the scheduler state
func (w *ScrapeWorker) GetStatus() ScrapeStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := ScrapeStatus{
		Running:     w.running,
		Queued:      len(w.trigger) > 0,
		LastRunTime: w.lastRunTime,
		NextRunTime: w.nextRunTime,
		Interval:    w.interval.String(),
		LastStats:   w.lastStats,
		LastError:   w.lastError,
	}
	if w.running {
		p := w.orchestrator.Progress()
		status.Progress = &p
	}
	return status
}
