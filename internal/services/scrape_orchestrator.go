package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/codyseavey/card-valuer/internal/metrics"
	"github.com/codyseavey/card-valuer/internal/models"
)

const defaultCheckpointEvery = 50

// ErrCatalogEmpty is returned when there is nothing to scrape
var ErrCatalogEmpty = errors.New("catalog is empty")

// DelayFunc pauses a worker between jobs. It returns early with ctx.Err()
// when the run is cancelled.
type DelayFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the production DelayFunc
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OrchestratorOptions configures one orchestrator
type OrchestratorOptions struct {
	Workers         int
	MaxListings     int
	CheckpointEvery int
	DefaultPrice    float64
	MinDelay        time.Duration
	MaxDelay        time.Duration
	GradedVariants  []int
	Force           bool
	DryRun          bool
	XLSX            bool
}

// Progress is a point-in-time copy of a run's counters
type Progress struct {
	RunID     string `json:"run_id"`
	Total     int    `json:"total"`
	Skipped   int    `json:"skipped"`
	Completed int    `json:"completed"`
	Found     int    `json:"found"`
	NotFound  int    `json:"not_found"`
	Errored   int    `json:"errored"`
	Retries   int    `json:"retries"`
}

// progressCounter is the lock-protected counter set shared by all workers
type progressCounter struct {
	mu sync.Mutex
	p  Progress
}

func (c *progressCounter) complete(outcome models.JobOutcome) Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.p.Completed++
	switch outcome {
	case models.OutcomeFound:
		c.p.Found++
	case models.OutcomeNotFound:
		c.p.NotFound++
	default:
		c.p.Errored++
	}
	return c.p
}

func (c *progressCounter) retry() {
	c.mu.Lock()
	c.p.Retries++
	c.mu.Unlock()
}

func (c *progressCounter) snapshot() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.p
}

// RunReport is the outcome of one orchestrated pass
type RunReport struct {
	Stats       models.RunStats
	Results     map[string]models.CardResult
	Resumed     bool
	Interrupted bool
}

// ResultList returns the result table as a slice
func (r *RunReport) ResultList() []models.CardResult {
	out := make([]models.CardResult, 0, len(r.Results))
	for _, res := range r.Results {
		out = append(out, res)
	}
	return out
}

// ScrapeOrchestrator fans a catalog out over a fixed pool of workers, each
// owning one fetch session for its lifetime
type ScrapeOrchestrator struct {
	opts        OrchestratorOptions
	builder     *QueryBuilder
	normalizer  *SerialPriceNormalizer
	newSession  SessionFactory
	checkpoints CheckpointStore
	store       *ResultStore

	delay    DelayFunc
	now      func() time.Time
	onResult func(models.CardResult, Progress)

	mu      sync.RWMutex
	current *progressCounter
}

// NewScrapeOrchestrator wires an orchestrator. checkpoints and store may be
// nil, which disables that persistence.
func NewScrapeOrchestrator(opts OrchestratorOptions, builder *QueryBuilder, normalizer *SerialPriceNormalizer,
	factory SessionFactory, checkpoints CheckpointStore, store *ResultStore) *ScrapeOrchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = defaultCheckpointEvery
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if builder == nil {
		builder = NewQueryBuilder(nil)
	}
	if normalizer == nil {
		normalizer = NewSerialPriceNormalizer(nil)
	}

	return &ScrapeOrchestrator{
		opts:        opts,
		builder:     builder,
		normalizer:  normalizer,
		newSession:  factory,
		checkpoints: checkpoints,
		store:       store,
		delay:       SleepContext,
		now:         time.Now,
	}
}

// WithDelay replaces the inter-job delay strategy
func (o *ScrapeOrchestrator) WithDelay(delay DelayFunc) *ScrapeOrchestrator {
	o.delay = delay
	return o
}

// WithClock replaces the time source used for result timestamps
func (o *ScrapeOrchestrator) WithClock(now func() time.Time) *ScrapeOrchestrator {
	o.now = now
	return o
}

// OnResult registers a callback invoked after each job completes
func (o *ScrapeOrchestrator) OnResult(fn func(models.CardResult, Progress)) *ScrapeOrchestrator {
	o.onResult = fn
	return o
}

// Progress returns the counters of the current (or last) run
func (o *ScrapeOrchestrator) Progress() Progress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.current == nil {
		return Progress{}
	}
	return o.current.snapshot()
}

// runContext is the state shared by the workers of one run
type runContext struct {
	runID     string
	startedAt time.Time
	progress  *progressCounter

	// guards results, sinceCheckpoint and checkpoint writes
	mu              sync.Mutex
	results         map[string]models.CardResult
	sinceCheckpoint int
}

// Run scrapes every card not already complete in an unfinished checkpoint.
// Only an empty catalog or a failure to open the first session is returned
// as an error; per-job faults are reported in the stats.
func (o *ScrapeOrchestrator) Run(ctx context.Context, cards []models.Card) (*RunReport, error) {
	if len(cards) == 0 {
		return nil, ErrCatalogEmpty
	}

	start := time.Now()
	rc, resumed := o.prepare()

	var pending []models.ScrapeJob
	for _, card := range cards {
		if prev, ok := rc.results[card.ID]; ok && prev.Complete() {
			continue
		}
		pending = append(pending, models.ScrapeJob{CardID: card.ID, Identifier: card.Identifier, State: models.JobNew})
	}
	rc.progress.p.Total = len(cards)
	rc.progress.p.Skipped = len(cards) - len(pending)

	o.mu.Lock()
	o.current = rc.progress
	o.mu.Unlock()

	metrics.ScrapeRunInProgress.Set(1)
	defer metrics.ScrapeRunInProgress.Set(0)

	if resumed {
		log.Printf("Orchestrator: resuming run %s, %d of %d cards already complete", rc.runID, rc.progress.p.Skipped, len(cards))
	} else {
		log.Printf("Orchestrator: starting run %s over %d cards with %d workers", rc.runID, len(cards), o.opts.Workers)
	}

	report := &RunReport{Resumed: resumed}
	if len(pending) > 0 {
		if err := o.runPool(ctx, rc, pending); err != nil {
			return nil, err
		}
	}
	report.Interrupted = ctx.Err() != nil

	o.finish(rc, report.Interrupted)

	p := rc.progress.snapshot()
	report.Results = rc.results
	report.Stats = models.RunStats{
		RunID:      rc.runID,
		StartedAt:  rc.startedAt,
		FinishedAt: o.now(),
		Total:      p.Total,
		Skipped:    p.Skipped,
		Completed:  p.Completed,
		Found:      p.Found,
		NotFound:   p.NotFound,
		Errored:    p.Errored,
		Retries:    p.Retries,
	}

	metrics.ScrapeRunDuration.Observe(time.Since(start).Seconds())
	log.Printf("Orchestrator: run %s done in %v (found: %d, not found: %d, errored: %d, retries: %d, skipped: %d)",
		rc.runID, time.Since(start).Round(time.Second), p.Found, p.NotFound, p.Errored, p.Retries, p.Skipped)
	return report, nil
}

// prepare starts a fresh run or resumes the last unfinished checkpoint
func (o *ScrapeOrchestrator) prepare() (*runContext, bool) {
	rc := &runContext{
		runID:     uuid.NewString(),
		startedAt: o.now(),
		progress:  &progressCounter{},
		results:   make(map[string]models.CardResult),
	}
	defer func() { rc.progress.p.RunID = rc.runID }()

	if o.checkpoints == nil || o.opts.DryRun {
		return rc, false
	}

	cp, err := o.checkpoints.Load()
	switch {
	case errors.Is(err, ErrCheckpointNotFound):
		return rc, false
	case err != nil:
		log.Warnf("Orchestrator: ignoring checkpoint: %v", err)
		return rc, false
	case cp.Finished:
		return rc, false
	case o.opts.Force:
		log.Printf("Orchestrator: force set, discarding unfinished run %s", cp.RunID)
		return rc, false
	}

	rc.runID = cp.RunID
	rc.startedAt = cp.StartedAt
	for id, res := range cp.Results {
		if res.Complete() {
			rc.results[id] = res
		}
	}
	return rc, true
}

func (o *ScrapeOrchestrator) runPool(ctx context.Context, rc *runContext, pending []models.ScrapeJob) error {
	workers := o.opts.Workers
	if workers > len(pending) {
		workers = len(pending)
	}

	// The first session proves the fetch backend is reachable at all
	first := &workerSession{id: 0, factory: o.newSession}
	if err := first.create(ctx, "startup"); err != nil {
		return fmt.Errorf("failed to establish first fetch session: %w", err)
	}

	jobs := make(chan models.ScrapeJob)
	go func() {
		defer close(jobs)
		for _, job := range pending {
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		ws := first
		if i > 0 {
			ws = &workerSession{id: i, factory: o.newSession}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer ws.discard()
			o.work(ctx, rc, ws, jobs)
		}()
	}
	wg.Wait()
	return nil
}

func (o *ScrapeOrchestrator) work(ctx context.Context, rc *runContext, ws *workerSession, jobs <-chan models.ScrapeJob) {
	for job := range jobs {
		if ctx.Err() != nil {
			continue // drain
		}

		result := o.runJob(ctx, rc, ws, job)
		if ctx.Err() != nil {
			// interrupted mid-job; a resumed run repeats it
			continue
		}

		if result.Complete() && !o.opts.DryRun {
			o.persistCard(result)
		}
		p := o.record(rc, result)
		metrics.ScrapeJobsTotal.WithLabelValues(string(result.Outcome)).Inc()
		if o.onResult != nil {
			o.onResult(result, p)
		}

		if err := o.delay(ctx, o.jitter()); err != nil {
			return
		}
	}
}

func (o *ScrapeOrchestrator) jitter() time.Duration {
	lo, hi := o.opts.MinDelay, o.opts.MaxDelay
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}

// runJob runs one job with at most one retry after a session fault
func (o *ScrapeOrchestrator) runJob(ctx context.Context, rc *runContext, ws *workerSession, job models.ScrapeJob) models.CardResult {
	job.Attempt = 1
	job.State = models.JobRunning

	result, err := o.attempt(ctx, ws, job)
	if err == nil {
		job.State = models.JobSucceeded
		return result
	}
	if ctx.Err() != nil {
		return o.failed(job)
	}

	job.State = models.JobRetrying
	rc.progress.retry()
	metrics.ScrapeRetriesTotal.Inc()
	log.Warnf("Orchestrator: worker %d: %s failed (%v), retrying with a fresh session", ws.id, job.CardID, err)

	ws.discard()
	if err := ws.create(ctx, "fault"); err != nil {
		log.Errorf("Orchestrator: worker %d: could not replace session for %s: %v", ws.id, job.CardID, err)
		job.State = models.JobFailed
		return o.failed(job)
	}

	job.Attempt = 2
	job.State = models.JobRunning
	result, err = o.attempt(ctx, ws, job)
	if err != nil {
		job.State = models.JobFailed
		ws.discard()
		log.Errorf("Orchestrator: worker %d: %s failed after retry: %v", ws.id, job.CardID, err)
		return o.failed(job)
	}
	job.State = models.JobSucceeded
	return result
}

func (o *ScrapeOrchestrator) failed(job models.ScrapeJob) models.CardResult {
	return models.CardResult{
		CardID:      job.CardID,
		Identifier:  job.Identifier,
		Outcome:     models.OutcomeFailed,
		Trend:       models.TrendUnknown,
		NumListings: 0,
		ScrapedAt:   o.now(),
	}
}

// attempt is the RUNNING phase of a job: primary query, fallback on empty,
// default price when nothing sold
func (o *ScrapeOrchestrator) attempt(ctx context.Context, ws *workerSession, job models.ScrapeJob) (models.CardResult, error) {
	if err := ws.ensure(ctx); err != nil {
		return models.CardResult{}, err
	}

	id := o.builder.Parse(job.Identifier)
	query := o.builder.BuildQuery(job.Identifier)
	sales, err := o.fetchSales(ctx, ws, query, id.GradeLabel, id.GradeNumber)
	if err != nil {
		return models.CardResult{}, err
	}

	fallbackUsed := false
	if len(sales) == 0 {
		if fallback := o.builder.BuildFallbackQuery(job.Identifier); fallback != query {
			metrics.ScrapeFallbackQueriesTotal.Inc()
			fallbackUsed = true
			query = fallback
			if sales, err = o.fetchSales(ctx, ws, query, id.GradeLabel, id.GradeNumber); err != nil {
				return models.CardResult{}, err
			}
		}
	}

	if id.IsSerial() {
		sales = o.normalizer.Normalize(sales, id.SerialRun)
	}

	result := models.CardResult{
		CardID:       job.CardID,
		Identifier:   job.Identifier,
		Query:        query,
		FallbackUsed: fallbackUsed,
		NumListings:  len(sales),
		ScrapedAt:    o.now(),
	}

	if est := EstimateFairPrice(sales); est != nil {
		result.Outcome = models.OutcomeFound
		result.Estimate = est
		result.FairValue = est.FairPrice
		result.Trend = est.Trend
		result.Sales = sales
	} else {
		result.Outcome = models.OutcomeNotFound
		result.FairValue = o.opts.DefaultPrice
		result.Trend = models.TrendUnknown
	}

	if !id.IsGraded() && len(o.opts.GradedVariants) > 0 {
		graded, err := o.gradedPrices(ctx, ws, job.Identifier, id)
		if err != nil {
			return models.CardResult{}, err
		}
		result.GradedPrices = graded
	}
	return result, nil
}

// gradedPrices prices the configured PSA grades of an ungraded card
func (o *ScrapeOrchestrator) gradedPrices(ctx context.Context, ws *workerSession, identifier string, id models.CardIdentifier) ([]models.GradedPrice, error) {
	var out []models.GradedPrice
	for _, grade := range o.opts.GradedVariants {
		label := "PSA " + strconv.Itoa(grade)
		sales, err := o.fetchSales(ctx, ws, o.builder.BuildGradedQuery(identifier, grade), label, grade)
		if err != nil {
			return nil, err
		}
		if id.IsSerial() {
			sales = o.normalizer.Normalize(sales, id.SerialRun)
		}
		est := EstimateFairPrice(sales)
		if est == nil {
			continue
		}
		out = append(out, models.GradedPrice{
			Grade:     label,
			FairValue: est.FairPrice,
			NumSales:  est.NumSales,
			Trend:     est.Trend,
		})
	}
	return out, nil
}

func (o *ScrapeOrchestrator) fetchSales(ctx context.Context, ws *workerSession, query, gradeLabel string, gradeNumber int) ([]models.Sale, error) {
	res, err := ws.session.Fetch(ctx, query, o.opts.MaxListings)
	if err != nil {
		metrics.FetchFaultsTotal.Inc()
		return nil, err
	}
	return FilterListings(res, gradeLabel, gradeNumber), nil
}

// persistCard merges one result into the per-card files. Failures are
// logged and the run continues.
func (o *ScrapeOrchestrator) persistCard(result models.CardResult) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveCardRecord(result); err != nil {
		log.Errorf("Orchestrator: %v", err)
	}
	entry := models.PriceHistoryEntry{
		Date:         result.ScrapedAt.Format(models.DateLayout),
		FairValue:    result.FairValue,
		NumSales:     result.NumListings,
		Trend:        result.Trend,
		GradedPrices: result.GradedPrices,
	}
	if err := o.store.AppendHistory(result.CardID, entry); err != nil {
		log.Errorf("Orchestrator: %v", err)
	}
}

// record adds a finished job to the result table and checkpoints every N
// completions. Table update and checkpoint write share one lock so writes
// never interleave.
func (o *ScrapeOrchestrator) record(rc *runContext, result models.CardResult) Progress {
	p := rc.progress.complete(result.Outcome)

	result.Sales = nil
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.results[result.CardID] = result
	rc.sinceCheckpoint++
	if rc.sinceCheckpoint >= o.opts.CheckpointEvery {
		rc.sinceCheckpoint = 0
		o.saveCheckpointLocked(rc, false)
	}
	return p
}

func (o *ScrapeOrchestrator) saveCheckpointLocked(rc *runContext, finished bool) {
	if o.checkpoints == nil || o.opts.DryRun {
		return
	}

	results := make(map[string]models.CardResult, len(rc.results))
	for id, res := range rc.results {
		results[id] = res
	}
	cp := &models.Checkpoint{
		RunID:     rc.runID,
		StartedAt: rc.startedAt,
		UpdatedAt: o.now(),
		Finished:  finished,
		Results:   results,
	}
	if err := o.checkpoints.Save(cp); err != nil {
		log.Errorf("Orchestrator: checkpoint failed, continuing in memory: %v", err)
	}
}

// finish writes the last checkpoint and, for a run that was not
// interrupted, the summary (retried once)
func (o *ScrapeOrchestrator) finish(rc *runContext, interrupted bool) {
	rc.mu.Lock()
	o.saveCheckpointLocked(rc, !interrupted)
	rc.mu.Unlock()

	if o.opts.DryRun || o.store == nil || interrupted {
		return
	}

	results := make([]models.CardResult, 0, len(rc.results))
	for _, res := range rc.results {
		results = append(results, res)
	}
	if err := o.store.WriteSummary(results); err != nil {
		log.Warnf("Orchestrator: summary write failed, retrying: %v", err)
		if err := o.store.WriteSummary(results); err != nil {
			log.Errorf("Orchestrator: summary write failed again: %v", err)
		}
	}
	if o.opts.XLSX {
		if err := o.store.WriteSummaryXLSX(results); err != nil {
			log.Errorf("Orchestrator: spreadsheet summary failed: %v", err)
		}
	}
}

// workerSession is the fetch session owned by one worker
type workerSession struct {
	id      int
	factory SessionFactory
	session ListingSession
}

// ensure probes the session and replaces it when the probe fails
func (w *workerSession) ensure(ctx context.Context) error {
	if w.session != nil && w.session.Alive(ctx) {
		return nil
	}
	reason := "startup"
	if w.session != nil {
		reason = "probe_failed"
		log.Printf("Orchestrator: worker %d: session probe failed, recreating", w.id)
		w.discard()
	}
	return w.create(ctx, reason)
}

func (w *workerSession) create(ctx context.Context, reason string) error {
	if w.factory == nil {
		return ErrSessionUnavailable
	}
	s, err := w.factory(ctx)
	if err != nil {
		return fmt.Errorf("worker %d: %w", w.id, err)
	}
	metrics.SessionsCreatedTotal.WithLabelValues(reason).Inc()
	w.session = s
	return nil
}

func (w *workerSession) discard() {
	if w.session == nil {
		return
	}
	if err := w.session.Close(); err != nil {
		log.Debugf("Orchestrator: worker %d: close session: %v", w.id, err)
	}
	w.session = nil
}
