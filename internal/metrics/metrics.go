// Package metrics provides Prometheus metrics for the card valuer.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvalue_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardvalue_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Scrape Metrics
	ScrapeJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvalue_scrape_jobs_total",
			Help: "Finished scrape jobs by outcome",
		},
		[]string{"outcome"}, // "found", "not_found", "failed"
	)

	ScrapeRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardvalue_scrape_retries_total",
			Help: "Jobs retried after a session fault",
		},
	)

	ScrapeFallbackQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardvalue_scrape_fallback_queries_total",
			Help: "Jobs that needed the simplified fallback query",
		},
	)

	ScrapeRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardvalue_scrape_run_duration_seconds",
			Help:    "Time taken by one orchestrated pass over the catalog",
			Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200, 14400},
		},
	)

	ScrapeRunInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardvalue_scrape_run_in_progress",
			Help: "1 while an orchestrated pass is running",
		},
	)

	// Fetch / Session Metrics
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardvalue_fetch_duration_seconds",
			Help:    "Listing fetch latency per query",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 15, 30},
		},
	)

	FetchFaultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardvalue_fetch_faults_total",
			Help: "Listing fetches that failed with a session or navigation fault",
		},
	)

	SessionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvalue_sessions_created_total",
			Help: "Fetch sessions created by reason",
		},
		[]string{"reason"}, // "startup", "probe_failed", "fault"
	)

	ListingsParsedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvalue_listings_parsed_total",
			Help: "Raw listings by parse result",
		},
		[]string{"result"}, // "accepted", "unparseable", "grade_mismatch"
	)

	// Persistence Metrics
	CheckpointWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvalue_checkpoint_writes_total",
			Help: "Checkpoint writes by result",
		},
		[]string{"result"}, // "ok", "error"
	)

	StoreWriteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvalue_store_write_errors_total",
			Help: "Result store write failures by file kind",
		},
		[]string{"kind"}, // "card", "history", "snapshot", "summary"
	)

	// Catalog Metrics
	CatalogCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardvalue_catalog_cards_total",
			Help: "Number of active cards in the catalog",
		},
	)

	CatalogValueUSD = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardvalue_catalog_value_usd",
			Help: "Total fair value of the catalog in USD by mode",
		},
		[]string{"mode"},
	)
)
