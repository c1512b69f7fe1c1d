package models

import (
	"time"
)

// JobState is the lifecycle of one scrape job:
// NEW -> RUNNING -> SUCCEEDED, or RUNNING -> RETRYING -> RUNNING -> SUCCEEDED|FAILED
type JobState string

const (
	JobNew       JobState = "new"
	JobRunning   JobState = "running"
	JobRetrying  JobState = "retrying"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// JobOutcome is how a finished job is counted in run statistics
type JobOutcome string

const (
	OutcomeFound    JobOutcome = "found"
	OutcomeNotFound JobOutcome = "not_found"
	OutcomeFailed   JobOutcome = "failed"
)

// ScrapeJob is one (card, attempt) unit of work
type ScrapeJob struct {
	CardID     string
	Identifier string
	Attempt    int
	State      JobState
}

// CardResult is what a finished job contributes to the run's result table
type CardResult struct {
	CardID       string         `json:"card_id"`
	Identifier   string         `json:"identifier"`
	Outcome      JobOutcome     `json:"outcome"`
	Estimate     *PriceEstimate `json:"estimate,omitempty"`
	FairValue    float64        `json:"fair_value"`
	Trend        Trend          `json:"trend"`
	NumListings  int            `json:"num_listings"`
	Query        string         `json:"query"`
	FallbackUsed bool           `json:"fallback_used,omitempty"`
	GradedPrices []GradedPrice  `json:"graded_prices,omitempty"`
	ScrapedAt    time.Time      `json:"scraped_at"`

	// Sales are kept for archiving only and never checkpointed
	Sales []Sale `json:"-"`
}

// Complete reports whether a resumed run may skip this card
func (r CardResult) Complete() bool {
	return r.Outcome == OutcomeFound || r.Outcome == OutcomeNotFound
}

// RunStats summarizes one orchestrated pass over the catalog
type RunStats struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Skipped    int       `json:"skipped"`
	Completed  int       `json:"completed"`
	Found      int       `json:"found"`
	NotFound   int       `json:"not_found"`
	Errored    int       `json:"errored"`
	Retries    int       `json:"retries"`
}

// Failed reports a run in which every attempted job errored
func (s RunStats) Failed() bool {
	return s.Errored > 0 && s.Found+s.NotFound == 0
}

// Checkpoint is the durable, resumable copy of a run's result table
type Checkpoint struct {
	RunID     string                `json:"run_id"`
	StartedAt time.Time             `json:"started_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	Finished  bool                  `json:"finished"`
	Results   map[string]CardResult `json:"results"`
}
