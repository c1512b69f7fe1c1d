package models

import (
	"time"
)

// GradedPrice is the fair value of one grade of an otherwise ungraded card
type GradedPrice struct {
	Grade     string  `json:"grade"`
	FairValue float64 `json:"fair_value"`
	NumSales  int     `json:"num_sales"`
	Trend     Trend   `json:"trend"`
}

// PriceHistoryEntry is one card's value on one calendar day
type PriceHistoryEntry struct {
	Date         string        `json:"date"`
	FairValue    float64       `json:"fair_value"`
	NumSales     int           `json:"num_sales"`
	Trend        Trend         `json:"trend,omitempty"`
	GradedPrices []GradedPrice `json:"graded_prices,omitempty"`
}

// PriceHistory is the per-card history file, entries sorted by date ascending
type PriceHistory struct {
	CardID  string              `json:"card_id"`
	Entries []PriceHistoryEntry `json:"entries"`
}

// CardRecord is the per-card file of archived raw sales and the latest stats
type CardRecord struct {
	CardID     string         `json:"card_id"`
	Identifier string         `json:"identifier"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Stats      *PriceEstimate `json:"stats,omitempty"`
	Sales      []Sale         `json:"sales"`
}
