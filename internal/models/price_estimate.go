package models

import (
	"fmt"
	"strings"
)

// Trend is the recent price movement classification
type Trend string

const (
	TrendUp           Trend = "up"
	TrendDown         Trend = "down"
	TrendStable       Trend = "stable"
	TrendInsufficient Trend = "insufficient data"
	TrendUnknown      Trend = "unknown"
)

// PriceEstimate is the reduction of one sample of sales. FairPrice is always
// one of Top3, never an average.
type PriceEstimate struct {
	FairPrice       float64   `json:"fair_price"`
	Trend           Trend     `json:"trend"`
	Top3            []float64 `json:"top3_prices"`
	MedianPrice     float64   `json:"median_price"`
	MinPrice        float64   `json:"min_price"`
	MaxPrice        float64   `json:"max_price"`
	NumSales        int       `json:"num_sales"`
	OutliersRemoved int       `json:"outliers_removed"`
}

// FormatTop3 renders the representative prices as "$1.00 | $2.00 | $3.00"
func (e PriceEstimate) FormatTop3() string {
	parts := make([]string, len(e.Top3))
	for i, p := range e.Top3 {
		parts[i] = fmt.Sprintf("$%.2f", p)
	}
	return strings.Join(parts, " | ")
}
