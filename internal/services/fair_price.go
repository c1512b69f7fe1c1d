package services

import (
	"sort"
	"time"

	"github.com/codyseavey/card-valuer/internal/models"
)

const (
	// sales outside [median/outlierFactor, median*outlierFactor] are dropped
	outlierFactor = 3.0
	// minimum sample before outlier rejection applies
	outlierMinSales = 3
	// relative change needed to call a trend up or down
	trendThreshold = 0.10
	// sample size for the representative prices
	representativeCount = 3
)

// EstimateFairPrice reduces a set of sales to one fair price and a trend.
// It returns nil for an empty input.
func EstimateFairPrice(sales []models.Sale) *models.PriceEstimate {
	if len(sales) == 0 {
		return nil
	}

	filtered, removed := rejectOutliers(sales)
	ordered := orderByRecency(filtered)

	top := ordered
	if len(top) > representativeCount {
		top = top[:representativeCount]
	}
	top3 := make([]float64, len(top))
	for i, s := range top {
		top3[i] = s.Price
	}

	trend := classifyTrend(ordered)
	fair := selectPrice(top3, trend)

	prices := pricesOf(filtered)
	sort.Float64s(prices)

	return &models.PriceEstimate{
		FairPrice:       roundCents(fair),
		Trend:           trend,
		Top3:            top3,
		MedianPrice:     roundCents(median(prices)),
		MinPrice:        roundCents(prices[0]),
		MaxPrice:        roundCents(prices[len(prices)-1]),
		NumSales:        len(filtered),
		OutliersRemoved: removed,
	}
}

// rejectOutliers drops sales far from the median. If that would drop every
// sale the original set is kept and nothing counts as removed.
func rejectOutliers(sales []models.Sale) ([]models.Sale, int) {
	if len(sales) < outlierMinSales {
		return sales, 0
	}

	prices := pricesOf(sales)
	sort.Float64s(prices)
	med := median(prices)
	if med <= 0 {
		return sales, 0
	}

	lo, hi := med/outlierFactor, med*outlierFactor
	kept := make([]models.Sale, 0, len(sales))
	for _, s := range sales {
		if s.Price >= lo && s.Price <= hi {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return sales, 0
	}
	return kept, len(sales) - len(kept)
}

// orderByRecency puts dated sales first by ascending days ago, then undated
// sales. Ties keep their original order.
func orderByRecency(sales []models.Sale) []models.Sale {
	now := time.Now()
	ordered := make([]models.Sale, len(sales))
	copy(ordered, sales)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, aDated := ordered[i].DaysAgo(now)
		b, bDated := ordered[j].DaysAgo(now)
		switch {
		case !aDated:
			return false
		case !bDated:
			return true
		default:
			return a < b
		}
	})
	return ordered
}

// classifyTrend compares recent against older prices. With four or more sales
// the halves' means are compared; with two or three only the newest and the
// oldest sale.
func classifyTrend(ordered []models.Sale) models.Trend {
	n := len(ordered)
	switch {
	case n <= 1:
		return models.TrendInsufficient
	case n < 4:
		return compareTrend(ordered[0].Price, ordered[n-1].Price)
	}

	mid := n / 2
	return compareTrend(mean(pricesOf(ordered[:mid])), mean(pricesOf(ordered[mid:])))
}

func compareTrend(recent, older float64) models.Trend {
	switch {
	case recent > older*(1+trendThreshold):
		return models.TrendUp
	case recent < older*(1-trendThreshold):
		return models.TrendDown
	default:
		return models.TrendStable
	}
}

// selectPrice picks from the representative prices: the highest on an up
// trend, the lowest on a down trend, otherwise the element at len/2 of the
// ascending order (the higher of two).
func selectPrice(top3 []float64, trend models.Trend) float64 {
	sorted := make([]float64, len(top3))
	copy(sorted, top3)
	sort.Float64s(sorted)

	switch trend {
	case models.TrendUp:
		return sorted[len(sorted)-1]
	case models.TrendDown:
		return sorted[0]
	default:
		return sorted[len(sorted)/2]
	}
}

func pricesOf(sales []models.Sale) []float64 {
	out := make([]float64, len(sales))
	for i, s := range sales {
		out[i] = s.Price
	}
	return out
}

// median of an ascending slice
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
