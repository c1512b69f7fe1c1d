package services

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var dollarAmountRe = regexp.MustCompile(`\$?\s*(\d{1,3}(?:,\d{3})+|\d+)(\.\d{1,2})?`)

// roundCents rounds a dollar amount half away from zero to 2 decimals
func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// parseDollars extracts the first dollar amount from text, e.g.
// "$1,234.50" or "US $12.00 to $15.00" (the low end of a range).
func parseDollars(text string) (float64, bool) {
	m := dollarAmountRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "") + m[2])
	if err != nil {
		return 0, false
	}
	return d.Round(2).InexactFloat64(), true
}

// addCents sums dollar amounts without float drift
func addCents(a, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}
