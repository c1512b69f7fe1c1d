package services

import (
	"strings"
	"time"

	"github.com/codyseavey/card-valuer/internal/metrics"
	"github.com/codyseavey/card-valuer/internal/models"
)

var soldDateLayouts = []string{
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
}

// ParseListing converts a raw listing into a sale. ok is false when the price
// is missing or unparseable; a bad sold caption only leaves the date empty.
func ParseListing(raw models.RawListing, searchURL string) (models.Sale, bool) {
	title := collapse(raw.Title)
	if title == "" {
		return models.Sale{}, false
	}

	item, ok := parseDollars(raw.PriceText)
	if !ok || item < 0 {
		return models.Sale{}, false
	}

	return models.Sale{
		Title:     title,
		ItemPrice: item,
		Shipping:  parseShipping(raw.ShippingText),
		Price:     addCents(item, parseShipping(raw.ShippingText)),
		SoldDate:  parseSoldCaption(raw.SoldCaption),
		URL:       strings.TrimSpace(raw.URL),
		SearchURL: searchURL,
	}, true
}

// parseShipping returns 0 for free, missing or unreadable shipping text
func parseShipping(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(strings.ToLower(text), "free") {
		return 0
	}
	v, ok := parseDollars(text)
	if !ok || v < 0 {
		return 0
	}
	return v
}

// parseSoldCaption reads "Sold Oct 3, 2026" style captions into a calendar date
func parseSoldCaption(text string) *time.Time {
	text = collapse(text)
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "sold") {
		text = strings.TrimSpace(text[len("sold"):])
	}
	text = strings.TrimSpace(strings.TrimPrefix(text, ":"))

	for _, layout := range soldDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// FilterListings parses raw listings and keeps the ones whose title matches
// the expected grade. Unparseable listings are skipped.
func FilterListings(result models.FetchResult, gradeLabel string, gradeNumber int) []models.Sale {
	var sales []models.Sale
	for _, raw := range result.Listings {
		sale, ok := ParseListing(raw, result.SearchURL)
		if !ok {
			metrics.ListingsParsedTotal.WithLabelValues("unparseable").Inc()
			continue
		}
		if !TitleMatchesGrade(sale.Title, gradeLabel, gradeNumber) {
			metrics.ListingsParsedTotal.WithLabelValues("grade_mismatch").Inc()
			continue
		}
		metrics.ListingsParsedTotal.WithLabelValues("accepted").Inc()
		sales = append(sales, sale)
	}
	return sales
}
