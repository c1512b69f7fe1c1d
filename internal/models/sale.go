package models

import (
	"time"
)

// DateLayout is the calendar-date key used by history files and snapshots
const DateLayout = "2006-01-02"

// RawListing is one listing as extracted from a rendered results page.
// All fields are unparsed text.
type RawListing struct {
	Title        string `json:"title"`
	PriceText    string `json:"price"`
	ShippingText string `json:"shipping,omitempty"`
	SoldCaption  string `json:"sold_caption,omitempty"`
	URL          string `json:"url,omitempty"`
}

// FetchResult is what a listing session returns for one query
type FetchResult struct {
	SearchURL string       `json:"search_url"`
	Listings  []RawListing `json:"listings"`
}

// Sale is one completed listing. Price is the combined item + shipping
// amount in dollars, rounded to cents, and is never negative.
type Sale struct {
	Title     string     `json:"title"`
	ItemPrice float64    `json:"item_price"`
	Shipping  float64    `json:"shipping"`
	Price     float64    `json:"price"`
	SoldDate  *time.Time `json:"sold_date,omitempty"`
	URL       string     `json:"url,omitempty"`
	SearchURL string     `json:"search_url,omitempty"`

	// Set when the price was rescaled from another print run
	SerialRun     int     `json:"serial_run,omitempty"`
	OriginalPrice float64 `json:"original_price,omitempty"`
}

// DaysAgo returns whole days between the sold date and now. ok is false for
// undated sales.
func (s Sale) DaysAgo(now time.Time) (days int, ok bool) {
	if s.SoldDate == nil {
		return 0, false
	}
	sold := time.Date(s.SoldDate.Year(), s.SoldDate.Month(), s.SoldDate.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(today.Sub(sold).Hours() / 24), true
}

// DateKey returns the sold date as YYYY-MM-DD, or "" when undated
func (s Sale) DateKey() string {
	if s.SoldDate == nil {
		return ""
	}
	return s.SoldDate.Format(DateLayout)
}
