package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/codyseavey/card-valuer/internal/models"
)

func TestParseListing(t *testing.T) {
	tests := []struct {
		name      string
		raw       models.RawListing
		wantOK    bool
		wantPrice float64
		wantShip  float64
		wantDate  string
	}{
		{
			name:      "price shipping and date",
			raw:       models.RawListing{Title: "Wembanyama #136", PriceText: "$12.50", ShippingText: "+$4.99 shipping", SoldCaption: "Sold Oct 3, 2026"},
			wantOK:    true,
			wantPrice: 17.49,
			wantShip:  4.99,
			wantDate:  "2026-10-03",
		},
		{
			name:      "free shipping",
			raw:       models.RawListing{Title: "Wembanyama #136", PriceText: "$20.00", ShippingText: "Free delivery"},
			wantOK:    true,
			wantPrice: 20,
		},
		{
			name:      "thousands separator",
			raw:       models.RawListing{Title: "Wembanyama Gold /10", PriceText: "$1,234.56"},
			wantOK:    true,
			wantPrice: 1234.56,
		},
		{
			name:      "price range takes the low end",
			raw:       models.RawListing{Title: "Wembanyama lot", PriceText: "$10.00 to $15.00"},
			wantOK:    true,
			wantPrice: 10,
		},
		{
			name:      "day first caption",
			raw:       models.RawListing{Title: "Wembanyama", PriceText: "$5", SoldCaption: "Sold  3 Oct 2026"},
			wantOK:    true,
			wantPrice: 5,
			wantDate:  "2026-10-03",
		},
		{
			name:      "unreadable shipping and date",
			raw:       models.RawListing{Title: "Wembanyama", PriceText: "$5.00", ShippingText: "see description", SoldCaption: "Sold recently"},
			wantOK:    true,
			wantPrice: 5,
		},
		{
			name: "missing price",
			raw:  models.RawListing{Title: "Wembanyama", PriceText: ""},
		},
		{
			name: "unparseable price",
			raw:  models.RawListing{Title: "Wembanyama", PriceText: "Best offer accepted"},
		},
		{
			name: "missing title",
			raw:  models.RawListing{PriceText: "$5.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sale, ok := ParseListing(tt.raw, "https://example.test/sch")
			if ok != tt.wantOK {
				t.Fatalf("ParseListing() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if sale.Price != tt.wantPrice {
				t.Errorf("Price = %v, want %v", sale.Price, tt.wantPrice)
			}
			if sale.Shipping != tt.wantShip {
				t.Errorf("Shipping = %v, want %v", sale.Shipping, tt.wantShip)
			}
			if got := sale.DateKey(); got != tt.wantDate {
				t.Errorf("DateKey() = %q, want %q", got, tt.wantDate)
			}
			if sale.SearchURL != "https://example.test/sch" {
				t.Errorf("SearchURL = %q", sale.SearchURL)
			}
		})
	}
}

func TestFilterListings(t *testing.T) {
	result := models.FetchResult{
		SearchURL: "https://example.test/sch",
		Listings: []models.RawListing{
			{Title: "Wembanyama Prizm PSA 10", PriceText: "$300.00"},
			{Title: "Wembanyama Prizm PSA 9", PriceText: "$150.00"},
			{Title: "Wembanyama Prizm PSA 100", PriceText: "$1.00"},
			{Title: "Wembanyama Prizm PSA 10", PriceText: "no price"},
			{Title: "Wembanyama Prizm raw", PriceText: "$40.00"},
		},
	}

	graded := FilterListings(result, "PSA 10", 10)
	if len(graded) != 1 || graded[0].Price != 300 {
		t.Errorf("graded filter = %+v", graded)
	}

	raw := FilterListings(result, "", 0)
	if len(raw) != 1 || raw[0].Price != 40 {
		t.Errorf("raw filter = %+v", raw)
	}
}

func TestRoundCents(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.005, 1.01},
		{2.675, 2.68},
		{10, 10},
		{0.125, 0.13},
	}
	for _, tt := range tests {
		if got := roundCents(tt.in); got != tt.want {
			t.Errorf("roundCents(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := addCents(0.1, 0.2); got != 0.3 {
		t.Errorf("addCents(0.1, 0.2) = %v, want 0.3", got)
	}
}

func TestKeywordTables(t *testing.T) {
	tables := DefaultKeywordTables()

	tests := []struct {
		text, want string
	}{
		{"2023 Prizm Gold Vinyl", "Gold Vinyl"},
		{"2023 Prizm Gold", "Gold"},
		{"2023 Prizm Red White & Blue", "Red White Blue"},
		{"2023 Prizm Goldfish", ""},
	}
	for _, tt := range tests {
		got, ok := tables.MatchVariant(tt.text)
		if got != tt.want || ok != (tt.want != "") {
			t.Errorf("MatchVariant(%q) = (%q, %v), want %q", tt.text, got, ok, tt.want)
		}
	}

	if got, _ := tables.MatchSubset("Rookie Patch Auto"); got != "RPA" {
		t.Errorf("MatchSubset() = %q, want RPA", got)
	}
	if got := tables.ShortBrand("panini  prizm"); got != "Prizm" {
		t.Errorf("ShortBrand() = %q, want Prizm", got)
	}
	if got := tables.ShortBrand("Panini Prizm Draft Picks"); got != "Panini Prizm Draft Picks" {
		t.Errorf("ShortBrand() must only alias exact names, got %q", got)
	}
}

func TestLoadKeywordTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.json")
	data := `{"variants":[{"keyword":"Kaleidoscope","canonical":"Kaleido"}],"subsets":[],"brands":[{"keyword":"Topps Now","canonical":"Now"}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	tables, err := LoadKeywordTables(path)
	if err != nil {
		t.Fatalf("LoadKeywordTables() error = %v", err)
	}
	if got, _ := tables.MatchVariant("Wembanyama Kaleidoscope"); got != "Kaleido" {
		t.Errorf("MatchVariant() = %q, want Kaleido", got)
	}
	if _, ok := tables.MatchVariant("Wembanyama Gold"); ok {
		t.Error("custom tables replace the defaults")
	}

	b := NewQueryBuilder(tables)
	if got := b.BuildQuery("2023 Topps Now - #12 - Victor Wembanyama"); got != "Victor Wembanyama #12 2023 Now -PSA -BGS -SGC -graded" {
		t.Errorf("BuildQuery() = %q", got)
	}

	defaults, err := LoadKeywordTables("")
	if err != nil || len(defaults.Variants) == 0 {
		t.Errorf("LoadKeywordTables(\"\") = %v, %v", defaults, err)
	}

	if _, err := LoadKeywordTables(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
