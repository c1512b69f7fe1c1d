package models

import (
	"strings"
	"testing"
	"time"
)

func TestBuildIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		entry    CatalogEntry
		expected string
	}{
		{"explicit identifier wins", CatalogEntry{Identifier: " 2023 Prizm - Wembanyama ", Player: "Other"}, "2023 Prizm - Wembanyama"},
		{"structured fields", CatalogEntry{Season: "2023-24", SetName: "Panini Prizm", Player: "Victor Wembanyama", CardNumber: "136"}, "2023-24 Panini Prizm - #136 - Victor Wembanyama"},
		{"number already prefixed", CatalogEntry{Player: "Luka Doncic", CardNumber: "#280"}, "#280 - Luka Doncic"},
		{"player only", CatalogEntry{Player: "Luka Doncic"}, "Luka Doncic"},
		{"empty", CatalogEntry{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.BuildIdentifier(); got != tt.expected {
				t.Errorf("BuildIdentifier() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCardIDFromIdentifier(t *testing.T) {
	id := CardIDFromIdentifier("2023-24 Panini Prizm - #136 - Victor Wembanyama [PSA 10]")
	if !strings.HasPrefix(id, "2023-24-panini-prizm-136-victor-wembanyama-psa-10-") {
		t.Errorf("unexpected slug %q", id)
	}
	if id != CardIDFromIdentifier("2023-24 Panini Prizm - #136 - Victor Wembanyama [PSA 10]") {
		t.Error("ID derivation should be deterministic")
	}
	if CardIDFromIdentifier("A/B") == CardIDFromIdentifier("A B") {
		t.Error("identifiers with the same slug should get distinct IDs")
	}
	if strings.ContainsAny(CardIDFromIdentifier("../../etc/passwd"), "./") {
		t.Error("ID must be file-safe")
	}
}

func TestValidCardID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"wemby", true},
		{"ok_card.v2", true},
		{CardIDFromIdentifier("2023 Panini Prizm - #136 - Victor Wembanyama"), true},
		{"", false},
		{".hidden", false},
		{"../../escaped", false},
		{"a/b", false},
		{`a\b`, false},
		{"has space", false},
		{strings.Repeat("a", 129), false},
	}

	for _, tt := range tests {
		if got := ValidCardID(tt.id); got != tt.want {
			t.Errorf("ValidCardID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestSaleDaysAgo(t *testing.T) {
	now := time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)
	sold := time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)

	days, ok := Sale{SoldDate: &sold}.DaysAgo(now)
	if !ok || days != 4 {
		t.Errorf("DaysAgo = (%d, %v), want (4, true)", days, ok)
	}
	if _, ok := (Sale{}).DaysAgo(now); ok {
		t.Error("undated sale should report ok=false")
	}
}

func TestRunStatsFailed(t *testing.T) {
	if (RunStats{Errored: 3}).Failed() != true {
		t.Error("all-errored run should fail")
	}
	if (RunStats{Errored: 3, NotFound: 1}).Failed() {
		t.Error("a run with any success should not fail")
	}
	if (RunStats{}).Failed() {
		t.Error("an empty run should not fail")
	}
}

func TestFormatTop3(t *testing.T) {
	e := PriceEstimate{Top3: []float64{100, 12.5, 9.999}}
	if got := e.FormatTop3(); got != "$100.00 | $12.50 | $10.00" {
		t.Errorf("FormatTop3() = %q", got)
	}
}
