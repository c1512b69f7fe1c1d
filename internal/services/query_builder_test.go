package services

import (
	"reflect"
	"strings"
	"testing"
)

const rawSuffix = " -PSA -BGS -SGC -graded"

func TestQueryBuilder_Parse(t *testing.T) {
	b := NewQueryBuilder(nil)

	tests := []struct {
		name       string
		identifier string
		check      func(t *testing.T, b *QueryBuilder, identifier string)
	}{
		{
			name:       "structured",
			identifier: "2023 Panini Prizm - Silver - #136 - Victor Wembanyama",
			check: func(t *testing.T, b *QueryBuilder, identifier string) {
				id := b.Parse(identifier)
				if id.Year != "2023" || id.SetName != "Panini Prizm" || id.Variant != "Silver" ||
					id.CardNumber != "136" || id.Player != "Victor Wembanyama" || id.Freeform {
					t.Errorf("Parse() = %+v", id)
				}
			},
		},
		{
			name:       "serial and grade",
			identifier: "2023 Panini Prizm - Gold /10 - #136 - Victor Wembanyama [PSA 10]",
			check: func(t *testing.T, b *QueryBuilder, identifier string) {
				id := b.Parse(identifier)
				if id.SerialRun != 10 || id.Variant != "Gold" || id.GradeLabel != "PSA 10" || id.GradeNumber != 10 {
					t.Errorf("Parse() = %+v", id)
				}
				if id.Player != "Victor Wembanyama" {
					t.Errorf("Player = %q", id.Player)
				}
			},
		},
		{
			name:       "numbered serial",
			identifier: "2023 Panini Select - #12/49 - Scoot Henderson",
			check: func(t *testing.T, b *QueryBuilder, identifier string) {
				id := b.Parse(identifier)
				if id.SerialNumber != 12 || id.SerialRun != 49 || id.CardNumber != "" {
					t.Errorf("Parse() = %+v", id)
				}
			},
		},
		{
			name:       "card number before a spaced print run",
			identifier: "2020 Panini Prizm - Silver #278 /99 - Justin Herbert [PSA 10]",
			check: func(t *testing.T, b *QueryBuilder, identifier string) {
				id := b.Parse(identifier)
				if id.CardNumber != "278" || id.SerialNumber != 0 || id.SerialRun != 99 {
					t.Errorf("Parse() = %+v", id)
				}
				if id.Player != "Justin Herbert" || id.Variant != "Silver" {
					t.Errorf("Parse() = %+v", id)
				}
			},
		},
		{
			name:       "slash season is a year, not a serial",
			identifier: "2023/24 Upper Deck - Young Guns #201 - Connor Bedard",
			check: func(t *testing.T, b *QueryBuilder, identifier string) {
				id := b.Parse(identifier)
				if id.Year != "2023/24" || id.SetName != "Upper Deck" || id.SerialRun != 0 || id.SerialNumber != 0 {
					t.Errorf("Parse() = %+v", id)
				}
				if id.CardNumber != "201" || id.Player != "Connor Bedard" {
					t.Errorf("Parse() = %+v", id)
				}
			},
		},
		{
			name:       "serial after a slash season",
			identifier: "2023/2024 Upper Deck - #201 /99 - Connor Bedard",
			check: func(t *testing.T, b *QueryBuilder, identifier string) {
				id := b.Parse(identifier)
				if id.Year != "2023/2024" || id.SerialRun != 99 || id.CardNumber != "201" {
					t.Errorf("Parse() = %+v", id)
				}
			},
		},
		{
			name:       "separators only",
			identifier: " - | - ",
			check: func(t *testing.T, b *QueryBuilder, identifier string) {
				id := b.Parse(identifier)
				if id.Player != "" || id.SetName != "" || id.CardNumber != "" {
					t.Errorf("Parse() = %+v", id)
				}
			},
		},
		{
			name:       "player name containing a variant word",
			identifier: "2021 Panini Prizm - #12 - Jalen Green",
			check: func(t *testing.T, b *QueryBuilder, identifier string) {
				id := b.Parse(identifier)
				if id.Player != "Jalen Green" || id.Variant != "" {
					t.Errorf("Parse() = %+v", id)
				}
			},
		},
		{
			name:       "freeform",
			identifier: "Victor Wembanyama 2023 Prizm Silver #136",
			check: func(t *testing.T, b *QueryBuilder, identifier string) {
				id := b.Parse(identifier)
				if !id.Freeform || id.CardNumber != "136" || id.Year != "2023" || id.Variant != "Silver" {
					t.Errorf("Parse() = %+v", id)
				}
			},
		},
		{
			name:       "idempotent",
			identifier: "2023 Panini Prizm - Rated Rookie - #136 - Victor Wembanyama",
			check: func(t *testing.T, b *QueryBuilder, identifier string) {
				first := b.Parse(identifier)
				second := b.Parse(identifier)
				fresh := NewQueryBuilder(nil).Parse(identifier)
				if !reflect.DeepEqual(first, second) || !reflect.DeepEqual(first, fresh) {
					t.Errorf("Parse() not idempotent: %+v / %+v / %+v", first, second, fresh)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, b, tt.identifier)
		})
	}
}

func TestQueryBuilder_BuildQuery(t *testing.T) {
	b := NewQueryBuilder(nil)

	var graded strings.Builder
	graded.WriteString(`Victor Wembanyama #136 Gold 2023 Prizm "PSA 10"`)
	for _, n := range []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"} {
		graded.WriteString(` -"PSA ` + n + `"`)
	}

	tests := []struct {
		name       string
		identifier string
		want       string
	}{
		{
			name:       "raw card",
			identifier: "2023 Panini Prizm - Silver - #136 - Victor Wembanyama",
			want:       "Victor Wembanyama #136 Silver 2023 Prizm" + rawSuffix,
		},
		{
			name:       "graded serial card drops the run",
			identifier: "2023 Panini Prizm - Gold /10 - #136 - Victor Wembanyama [PSA 10]",
			want:       graded.String(),
		},
		{
			name:       "subset",
			identifier: "2023 Panini Donruss - Rated Rookie - #241 - Victor Wembanyama",
			want:       "Victor Wembanyama #241 Rated Rookie 2023 Donruss" + rawSuffix,
		},
		{
			name:       "alphanumeric card number, unknown brand kept",
			identifier: "2023 Topps Now - #RA-VW - Victor Wembanyama",
			want:       "Victor Wembanyama #RA-VW 2023 Topps Now" + rawSuffix,
		},
		{
			name:       "freeform terms are not repeated",
			identifier: "Victor Wembanyama 2023 Prizm Silver #136",
			want:       "Victor Wembanyama 2023 Prizm Silver #136" + rawSuffix,
		},
		{
			name:       "card number kept before a spaced print run",
			identifier: "2020 Panini Prizm - Silver #278 /99 - Justin Herbert [PSA 10]",
			want:       strings.Replace(graded.String(), "Victor Wembanyama #136 Gold 2023 Prizm", "Justin Herbert #278 Silver 2020 Prizm", 1),
		},
		{
			name:       "slash season",
			identifier: "2023/24 Upper Deck - Young Guns #201 - Connor Bedard",
			want:       "Connor Bedard #201 2023/24 UD" + rawSuffix,
		},
		{
			name:       "separators only",
			identifier: " - | - ",
			want:       strings.TrimSpace(rawSuffix),
		},
		{
			name:       "empty identifier",
			identifier: "",
			want:       strings.TrimSpace(rawSuffix),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.BuildQuery(tt.identifier); got != tt.want {
				t.Errorf("BuildQuery(%q)\n got %q\nwant %q", tt.identifier, got, tt.want)
			}
		})
	}
}

func TestQueryBuilder_BuildFallbackQuery(t *testing.T) {
	b := NewQueryBuilder(nil)

	got := b.BuildFallbackQuery("2023 Panini Prizm - Silver - #136 - Victor Wembanyama")
	if want := "Victor Wembanyama #136 2023" + rawSuffix; got != want {
		t.Errorf("BuildFallbackQuery() = %q, want %q", got, want)
	}

	got = b.BuildFallbackQuery("2023 Panini Prizm - Silver - #136 - Victor Wembanyama [PSA 9]")
	if !strings.HasPrefix(got, `Victor Wembanyama #136 2023 "PSA 9" -"PSA 1"`) || strings.Contains(got, `-"PSA 9"`) {
		t.Errorf("BuildFallbackQuery() graded = %q", got)
	}
}

func TestQueryBuilder_BuildGradedQuery(t *testing.T) {
	b := NewQueryBuilder(nil)

	got := b.BuildGradedQuery("2023 Panini Prizm - #136 - Victor Wembanyama", 9)
	if !strings.HasPrefix(got, `Victor Wembanyama #136 2023 Prizm "PSA 9"`) {
		t.Errorf("BuildGradedQuery() = %q", got)
	}
	if !strings.Contains(got, `-"PSA 10"`) || strings.Contains(got, "-graded") {
		t.Errorf("BuildGradedQuery() suffix = %q", got)
	}
}

func TestImpliedBy(t *testing.T) {
	tests := []struct {
		subset, variant string
		want            bool
	}{
		{"Rookie", "Rookie Gold", true},
		{"Rated Rookie", "Rookie", true},
		{"RPA", "Gold", false},
		{"Rookie", "", false},
	}
	for _, tt := range tests {
		if got := impliedBy(tt.subset, tt.variant); got != tt.want {
			t.Errorf("impliedBy(%q, %q) = %v, want %v", tt.subset, tt.variant, got, tt.want)
		}
	}
}
