package models

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

const maxCardIDLength = 128

var cardIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Card is one catalog row. The identifier is issued at ingestion and never
// rewritten; the summary columns are refreshed after every scrape.
type Card struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	Identifier      string     `json:"identifier" gorm:"not null;uniqueIndex"`
	Season          string     `json:"season" gorm:"index"`
	Category        string     `json:"category" gorm:"index"`
	SetName         string     `json:"set_name"`
	Player          string     `json:"player"`
	CardNumber      string     `json:"card_number"`
	FairValue       float64    `json:"fair_value"`
	Trend           Trend      `json:"trend"`
	Top3Prices      string     `json:"top3_prices"`
	MedianPrice     float64    `json:"median_price"`
	MinPrice        float64    `json:"min_price"`
	MaxPrice        float64    `json:"max_price"`
	NumSales        int        `json:"num_sales"`
	OutliersRemoved int        `json:"outliers_removed"`
	ScrapeOutcome   JobOutcome `json:"scrape_outcome"`
	LastScrapedAt   *time.Time `json:"last_scraped_at"`
	Archived        bool       `json:"archived" gorm:"not null;default:false;index"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CatalogEntry is the import shape for catalog ingestion. Only Identifier (or
// enough structured fields to build one) is required.
type CatalogEntry struct {
	ID         string `json:"id,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Season     string `json:"season,omitempty"`
	Category   string `json:"category,omitempty"`
	SetName    string `json:"set_name,omitempty"`
	Player     string `json:"player,omitempty"`
	CardNumber string `json:"card_number,omitempty"`
}

// BuildIdentifier returns the entry's identifier, assembling one from the
// structured fields when it was not supplied: "<season> <set> - <player> - #<number>".
func (e CatalogEntry) BuildIdentifier() string {
	if id := strings.TrimSpace(e.Identifier); id != "" {
		return id
	}

	var segments []string
	head := strings.TrimSpace(strings.TrimSpace(e.Season) + " " + strings.TrimSpace(e.SetName))
	if head != "" {
		segments = append(segments, head)
	}
	if num := strings.TrimPrefix(strings.TrimSpace(e.CardNumber), "#"); num != "" {
		segments = append(segments, "#"+num)
	}
	if player := strings.TrimSpace(e.Player); player != "" {
		segments = append(segments, player)
	}
	return strings.Join(segments, " - ")
}

// ValidCardID reports whether id can be used as a file name under the data
// directory: letters, digits, '.', '_' and '-', never starting with a dot
func ValidCardID(id string) bool {
	return len(id) <= maxCardIDLength && cardIDRe.MatchString(id)
}

// CardIDFromIdentifier derives a stable, file-safe ID from an identifier.
// The short hash suffix keeps identifiers that slug identically apart.
func CardIDFromIdentifier(identifier string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(identifier) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if len(slug) > 80 {
		slug = strings.TrimSuffix(slug[:80], "-")
	}

	sum := sha1.Sum([]byte(identifier))
	suffix := hex.EncodeToString(sum[:])[:8]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
