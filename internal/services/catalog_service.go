package services

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/codyseavey/card-valuer/internal/models"
)

// CatalogFilter narrows which cards a run loads. Zero values match everything.
type CatalogFilter struct {
	Season          string
	Category        string
	Limit           int
	IncludeArchived bool
}

// ImportResult counts what an import did
type ImportResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// CatalogService owns the cards table: ingestion, loading work for a run and
// writing run summaries back
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// Import upserts catalog entries. Entries are matched to existing rows by
// identifier first, then by ID; an existing identifier is never rewritten.
// Entries with no usable identifier, or an ID that is not a safe file name
// (see models.ValidCardID), are skipped.
func (s *CatalogService) Import(entries []models.CatalogEntry) (ImportResult, error) {
	var res ImportResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			identifier := e.BuildIdentifier()
			if identifier == "" {
				res.Skipped++
				continue
			}
			if id := strings.TrimSpace(e.ID); id != "" && !models.ValidCardID(id) {
				log.Warnf("Catalog: skipping %q: card id %q is not a safe file name", identifier, id)
				res.Skipped++
				continue
			}

			var existing models.Card
			err := tx.Where("identifier = ?", identifier).First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) && strings.TrimSpace(e.ID) != "" {
				err = tx.Where("id = ?", strings.TrimSpace(e.ID)).First(&existing).Error
			}

			switch {
			case err == nil:
				updates := map[string]interface{}{}
				setIfPresent(updates, "season", e.Season)
				setIfPresent(updates, "category", e.Category)
				setIfPresent(updates, "set_name", e.SetName)
				setIfPresent(updates, "player", e.Player)
				setIfPresent(updates, "card_number", e.CardNumber)
				if len(updates) > 0 {
					if err := tx.Model(&existing).Updates(updates).Error; err != nil {
						return fmt.Errorf("failed to update card %s: %w", existing.ID, err)
					}
				}
				res.Updated++
			case errors.Is(err, gorm.ErrRecordNotFound):
				id := strings.TrimSpace(e.ID)
				if id == "" {
					id = models.CardIDFromIdentifier(identifier)
				}
				card := models.Card{
					ID:         id,
					Identifier: identifier,
					Season:     strings.TrimSpace(e.Season),
					Category:   strings.TrimSpace(e.Category),
					SetName:    strings.TrimSpace(e.SetName),
					Player:     strings.TrimSpace(e.Player),
					CardNumber: strings.TrimSpace(e.CardNumber),
					Trend:      models.TrendUnknown,
				}
				if err := tx.Create(&card).Error; err != nil {
					return fmt.Errorf("failed to create card %s: %w", id, err)
				}
				res.Added++
			default:
				return fmt.Errorf("failed to look up card %q: %w", identifier, err)
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	log.Printf("Catalog: imported %d entries (%d added, %d updated, %d skipped)",
		len(entries), res.Added, res.Updated, res.Skipped)
	return res, nil
}

func setIfPresent(updates map[string]interface{}, column, value string) {
	if v := strings.TrimSpace(value); v != "" {
		updates[column] = v
	}
}

// Load returns the cards a run should scrape, sorted by ID. An empty result
// is ErrCatalogEmpty.
func (s *CatalogService) Load(filter CatalogFilter) ([]models.Card, error) {
	query := s.db.Model(&models.Card{}).Order("id ASC")
	if !filter.IncludeArchived {
		query = query.Where("archived = ?", false)
	}
	if filter.Season != "" {
		query = query.Where("season = ?", filter.Season)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var cards []models.Card
	if err := query.Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if len(cards) == 0 {
		return nil, ErrCatalogEmpty
	}
	return cards, nil
}

// Get returns one card, or nil when it does not exist
func (s *CatalogService) Get(id string) (*models.Card, error) {
	var card models.Card
	err := s.db.Where("id = ?", id).First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// ApplyResults writes each result's summary back to its card. Failed jobs
// only record the attempt so the last good value survives.
func (s *CatalogService) ApplyResults(results []models.CardResult) (int, error) {
	updated := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, r := range results {
			scrapedAt := r.ScrapedAt
			updates := map[string]interface{}{
				"scrape_outcome":  r.Outcome,
				"last_scraped_at": &scrapedAt,
			}

			if r.Complete() {
				updates["fair_value"] = r.FairValue
				updates["trend"] = r.Trend
				updates["num_sales"] = r.NumListings
				updates["top3_prices"] = ""
				updates["median_price"] = 0.0
				updates["min_price"] = 0.0
				updates["max_price"] = 0.0
				updates["outliers_removed"] = 0
				if est := r.Estimate; est != nil {
					updates["top3_prices"] = est.FormatTop3()
					updates["median_price"] = est.MedianPrice
					updates["min_price"] = est.MinPrice
					updates["max_price"] = est.MaxPrice
					updates["num_sales"] = est.NumSales
					updates["outliers_removed"] = est.OutliersRemoved
				}
			}

			result := tx.Model(&models.Card{}).Where("id = ?", r.CardID).Updates(updates)
			if result.Error != nil {
				return fmt.Errorf("failed to apply result for %s: %w", r.CardID, result.Error)
			}
			if result.RowsAffected == 0 {
				log.Warnf("Catalog: result for unknown card %s ignored", r.CardID)
				continue
			}
			updated++
		}
		return nil
	})
	return updated, err
}

// Archive excludes a card from future runs
func (s *CatalogService) Archive(id string) error {
	return s.setArchived(id, true)
}

// Restore puts an archived card back into the catalog
func (s *CatalogService) Restore(id string) error {
	return s.setArchived(id, false)
}

func (s *CatalogService) setArchived(id string, archived bool) error {
	result := s.db.Model(&models.Card{}).Where("id = ?", id).Update("archived", archived)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("card %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// LatestResults rebuilds summary rows from the cards table for cards that
// have been scraped at least once
func (s *CatalogService) LatestResults(filter CatalogFilter) ([]models.CardResult, error) {
	cards, err := s.Load(filter)
	if err != nil {
		return nil, err
	}

	results := make([]models.CardResult, 0, len(cards))
	for _, c := range cards {
		if c.LastScrapedAt == nil {
			continue
		}
		results = append(results, cardToResult(c))
	}
	return results, nil
}

func cardToResult(c models.Card) models.CardResult {
	r := models.CardResult{
		CardID:      c.ID,
		Identifier:  c.Identifier,
		Outcome:     c.ScrapeOutcome,
		FairValue:   c.FairValue,
		Trend:       c.Trend,
		NumListings: c.NumSales,
	}
	if c.LastScrapedAt != nil {
		r.ScrapedAt = c.LastScrapedAt.UTC()
	}
	if c.ScrapeOutcome == models.OutcomeFound {
		r.Estimate = &models.PriceEstimate{
			FairPrice:       c.FairValue,
			Trend:           c.Trend,
			Top3:            parseTop3(c.Top3Prices),
			MedianPrice:     c.MedianPrice,
			MinPrice:        c.MinPrice,
			MaxPrice:        c.MaxPrice,
			NumSales:        c.NumSales,
			OutliersRemoved: c.OutliersRemoved,
		}
	}
	return r
}

// parseTop3 reverses PriceEstimate.FormatTop3
func parseTop3(s string) []float64 {
	var out []float64
	for _, part := range strings.Split(s, "|") {
		if v, ok := parseDollars(part); ok {
			out = append(out, v)
		}
	}
	return out
}

// CatalogTotals is the aggregate value of the non-archived catalog
type CatalogTotals struct {
	CardCount  int
	TotalValue float64
}

// Totals sums fair values across non-archived cards
func (s *CatalogService) Totals() (CatalogTotals, error) {
	var row struct {
		Count int
		Total float64
	}
	err := s.db.Model(&models.Card{}).
		Select("COUNT(*) AS count, COALESCE(SUM(fair_value), 0) AS total").
		Where("archived = ?", false).
		Scan(&row).Error
	if err != nil {
		return CatalogTotals{}, fmt.Errorf("failed to total catalog: %w", err)
	}
	return CatalogTotals{CardCount: row.Count, TotalValue: roundCents(row.Total)}, nil
}
