package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/codyseavey/card-valuer/internal/metrics"
	"github.com/codyseavey/card-valuer/internal/models"
)

const (
	cardsDir     = "cards"
	historyDir   = "history"
	summaryCSV   = "summary.csv"
	summaryXLSX  = "summary.xlsx"
	summarySheet = "Summary"
)

// ErrInvalidCardID is returned for card IDs that are not safe file names
var ErrInvalidCardID = errors.New("invalid card id")

var summaryHeader = []string{
	"card_id", "identifier", "outcome", "fair_value", "trend", "top3_prices",
	"median_price", "min_price", "max_price", "num_sales", "outliers_removed",
	"fallback_used", "query", "scraped_at",
}

// ResultStore persists per-card sale archives, price histories, aggregate
// snapshots and the run summary as JSON/CSV files under one data directory.
// All history is merge-only.
type ResultStore struct {
	dir          string
	archiveCap   int
	snapshotFile string

	// serializes read-merge-write cycles
	mu sync.Mutex
}

// NewResultStore creates a store rooted at dataDir
func NewResultStore(dataDir string, archiveCap int, snapshotFile string) *ResultStore {
	if archiveCap <= 0 {
		archiveCap = 100
	}
	if snapshotFile == "" {
		snapshotFile = "portfolio_history.json"
	}
	return &ResultStore{
		dir:          dataDir,
		archiveCap:   archiveCap,
		snapshotFile: snapshotFile,
	}
}

// Dir returns the data directory
func (s *ResultStore) Dir() string {
	return s.dir
}

func (s *ResultStore) cardPath(cardID string) (string, error) {
	return s.filePath(cardsDir, cardID)
}

func (s *ResultStore) historyPath(cardID string) (string, error) {
	return s.filePath(historyDir, cardID)
}

// filePath keeps every per-card file inside its subdirectory
func (s *ResultStore) filePath(sub, cardID string) (string, error) {
	if !models.ValidCardID(cardID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCardID, cardID)
	}
	base := filepath.Join(s.dir, sub)
	path := filepath.Join(base, cardID+".json")
	if rel, err := filepath.Rel(base, path); err != nil || rel != filepath.Base(path) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCardID, cardID)
	}
	return path, nil
}

// SaveCardRecord merges the result's sales into the card's raw sales archive
// and records the latest stats
func (s *ResultStore) SaveCardRecord(result models.CardResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.cardPath(result.CardID)
	if err != nil {
		return err
	}
	var record models.CardRecord
	if _, err := readJSON(path, &record); err != nil {
		log.Warnf("Result store: discarding unreadable archive for %s: %v", result.CardID, err)
		record = models.CardRecord{}
	}

	record.CardID = result.CardID
	record.Identifier = result.Identifier
	record.UpdatedAt = result.ScrapedAt
	if result.Estimate != nil {
		record.Stats = result.Estimate
	}
	record.Sales = MergeSales(record.Sales, result.Sales, s.archiveCap)

	if err := writeJSONAtomic(path, &record); err != nil {
		metrics.StoreWriteErrorsTotal.WithLabelValues("card").Inc()
		return fmt.Errorf("failed to write card record %s: %w", result.CardID, err)
	}
	return nil
}

// LoadCardRecord returns the card's archive, or nil when there is none
func (s *ResultStore) LoadCardRecord(cardID string) (*models.CardRecord, error) {
	path, err := s.cardPath(cardID)
	if err != nil {
		return nil, err
	}
	var record models.CardRecord
	found, err := readJSON(path, &record)
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}

// AppendHistory records entry in the card's price history, replacing any
// entry for the same date
func (s *ResultStore) AppendHistory(cardID string, entry models.PriceHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.historyPath(cardID)
	if err != nil {
		return err
	}
	history := models.PriceHistory{CardID: cardID}
	if _, err := readJSON(path, &history); err != nil {
		return fmt.Errorf("failed to read history %s: %w", cardID, err)
	}
	history.CardID = cardID
	history.Entries = MergeHistory(history.Entries, entry)

	if err := writeJSONAtomic(path, &history); err != nil {
		metrics.StoreWriteErrorsTotal.WithLabelValues("history").Inc()
		return fmt.Errorf("failed to write history %s: %w", cardID, err)
	}
	return nil
}

// LoadHistory returns the card's price history; a card never scraped has an
// empty history
func (s *ResultStore) LoadHistory(cardID string) (*models.PriceHistory, error) {
	path, err := s.historyPath(cardID)
	if err != nil {
		return nil, err
	}
	history := models.PriceHistory{CardID: cardID, Entries: []models.PriceHistoryEntry{}}
	if _, err := readJSON(path, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// AppendSnapshot records an aggregate snapshot, one per date
func (s *ResultStore) AppendSnapshot(snapshot models.PortfolioSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, s.snapshotFile)
	var snapshots []models.PortfolioSnapshot
	if _, err := readJSON(path, &snapshots); err != nil {
		return fmt.Errorf("failed to read snapshots: %w", err)
	}
	snapshots = MergeSnapshots(snapshots, snapshot)

	if err := writeJSONAtomic(path, snapshots); err != nil {
		metrics.StoreWriteErrorsTotal.WithLabelValues("snapshot").Inc()
		return fmt.Errorf("failed to write snapshots: %w", err)
	}
	return nil
}

// LoadSnapshots returns the snapshot series sorted by date
func (s *ResultStore) LoadSnapshots() ([]models.PortfolioSnapshot, error) {
	var snapshots []models.PortfolioSnapshot
	if _, err := readJSON(filepath.Join(s.dir, s.snapshotFile), &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// WriteSummary writes one CSV row per card, ordered by card ID
func (s *ResultStore) WriteSummary(results []models.CardResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, summaryCSV)
	if err := writeSummaryCSV(path, summaryRows(results)); err != nil {
		metrics.StoreWriteErrorsTotal.WithLabelValues("summary").Inc()
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// WriteSummaryXLSX writes the summary as a spreadsheet next to the CSV
func (s *ResultStore) WriteSummaryXLSX(results []models.CardResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	xl.SetSheetName(xl.GetSheetName(0), summarySheet)
	header := summaryHeader
	if err := xl.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range summaryRows(results) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := xl.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if err := xl.SaveAs(filepath.Join(s.dir, summaryXLSX)); err != nil {
		metrics.StoreWriteErrorsTotal.WithLabelValues("summary").Inc()
		return fmt.Errorf("failed to write xlsx summary: %w", err)
	}
	return nil
}

func summaryRows(results []models.CardResult) [][]string {
	sorted := make([]models.CardResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CardID < sorted[j].CardID })

	rows := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		est := models.PriceEstimate{}
		if r.Estimate != nil {
			est = *r.Estimate
		}
		scraped := ""
		if !r.ScrapedAt.IsZero() {
			scraped = r.ScrapedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			r.CardID,
			r.Identifier,
			string(r.Outcome),
			formatCents(r.FairValue),
			string(r.Trend),
			est.FormatTop3(),
			formatCents(est.MedianPrice),
			formatCents(est.MinPrice),
			formatCents(est.MaxPrice),
			strconv.Itoa(est.NumSales),
			strconv.Itoa(est.OutliersRemoved),
			strconv.FormatBool(r.FallbackUsed),
			r.Query,
			scraped,
		})
	}
	return rows
}

func formatCents(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeSummaryCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".summary.*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(summaryHeader); err != nil {
		tmp.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// MergeSales folds incoming sales into an archive. Sales are keyed by (sold
// date, title) with the incoming observation winning, ordered newest first
// with undated sales last, and capped at limit.
func MergeSales(existing, incoming []models.Sale, limit int) []models.Sale {
	type key struct{ date, title string }

	seen := make(map[key]bool, len(existing)+len(incoming))
	merged := make([]models.Sale, 0, len(existing)+len(incoming))
	for _, batch := range [][]models.Sale{incoming, existing} {
		for _, s := range batch {
			k := key{s.DateKey(), s.Title}
			if seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, s)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].SoldDate, merged[j].SoldDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// MergeHistory inserts entry, replacing an entry with the same date, and
// keeps entries sorted by date ascending
func MergeHistory(entries []models.PriceHistoryEntry, entry models.PriceHistoryEntry) []models.PriceHistoryEntry {
	out := make([]models.PriceHistoryEntry, 0, len(entries)+1)
	for _, e := range entries {
		if e.Date != entry.Date {
			out = append(out, e)
		}
	}
	out = append(out, entry)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// MergeSnapshots is MergeHistory for aggregate snapshots
func MergeSnapshots(snapshots []models.PortfolioSnapshot, snapshot models.PortfolioSnapshot) []models.PortfolioSnapshot {
	out := make([]models.PortfolioSnapshot, 0, len(snapshots)+1)
	for _, s := range snapshots {
		if s.Date != snapshot.Date {
			out = append(out, s)
		}
	}
	out = append(out, snapshot)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
