package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/codyseavey/card-valuer/internal/metrics"
	"github.com/codyseavey/card-valuer/internal/models"
)

// SnapshotService records one aggregate catalog value per mode and day,
// both in the database and in the JSON history file
type SnapshotService struct {
	mu            sync.Mutex
	db            *gorm.DB
	catalog       *CatalogService
	store         *ResultStore
	mode          string
	snapshotHour  int // Hour of day to take snapshot (0-23)
	checkInterval time.Duration
	now           func() time.Time
}

// NewSnapshotService creates a snapshot service. store may be nil when only
// the database history is wanted.
func NewSnapshotService(db *gorm.DB, catalog *CatalogService, store *ResultStore, mode string, snapshotHour int) *SnapshotService {
	return &SnapshotService{
		db:            db,
		catalog:       catalog,
		store:         store,
		mode:          mode,
		snapshotHour:  snapshotHour,
		checkInterval: 15 * time.Minute,
		now:           time.Now,
	}
}

// WithClock overrides the time source
func (s *SnapshotService) WithClock(now func() time.Time) *SnapshotService {
	s.now = now
	return s
}

// Start begins the background snapshot worker
func (s *SnapshotService) Start(ctx context.Context) {
	log.Printf("Snapshot service started: will record daily %s value after %02d:00", s.mode, s.snapshotHour)

	// Check if we need to take a snapshot for today on startup
	s.checkAndSnapshot()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Snapshot service stopping...")
			return
		case <-ticker.C:
			s.checkAndSnapshot()
		}
	}
}

func (s *SnapshotService) checkAndSnapshot() {
	now := s.now()
	if now.Hour() < s.snapshotHour || s.hasSnapshotForDate(now.Format(models.DateLayout)) {
		return
	}
	if _, err := s.TakeSnapshot(); err != nil {
		log.Errorf("Snapshot service: failed to take snapshot: %v", err)
	}
}

func (s *SnapshotService) hasSnapshotForDate(date string) bool {
	var count int64
	s.db.Model(&models.PortfolioSnapshot{}).
		Where("mode = ? AND snapshot_date = ?", s.mode, date).
		Count(&count)
	return count > 0
}

// TakeSnapshot records the current catalog value for today, replacing any
// snapshot already taken today
func (s *SnapshotService) TakeSnapshot() (*models.PortfolioSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals, err := s.catalog.Totals()
	if err != nil {
		return nil, err
	}

	var avg float64
	if totals.CardCount > 0 {
		avg = roundCents(totals.TotalValue / float64(totals.CardCount))
	}

	now := s.now()
	snapshot := models.PortfolioSnapshot{
		Mode:         s.mode,
		Date:         now.Format(models.DateLayout),
		TotalValue:   totals.TotalValue,
		CardCount:    totals.CardCount,
		AverageValue: avg,
		CreatedAt:    now,
	}

	// Use upsert to handle duplicate dates
	result := s.db.Where("mode = ? AND snapshot_date = ?", snapshot.Mode, snapshot.Date).
		Assign(models.PortfolioSnapshot{
			TotalValue:   snapshot.TotalValue,
			CardCount:    snapshot.CardCount,
			AverageValue: snapshot.AverageValue,
		}).
		FirstOrCreate(&snapshot)
	if result.Error != nil {
		return nil, result.Error
	}

	if s.store != nil {
		if err := s.store.AppendSnapshot(snapshot); err != nil {
			log.Errorf("Snapshot service: failed to append %s: %v", s.store.snapshotFile, err)
		}
	}

	metrics.CatalogCardsTotal.Set(float64(totals.CardCount))
	metrics.CatalogValueUSD.WithLabelValues(s.mode).Set(totals.TotalValue)

	log.Printf("Snapshot service: recorded %s snapshot for %s (total: $%.2f, cards: %d)",
		s.mode, snapshot.Date, snapshot.TotalValue, snapshot.CardCount)
	return &snapshot, nil
}

// GetHistory retrieves snapshots for a period: week, month, 3month, year or all
func (s *SnapshotService) GetHistory(period string) ([]models.PortfolioSnapshot, error) {
	now := s.now()
	var startDate time.Time

	switch period {
	case "week":
		startDate = now.AddDate(0, 0, -7)
	case "month":
		startDate = now.AddDate(0, -1, 0)
	case "3month":
		startDate = now.AddDate(0, -3, 0)
	case "year":
		startDate = now.AddDate(-1, 0, 0)
	case "all":
		startDate = time.Time{} // No filter
	default:
		startDate = now.AddDate(0, -1, 0) // Default to 1 month
	}

	query := s.db.Where("mode = ?", s.mode).Order("snapshot_date ASC")
	if !startDate.IsZero() {
		query = query.Where("snapshot_date >= ?", startDate.Format(models.DateLayout))
	}

	snapshots := []models.PortfolioSnapshot{}
	if err := query.Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

// GetLastSnapshot returns the most recent snapshot
func (s *SnapshotService) GetLastSnapshot() *models.PortfolioSnapshot {
	var snapshot models.PortfolioSnapshot
	if err := s.db.Where("mode = ?", s.mode).Order("snapshot_date DESC").First(&snapshot).Error; err != nil {
		return nil
	}
	return &snapshot
}
