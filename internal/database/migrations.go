package database

import (
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// cleanupDuplicateSnapshots removes duplicate portfolio_snapshots rows before
// the (mode, snapshot_date) unique index is created. Runs BEFORE AutoMigrate.
func cleanupDuplicateSnapshots(db *gorm.DB) error {
	if !db.Migrator().HasTable("portfolio_snapshots") {
		return nil
	}

	if db.Migrator().HasColumn("portfolio_snapshots", "mode") {
		db.Exec(`UPDATE portfolio_snapshots SET mode = 'collection' WHERE mode IS NULL OR mode = ''`)
	}

	// Keep the newest row per day
	result := db.Exec(`
		DELETE FROM portfolio_snapshots
		WHERE id NOT IN (
			SELECT MAX(id)
			FROM portfolio_snapshots
			GROUP BY mode, snapshot_date
		)
	`)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("Cleaned up %d duplicate portfolio_snapshots entries", result.RowsAffected)
	}
	return nil
}

// RunMigrations runs custom data migrations after schema changes
func RunMigrations(db *gorm.DB) error {
	return migrateTrendField(db)
}

// migrateTrendField backfills rows created before trend/outcome were tracked.
// Safe to run repeatedly.
func migrateTrendField(db *gorm.DB) error {
	if db.Migrator().HasColumn("cards", "trend") {
		result := db.Exec(`UPDATE cards SET trend = 'unknown' WHERE trend IS NULL OR trend = ''`)
		if result.Error != nil {
			log.Printf("Warning: failed to backfill card trend values: %v", result.Error)
		}
	}
	return nil
}
