package database

import (
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/card-valuer/internal/models"
)

var DB *gorm.DB

// Initialize opens the catalog database at dbPath and migrates the schema
func Initialize(dbPath string) error {
	db, err := Open(dbPath)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open opens and migrates a database without touching the package handle.
// Tests use it with ":memory:" or a temp file.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connected successfully")

	if err := cleanupDuplicateSnapshots(db); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.Card{}, &models.PortfolioSnapshot{}); err != nil {
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")
	return db, nil
}

func GetDB() *gorm.DB {
	return DB
}
