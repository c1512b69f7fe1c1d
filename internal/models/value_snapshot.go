package models

import (
	"time"
)

// PortfolioSnapshot stores one day's aggregate value across the catalog.
// (Mode, Date) is unique: re-running on the same day replaces the entry.
type PortfolioSnapshot struct {
	ID           uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	Mode         string    `json:"mode" gorm:"not null;uniqueIndex:idx_snapshot_mode_date"`
	Date         string    `json:"date" gorm:"column:snapshot_date;not null;uniqueIndex:idx_snapshot_mode_date"`
	TotalValue   float64   `json:"total_value"`
	CardCount    int       `json:"card_count"`
	AverageValue float64   `json:"average_value"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValueHistoryResponse is the API response for value history
type ValueHistoryResponse struct {
	Snapshots []PortfolioSnapshot `json:"snapshots"`
	Period    string              `json:"period"` // "week", "month", "3month", "year", "all"
}
