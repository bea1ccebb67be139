package db

import (
	"optionscan/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Opportunity{},
		&models.PriceUpdate{},
		&models.BacktestResult{},
	)
}
