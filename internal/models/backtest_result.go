package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BacktestResult holds realized returns for one opportunity. Keyed by
// opportunity so re-running a backtest upserts instead of duplicating.
type BacktestResult struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	OpportunityID uint64 `gorm:"not null;uniqueIndex"`
	Opportunity   Opportunity

	EntryBasis string          `gorm:"type:varchar(20);not null"`
	EntryPrice decimal.Decimal `gorm:"type:numeric(20,10);not null"`

	// Horizons maps horizon label to realized percent return, e.g.
	// {"5m": "2.44", "1h": "-1.2"}. Labels with no price data are absent.
	Horizons datatypes.JSON `gorm:"type:jsonb;not null"`

	EvaluatedAt time.Time `gorm:"type:timestamptz;not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (BacktestResult) TableName() string {
	return "backtest_results"
}
