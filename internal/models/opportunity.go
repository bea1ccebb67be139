package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Opportunity is one emitted detection. Rows are append-only: detectors
// never update past emissions, only the tracker mutates close state.
type Opportunity struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Symbol     string          `gorm:"type:varchar(20);not null;index"`
	OptionType string          `gorm:"type:varchar(4);not null"`
	Strike     decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	Expiration time.Time       `gorm:"type:date;not null"`

	EntryPrice decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	DetectedAt time.Time       `gorm:"type:timestamptz;not null;index"`

	Volume            int64    `gorm:"not null"`
	OpenInterest      int64    `gorm:"not null"`
	ImpliedVolatility float64  `gorm:"not null"`
	Delta             *float64 `gorm:""`
	Gamma             *float64 `gorm:""`
	Theta             *float64 `gorm:""`
	Vega              *float64 `gorm:""`

	UnderlyingPrice decimal.Decimal `gorm:"type:numeric(20,10);not null"`

	// NotionalValue = entry price * volume * 100. Stored as numeric so
	// threshold queries never hit float error.
	NotionalValue decimal.Decimal `gorm:"type:numeric(30,10);not null;index"`
	VolumeRatio   *float64        `gorm:""`

	AlertType string `gorm:"type:varchar(30);not null;index"`
	Strategy  string `gorm:"type:varchar(30);not null;index"`

	SuccessProbability *float64       `gorm:""`
	ScoreDetail        datatypes.JSON `gorm:"type:jsonb"`

	Tracked    bool             `gorm:"not null;default:true"`
	Closed     bool             `gorm:"not null;default:false;index"`
	ClosePrice *decimal.Decimal `gorm:"type:numeric(20,10)"`
	CloseTime  *time.Time       `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Opportunity) TableName() string {
	return "opportunities"
}
