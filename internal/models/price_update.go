package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceUpdate is one tracked quote for an open opportunity. The first row
// is written at entry with a zero change.
type PriceUpdate struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	OpportunityID uint64 `gorm:"not null;index"`
	Opportunity   Opportunity

	Timestamp       time.Time       `gorm:"type:timestamptz;not null;index"`
	Price           decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	UnderlyingPrice decimal.Decimal `gorm:"type:numeric(20,10)"`
	PriceChangePct  decimal.Decimal `gorm:"type:numeric(20,10);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PriceUpdate) TableName() string {
	return "price_updates"
}
