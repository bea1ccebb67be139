package detector

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"optionscan/internal/marketdata"
	"optionscan/internal/models"
)

// DayTradingDetector flags liquid high-volatility contracts suited to
// intraday momentum entries. All three thresholds must hold.
type DayTradingDetector struct {
	Logger *zap.Logger

	MinVolume       int64
	MinOpenInterest int64
	MinIV           float64
}

func (d *DayTradingDetector) Name() string { return "day_trading" }

func (d *DayTradingDetector) Evaluate(ctx context.Context, snap marketdata.OptionSnapshot) (*models.Opportunity, error) {
	if d == nil {
		return nil, nil
	}
	if snap.Volume <= 0 || snap.Price.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}

	minVolume := d.MinVolume
	if minVolume <= 0 {
		minVolume = 100
	}
	minOI := d.MinOpenInterest
	if minOI <= 0 {
		minOI = 500
	}
	minIV := d.MinIV
	if minIV <= 0 {
		minIV = 0.70
	}

	if snap.Volume < minVolume {
		return nil, nil
	}
	if snap.OpenInterest < minOI {
		return nil, nil
	}
	if snap.ImpliedVolatility < minIV {
		return nil, nil
	}

	notional := notionalValue(snap.Price, snap.Volume)
	return newOpportunity(snap, notional, d.Name(), "momentum"), nil
}
