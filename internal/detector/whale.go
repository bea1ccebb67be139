package detector

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"optionscan/internal/baseline"
	"optionscan/internal/marketdata"
	"optionscan/internal/models"
)

// WhaleDetector flags institutional-size option flow. A snapshot
// qualifies when its notional clears the floor AND either its volume is
// unusual against the contract's trailing baseline or it clears the
// plain minimum trade size. The OR keeps contracts with no usable
// baseline eligible.
type WhaleDetector struct {
	Baseline baseline.Source
	Logger   *zap.Logger

	MinNotionalValue        decimal.Decimal
	UnusualVolumeMultiplier float64
	MinTradeSize            int64
}

func (d *WhaleDetector) Name() string { return "whale_activity" }

func (d *WhaleDetector) Evaluate(ctx context.Context, snap marketdata.OptionSnapshot) (*models.Opportunity, error) {
	if d == nil {
		return nil, nil
	}
	if snap.Volume <= 0 || snap.Price.LessThanOrEqual(decimal.Zero) {
		return nil, nil
	}

	minNotional := d.MinNotionalValue
	if minNotional.LessThanOrEqual(decimal.Zero) {
		minNotional = decimal.NewFromInt(1_000_000)
	}
	multiplier := d.UnusualVolumeMultiplier
	if multiplier <= 0 {
		multiplier = 3.0
	}
	minTrade := d.MinTradeSize
	if minTrade <= 0 {
		minTrade = 100
	}

	// Notional floor runs first: it needs no baseline lookup.
	notional := notionalValue(snap.Price, snap.Volume)
	if notional.LessThan(minNotional) {
		return nil, nil
	}

	var volumeRatio *float64
	unusual := false
	if d.Baseline != nil {
		avg, err := d.Baseline.AverageVolume(ctx, snap.Contract)
		switch {
		case err != nil:
			// Baseline unknown; the min-trade-size arm below still applies.
			if d.Logger != nil && !marketdata.IsNoData(err) {
				d.Logger.Debug("baseline lookup failed",
					zap.String("contract", snap.Contract.Key()),
					zap.Error(err),
				)
			}
		case avg > 0:
			ratio := float64(snap.Volume) / avg
			volumeRatio = &ratio
			unusual = ratio >= multiplier
		}
	}

	if !unusual && snap.Volume < minTrade {
		return nil, nil
	}

	opp := newOpportunity(snap, notional, d.Name(), "whale_follow")
	opp.VolumeRatio = volumeRatio
	return opp, nil
}
