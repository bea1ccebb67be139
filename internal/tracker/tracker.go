package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"optionscan/internal/marketdata"
	"optionscan/internal/metrics"
	"optionscan/internal/models"
	"optionscan/internal/notify"
	"optionscan/internal/repository"
)

var hundred = decimal.NewFromInt(100)

// Tracker follows open opportunities, records fresh quotes and closes
// positions that hit a profit target or the stop loss. A failing quote
// leaves its opportunity open for the next pass.
type Tracker struct {
	Repo     repository.Repository
	Data     marketdata.Provider
	Notifier notify.Notifier
	Metrics  *metrics.Recorder
	Logger   *zap.Logger

	Interval      time.Duration
	ProfitTargets []float64
	StopLossPct   float64
}

func (t *Tracker) Run(ctx context.Context) error {
	if t == nil || t.Repo == nil || t.Data == nil {
		return nil
	}
	interval := t.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		if err := t.RunOnce(ctx); err != nil && t.Logger != nil {
			t.Logger.Warn("tracker pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func (t *Tracker) RunOnce(ctx context.Context) error {
	if t == nil || t.Repo == nil || t.Data == nil {
		return nil
	}
	open, err := t.Repo.ListOpenOpportunities(ctx)
	if err != nil {
		return fmt.Errorf("tracker: list open opportunities: %w", err)
	}
	t.Metrics.SetOpenOpportunities(int64(len(open)))
	if len(open) == 0 {
		return nil
	}
	if t.Logger != nil {
		t.Logger.Debug("tracking open opportunities", zap.Int("count", len(open)))
	}

	for i := range open {
		opp := open[i]
		if err := t.track(ctx, &opp); err != nil {
			if t.Logger != nil {
				t.Logger.Warn("tracking pass failed for opportunity (continuing)",
					zap.Uint64("opportunity_id", opp.ID),
					zap.String("symbol", opp.Symbol),
					zap.Error(err),
				)
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (t *Tracker) track(ctx context.Context, opp *models.Opportunity) error {
	contract := marketdata.OptionContract{
		Symbol:     opp.Symbol,
		OptionType: opp.OptionType,
		Strike:     opp.Strike,
		Expiration: opp.Expiration,
	}
	quote, err := t.Data.OptionQuote(ctx, contract)
	if err != nil {
		return fmt.Errorf("quote %s: %w", contract.Key(), err)
	}
	price := quote.Price
	if price.LessThanOrEqual(decimal.Zero) || opp.EntryPrice.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	profitPct := price.Sub(opp.EntryPrice).Div(opp.EntryPrice).Mul(hundred)

	now := time.Now().UTC()
	update := &models.PriceUpdate{
		OpportunityID:   opp.ID,
		Timestamp:       now,
		Price:           price,
		UnderlyingPrice: quote.UnderlyingPrice,
		PriceChangePct:  profitPct,
	}
	if err := t.Repo.InsertPriceUpdate(ctx, update); err != nil {
		return fmt.Errorf("insert price update: %w", err)
	}

	for _, target := range t.profitTargets() {
		if profitPct.GreaterThanOrEqual(decimal.NewFromFloat(target)) {
			if t.Logger != nil {
				t.Logger.Info("profit target reached",
					zap.Uint64("opportunity_id", opp.ID),
					zap.String("symbol", opp.Symbol),
					zap.Float64("target", target),
					zap.String("profit_pct", profitPct.StringFixed(2)),
				)
			}
			return t.close(ctx, opp, price, now, notify.FormatProfitTarget(opp, target, profitPct, price))
		}
	}

	if profitPct.LessThanOrEqual(decimal.NewFromFloat(t.stopLoss())) {
		if t.Logger != nil {
			t.Logger.Info("stop loss triggered",
				zap.Uint64("opportunity_id", opp.ID),
				zap.String("symbol", opp.Symbol),
				zap.String("profit_pct", profitPct.StringFixed(2)),
			)
		}
		return t.close(ctx, opp, price, now, notify.FormatStopLoss(opp, profitPct, price))
	}
	return nil
}

func (t *Tracker) close(ctx context.Context, opp *models.Opportunity, price decimal.Decimal, closedAt time.Time, message string) error {
	if err := t.Repo.CloseOpportunity(ctx, opp.ID, price, closedAt); err != nil {
		return fmt.Errorf("close opportunity: %w", err)
	}
	if t.Notifier != nil {
		if err := t.Notifier.Send(ctx, message); err != nil {
			t.Metrics.RecordNotification("error")
			if t.Logger != nil {
				t.Logger.Warn("close notice send failed", zap.Uint64("opportunity_id", opp.ID), zap.Error(err))
			}
			return nil
		}
		t.Metrics.RecordNotification("ok")
	}
	return nil
}

func (t *Tracker) profitTargets() []float64 {
	if len(t.ProfitTargets) > 0 {
		return t.ProfitTargets
	}
	return []float64{5, 10, 15, 20, 30}
}

func (t *Tracker) stopLoss() float64 {
	if t.StopLossPct != 0 {
		return t.StopLossPct
	}
	return -15
}
