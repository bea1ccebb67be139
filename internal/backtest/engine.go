package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"optionscan/internal/marketdata"
	"optionscan/internal/models"
)

const (
	EntryBasisDetectionPrice = "detection_price"
	EntryBasisNextBarOpen    = "next_bar_open"
)

var hundred = decimal.NewFromInt(100)

// Engine replays recorded opportunities against historical bars and
// computes the percent return at each horizon. Horizons are resolved
// independently: a horizon whose bar cannot be found within tolerance
// is simply absent from the result, it never fails the evaluation.
type Engine struct {
	Data   marketdata.Provider
	Logger *zap.Logger

	Horizons    []Horizon
	EntryBasis  string
	Granularity time.Duration
	Tolerance   time.Duration
}

// Evaluate computes one result for one opportunity. History gaps map to
// a result with no horizons; transient provider failures propagate so
// the caller can retry on a later sweep.
func (e *Engine) Evaluate(ctx context.Context, opp *models.Opportunity) (*models.BacktestResult, error) {
	if e == nil || e.Data == nil {
		return nil, fmt.Errorf("backtest: engine not configured")
	}
	if opp == nil || opp.ID == 0 {
		return nil, fmt.Errorf("backtest: opportunity missing")
	}
	basis := e.EntryBasis
	if basis == "" {
		basis = EntryBasisDetectionPrice
	}
	granularity := e.Granularity
	if granularity <= 0 {
		granularity = time.Minute
	}
	tolerance := e.Tolerance
	if tolerance <= 0 {
		tolerance = granularity
	}

	detectedAt := opp.DetectedAt
	contract := marketdata.OptionContract{
		Symbol:     opp.Symbol,
		OptionType: opp.OptionType,
		Strike:     opp.Strike,
		Expiration: opp.Expiration,
	}

	start := detectedAt.Add(-granularity)
	end := detectedAt.Add(maxOffset(e.Horizons) + tolerance)
	bars, err := e.Data.HistoricalBars(ctx, contract, start, end, granularity)
	if err != nil {
		if marketdata.IsNoData(err) {
			// Nothing trades against this contract in the window.
			// Record an empty evaluation so the sweep does not
			// revisit it forever.
			return e.result(opp, basis, opp.EntryPrice, nil)
		}
		return nil, fmt.Errorf("backtest: bars for %s: %w", contract.Key(), err)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Start.Before(bars[j].Start) })

	entry := opp.EntryPrice
	if basis == EntryBasisNextBarOpen {
		entry = nextBarOpen(bars, detectedAt)
	}
	if entry.LessThanOrEqual(decimal.Zero) {
		if e.Logger != nil {
			e.Logger.Debug("no usable entry price, recording empty result",
				zap.Uint64("opportunity_id", opp.ID),
				zap.String("entry_basis", basis),
			)
		}
		return e.result(opp, basis, entry, nil)
	}

	returns := make(map[string]decimal.Decimal, len(e.Horizons))
	for _, h := range e.Horizons {
		target := detectedAt.Add(h.Offset)
		bar, ok := nearestAtOrBefore(bars, target, tolerance)
		if !ok {
			continue
		}
		returns[h.Label] = bar.Close.Sub(entry).Div(entry).Mul(hundred)
	}
	return e.result(opp, basis, entry, returns)
}

func (e *Engine) result(opp *models.Opportunity, basis string, entry decimal.Decimal, returns map[string]decimal.Decimal) (*models.BacktestResult, error) {
	encoded := make(map[string]string, len(returns))
	for label, ret := range returns {
		encoded[label] = ret.Round(4).String()
	}
	payload, err := json.Marshal(encoded)
	if err != nil {
		return nil, fmt.Errorf("backtest: encode horizons: %w", err)
	}
	return &models.BacktestResult{
		OpportunityID: opp.ID,
		EntryBasis:    basis,
		EntryPrice:    entry,
		Horizons:      datatypes.JSON(payload),
		EvaluatedAt:   time.Now().UTC(),
	}, nil
}

// nearestAtOrBefore returns the latest bar starting at or before target,
// provided it starts within tolerance of the target. Bars must be sorted
// ascending.
func nearestAtOrBefore(bars []marketdata.Bar, target time.Time, tolerance time.Duration) (marketdata.Bar, bool) {
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Start.After(target) })
	if i == 0 {
		return marketdata.Bar{}, false
	}
	bar := bars[i-1]
	if target.Sub(bar.Start) > tolerance {
		return marketdata.Bar{}, false
	}
	return bar, true
}

func nextBarOpen(bars []marketdata.Bar, after time.Time) decimal.Decimal {
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Start.After(after) })
	if i >= len(bars) {
		return decimal.Zero
	}
	return bars[i].Open
}

// DecodeHorizons parses the stored horizon map back into decimals.
// Unparsable entries are skipped.
func DecodeHorizons(raw datatypes.JSON) map[string]decimal.Decimal {
	if len(raw) == 0 {
		return nil
	}
	var encoded map[string]string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(encoded))
	for label, value := range encoded {
		ret, err := decimal.NewFromString(value)
		if err != nil {
			continue
		}
		out[label] = ret
	}
	return out
}
