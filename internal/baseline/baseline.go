package baseline

import (
	"context"
	"time"

	"optionscan/internal/marketdata"
)

// Source yields the trailing average per-bar volume for a contract.
// A zero average means the contract traded nothing over the lookback;
// callers must treat it as "baseline unknown", never divide by it.
type Source interface {
	AverageVolume(ctx context.Context, contract marketdata.OptionContract) (float64, error)
}

// HistoricalSource averages bar volume over a trailing window.
type HistoricalSource struct {
	Data         marketdata.Provider
	LookbackDays int
	BarInterval  time.Duration
}

func (s *HistoricalSource) AverageVolume(ctx context.Context, contract marketdata.OptionContract) (float64, error) {
	if s == nil || s.Data == nil {
		return 0, marketdata.ErrNoData
	}
	lookback := s.LookbackDays
	if lookback <= 0 {
		lookback = 30
	}
	interval := s.BarInterval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -lookback)
	bars, err := s.Data.HistoricalBars(ctx, contract, start, end, interval)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, marketdata.ErrNoData
	}

	var total int64
	for _, bar := range bars {
		total += bar.Volume
	}
	return float64(total) / float64(len(bars)), nil
}
