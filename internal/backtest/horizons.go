package backtest

import (
	"fmt"
	"sort"
	"time"
)

// Horizon is a labeled offset from detection time at which the contract
// price is sampled.
type Horizon struct {
	Label  string
	Offset time.Duration
}

// ParseHorizons turns duration labels ("1m", "30m", "1h") into horizons
// sorted by offset. Duplicate labels and non-positive offsets are
// rejected.
func ParseHorizons(labels []string) ([]Horizon, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("backtest: no horizons configured")
	}
	seen := make(map[string]bool, len(labels))
	horizons := make([]Horizon, 0, len(labels))
	for _, label := range labels {
		if seen[label] {
			return nil, fmt.Errorf("backtest: duplicate horizon %q", label)
		}
		seen[label] = true
		offset, err := time.ParseDuration(label)
		if err != nil {
			return nil, fmt.Errorf("backtest: invalid horizon %q: %w", label, err)
		}
		if offset <= 0 {
			return nil, fmt.Errorf("backtest: horizon %q must be positive", label)
		}
		horizons = append(horizons, Horizon{Label: label, Offset: offset})
	}
	sort.Slice(horizons, func(i, j int) bool { return horizons[i].Offset < horizons[j].Offset })
	return horizons, nil
}

func maxOffset(horizons []Horizon) time.Duration {
	var max time.Duration
	for _, h := range horizons {
		if h.Offset > max {
			max = h.Offset
		}
	}
	return max
}
