package baseline

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"optionscan/internal/marketdata"
)

// CycleCache memoizes baseline lookups for the duration of one scan
// cycle. Concurrent evaluations of the same contract share a single
// upstream fetch. ErrNoData is remembered for the cycle; transient
// failures are not, so a later contract in the same cycle may retry.
type CycleCache struct {
	Source Source

	mu     sync.RWMutex
	values map[string]float64
	misses map[string]error
	group  singleflight.Group
}

func NewCycleCache(source Source) *CycleCache {
	return &CycleCache{
		Source: source,
		values: make(map[string]float64),
		misses: make(map[string]error),
	}
}

// Reset starts a new cycle with empty maps. Callers must not invoke it
// while a cycle is still evaluating; the orchestrator serializes cycles.
func (c *CycleCache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.values = make(map[string]float64)
	c.misses = make(map[string]error)
	c.mu.Unlock()
}

func (c *CycleCache) AverageVolume(ctx context.Context, contract marketdata.OptionContract) (float64, error) {
	if c == nil || c.Source == nil {
		return 0, marketdata.ErrNoData
	}
	key := contract.Key()

	c.mu.RLock()
	if v, ok := c.values[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	if err, ok := c.misses[key]; ok {
		c.mu.RUnlock()
		return 0, err
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		avg, err := c.Source.AverageVolume(ctx, contract)
		if err != nil {
			if marketdata.IsNoData(err) {
				c.mu.Lock()
				c.misses[key] = err
				c.mu.Unlock()
			}
			return nil, err
		}
		c.mu.Lock()
		c.values[key] = avg
		c.mu.Unlock()
		return avg, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}
