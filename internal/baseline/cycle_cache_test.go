package baseline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"optionscan/internal/marketdata"
)

type countingSource struct {
	avg   float64
	err   error
	calls atomic.Int64
}

func (s *countingSource) AverageVolume(ctx context.Context, contract marketdata.OptionContract) (float64, error) {
	s.calls.Add(1)
	return s.avg, s.err
}

// failOnceSource errors transiently on the first call only.
type failOnceSource struct {
	avg   float64
	calls atomic.Int64
}

func (s *failOnceSource) AverageVolume(ctx context.Context, contract marketdata.OptionContract) (float64, error) {
	if s.calls.Add(1) == 1 {
		return 0, &marketdata.TransientError{Op: "hist", Err: context.DeadlineExceeded}
	}
	return s.avg, nil
}

func mkContract(t *testing.T, symbol string) marketdata.OptionContract {
	t.Helper()
	return marketdata.OptionContract{
		Symbol:     symbol,
		OptionType: marketdata.OptionTypeCall,
		Strike:     decimal.NewFromInt(450),
		Expiration: time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC),
	}
}

func TestCycleCache_SingleFetchPerCycle(t *testing.T) {
	src := &countingSource{avg: 125}
	cache := NewCycleCache(src)
	contract := mkContract(t, "SPY")

	for i := 0; i < 3; i++ {
		avg, err := cache.AverageVolume(context.Background(), contract)
		if err != nil {
			t.Fatalf("call %d: err=%v", i, err)
		}
		if avg != 125 {
			t.Fatalf("call %d: avg=%v want=125", i, avg)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("source calls=%d want=1", got)
	}
}

func TestCycleCache_ResetStartsNewCycle(t *testing.T) {
	src := &countingSource{avg: 50}
	cache := NewCycleCache(src)
	contract := mkContract(t, "SPY")

	if _, err := cache.AverageVolume(context.Background(), contract); err != nil {
		t.Fatalf("err=%v", err)
	}
	cache.Reset()
	if _, err := cache.AverageVolume(context.Background(), contract); err != nil {
		t.Fatalf("err=%v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("source calls=%d want=2 after reset", got)
	}
}

func TestCycleCache_NoDataCachedForCycle(t *testing.T) {
	src := &countingSource{err: marketdata.ErrNoData}
	cache := NewCycleCache(src)
	contract := mkContract(t, "SPY")

	for i := 0; i < 2; i++ {
		_, err := cache.AverageVolume(context.Background(), contract)
		if !marketdata.IsNoData(err) {
			t.Fatalf("call %d: err=%v want ErrNoData", i, err)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("source calls=%d want=1, no-data not cached", got)
	}
}

func TestCycleCache_TransientNotCached(t *testing.T) {
	src := &failOnceSource{avg: 80}
	cache := NewCycleCache(src)
	contract := mkContract(t, "SPY")

	_, err := cache.AverageVolume(context.Background(), contract)
	if !marketdata.IsTransient(err) {
		t.Fatalf("first call err=%v want transient", err)
	}
	avg, err := cache.AverageVolume(context.Background(), contract)
	if err != nil {
		t.Fatalf("second call err=%v", err)
	}
	if avg != 80 {
		t.Fatalf("avg=%v want=80", avg)
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("source calls=%d want=2", got)
	}
}

func TestCycleCache_ConcurrentLookupsShareOneFetch(t *testing.T) {
	src := &countingSource{avg: 42}
	cache := NewCycleCache(src)
	contract := mkContract(t, "QQQ")

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.AverageVolume(context.Background(), contract)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: err=%v", i, err)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("source calls=%d want=1 under concurrency", got)
	}
}

func TestCycleCache_DistinctContractsFetchedSeparately(t *testing.T) {
	src := &countingSource{avg: 10}
	cache := NewCycleCache(src)

	if _, err := cache.AverageVolume(context.Background(), mkContract(t, "SPY")); err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := cache.AverageVolume(context.Background(), mkContract(t, "QQQ")); err != nil {
		t.Fatalf("err=%v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("source calls=%d want=2", got)
	}
}

type stubProvider struct {
	bars []marketdata.Bar
	err  error
}

func (p *stubProvider) OptionChain(ctx context.Context, symbol string) ([]marketdata.OptionSnapshot, error) {
	return nil, marketdata.ErrNoData
}

func (p *stubProvider) OptionQuote(ctx context.Context, contract marketdata.OptionContract) (*marketdata.OptionSnapshot, error) {
	return nil, marketdata.ErrNoData
}

func (p *stubProvider) HistoricalBars(ctx context.Context, contract marketdata.OptionContract, start, end time.Time, granularity time.Duration) ([]marketdata.Bar, error) {
	return p.bars, p.err
}

func TestHistoricalSource_AverageVolume(t *testing.T) {
	src := &HistoricalSource{Data: &stubProvider{bars: []marketdata.Bar{
		{Volume: 100},
		{Volume: 200},
		{Volume: 300},
	}}}

	avg, err := src.AverageVolume(context.Background(), mkContract(t, "SPY"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if avg != 200 {
		t.Fatalf("avg=%v want=200", avg)
	}
}

func TestHistoricalSource_NoBars(t *testing.T) {
	src := &HistoricalSource{Data: &stubProvider{}}

	_, err := src.AverageVolume(context.Background(), mkContract(t, "SPY"))
	if !marketdata.IsNoData(err) {
		t.Fatalf("err=%v want ErrNoData", err)
	}
}
