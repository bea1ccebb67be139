package detector

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"optionscan/internal/marketdata"
)

// stubBaseline returns a fixed average and counts lookups.
type stubBaseline struct {
	avg   float64
	err   error
	calls int
}

func (s *stubBaseline) AverageVolume(ctx context.Context, contract marketdata.OptionContract) (float64, error) {
	s.calls++
	return s.avg, s.err
}

func mkSnapshot(t *testing.T, price float64, volume int64) marketdata.OptionSnapshot {
	t.Helper()
	return marketdata.OptionSnapshot{
		Contract: marketdata.OptionContract{
			Symbol:     "SPY",
			OptionType: marketdata.OptionTypeCall,
			Strike:     decimal.NewFromInt(450),
			Expiration: time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC),
		},
		Price:           decimal.NewFromFloat(price),
		Volume:          volume,
		OpenInterest:    1200,
		UnderlyingPrice: decimal.NewFromInt(448),
		ObservedAt:      time.Date(2026, 8, 21, 14, 30, 0, 0, time.UTC),
	}
}

func TestWhaleDetector_NotionalFormula(t *testing.T) {
	baseline := &stubBaseline{avg: 100}
	d := &WhaleDetector{Baseline: baseline}

	opp, err := d.Evaluate(context.Background(), mkSnapshot(t, 5.00, 2500))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp == nil {
		t.Fatalf("opp=nil want emission")
	}
	want := decimal.NewFromInt(1250000)
	if !opp.NotionalValue.Equal(want) {
		t.Fatalf("notional=%s want=%s", opp.NotionalValue.String(), want.String())
	}
	if opp.AlertType != "whale_activity" {
		t.Fatalf("alert_type=%q want whale_activity", opp.AlertType)
	}
}

func TestWhaleDetector_BelowNotionalFloor_SkipsBaseline(t *testing.T) {
	baseline := &stubBaseline{avg: 1}
	d := &WhaleDetector{Baseline: baseline}

	// 3.00 * 500 * 100 = 150,000, well under the $1M floor.
	opp, err := d.Evaluate(context.Background(), mkSnapshot(t, 3.00, 500))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp != nil {
		t.Fatalf("opp=%+v want nil", opp)
	}
	if baseline.calls != 0 {
		t.Fatalf("baseline calls=%d want=0", baseline.calls)
	}
}

func TestWhaleDetector_UnusualVolumeRatio(t *testing.T) {
	baseline := &stubBaseline{avg: 100}
	d := &WhaleDetector{Baseline: baseline}

	opp, err := d.Evaluate(context.Background(), mkSnapshot(t, 10.00, 3000))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp == nil {
		t.Fatalf("opp=nil want emission")
	}
	if opp.VolumeRatio == nil {
		t.Fatalf("volume_ratio=nil want set")
	}
	if *opp.VolumeRatio != 30 {
		t.Fatalf("volume_ratio=%v want=30", *opp.VolumeRatio)
	}
}

func TestWhaleDetector_TradeSizeArmWithoutUnusualRatio(t *testing.T) {
	// Ratio 150/5000 is far below the multiplier but the trade size
	// arm still emits.
	baseline := &stubBaseline{avg: 5000}
	d := &WhaleDetector{Baseline: baseline}

	opp, err := d.Evaluate(context.Background(), mkSnapshot(t, 70.00, 150))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp == nil {
		t.Fatalf("opp=nil want emission via trade size arm")
	}
	if opp.VolumeRatio == nil {
		t.Fatalf("volume_ratio=nil want set when baseline known")
	}
}

func TestWhaleDetector_NeitherArm(t *testing.T) {
	baseline := &stubBaseline{avg: 5000}
	d := &WhaleDetector{Baseline: baseline}

	// Notional 120*90*100 = 1.08M passes the floor, but volume 90 is
	// under the minimum trade size and the ratio is tiny.
	opp, err := d.Evaluate(context.Background(), mkSnapshot(t, 120.00, 90))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp != nil {
		t.Fatalf("opp=%+v want nil", opp)
	}
	if baseline.calls != 1 {
		t.Fatalf("baseline calls=%d want=1", baseline.calls)
	}
}

func TestWhaleDetector_ZeroVolume(t *testing.T) {
	d := &WhaleDetector{Baseline: &stubBaseline{avg: 100}}

	opp, err := d.Evaluate(context.Background(), mkSnapshot(t, 10000.00, 0))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp != nil {
		t.Fatalf("opp=%+v want nil for zero volume", opp)
	}
}

func TestWhaleDetector_BaselineUnknown(t *testing.T) {
	baseline := &stubBaseline{err: marketdata.ErrNoData}
	d := &WhaleDetector{Baseline: baseline}

	opp, err := d.Evaluate(context.Background(), mkSnapshot(t, 70.00, 150))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp == nil {
		t.Fatalf("opp=nil want emission via trade size arm")
	}
	if opp.VolumeRatio != nil {
		t.Fatalf("volume_ratio=%v want nil when baseline unknown", *opp.VolumeRatio)
	}
}

func TestWhaleDetector_BaselineZeroNeverDivides(t *testing.T) {
	baseline := &stubBaseline{avg: 0}
	d := &WhaleDetector{Baseline: baseline}

	opp, err := d.Evaluate(context.Background(), mkSnapshot(t, 70.00, 150))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp == nil {
		t.Fatalf("opp=nil want emission")
	}
	if opp.VolumeRatio != nil {
		t.Fatalf("volume_ratio=%v want nil for zero baseline", *opp.VolumeRatio)
	}
}

func TestWhaleDetector_BaselineTransientFailure(t *testing.T) {
	baseline := &stubBaseline{err: &marketdata.TransientError{Op: "hist", Err: context.DeadlineExceeded}}
	d := &WhaleDetector{Baseline: baseline}

	opp, err := d.Evaluate(context.Background(), mkSnapshot(t, 70.00, 150))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp == nil {
		t.Fatalf("opp=nil want emission despite baseline failure")
	}
	if opp.VolumeRatio != nil {
		t.Fatalf("volume_ratio set despite baseline failure")
	}
}
