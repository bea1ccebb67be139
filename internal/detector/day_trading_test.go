package detector

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"optionscan/internal/marketdata"
)

func mkDayTradeSnapshot(t *testing.T, volume, oi int64, iv float64) marketdata.OptionSnapshot {
	t.Helper()
	return marketdata.OptionSnapshot{
		Contract: marketdata.OptionContract{
			Symbol:     "TSLA",
			OptionType: marketdata.OptionTypePut,
			Strike:     decimal.NewFromInt(240),
			Expiration: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		},
		Price:             decimal.NewFromFloat(3.45),
		Volume:            volume,
		OpenInterest:      oi,
		ImpliedVolatility: iv,
		UnderlyingPrice:   decimal.NewFromFloat(242.10),
		ObservedAt:        time.Date(2026, 8, 21, 15, 45, 0, 0, time.UTC),
	}
}

func TestDayTradingDetector_AllThresholdsPass(t *testing.T) {
	d := &DayTradingDetector{}

	opp, err := d.Evaluate(context.Background(), mkDayTradeSnapshot(t, 250, 900, 0.85))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp == nil {
		t.Fatalf("opp=nil want emission")
	}
	if opp.AlertType != "day_trading" {
		t.Fatalf("alert_type=%q want day_trading", opp.AlertType)
	}
	if opp.Strategy != "momentum" {
		t.Fatalf("strategy=%q want momentum", opp.Strategy)
	}
	want := decimal.NewFromFloat(3.45).Mul(decimal.NewFromInt(250)).Mul(decimal.NewFromInt(100))
	if !opp.NotionalValue.Equal(want) {
		t.Fatalf("notional=%s want=%s", opp.NotionalValue.String(), want.String())
	}
}

func TestDayTradingDetector_Thresholds(t *testing.T) {
	cases := []struct {
		name   string
		volume int64
		oi     int64
		iv     float64
	}{
		{"volume below minimum", 99, 900, 0.85},
		{"open interest below minimum", 250, 499, 0.85},
		{"iv below minimum", 250, 900, 0.69},
	}
	d := &DayTradingDetector{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opp, err := d.Evaluate(context.Background(), mkDayTradeSnapshot(t, tc.volume, tc.oi, tc.iv))
			if err != nil {
				t.Fatalf("err=%v", err)
			}
			if opp != nil {
				t.Fatalf("opp=%+v want nil", opp)
			}
		})
	}
}

func TestDayTradingDetector_ConfiguredThresholds(t *testing.T) {
	d := &DayTradingDetector{MinVolume: 500, MinOpenInterest: 2000, MinIV: 1.2}

	opp, err := d.Evaluate(context.Background(), mkDayTradeSnapshot(t, 250, 900, 0.85))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp != nil {
		t.Fatalf("opp=%+v want nil under raised thresholds", opp)
	}

	opp, err = d.Evaluate(context.Background(), mkDayTradeSnapshot(t, 600, 2500, 1.3))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp == nil {
		t.Fatalf("opp=nil want emission")
	}
}

func TestDayTradingDetector_ContractIdentityNormalized(t *testing.T) {
	d := &DayTradingDetector{}
	snap := mkDayTradeSnapshot(t, 250, 900, 0.85)
	snap.Contract.Symbol = "tsla"
	snap.Contract.OptionType = "PUT"

	opp, err := d.Evaluate(context.Background(), snap)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if opp == nil {
		t.Fatalf("opp=nil want emission")
	}
	if opp.Symbol != "TSLA" {
		t.Fatalf("symbol=%q want TSLA", opp.Symbol)
	}
	if opp.OptionType != "put" {
		t.Fatalf("option_type=%q want put", opp.OptionType)
	}
}
