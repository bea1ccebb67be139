package thetadata

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"optionscan/internal/marketdata"
)

type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		val, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		d.Decimal = val
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		d.Decimal = decimal.NewFromFloat(f)
		return nil
	}
	return fmt.Errorf("invalid decimal: %s", string(b))
}

func parseChain(symbol string, body []byte) ([]marketdata.OptionSnapshot, error) {
	rows, err := parseRows(body)
	if err != nil {
		return nil, err
	}
	snaps := make([]marketdata.OptionSnapshot, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if snap, ok := parseSnapshotObject(symbol, row); ok {
			snaps = append(snaps, snap)
		}
	}
	return snaps, nil
}

func parseBars(body []byte) ([]marketdata.Bar, error) {
	rows, err := parseRows(body)
	if err != nil {
		return nil, err
	}
	bars := make([]marketdata.Bar, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if bar, ok := parseBarObject(row); ok {
			bars = append(bars, bar)
		}
	}
	return bars, nil
}

func parseRows(body []byte) ([]json.RawMessage, error) {
	var raw struct {
		Response []json.RawMessage `json:"response"`
		Data     []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err == nil {
		if raw.Response != nil {
			return raw.Response, nil
		}
		if raw.Data != nil {
			return raw.Data, nil
		}
	}
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	return nil, fmt.Errorf("unknown response format")
}

func parseSnapshotObject(symbol string, item json.RawMessage) (marketdata.OptionSnapshot, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(item, &obj); err != nil {
		return marketdata.OptionSnapshot{}, false
	}

	strikeRaw := firstRaw(obj, "strike", "k")
	rightRaw := firstRaw(obj, "right", "option_type", "type")
	expRaw := firstRaw(obj, "expiration", "exp", "expiry")
	if len(strikeRaw) == 0 || len(rightRaw) == 0 || len(expRaw) == 0 {
		return marketdata.OptionSnapshot{}, false
	}
	strike, err := parseDecimalRaw(strikeRaw)
	if err != nil {
		return marketdata.OptionSnapshot{}, false
	}
	right, ok := parseRight(rightRaw)
	if !ok {
		return marketdata.OptionSnapshot{}, false
	}
	exp, err := parseDateRaw(expRaw)
	if err != nil {
		return marketdata.OptionSnapshot{}, false
	}

	price, err := parseDecimalRaw(firstRaw(obj, "last", "price", "close", "mid"))
	if err != nil {
		return marketdata.OptionSnapshot{}, false
	}

	snap := marketdata.OptionSnapshot{
		Contract: marketdata.OptionContract{
			Symbol:     strings.ToUpper(symbol),
			OptionType: right,
			Strike:     normalizeStrike(strike),
			Expiration: exp,
		},
		Price:  price,
		Volume: parseInt64Raw(firstRaw(obj, "volume", "vol")),
	}
	snap.OpenInterest = parseInt64Raw(firstRaw(obj, "open_interest", "oi"))
	snap.ImpliedVolatility = parseFloatRaw(firstRaw(obj, "implied_vol", "iv", "implied_volatility"))
	snap.Delta = parseFloatPtr(firstRaw(obj, "delta"))
	snap.Gamma = parseFloatPtr(firstRaw(obj, "gamma"))
	snap.Theta = parseFloatPtr(firstRaw(obj, "theta"))
	snap.Vega = parseFloatPtr(firstRaw(obj, "vega"))
	if underlying, err := parseDecimalRaw(firstRaw(obj, "underlying_price", "underlying", "spot")); err == nil {
		snap.UnderlyingPrice = underlying
	}
	if ts, err := parseTimeRaw(firstRaw(obj, "timestamp", "ts", "time")); err == nil {
		snap.ObservedAt = ts
	} else {
		snap.ObservedAt = time.Now().UTC()
	}
	return snap, true
}

func parseBarObject(item json.RawMessage) (marketdata.Bar, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(item, &obj); err != nil {
		return marketdata.Bar{}, false
	}

	var start time.Time
	if ts, err := parseTimeRaw(firstRaw(obj, "timestamp", "ts", "time")); err == nil {
		start = ts
	} else if date, err := parseDateRaw(firstRaw(obj, "date")); err == nil {
		start = date
		if ms := parseInt64Raw(firstRaw(obj, "ms_of_day")); ms > 0 {
			start = start.Add(time.Duration(ms) * time.Millisecond)
		}
	} else {
		return marketdata.Bar{}, false
	}

	bar := marketdata.Bar{Start: start}
	var err error
	if bar.Open, err = parseDecimalRaw(firstRaw(obj, "open", "o")); err != nil {
		return marketdata.Bar{}, false
	}
	if bar.High, err = parseDecimalRaw(firstRaw(obj, "high", "h")); err != nil {
		bar.High = bar.Open
	}
	if bar.Low, err = parseDecimalRaw(firstRaw(obj, "low", "l")); err != nil {
		bar.Low = bar.Open
	}
	if bar.Close, err = parseDecimalRaw(firstRaw(obj, "close", "c")); err != nil {
		return marketdata.Bar{}, false
	}
	bar.Volume = parseInt64Raw(firstRaw(obj, "volume", "vol", "v"))
	return bar, true
}

// normalizeStrike maps ThetaData's integer strikes (tenths of a cent,
// 450500 means $450.50) back to dollars. Values small enough to already
// be dollars pass through.
func normalizeStrike(d decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(decimal.NewFromInt(10000)) {
		return d.Div(decimal.NewFromInt(1000))
	}
	return d
}

func formatStrike(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(1000)).StringFixed(0)
}

func formatRight(optionType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(optionType)) {
	case marketdata.OptionTypeCall, "c":
		return "C", nil
	case marketdata.OptionTypePut, "p":
		return "P", nil
	default:
		return "", fmt.Errorf("invalid option type: %q", optionType)
	}
}

func parseRight(b json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "call":
		return marketdata.OptionTypeCall, true
	case "p", "put":
		return marketdata.OptionTypePut, true
	default:
		return "", false
	}
}

func parseDecimalRaw(b json.RawMessage) (decimal.Decimal, error) {
	if len(b) == 0 {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	var d Decimal
	if err := json.Unmarshal(b, &d); err != nil {
		return decimal.Zero, err
	}
	return d.Decimal, nil
}

func parseInt64Raw(b json.RawMessage) int64 {
	if len(b) == 0 {
		return 0
	}
	var i int64
	if err := json.Unmarshal(b, &i); err == nil {
		return i
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		return int64(f)
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
			return d.IntPart()
		}
	}
	return 0
}

func parseFloatRaw(b json.RawMessage) float64 {
	if len(b) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
			f, _ := d.Float64()
			return f
		}
	}
	return 0
}

func parseFloatPtr(b json.RawMessage) *float64 {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		return &f
	}
	return nil
}

func parseTimeRaw(b json.RawMessage) (time.Time, error) {
	if len(b) == 0 {
		return time.Time{}, fmt.Errorf("empty time")
	}
	var i int64
	if err := json.Unmarshal(b, &i); err == nil {
		return unixToTime(i), nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		return unixToTime(int64(f)), nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil && s != "" {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time: %s", string(b))
}

func unixToTime(v int64) time.Time {
	if v > 1_000_000_000_000 {
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

// parseDateRaw accepts 20250117 ints, "2025-01-17", "20250117" and
// RFC3339 strings.
func parseDateRaw(b json.RawMessage) (time.Time, error) {
	if len(b) == 0 {
		return time.Time{}, fmt.Errorf("empty date")
	}
	var i int64
	if err := json.Unmarshal(b, &i); err == nil {
		if i >= 19000101 && i <= 29991231 {
			return time.Parse("20060102", fmt.Sprintf("%d", i))
		}
		return unixToTime(i), nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil && s != "" {
		s = strings.TrimSpace(s)
		if ts, err := time.Parse("2006-01-02", s); err == nil {
			return ts, nil
		}
		if ts, err := time.Parse("20060102", s); err == nil {
			return ts, nil
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date: %s", string(b))
}

func firstRaw(m map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return nil
}
