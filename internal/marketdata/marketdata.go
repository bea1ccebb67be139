package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OptionTypeCall = "call"
	OptionTypePut  = "put"
)

// OptionContract is the natural identity of a listed option.
type OptionContract struct {
	Symbol     string
	OptionType string
	Strike     decimal.Decimal
	Expiration time.Time
}

// Key is stable across processes: symbol|type|strike|expiration-date.
func (c OptionContract) Key() string {
	return strings.ToUpper(c.Symbol) + "|" +
		strings.ToLower(c.OptionType) + "|" +
		c.Strike.String() + "|" +
		c.Expiration.Format("2006-01-02")
}

// OptionSnapshot is one observed market state for a contract.
type OptionSnapshot struct {
	Contract OptionContract

	Price             decimal.Decimal
	Volume            int64
	OpenInterest      int64
	ImpliedVolatility float64
	Delta             *float64
	Gamma             *float64
	Theta             *float64
	Vega              *float64
	UnderlyingPrice   decimal.Decimal

	ObservedAt time.Time
}

// Bar is one aggregated interval of trade history.
type Bar struct {
	Start  time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// Provider is the upstream market-data source. Implementations must
// return ErrNoData when the source has nothing for the request and wrap
// retryable failures in TransientError so callers can tell them apart.
type Provider interface {
	OptionChain(ctx context.Context, symbol string) ([]OptionSnapshot, error)
	OptionQuote(ctx context.Context, contract OptionContract) (*OptionSnapshot, error)
	HistoricalBars(ctx context.Context, contract OptionContract, start, end time.Time, granularity time.Duration) ([]Bar, error)
}
