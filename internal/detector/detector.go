package detector

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"optionscan/internal/marketdata"
	"optionscan/internal/models"
)

// Detector evaluates one contract snapshot. A nil opportunity with a
// nil error means the snapshot does not qualify. Evaluate never
// persists or dispatches; that is the orchestrator's job.
type Detector interface {
	Name() string
	Evaluate(ctx context.Context, snap marketdata.OptionSnapshot) (*models.Opportunity, error)
}

var contractMultiplier = decimal.NewFromInt(100)

// notionalValue is price * volume * 100, the dollar value of the
// observed flow under the standard equity-option multiplier.
func notionalValue(price decimal.Decimal, volume int64) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(volume)).Mul(contractMultiplier)
}

func newOpportunity(snap marketdata.OptionSnapshot, notional decimal.Decimal, alertType, strategy string) *models.Opportunity {
	detectedAt := snap.ObservedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}
	return &models.Opportunity{
		Symbol:            strings.ToUpper(snap.Contract.Symbol),
		OptionType:        strings.ToLower(snap.Contract.OptionType),
		Strike:            snap.Contract.Strike,
		Expiration:        snap.Contract.Expiration,
		EntryPrice:        snap.Price,
		DetectedAt:        detectedAt,
		Volume:            snap.Volume,
		OpenInterest:      snap.OpenInterest,
		ImpliedVolatility: snap.ImpliedVolatility,
		Delta:             snap.Delta,
		Gamma:             snap.Gamma,
		Theta:             snap.Theta,
		Vega:              snap.Vega,
		UnderlyingPrice:   snap.UnderlyingPrice,
		NotionalValue:     notional,
		AlertType:         alertType,
		Strategy:          strategy,
		Tracked:           true,
	}
}
