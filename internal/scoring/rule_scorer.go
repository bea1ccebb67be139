package scoring

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"optionscan/internal/marketdata"
	"optionscan/internal/models"
)

// RuleScorer derives a success probability from additive rules over the
// opportunity's own fields. Scores start at 50 and cap at 100.
type RuleScorer struct{}

func (s *RuleScorer) Score(ctx context.Context, opp *models.Opportunity) (*Result, error) {
	if opp == nil {
		return nil, ErrUnavailable
	}

	score := 50.0
	reasons := make([]string, 0, 6)

	if opp.Volume > 1000 {
		score += 5
		reasons = append(reasons, "High volume")
	}
	if opp.OpenInterest > 0 && float64(opp.Volume)/float64(opp.OpenInterest) > 0.5 {
		score += 10
		reasons = append(reasons, "Volume/OI ratio > 0.5")
	}
	if opp.ImpliedVolatility > 0.5 {
		score += 5
		reasons = append(reasons, "High implied volatility")
	}
	if opp.UnderlyingPrice.GreaterThan(decimal.Zero) {
		switch opp.OptionType {
		case marketdata.OptionTypeCall:
			if opp.Strike.LessThan(opp.UnderlyingPrice.Mul(decimal.NewFromFloat(1.05))) {
				score += 5
				reasons = append(reasons, "Call strike near or in-the-money")
			}
		case marketdata.OptionTypePut:
			if opp.Strike.GreaterThan(opp.UnderlyingPrice.Mul(decimal.NewFromFloat(0.95))) {
				score += 5
				reasons = append(reasons, "Put strike near or in-the-money")
			}
		}
	}
	if opp.NotionalValue.GreaterThan(decimal.NewFromInt(1_000_000)) {
		score += 10
		reasons = append(reasons, "Large notional value (whale activity)")
	}
	if score > 100 {
		score = 100
	}

	return &Result{
		SuccessProbability: score,
		Confidence:         confidenceBand(score),
		Reasoning:          "Based on rule scoring: " + strings.Join(reasons, ", "),
	}, nil
}

func confidenceBand(probability float64) string {
	switch {
	case probability > 85 || probability < 15:
		return "very high"
	case probability > 75 || probability < 25:
		return "high"
	case probability > 65 || probability < 35:
		return "medium"
	default:
		return "low"
	}
}
