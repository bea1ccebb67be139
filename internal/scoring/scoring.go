package scoring

import (
	"context"
	"errors"

	"optionscan/internal/models"
)

// ErrUnavailable means no score could be produced for this opportunity.
// Callers proceed without a score; scoring never blocks emission.
var ErrUnavailable = errors.New("scoring: unavailable")

type Result struct {
	SuccessProbability float64 `json:"success_probability"`
	Confidence         string  `json:"confidence"`
	Reasoning          string  `json:"reasoning"`
}

type Scorer interface {
	Score(ctx context.Context, opp *models.Opportunity) (*Result, error)
}
