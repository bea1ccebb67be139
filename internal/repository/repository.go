package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"optionscan/internal/models"
)

// Repository is the persistence surface shared by the scanners, the
// tracker, the backtest engine and the read API.
type Repository interface {
	// Opportunities. Inserts are append-only; only close state mutates.
	InsertOpportunity(ctx context.Context, item *models.Opportunity) error
	GetOpportunityByID(ctx context.Context, id uint64) (*models.Opportunity, error)
	ListOpportunities(ctx context.Context, params ListOpportunitiesParams) ([]models.Opportunity, error)
	CountOpportunities(ctx context.Context, params ListOpportunitiesParams) (int64, error)
	ListOpenOpportunities(ctx context.Context) ([]models.Opportunity, error)
	CloseOpportunity(ctx context.Context, id uint64, closePrice decimal.Decimal, closedAt time.Time) error
	CountOpportunitiesByAlertType(ctx context.Context, since *time.Time) (map[string]int64, error)

	// Price updates.
	InsertPriceUpdate(ctx context.Context, item *models.PriceUpdate) error
	ListPriceUpdates(ctx context.Context, params ListPriceUpdatesParams) ([]models.PriceUpdate, error)
	LatestPriceUpdate(ctx context.Context, opportunityID uint64) (*models.PriceUpdate, error)
	FirstPriceUpdateSince(ctx context.Context, opportunityID uint64, since time.Time) (*models.PriceUpdate, error)

	// Backtest results. Keyed by opportunity so re-evaluation converges.
	UpsertBacktestResult(ctx context.Context, item *models.BacktestResult) error
	GetBacktestResultByOpportunityID(ctx context.Context, opportunityID uint64) (*models.BacktestResult, error)
	ListBacktestResults(ctx context.Context, params ListBacktestResultsParams) ([]models.BacktestResult, error)
	CountBacktestResults(ctx context.Context, params ListBacktestResultsParams) (int64, error)
	ListOpportunitiesWithoutBacktest(ctx context.Context, detectedBefore time.Time, limit int) ([]models.Opportunity, error)
	ListEvaluatedOpportunities(ctx context.Context, params ListEvaluatedParams) ([]EvaluatedOpportunity, error)
}

type ListOpportunitiesParams struct {
	Limit       int
	Offset      int
	Symbol      *string
	AlertType   *string
	Strategy    *string
	Closed      *bool
	Since       *time.Time
	Until       *time.Time
	MinNotional *decimal.Decimal
	OrderBy     string
	Asc         *bool
}

type ListPriceUpdatesParams struct {
	OpportunityID uint64
	Limit         int
	Offset        int
	Since         *time.Time
	Asc           *bool
}

type ListBacktestResultsParams struct {
	Limit      int
	Offset     int
	EntryBasis *string
	Since      *time.Time
	OrderBy    string
	Asc        *bool
}

type ListEvaluatedParams struct {
	AlertType *string
	Strategy  *string
	Since     *time.Time
	Until     *time.Time
	Limit     int
}

// EvaluatedOpportunity joins an opportunity with its backtest result.
// The leaderboard reduction consumes these pairs.
type EvaluatedOpportunity struct {
	Opportunity models.Opportunity
	Result      models.BacktestResult
}
