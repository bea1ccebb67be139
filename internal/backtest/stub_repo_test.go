package backtest

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"optionscan/internal/models"
	"optionscan/internal/repository"
)

// stubRepo implements repository.Repository in memory. Only the methods
// the runner touches do real work; the rest return zero values.
type stubRepo struct {
	mu      sync.Mutex
	results map[uint64]*models.BacktestResult
	pending []models.Opportunity

	upsertErr      error
	listPendingCut time.Time
}

func newStubRepo() *stubRepo {
	return &stubRepo{results: make(map[uint64]*models.BacktestResult)}
}

func (s *stubRepo) UpsertBacktestResult(ctx context.Context, item *models.BacktestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	cp := *item
	s.results[item.OpportunityID] = &cp
	return nil
}

func (s *stubRepo) ListOpportunitiesWithoutBacktest(ctx context.Context, detectedBefore time.Time, limit int) ([]models.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listPendingCut = detectedBefore
	if limit > 0 && len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *stubRepo) resultCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func (s *stubRepo) resultFor(id uint64) *models.BacktestResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[id]
}

func (s *stubRepo) InsertOpportunity(ctx context.Context, item *models.Opportunity) error {
	return nil
}

func (s *stubRepo) GetOpportunityByID(ctx context.Context, id uint64) (*models.Opportunity, error) {
	return nil, nil
}

func (s *stubRepo) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error) {
	return nil, nil
}

func (s *stubRepo) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	return 0, nil
}

func (s *stubRepo) ListOpenOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	return nil, nil
}

func (s *stubRepo) CloseOpportunity(ctx context.Context, id uint64, closePrice decimal.Decimal, closedAt time.Time) error {
	return nil
}

func (s *stubRepo) CountOpportunitiesByAlertType(ctx context.Context, since *time.Time) (map[string]int64, error) {
	return nil, nil
}

func (s *stubRepo) InsertPriceUpdate(ctx context.Context, item *models.PriceUpdate) error {
	return nil
}

func (s *stubRepo) ListPriceUpdates(ctx context.Context, params repository.ListPriceUpdatesParams) ([]models.PriceUpdate, error) {
	return nil, nil
}

func (s *stubRepo) LatestPriceUpdate(ctx context.Context, opportunityID uint64) (*models.PriceUpdate, error) {
	return nil, nil
}

func (s *stubRepo) FirstPriceUpdateSince(ctx context.Context, opportunityID uint64, since time.Time) (*models.PriceUpdate, error) {
	return nil, nil
}

func (s *stubRepo) GetBacktestResultByOpportunityID(ctx context.Context, opportunityID uint64) (*models.BacktestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[opportunityID], nil
}

func (s *stubRepo) ListBacktestResults(ctx context.Context, params repository.ListBacktestResultsParams) ([]models.BacktestResult, error) {
	return nil, nil
}

func (s *stubRepo) CountBacktestResults(ctx context.Context, params repository.ListBacktestResultsParams) (int64, error) {
	return 0, nil
}

func (s *stubRepo) ListEvaluatedOpportunities(ctx context.Context, params repository.ListEvaluatedParams) ([]repository.EvaluatedOpportunity, error) {
	return nil, nil
}

var _ repository.Repository = (*stubRepo)(nil)
