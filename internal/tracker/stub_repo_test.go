package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"optionscan/internal/models"
	"optionscan/internal/repository"
)

type closedPosition struct {
	price    decimal.Decimal
	closedAt time.Time
}

// stubRepo implements repository.Repository in memory for tracker tests.
type stubRepo struct {
	mu      sync.Mutex
	open    []models.Opportunity
	updates []models.PriceUpdate
	closed  map[uint64]closedPosition
}

func newStubRepo(open ...models.Opportunity) *stubRepo {
	return &stubRepo{open: open, closed: make(map[uint64]closedPosition)}
}

func (s *stubRepo) ListOpenOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Opportunity, len(s.open))
	copy(out, s.open)
	return out, nil
}

func (s *stubRepo) InsertPriceUpdate(ctx context.Context, item *models.PriceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, *item)
	return nil
}

func (s *stubRepo) CloseOpportunity(ctx context.Context, id uint64, closePrice decimal.Decimal, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed[id] = closedPosition{price: closePrice, closedAt: closedAt}
	return nil
}

func (s *stubRepo) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *stubRepo) lastUpdate() *models.PriceUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updates) == 0 {
		return nil
	}
	cp := s.updates[len(s.updates)-1]
	return &cp
}

func (s *stubRepo) closedAt(id uint64) (closedPosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.closed[id]
	return pos, ok
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

func (s *stubRepo) CountOpportunitiesByAlertType(ctx context.Context, since *time.Time) (map[string]int64, error) {
	return nil, nil
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

func (s *stubRepo) UpsertBacktestResult(ctx context.Context, item *models.BacktestResult) error {
	return nil
}

func (s *stubRepo) GetBacktestResultByOpportunityID(ctx context.Context, opportunityID uint64) (*models.BacktestResult, error) {
	return nil, nil
}

func (s *stubRepo) ListBacktestResults(ctx context.Context, params repository.ListBacktestResultsParams) ([]models.BacktestResult, error) {
	return nil, nil
}

func (s *stubRepo) CountBacktestResults(ctx context.Context, params repository.ListBacktestResultsParams) (int64, error) {
	return 0, nil
}

func (s *stubRepo) ListOpportunitiesWithoutBacktest(ctx context.Context, detectedBefore time.Time, limit int) ([]models.Opportunity, error) {
	return nil, nil
}

func (s *stubRepo) ListEvaluatedOpportunities(ctx context.Context, params repository.ListEvaluatedParams) ([]repository.EvaluatedOpportunity, error) {
	return nil, nil
}

var _ repository.Repository = (*stubRepo)(nil)
