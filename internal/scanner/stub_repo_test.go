package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"optionscan/internal/models"
	"optionscan/internal/repository"
)

// stubRepo implements repository.Repository in memory for orchestrator
// tests. Inserts assign IDs; everything else returns zero values.
type stubRepo struct {
	mu           sync.Mutex
	nextID       uint64
	opps         []models.Opportunity
	priceUpdates []models.PriceUpdate

	insertOppErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{nextID: 1}
}

func (s *stubRepo) InsertOpportunity(ctx context.Context, item *models.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertOppErr != nil {
		err := s.insertOppErr
		s.insertOppErr = nil
		return err
	}
	item.ID = s.nextID
	s.nextID++
	s.opps = append(s.opps, *item)
	return nil
}

func (s *stubRepo) InsertPriceUpdate(ctx context.Context, item *models.PriceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceUpdates = append(s.priceUpdates, *item)
	return nil
}

func (s *stubRepo) oppCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.opps)
}

func (s *stubRepo) lastOpp() *models.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.opps) == 0 {
		return nil
	}
	cp := s.opps[len(s.opps)-1]
	return &cp
}

func (s *stubRepo) priceUpdateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.priceUpdates)
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
