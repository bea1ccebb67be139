package gormrepository

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"optionscan/internal/models"
	"optionscan/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- Opportunities ----------------------------------------------------------

func (s *Store) InsertOpportunity(ctx context.Context, item *models.Opportunity) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetOpportunityByID(ctx context.Context, id uint64) (*models.Opportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.Opportunity
	err := s.db.WithContext(ctx).
		Model(&models.Opportunity{}).
		Where("id = ?", id).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.Opportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Opportunity{})
	query = applyOpportunityFilters(query, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "detected_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Opportunity
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Opportunity{})
	query = applyOpportunityFilters(query, params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListOpenOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Opportunity
	err := s.db.WithContext(ctx).
		Model(&models.Opportunity{}).
		Where("closed = ?", false).
		Where("tracked = ?", true).
		Order("detected_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CloseOpportunity(ctx context.Context, id uint64, closePrice decimal.Decimal, closedAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	if id == 0 {
		return nil
	}
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).
		Model(&models.Opportunity{}).
		Where("id = ?", id).
		Where("closed = ?", false).
		Updates(map[string]any{
			"closed":      true,
			"close_price": closePrice,
			"close_time":  closedAt,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (s *Store) CountOpportunitiesByAlertType(ctx context.Context, since *time.Time) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Table("opportunities").
		Select("alert_type AS alert_type, COUNT(*) AS count")
	if since != nil && !since.IsZero() {
		query = query.Where("detected_at >= ?", *since)
	}
	var rows []struct {
		AlertType string
		Count     int64
	}
	if err := query.Group("alert_type").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.AlertType] = row.Count
	}
	return out, nil
}

// --- Price updates ----------------------------------------------------------

func (s *Store) InsertPriceUpdate(ctx context.Context, item *models.PriceUpdate) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.OpportunityID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListPriceUpdates(ctx context.Context, params repository.ListPriceUpdatesParams) ([]models.PriceUpdate, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if params.OpportunityID == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.PriceUpdate{}).
		Where("opportunity_id = ?", params.OpportunityID)
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("timestamp >= ?", *params.Since)
	}
	direction := "desc"
	if params.Asc != nil && *params.Asc {
		direction = "asc"
	}
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.PriceUpdate
	err := query.Order("timestamp " + direction).
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) LatestPriceUpdate(ctx context.Context, opportunityID uint64) (*models.PriceUpdate, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if opportunityID == 0 {
		return nil, nil
	}
	var item models.PriceUpdate
	err := s.db.WithContext(ctx).
		Model(&models.PriceUpdate{}).
		Where("opportunity_id = ?", opportunityID).
		Order("timestamp desc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) FirstPriceUpdateSince(ctx context.Context, opportunityID uint64, since time.Time) (*models.PriceUpdate, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if opportunityID == 0 {
		return nil, nil
	}
	var item models.PriceUpdate
	err := s.db.WithContext(ctx).
		Model(&models.PriceUpdate{}).
		Where("opportunity_id = ?", opportunityID).
		Where("timestamp >= ?", since).
		Order("timestamp asc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Backtest results -------------------------------------------------------

func (s *Store) UpsertBacktestResult(ctx context.Context, item *models.BacktestResult) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.OpportunityID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "opportunity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"entry_basis",
			"entry_price",
			"horizons",
			"evaluated_at",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetBacktestResultByOpportunityID(ctx context.Context, opportunityID uint64) (*models.BacktestResult, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if opportunityID == 0 {
		return nil, nil
	}
	var item models.BacktestResult
	err := s.db.WithContext(ctx).
		Model(&models.BacktestResult{}).
		Where("opportunity_id = ?", opportunityID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListBacktestResults(ctx context.Context, params repository.ListBacktestResultsParams) ([]models.BacktestResult, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.BacktestResult{})
	if params.EntryBasis != nil && strings.TrimSpace(*params.EntryBasis) != "" {
		query = query.Where("entry_basis = ?", strings.TrimSpace(*params.EntryBasis))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("evaluated_at >= ?", *params.Since)
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "evaluated_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.BacktestResult
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountBacktestResults(ctx context.Context, params repository.ListBacktestResultsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := s.db.WithContext(ctx).Model(&models.BacktestResult{})
	if params.EntryBasis != nil && strings.TrimSpace(*params.EntryBasis) != "" {
		query = query.Where("entry_basis = ?", strings.TrimSpace(*params.EntryBasis))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("evaluated_at >= ?", *params.Since)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListOpportunitiesWithoutBacktest(ctx context.Context, detectedBefore time.Time, limit int) ([]models.Opportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if detectedBefore.IsZero() {
		detectedBefore = time.Now().UTC()
	}
	limit = normalizeLimit(limit, 200)
	var items []models.Opportunity
	err := s.db.WithContext(ctx).
		Model(&models.Opportunity{}).
		Where("detected_at < ?", detectedBefore).
		Where("NOT EXISTS (SELECT 1 FROM backtest_results r WHERE r.opportunity_id = opportunities.id)").
		Order("detected_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListEvaluatedOpportunities(ctx context.Context, params repository.ListEvaluatedParams) ([]repository.EvaluatedOpportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Opportunity{}).
		Joins("JOIN backtest_results AS r ON r.opportunity_id = opportunities.id")
	if params.AlertType != nil && strings.TrimSpace(*params.AlertType) != "" {
		query = query.Where("opportunities.alert_type = ?", strings.TrimSpace(*params.AlertType))
	}
	if params.Strategy != nil && strings.TrimSpace(*params.Strategy) != "" {
		query = query.Where("opportunities.strategy = ?", strings.TrimSpace(*params.Strategy))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("opportunities.detected_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("opportunities.detected_at < ?", *params.Until)
	}
	limit := normalizeLimit(params.Limit, 500)
	var opps []models.Opportunity
	err := query.Order("opportunities.detected_at asc").
		Limit(limit).
		Find(&opps).Error
	if err != nil {
		return nil, err
	}
	if len(opps) == 0 {
		return nil, nil
	}

	ids := make([]uint64, 0, len(opps))
	for _, opp := range opps {
		ids = append(ids, opp.ID)
	}
	var results []models.BacktestResult
	err = s.db.WithContext(ctx).
		Model(&models.BacktestResult{}).
		Where("opportunity_id IN ?", ids).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	resultByOpp := make(map[uint64]models.BacktestResult, len(results))
	for _, r := range results {
		resultByOpp[r.OpportunityID] = r
	}

	pairs := make([]repository.EvaluatedOpportunity, 0, len(opps))
	for _, opp := range opps {
		result, ok := resultByOpp[opp.ID]
		if !ok {
			continue
		}
		pairs = append(pairs, repository.EvaluatedOpportunity{
			Opportunity: opp,
			Result:      result,
		})
	}
	return pairs, nil
}

// --- helpers ----------------------------------------------------------------

func applyOpportunityFilters(query *gorm.DB, params repository.ListOpportunitiesParams) *gorm.DB {
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.ToUpper(strings.TrimSpace(*params.Symbol)))
	}
	if params.AlertType != nil && strings.TrimSpace(*params.AlertType) != "" {
		query = query.Where("alert_type = ?", strings.TrimSpace(*params.AlertType))
	}
	if params.Strategy != nil && strings.TrimSpace(*params.Strategy) != "" {
		query = query.Where("strategy = ?", strings.TrimSpace(*params.Strategy))
	}
	if params.Closed != nil {
		query = query.Where("closed = ?", *params.Closed)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("detected_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("detected_at < ?", *params.Until)
	}
	if params.MinNotional != nil {
		query = query.Where("notional_value >= ?", *params.MinNotional)
	}
	return query
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
