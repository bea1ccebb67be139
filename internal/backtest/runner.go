package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"optionscan/internal/marketdata"
	"optionscan/internal/models"
	"optionscan/internal/repository"
)

// Runner batches engine evaluations and persists the results. One
// failing opportunity never aborts the batch; transient failures are
// left unevaluated so the next sweep picks them up again.
type Runner struct {
	Engine *Engine
	Repo   repository.Repository
	Logger *zap.Logger

	Concurrency int
	SweepLimit  int
	SweepMinAge time.Duration
}

type BatchStats struct {
	Candidates int
	Evaluated  int
	Skipped    int
	Failed     int
}

// RunPending evaluates opportunities that have no stored result yet and
// are old enough for every horizon to have elapsed.
func (r *Runner) RunPending(ctx context.Context) (BatchStats, error) {
	if r == nil || r.Engine == nil || r.Repo == nil {
		return BatchStats{}, fmt.Errorf("backtest: runner not configured")
	}
	minAge := r.SweepMinAge
	if floor := maxOffset(r.Engine.Horizons) + r.Engine.Tolerance; minAge < floor {
		minAge = floor
	}
	limit := r.SweepLimit
	if limit <= 0 {
		limit = 200
	}
	cutoff := time.Now().UTC().Add(-minAge)
	opps, err := r.Repo.ListOpportunitiesWithoutBacktest(ctx, cutoff, limit)
	if err != nil {
		return BatchStats{}, fmt.Errorf("backtest: list pending: %w", err)
	}
	return r.RunBatch(ctx, opps)
}

// RunBatch evaluates the given opportunities with bounded concurrency
// and upserts each result keyed by opportunity, so re-running a batch
// is idempotent.
func (r *Runner) RunBatch(ctx context.Context, opps []models.Opportunity) (BatchStats, error) {
	if r == nil || r.Engine == nil || r.Repo == nil {
		return BatchStats{}, fmt.Errorf("backtest: runner not configured")
	}
	stats := BatchStats{Candidates: len(opps)}
	if len(opps) == 0 {
		return stats, nil
	}

	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range opps {
		opp := opps[i]
		g.Go(func() error {
			result, err := r.Engine.Evaluate(gctx, &opp)
			if err != nil {
				mu.Lock()
				if marketdata.IsTransient(err) {
					stats.Skipped++
				} else {
					stats.Failed++
				}
				mu.Unlock()
				if r.Logger != nil {
					r.Logger.Warn("backtest evaluation failed (continuing)",
						zap.Uint64("opportunity_id", opp.ID),
						zap.Error(err),
					)
				}
				return nil
			}
			if err := r.Repo.UpsertBacktestResult(gctx, result); err != nil {
				mu.Lock()
				stats.Failed++
				mu.Unlock()
				if r.Logger != nil {
					r.Logger.Warn("backtest result upsert failed",
						zap.Uint64("opportunity_id", opp.ID),
						zap.Error(err),
					)
				}
				return nil
			}
			mu.Lock()
			stats.Evaluated++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	if r.Logger != nil {
		r.Logger.Info("backtest batch complete",
			zap.Int("candidates", stats.Candidates),
			zap.Int("evaluated", stats.Evaluated),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
		)
	}
	return stats, nil
}
