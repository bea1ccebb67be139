package reporting

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"optionscan/internal/leaderboard"
	"optionscan/internal/notify"
	"optionscan/internal/repository"
)

// Reporter composes the periodic performance report and leaderboard
// pushes. It runs as a cron job, one pass per invocation.
type Reporter struct {
	Repo     repository.Repository
	Notifier notify.Notifier
	Logger   *zap.Logger

	Horizons []string
	RankBy   string
	TopN     int
}

func (r *Reporter) Run(ctx context.Context) error {
	if r == nil || r.Repo == nil || r.Notifier == nil {
		return nil
	}
	if err := r.sendPerformanceReport(ctx); err != nil {
		return err
	}
	return r.sendLeaderboard(ctx)
}

func (r *Reporter) sendPerformanceReport(ctx context.Context) error {
	open, err := r.Repo.ListOpenOpportunities(ctx)
	if err != nil {
		return fmt.Errorf("reporting: list open opportunities: %w", err)
	}

	positions := make([]notify.Position, 0, len(open))
	for i := range open {
		opp := open[i]
		latest, err := r.Repo.LatestPriceUpdate(ctx, opp.ID)
		if err != nil {
			if r.Logger != nil {
				r.Logger.Warn("latest price lookup failed (skipping)",
					zap.Uint64("opportunity_id", opp.ID),
					zap.Error(err),
				)
			}
			continue
		}
		if latest == nil {
			continue
		}
		positions = append(positions, notify.Position{
			AlertType: opp.AlertType,
			ProfitPct: latest.PriceChangePct,
		})
	}

	if err := r.Notifier.Send(ctx, notify.FormatPerformanceReport(positions)); err != nil {
		return fmt.Errorf("reporting: send performance report: %w", err)
	}
	if r.Logger != nil {
		r.Logger.Info("performance report sent", zap.Int("positions", len(positions)))
	}
	return nil
}

func (r *Reporter) sendLeaderboard(ctx context.Context) error {
	rows, err := r.Repo.ListEvaluatedOpportunities(ctx, repository.ListEvaluatedParams{})
	if err != nil {
		return fmt.Errorf("reporting: list evaluated opportunities: %w", err)
	}
	if len(rows) == 0 {
		if r.Logger != nil {
			r.Logger.Info("no evaluated opportunities for leaderboard")
		}
		return nil
	}

	board := leaderboard.Build(rows, leaderboard.Options{
		Horizons: r.Horizons,
		RankBy:   r.RankBy,
		TopN:     r.TopN,
	})
	if err := r.Notifier.Send(ctx, notify.FormatLeaderboard(board)); err != nil {
		return fmt.Errorf("reporting: send leaderboard: %w", err)
	}
	if r.Logger != nil {
		r.Logger.Info("leaderboard sent", zap.Int("entries", board.Summary.TotalOpportunities))
	}
	return nil
}
