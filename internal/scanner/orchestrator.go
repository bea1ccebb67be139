package scanner

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"optionscan/internal/baseline"
	"optionscan/internal/detector"
	"optionscan/internal/marketdata"
	"optionscan/internal/metrics"
	"optionscan/internal/models"
	"optionscan/internal/notify"
	"optionscan/internal/repository"
	"optionscan/internal/scoring"
	"optionscan/internal/stream"
)

const (
	StateIdle        = "idle"
	StateFetching    = "fetching"
	StateDetecting   = "detecting"
	StateDispatching = "dispatching"
)

// Orchestrator drives one detector family over the watchlist on a fixed
// interval. Cycles never overlap: a tick that fires while the previous
// cycle is still running is dropped, not queued. A failing symbol or
// contract never aborts the rest of the cycle.
type Orchestrator struct {
	Name      string
	Repo      repository.Repository
	Data      marketdata.Provider
	Detectors []detector.Detector
	Scorer    scoring.Scorer
	Notifier  notify.Notifier
	Metrics   *metrics.Recorder
	Stream    *stream.Hub
	Logger    *zap.Logger

	// Baseline is reset at the start of every cycle so lookups are
	// memoized per cycle, never across cycles.
	Baseline *baseline.CycleCache

	Watchlist      []string
	Interval       time.Duration
	MaxConcurrency int
	DedupWindow    time.Duration

	// MinProbability gates dispatch only when a score is present.
	// Opportunities without a score always pass.
	MinProbability float64

	mu        sync.Mutex
	busy      bool
	state     string
	lastCycle CycleStats
	dedup     map[string]time.Time
}

type CycleStats struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ms"`
	Symbols      int           `json:"symbols"`
	SymbolErrors int           `json:"symbol_errors"`
	Snapshots    int           `json:"snapshots"`
	EvalErrors   int           `json:"eval_errors"`
	Detected     int           `json:"detected"`
	GatedOut     int           `json:"gated_out"`
	Deduped      int           `json:"deduped"`
	Dispatched   int           `json:"dispatched"`
}

type Status struct {
	Name         string     `json:"name"`
	State        string     `json:"state"`
	LastCycle    CycleStats `json:"last_cycle"`
	DedupEntries int        `json:"dedup_entries"`
}

func (o *Orchestrator) Run(ctx context.Context) error {
	if o == nil || o.Repo == nil || o.Data == nil {
		return nil
	}
	interval := o.Interval
	if interval <= 0 {
		interval = 300 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		if err := o.RunOnce(ctx); err != nil && o.Logger != nil {
			o.Logger.Warn("scan cycle failed", zap.String("scanner", o.Name), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (o *Orchestrator) RunOnce(ctx context.Context) error {
	if o == nil || o.Repo == nil || o.Data == nil {
		return nil
	}
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		if o.Logger != nil {
			o.Logger.Debug("previous scan cycle still running, skipping tick", zap.String("scanner", o.Name))
		}
		o.Metrics.RecordCycleSkipped(o.Name)
		return nil
	}
	o.busy = true
	o.state = StateFetching
	o.mu.Unlock()

	stats := CycleStats{StartedAt: time.Now().UTC(), Symbols: len(o.Watchlist)}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		o.mu.Lock()
		o.busy = false
		o.state = StateIdle
		o.lastCycle = stats
		o.mu.Unlock()
		o.Metrics.RecordScanCycle(o.Name, stats.Duration)
	}()

	if o.Baseline != nil {
		o.Baseline.Reset()
	}

	snapshots := o.fetchChains(ctx, &stats)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	o.setState(StateDetecting)
	candidates := o.detect(ctx, snapshots, &stats)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if len(candidates) > 0 {
		o.setState(StateDispatching)
		o.dispatch(ctx, candidates, &stats)
	}

	if o.Logger != nil {
		o.Logger.Info("scan cycle complete",
			zap.String("scanner", o.Name),
			zap.Int("symbols", stats.Symbols),
			zap.Int("symbol_errors", stats.SymbolErrors),
			zap.Int("snapshots", stats.Snapshots),
			zap.Int("detected", stats.Detected),
			zap.Int("gated_out", stats.GatedOut),
			zap.Int("deduped", stats.Deduped),
			zap.Int("dispatched", stats.Dispatched),
			zap.Duration("took", time.Since(stats.StartedAt)),
		)
	}
	return nil
}

func (o *Orchestrator) fetchChains(ctx context.Context, stats *CycleStats) [][]marketdata.OptionSnapshot {
	snapshots := make([][]marketdata.OptionSnapshot, len(o.Watchlist))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency())
	for i, symbol := range o.Watchlist {
		g.Go(func() error {
			start := time.Now()
			snaps, err := o.Data.OptionChain(gctx, symbol)
			o.Metrics.ObserveChainFetch(time.Since(start))
			if err != nil {
				mu.Lock()
				stats.SymbolErrors++
				mu.Unlock()
				o.Metrics.RecordFetchError(errorKind(err))
				if o.Logger != nil {
					o.Logger.Warn("option chain fetch failed (continuing)",
						zap.String("scanner", o.Name),
						zap.String("symbol", symbol),
						zap.Error(err),
					)
				}
				return nil
			}
			mu.Lock()
			snapshots[i] = snaps
			stats.Snapshots += len(snaps)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return snapshots
}

func (o *Orchestrator) detect(ctx context.Context, snapshots [][]marketdata.OptionSnapshot, stats *CycleStats) []*models.Opportunity {
	var mu sync.Mutex
	candidates := make([]*models.Opportunity, 0, 16)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency())
	for i := range snapshots {
		snaps := snapshots[i]
		if len(snaps) == 0 {
			continue
		}
		g.Go(func() error {
			local := make([]*models.Opportunity, 0, 4)
			evalErrs := 0
			gated := 0
			for _, snap := range snaps {
				for _, det := range o.Detectors {
					opp, err := det.Evaluate(gctx, snap)
					if err != nil {
						evalErrs++
						if o.Logger != nil {
							o.Logger.Debug("detector evaluation failed (continuing)",
								zap.String("detector", det.Name()),
								zap.String("contract", snap.Contract.Key()),
								zap.Error(err),
							)
						}
						continue
					}
					if opp == nil {
						continue
					}
					if !o.attachScore(gctx, opp) {
						gated++
						continue
					}
					local = append(local, opp)
				}
			}
			mu.Lock()
			candidates = append(candidates, local...)
			stats.EvalErrors += evalErrs
			stats.GatedOut += gated
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	stats.Detected = len(candidates) + stats.GatedOut
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DetectedAt.Equal(candidates[j].DetectedAt) {
			return candidates[i].Symbol < candidates[j].Symbol
		}
		return candidates[i].DetectedAt.Before(candidates[j].DetectedAt)
	})
	return candidates
}

// attachScore decorates the opportunity when a scorer is configured.
// Returns false only when a score IS present and falls below the gate;
// scorer absence or failure never blocks.
func (o *Orchestrator) attachScore(ctx context.Context, opp *models.Opportunity) bool {
	if o.Scorer == nil {
		return true
	}
	res, err := o.Scorer.Score(ctx, opp)
	if err != nil || res == nil {
		if err != nil && o.Logger != nil {
			o.Logger.Debug("scoring failed (continuing without score)", zap.Error(err))
		}
		return true
	}
	opp.SuccessProbability = &res.SuccessProbability
	if detail, err := json.Marshal(res); err == nil {
		opp.ScoreDetail = datatypes.JSON(detail)
	}
	if o.MinProbability > 0 && res.SuccessProbability < o.MinProbability {
		return false
	}
	return true
}

func (o *Orchestrator) dispatch(ctx context.Context, candidates []*models.Opportunity, stats *CycleStats) {
	for _, opp := range candidates {
		key := dedupKey(opp)
		if o.seenRecently(key, opp.DetectedAt) {
			stats.Deduped++
			continue
		}
		if err := o.Repo.InsertOpportunity(ctx, opp); err != nil {
			if o.Logger != nil {
				o.Logger.Warn("opportunity insert failed", zap.String("key", key), zap.Error(err))
			}
			continue
		}
		o.markSeen(key, opp.DetectedAt)

		update := &models.PriceUpdate{
			OpportunityID:   opp.ID,
			Timestamp:       opp.DetectedAt,
			Price:           opp.EntryPrice,
			UnderlyingPrice: opp.UnderlyingPrice,
			PriceChangePct:  decimal.Zero,
		}
		if err := o.Repo.InsertPriceUpdate(ctx, update); err != nil && o.Logger != nil {
			o.Logger.Warn("initial price update failed", zap.Uint64("opportunity_id", opp.ID), zap.Error(err))
		}

		o.Metrics.RecordOpportunity(opp.AlertType)
		if o.Stream != nil {
			o.Stream.Publish(opp)
		}
		if o.Notifier != nil {
			if err := o.Notifier.Send(ctx, notify.FormatOpportunityAlert(opp)); err != nil {
				o.Metrics.RecordNotification("error")
				if o.Logger != nil {
					o.Logger.Warn("alert send failed", zap.Uint64("opportunity_id", opp.ID), zap.Error(err))
				}
			} else {
				o.Metrics.RecordNotification("ok")
			}
		}
		stats.Dispatched++

		if o.Logger != nil {
			o.Logger.Info("opportunity dispatched",
				zap.String("scanner", o.Name),
				zap.String("symbol", opp.Symbol),
				zap.String("option_type", opp.OptionType),
				zap.String("strike", opp.Strike.String()),
				zap.String("expiration", opp.Expiration.Format("2006-01-02")),
				zap.String("notional", opp.NotionalValue.StringFixed(2)),
			)
		}
	}
}

func (o *Orchestrator) Status() Status {
	if o == nil {
		return Status{}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	state := o.state
	if state == "" {
		state = StateIdle
	}
	return Status{
		Name:         o.Name,
		State:        state,
		LastCycle:    o.lastCycle,
		DedupEntries: len(o.dedup),
	}
}

// PruneDedup drops index entries older than the window. The dispatch
// path also drops them lazily; this keeps the map small between hits.
func (o *Orchestrator) PruneDedup(now time.Time) int {
	if o == nil {
		return 0
	}
	window := o.dedupWindow()
	o.mu.Lock()
	defer o.mu.Unlock()
	removed := 0
	for key, last := range o.dedup {
		if now.Sub(last) >= window {
			delete(o.dedup, key)
			removed++
		}
	}
	return removed
}

func (o *Orchestrator) setState(state string) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func (o *Orchestrator) concurrency() int {
	if o.MaxConcurrency > 0 {
		return o.MaxConcurrency
	}
	return 4
}

func (o *Orchestrator) dedupWindow() time.Duration {
	if o.DedupWindow > 0 {
		return o.DedupWindow
	}
	return 6 * time.Hour
}

func (o *Orchestrator) seenRecently(key string, now time.Time) bool {
	window := o.dedupWindow()
	o.mu.Lock()
	defer o.mu.Unlock()
	last, ok := o.dedup[key]
	if !ok {
		return false
	}
	if now.Sub(last) >= window {
		delete(o.dedup, key)
		return false
	}
	return true
}

func (o *Orchestrator) markSeen(key string, now time.Time) {
	o.mu.Lock()
	if o.dedup == nil {
		o.dedup = make(map[string]time.Time)
	}
	o.dedup[key] = now
	o.mu.Unlock()
}

func dedupKey(opp *models.Opportunity) string {
	return strings.Join([]string{
		strings.ToUpper(opp.Symbol),
		strings.ToLower(opp.OptionType),
		opp.Strike.String(),
		opp.Expiration.Format("2006-01-02"),
		opp.AlertType,
	}, "|")
}

func errorKind(err error) string {
	switch {
	case marketdata.IsNoData(err):
		return "no_data"
	case marketdata.IsTransient(err):
		return "transient"
	default:
		return "other"
	}
}
