package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"optionscan/internal/backtest"
	"optionscan/internal/client/thetadata"
	"optionscan/internal/config"
	"optionscan/internal/db"
	"optionscan/internal/leaderboard"
	"optionscan/internal/logger"
	"optionscan/internal/repository"
	gormrepository "optionscan/internal/repository/gorm"
)

const pageSize = 500

func main() {
	var (
		cfgPath     = flag.String("config", "", "config file path, defaults to $OPT_CONFIG or config/config.yaml")
		sinceFlag   = flag.String("since", "", "evaluate opportunities detected at or after this time (YYYY-MM-DD or RFC3339)")
		untilFlag   = flag.String("until", "", "evaluate opportunities detected before this time (YYYY-MM-DD or RFC3339)")
		alertType   = flag.String("alert-type", "", "restrict to one alert type")
		horizonsRaw = flag.String("horizons", "", "comma separated horizon labels, overrides config")
		entryBasis  = flag.String("entry-basis", "", "detection_price or next_bar_open, overrides config")
		concurrency = flag.Int("concurrency", 0, "parallel evaluations, overrides config")
		rankBy      = flag.String("rank-by", "", "leaderboard ranking horizon, default 1h")
		top         = flag.Int("top", 10, "leaderboard size")
	)
	flag.Parse()

	if err := run(*cfgPath, *sinceFlag, *untilFlag, *alertType, *horizonsRaw, *entryBasis, *concurrency, *rankBy, *top); err != nil {
		fmt.Fprintln(os.Stderr, "backtest:", err)
		os.Exit(1)
	}
}

func run(cfgPath, sinceFlag, untilFlag, alertType, horizonsRaw, entryBasis string, concurrency int, rankBy string, top int) error {
	if cfgPath == "" {
		cfgPath = os.Getenv("OPT_CONFIG")
	}
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if envOnlyRaw := os.Getenv("OPT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	since, err := parseTimeFlag(sinceFlag)
	if err != nil {
		return fmt.Errorf("invalid -since: %w", err)
	}
	until, err := parseTimeFlag(untilFlag)
	if err != nil {
		return fmt.Errorf("invalid -until: %w", err)
	}

	horizonLabels := cfg.Backtest.Horizons
	if horizonsRaw != "" {
		horizonLabels = strings.Split(horizonsRaw, ",")
		for i := range horizonLabels {
			horizonLabels[i] = strings.TrimSpace(horizonLabels[i])
		}
	}
	horizons, err := backtest.ParseHorizons(horizonLabels)
	if err != nil {
		return err
	}
	basis := cfg.Backtest.EntryBasis
	if entryBasis != "" {
		basis = entryBasis
	}
	switch basis {
	case "", backtest.EntryBasisDetectionPrice, backtest.EntryBasisNextBarOpen:
	default:
		return fmt.Errorf("entry basis %q is not supported", basis)
	}
	if concurrency <= 0 {
		concurrency = cfg.Backtest.Concurrency
	}

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close(dbConn)
	if err := db.AutoMigrate(dbConn); err != nil {
		return err
	}

	theta := thetadata.NewClient(&http.Client{Timeout: cfg.ThetaData.Timeout}, cfg.ThetaData.BaseURL, thetadata.Options{
		APIKey:          cfg.ThetaData.APIKey,
		RequestsPerSec:  cfg.ThetaData.RequestsPerSec,
		MaxRetryElapsed: cfg.ThetaData.MaxRetryElapsed,
		BreakerFailures: cfg.ThetaData.BreakerFailures,
		BreakerCooldown: cfg.ThetaData.BreakerCooldown,
	})
	store := gormrepository.New(dbConn.Gorm)

	runner := &backtest.Runner{
		Engine: &backtest.Engine{
			Data:        theta,
			Logger:      log,
			Horizons:    horizons,
			EntryBasis:  basis,
			Granularity: time.Minute,
			Tolerance:   cfg.Backtest.Tolerance,
		},
		Repo:        store,
		Logger:      log,
		Concurrency: concurrency,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var alertTypePtr *string
	if alertType != "" {
		alertTypePtr = &alertType
	}

	total := backtest.BatchStats{}
	offset := 0
	for {
		opps, err := store.ListOpportunities(ctx, repository.ListOpportunitiesParams{
			Limit:     pageSize,
			Offset:    offset,
			AlertType: alertTypePtr,
			Since:     since,
			Until:     until,
			OrderBy:   "detected_at",
			Asc:       boolPtr(true),
		})
		if err != nil {
			return err
		}
		if len(opps) == 0 {
			break
		}
		stats, err := runner.RunBatch(ctx, opps)
		total.Candidates += stats.Candidates
		total.Evaluated += stats.Evaluated
		total.Skipped += stats.Skipped
		total.Failed += stats.Failed
		if err != nil {
			return err
		}
		if len(opps) < pageSize {
			break
		}
		offset += pageSize
	}

	fmt.Printf("Evaluated %d of %d opportunities (skipped %d, failed %d)\n\n",
		total.Evaluated, total.Candidates, total.Skipped, total.Failed)

	rows, err := store.ListEvaluatedOpportunities(ctx, repository.ListEvaluatedParams{
		AlertType: alertTypePtr,
		Since:     since,
		Until:     until,
	})
	if err != nil {
		return err
	}
	board := leaderboard.Build(rows, leaderboard.Options{
		Horizons: horizonLabels,
		RankBy:   rankBy,
		TopN:     top,
	})
	printBoard(os.Stdout, board)
	return nil
}

func printBoard(out *os.File, board leaderboard.Board) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Horizon\tCount\tAvg Return\tWin Rate")
	for _, stats := range board.Summary.Horizons {
		fmt.Fprintf(w, "%s\t%d\t%s%%\t%s%%\n",
			stats.Label, stats.Count, stats.AvgReturnPct.StringFixed(2), stats.WinRatePct.StringFixed(2))
	}
	w.Flush()

	fmt.Printf("\nProfit buckets (%s): >0%%: %d  >10%%: %d  >25%%: %d  >50%%: %d\n",
		board.Summary.RankBy,
		board.Summary.Buckets.Positive,
		board.Summary.Buckets.Over10,
		board.Summary.Buckets.Over25,
		board.Summary.Buckets.Over50,
	)

	if len(board.Top) == 0 {
		fmt.Println("\nNo evaluated opportunities to rank.")
		return
	}
	fmt.Printf("\nTop performers by %s return:\n", board.Summary.RankBy)
	for _, entry := range board.Top {
		ret := "n/a"
		if entry.RankReturn != nil {
			ret = entry.RankReturn.StringFixed(2) + "%"
		}
		fmt.Printf("%3d. %s %s $%s %s  %s  %s\n",
			entry.Rank,
			entry.Symbol,
			strings.ToUpper(entry.OptionType),
			entry.Strike.String(),
			entry.Expiration.Format("2006-01-02"),
			entry.AlertType,
			ret,
		)
	}
}

func parseTimeFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			ts = ts.UTC()
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", value)
}

func boolPtr(v bool) *bool { return &v }
