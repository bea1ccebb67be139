package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"optionscan/internal/backtest"
	"optionscan/internal/baseline"
	"optionscan/internal/client/thetadata"
	"optionscan/internal/config"
	cronrunner "optionscan/internal/cron"
	"optionscan/internal/db"
	"optionscan/internal/detector"
	"optionscan/internal/handler"
	"optionscan/internal/logger"
	"optionscan/internal/metrics"
	"optionscan/internal/notify"
	"optionscan/internal/reporting"
	gormrepository "optionscan/internal/repository/gorm"
	"optionscan/internal/scanner"
	"optionscan/internal/scoring"
	"optionscan/internal/stream"
	"optionscan/internal/tracker"

	_ "optionscan/docs"
)

func main() {
	cfgPath := os.Getenv("OPT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("OPT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}
	if err := config.Validate(cfg); err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	thetaHTTP := &http.Client{Timeout: cfg.ThetaData.Timeout}
	theta := thetadata.NewClient(thetaHTTP, cfg.ThetaData.BaseURL, thetadata.Options{
		APIKey:          cfg.ThetaData.APIKey,
		RequestsPerSec:  cfg.ThetaData.RequestsPerSec,
		MaxRetryElapsed: cfg.ThetaData.MaxRetryElapsed,
		BreakerFailures: cfg.ThetaData.BreakerFailures,
		BreakerCooldown: cfg.ThetaData.BreakerCooldown,
	})
	store := gormrepository.New(dbConn.Gorm)
	recorder := metrics.NewRecorder(nil)
	hub := stream.NewHub(logger)

	var notifier notify.Notifier
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.Warn("telegram init failed (alerts disabled)", zap.Error(err))
		} else {
			notifier = tg
		}
	}

	var scorer scoring.Scorer
	if cfg.Scoring.Enabled {
		scorer = &scoring.RuleScorer{}
	}

	whaleBaseline := baseline.NewCycleCache(&baseline.HistoricalSource{
		Data:         theta,
		LookbackDays: cfg.Baseline.LookbackDays,
		BarInterval:  cfg.Baseline.BarInterval,
	})

	var scanners []*scanner.Orchestrator
	if cfg.Whale.Enabled {
		scanners = append(scanners, &scanner.Orchestrator{
			Name: "whale",
			Repo: store,
			Data: theta,
			Detectors: []detector.Detector{&detector.WhaleDetector{
				Baseline:                whaleBaseline,
				Logger:                  logger,
				MinNotionalValue:        decimal.NewFromFloat(cfg.Whale.MinNotionalValue),
				UnusualVolumeMultiplier: cfg.Whale.UnusualVolumeMultiplier,
				MinTradeSize:            cfg.Whale.MinTradeSize,
			}},
			Scorer:         scorer,
			Notifier:       notifier,
			Metrics:        recorder,
			Stream:         hub,
			Logger:         logger,
			Baseline:       whaleBaseline,
			Watchlist:      cfg.Scan.Watchlist,
			Interval:       cfg.Whale.ScanInterval,
			MaxConcurrency: cfg.Scan.MaxConcurrency,
			DedupWindow:    cfg.Scan.DedupWindow,
			MinProbability: cfg.Scoring.MinProbability,
		})
	}
	if cfg.DayTrading.Enabled {
		scanners = append(scanners, &scanner.Orchestrator{
			Name: "day_trading",
			Repo: store,
			Data: theta,
			Detectors: []detector.Detector{&detector.DayTradingDetector{
				Logger:          logger,
				MinVolume:       cfg.DayTrading.MinVolume,
				MinOpenInterest: cfg.DayTrading.MinOpenInterest,
				MinIV:           cfg.DayTrading.MinIV,
			}},
			Scorer:         scorer,
			Notifier:       notifier,
			Metrics:        recorder,
			Stream:         hub,
			Logger:         logger,
			Watchlist:      cfg.Scan.Watchlist,
			Interval:       cfg.DayTrading.ScanInterval,
			MaxConcurrency: cfg.Scan.MaxConcurrency,
			DedupWindow:    cfg.Scan.DedupWindow,
			MinProbability: cfg.Scoring.MinProbability,
		})
	}

	horizons, err := backtest.ParseHorizons(cfg.Backtest.Horizons)
	if err != nil {
		logger.Fatal("backtest horizons invalid", zap.Error(err))
	}
	backtestEngine := &backtest.Engine{
		Data:        theta,
		Logger:      logger,
		Horizons:    horizons,
		EntryBasis:  cfg.Backtest.EntryBasis,
		Granularity: time.Minute,
		Tolerance:   cfg.Backtest.Tolerance,
	}
	backtestRunner := &backtest.Runner{
		Engine:      backtestEngine,
		Repo:        store,
		Logger:      logger,
		Concurrency: cfg.Backtest.Concurrency,
		SweepLimit:  cfg.Backtest.SweepLimit,
		SweepMinAge: cfg.Backtest.SweepMinAge,
	}

	positionTracker := &tracker.Tracker{
		Repo:          store,
		Data:          theta,
		Notifier:      notifier,
		Metrics:       recorder,
		Logger:        logger,
		Interval:      cfg.Tracker.Interval,
		ProfitTargets: cfg.Tracker.ProfitTargets,
		StopLossPct:   cfg.Tracker.StopLossPct,
	}

	reporter := &reporting.Reporter{
		Repo:     store,
		Notifier: notifier,
		Logger:   logger,
		Horizons: cfg.Backtest.Horizons,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(handler.RequestLogMiddleware(logger))
	engine.Use(handler.RequireBearerMiddleware(cfg.Server.APIToken))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Started: time.Now().UTC()}
	healthHandler.Register(engine)
	oppHandler := &handler.OpportunityHandler{Repo: store}
	oppHandler.Register(engine)
	backtestHandler := &handler.BacktestHandler{Repo: store, Runner: backtestRunner}
	backtestHandler.Register(engine)
	leaderboardHandler := &handler.LeaderboardHandler{Repo: store, Horizons: cfg.Backtest.Horizons}
	leaderboardHandler.Register(engine)
	statusHandler := &handler.StatusHandler{Scanners: scanners, Hub: hub}
	statusHandler.Register(engine)
	streamHandler := &handler.StreamHandler{Hub: hub}
	streamHandler.Register(engine)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		if notifier != nil {
			if _, err := cronRunner.Add("performance_report", cfg.Cron.Report, reporter.Run); err != nil {
				logger.Warn("cron register performance report failed", zap.Error(err))
			}
		}
		_, err = cronRunner.Add("backtest_sweep", cfg.Cron.BacktestSweep, func(ctx context.Context) error {
			stats, err := backtestRunner.RunPending(ctx)
			if err != nil {
				return err
			}
			if stats.Candidates > 0 {
				logger.Info("cron backtest sweep ok",
					zap.Int("candidates", stats.Candidates),
					zap.Int("evaluated", stats.Evaluated),
					zap.Int("skipped", stats.Skipped),
					zap.Int("failed", stats.Failed),
				)
			}
			return nil
		})
		if err != nil {
			logger.Warn("cron register backtest sweep failed", zap.Error(err))
		}
		_, err = cronRunner.Add("dedup_prune", cfg.Cron.DedupPrune, func(ctx context.Context) error {
			now := time.Now().UTC()
			for _, orch := range scanners {
				if n := orch.PruneDedup(now); n > 0 {
					logger.Debug("pruned dedup entries", zap.String("scanner", orch.Name), zap.Int("count", n))
				}
			}
			return nil
		})
		if err != nil {
			logger.Warn("cron register dedup prune failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	for _, orch := range scanners {
		go func() {
			logger.Info("scanner starting",
				zap.String("scanner", orch.Name),
				zap.Duration("interval", orch.Interval),
				zap.Int("watchlist", len(orch.Watchlist)),
			)
			if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("scanner stopped", zap.String("scanner", orch.Name), zap.Error(err))
			}
		}()
	}

	if cfg.Tracker.Enabled {
		go func() {
			if err := positionTracker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("tracker stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
