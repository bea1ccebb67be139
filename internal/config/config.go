package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	ThetaData ThetaDataConfig `mapstructure:"thetadata"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`

	Scan       ScanConfig       `mapstructure:"scan"`
	Whale      WhaleConfig      `mapstructure:"whale"`
	DayTrading DayTradingConfig `mapstructure:"day_trading"`
	Baseline   BaselineConfig   `mapstructure:"baseline"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
	APIToken string `mapstructure:"api_token"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Report        string `mapstructure:"report"`
	BacktestSweep string `mapstructure:"backtest_sweep"`
	DedupPrune    string `mapstructure:"dedup_prune"`
}

type ThetaDataConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestsPerSec  float64       `mapstructure:"requests_per_sec"`
	MaxRetryElapsed time.Duration `mapstructure:"max_retry_elapsed"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type ScanConfig struct {
	Watchlist      []string      `mapstructure:"watchlist"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	DedupWindow    time.Duration `mapstructure:"dedup_window"`
}

type WhaleConfig struct {
	Enabled                 bool          `mapstructure:"enabled"`
	MinNotionalValue        float64       `mapstructure:"min_notional_value"`
	UnusualVolumeMultiplier float64       `mapstructure:"unusual_volume_multiplier"`
	MinTradeSize            int64         `mapstructure:"min_trade_size"`
	ScanInterval            time.Duration `mapstructure:"scan_interval"`
}

type DayTradingConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MinVolume       int64         `mapstructure:"min_volume"`
	MinOpenInterest int64         `mapstructure:"min_open_interest"`
	MinIV           float64       `mapstructure:"min_iv"`
	ScanInterval    time.Duration `mapstructure:"scan_interval"`
}

type BaselineConfig struct {
	LookbackDays int           `mapstructure:"lookback_days"`
	BarInterval  time.Duration `mapstructure:"bar_interval"`
}

type ScoringConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	MinProbability float64 `mapstructure:"min_probability"`
}

type TrackerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	ProfitTargets []float64     `mapstructure:"profit_targets"`
	StopLossPct   float64       `mapstructure:"stop_loss_pct"`
}

type BacktestConfig struct {
	Horizons    []string      `mapstructure:"horizons"`
	EntryBasis  string        `mapstructure:"entry_basis"`
	Tolerance   time.Duration `mapstructure:"tolerance"`
	Concurrency int           `mapstructure:"concurrency"`
	SweepLimit  int           `mapstructure:"sweep_limit"`
	SweepMinAge time.Duration `mapstructure:"sweep_min_age"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.api_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.report", "@every 1h")
	v.SetDefault("cron.backtest_sweep", "@every 30m")
	v.SetDefault("cron.dedup_prune", "@every 10m")
	v.SetDefault("thetadata.base_url", "http://127.0.0.1:25510")
	v.SetDefault("thetadata.timeout", "15s")
	v.SetDefault("thetadata.requests_per_sec", 5)
	v.SetDefault("thetadata.max_retry_elapsed", "30s")
	v.SetDefault("thetadata.breaker_failures", 5)
	v.SetDefault("thetadata.breaker_cooldown", "60s")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("scan.watchlist", []string{
		"SPY", "QQQ", "AAPL", "MSFT", "AMZN", "GOOGL", "TSLA", "META", "NVDA",
		"AMD", "KR", "WMT", "LCID", "RIVN", "GME", "AMC", "PLTR", "NIO",
	})
	v.SetDefault("scan.max_concurrency", 4)
	v.SetDefault("scan.dedup_window", "6h")
	v.SetDefault("whale.enabled", true)
	v.SetDefault("whale.min_notional_value", 1000000)
	v.SetDefault("whale.unusual_volume_multiplier", 3.0)
	v.SetDefault("whale.min_trade_size", 100)
	v.SetDefault("whale.scan_interval", "300s")
	v.SetDefault("day_trading.enabled", true)
	v.SetDefault("day_trading.min_volume", 100)
	v.SetDefault("day_trading.min_open_interest", 500)
	v.SetDefault("day_trading.min_iv", 0.70)
	v.SetDefault("day_trading.scan_interval", "60s")
	v.SetDefault("baseline.lookback_days", 30)
	v.SetDefault("baseline.bar_interval", "30m")
	v.SetDefault("scoring.enabled", true)
	v.SetDefault("scoring.min_probability", 60)
	v.SetDefault("tracker.enabled", true)
	v.SetDefault("tracker.interval", "60s")
	v.SetDefault("tracker.profit_targets", []float64{5, 10, 15, 20, 30})
	v.SetDefault("tracker.stop_loss_pct", -15)
	v.SetDefault("backtest.horizons", []string{"1m", "5m", "10m", "15m", "20m", "30m", "1h"})
	v.SetDefault("backtest.entry_basis", "detection_price")
	v.SetDefault("backtest.tolerance", "1m")
	v.SetDefault("backtest.concurrency", 4)
	v.SetDefault("backtest.sweep_limit", 200)
	v.SetDefault("backtest.sweep_min_age", "2h")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects configurations the scanners cannot start with. It runs
// once at startup; nothing re-validates mid-run.
func Validate(cfg Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("config: db.dsn is required")
	}
	if len(cfg.Scan.Watchlist) == 0 {
		return fmt.Errorf("config: scan.watchlist must not be empty")
	}
	if cfg.Scan.MaxConcurrency <= 0 {
		return fmt.Errorf("config: scan.max_concurrency must be positive")
	}
	if cfg.Whale.Enabled {
		if cfg.Whale.MinNotionalValue <= 0 {
			return fmt.Errorf("config: whale.min_notional_value must be positive")
		}
		if cfg.Whale.UnusualVolumeMultiplier <= 0 {
			return fmt.Errorf("config: whale.unusual_volume_multiplier must be positive")
		}
		if cfg.Whale.MinTradeSize < 0 {
			return fmt.Errorf("config: whale.min_trade_size must not be negative")
		}
	}
	if cfg.DayTrading.Enabled {
		if cfg.DayTrading.MinVolume < 0 || cfg.DayTrading.MinOpenInterest < 0 {
			return fmt.Errorf("config: day_trading thresholds must not be negative")
		}
		if cfg.DayTrading.MinIV < 0 || cfg.DayTrading.MinIV > 1 {
			return fmt.Errorf("config: day_trading.min_iv must be within [0, 1]")
		}
	}
	if cfg.Baseline.LookbackDays <= 0 {
		return fmt.Errorf("config: baseline.lookback_days must be positive")
	}
	if cfg.Baseline.BarInterval <= 0 {
		return fmt.Errorf("config: baseline.bar_interval must be positive")
	}
	if cfg.Scoring.MinProbability < 0 || cfg.Scoring.MinProbability > 100 {
		return fmt.Errorf("config: scoring.min_probability must be within [0, 100]")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == 0) {
		return fmt.Errorf("config: telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	switch cfg.Backtest.EntryBasis {
	case "", "detection_price", "next_bar_open":
	default:
		return fmt.Errorf("config: backtest.entry_basis %q is not supported", cfg.Backtest.EntryBasis)
	}
	return nil
}
