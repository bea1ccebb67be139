package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "db:\n  dsn: postgres://test\n")

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	if cfg.DB.DSN != "postgres://test" {
		t.Fatalf("dsn=%q", cfg.DB.DSN)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("http_addr=%q", cfg.Server.HTTPAddr)
	}
	if cfg.Whale.MinNotionalValue != 1000000 {
		t.Fatalf("min_notional_value=%v", cfg.Whale.MinNotionalValue)
	}
	if cfg.Whale.UnusualVolumeMultiplier != 3.0 {
		t.Fatalf("unusual_volume_multiplier=%v", cfg.Whale.UnusualVolumeMultiplier)
	}
	if cfg.Whale.ScanInterval != 300*time.Second {
		t.Fatalf("scan_interval=%v", cfg.Whale.ScanInterval)
	}
	if cfg.DayTrading.MinIV != 0.70 {
		t.Fatalf("min_iv=%v", cfg.DayTrading.MinIV)
	}
	if cfg.Scan.DedupWindow != 6*time.Hour {
		t.Fatalf("dedup_window=%v", cfg.Scan.DedupWindow)
	}
	if len(cfg.Scan.Watchlist) == 0 {
		t.Fatalf("watchlist empty")
	}
	if cfg.Backtest.EntryBasis != "detection_price" {
		t.Fatalf("entry_basis=%q", cfg.Backtest.EntryBasis)
	}
	if len(cfg.Backtest.Horizons) != 7 {
		t.Fatalf("horizons=%v", cfg.Backtest.Horizons)
	}
	if len(cfg.Tracker.ProfitTargets) != 5 || cfg.Tracker.ProfitTargets[0] != 5 {
		t.Fatalf("profit_targets=%v", cfg.Tracker.ProfitTargets)
	}
	if cfg.Tracker.StopLossPct != -15 {
		t.Fatalf("stop_loss_pct=%v", cfg.Tracker.StopLossPct)
	}
	if cfg.Scoring.MinProbability != 60 {
		t.Fatalf("min_probability=%v", cfg.Scoring.MinProbability)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"db:",
		"  dsn: postgres://test",
		"scan:",
		"  watchlist: [SPY, QQQ]",
		"  max_concurrency: 8",
		"whale:",
		"  min_notional_value: 2500000",
		"  scan_interval: 120s",
		"tracker:",
		"  profit_targets: [10, 25]",
		"  stop_loss_pct: -20",
		"backtest:",
		"  entry_basis: next_bar_open",
		"",
	}, "\n"))

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	if len(cfg.Scan.Watchlist) != 2 || cfg.Scan.Watchlist[0] != "SPY" {
		t.Fatalf("watchlist=%v", cfg.Scan.Watchlist)
	}
	if cfg.Scan.MaxConcurrency != 8 {
		t.Fatalf("max_concurrency=%d", cfg.Scan.MaxConcurrency)
	}
	if cfg.Whale.MinNotionalValue != 2500000 {
		t.Fatalf("min_notional_value=%v", cfg.Whale.MinNotionalValue)
	}
	if cfg.Whale.ScanInterval != 2*time.Minute {
		t.Fatalf("scan_interval=%v", cfg.Whale.ScanInterval)
	}
	if len(cfg.Tracker.ProfitTargets) != 2 || cfg.Tracker.ProfitTargets[1] != 25 {
		t.Fatalf("profit_targets=%v", cfg.Tracker.ProfitTargets)
	}
	if cfg.Backtest.EntryBasis != "next_bar_open" {
		t.Fatalf("entry_basis=%q", cfg.Backtest.EntryBasis)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false); err == nil {
		t.Fatalf("want error for missing file")
	}
}

func TestLoad_EnvOnlySkipsFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("http_addr=%q", cfg.Server.HTTPAddr)
	}
}

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := Config{}
	cfg.DB.DSN = "postgres://test"
	cfg.Scan.Watchlist = []string{"SPY"}
	cfg.Scan.MaxConcurrency = 4
	cfg.Whale.Enabled = true
	cfg.Whale.MinNotionalValue = 1000000
	cfg.Whale.UnusualVolumeMultiplier = 3
	cfg.Whale.MinTradeSize = 100
	cfg.DayTrading.Enabled = true
	cfg.DayTrading.MinVolume = 100
	cfg.DayTrading.MinOpenInterest = 500
	cfg.DayTrading.MinIV = 0.7
	cfg.Baseline.LookbackDays = 30
	cfg.Baseline.BarInterval = 30 * time.Minute
	cfg.Scoring.MinProbability = 60
	cfg.Backtest.EntryBasis = "detection_price"
	return cfg
}

func TestValidate(t *testing.T) {
	if err := Validate(validConfig(t)); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dsn", func(c *Config) { c.DB.DSN = "" }},
		{"empty watchlist", func(c *Config) { c.Scan.Watchlist = nil }},
		{"zero concurrency", func(c *Config) { c.Scan.MaxConcurrency = 0 }},
		{"zero notional floor", func(c *Config) { c.Whale.MinNotionalValue = 0 }},
		{"zero multiplier", func(c *Config) { c.Whale.UnusualVolumeMultiplier = 0 }},
		{"negative trade size", func(c *Config) { c.Whale.MinTradeSize = -1 }},
		{"iv above one", func(c *Config) { c.DayTrading.MinIV = 1.5 }},
		{"zero lookback", func(c *Config) { c.Baseline.LookbackDays = 0 }},
		{"probability above 100", func(c *Config) { c.Scoring.MinProbability = 120 }},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true }},
		{"bad entry basis", func(c *Config) { c.Backtest.EntryBasis = "vwap" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("want error")
			}
		})
	}
}

func TestValidate_DisabledDetectorsSkipThresholdChecks(t *testing.T) {
	cfg := validConfig(t)
	cfg.Whale.Enabled = false
	cfg.Whale.MinNotionalValue = 0
	cfg.DayTrading.Enabled = false
	cfg.DayTrading.MinIV = 5

	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled detector thresholds must not be validated: %v", err)
	}
}
