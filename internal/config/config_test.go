package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validBase returns a config that passes Validate for full mode.
func validBase() Config {
	cfg := Defaults()
	cfg.Alpaca.ApiKey = "key"
	cfg.Alpaca.ApiSecret = "secret"
	cfg.Screener.Watchlist = []string{"NVDA", "AMD"}
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	cfg := validBase()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "simulate" }, "unknown mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"missing alpaca keys", func(c *Config) { c.Alpaca.ApiKey = "" }, "alpaca"},
		{"bad feed", func(c *Config) { c.Alpaca.Feed = "opra" }, "feed"},
		{"stop pct out of range", func(c *Config) { c.Trading.StopPct = 1.5 }, "stop_pct"},
		{"risk frac out of range", func(c *Config) { c.Trading.MaxRiskFrac = 0 }, "max_risk_frac"},
		{"breakeven above trail trigger", func(c *Config) {
			c.Trading.BreakevenTriggerPct = 0.12
		}, "breakeven_trigger_pct"},
		{"bad report time", func(c *Config) { c.Trading.ReportTime = "25:99" }, "report_time"},
		{"empty watchlist", func(c *Config) { c.Screener.Watchlist = nil }, "watchlist"},
		{"earnings without url", func(c *Config) { c.Earnings.Enabled = true }, "calendar_url"},
		{"archive without bucket", func(c *Config) {
			c.Archive.Enabled = true
			c.S3.Bucket = ""
		}, "bucket"},
		{"bad server port", func(c *Config) { c.Server.Port = 70000 }, "port"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBase()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tc.wantSub)
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("Validate() = %q, want substring %q", err, tc.wantSub)
			}
		})
	}
}

func TestValidateArchiveModeSkipsAlpaca(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "archive"
	cfg.Archive.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil for archive mode without alpaca keys", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "trade"
log_level = "debug"

[trading]
starting_capital = 50000.0
poll_interval = "30m"

[screener]
watchlist = ["NVDA", "PLTR"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Mode != "trade" {
		t.Errorf("Mode = %q, want %q", cfg.Mode, "trade")
	}
	if cfg.Trading.StartingCapital != 50000 {
		t.Errorf("StartingCapital = %g, want 50000", cfg.Trading.StartingCapital)
	}
	if cfg.Trading.PollInterval.Duration != 30*time.Minute {
		t.Errorf("PollInterval = %v, want 30m", cfg.Trading.PollInterval.Duration)
	}
	// Untouched sections keep their defaults.
	if cfg.Trading.MaxPositions != 6 {
		t.Errorf("MaxPositions = %d, want default 6", cfg.Trading.MaxPositions)
	}
	if cfg.Trading.StopPct != 0.07 {
		t.Errorf("StopPct = %g, want default 0.07", cfg.Trading.StopPct)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RADAR_MODE", "report")
	t.Setenv("RADAR_TRADING_MAX_POSITIONS", "4")
	t.Setenv("RADAR_SCREENER_WATCHLIST", "NVDA, AMD ,MSFT")
	t.Setenv("RADAR_TRADING_POLL_INTERVAL", "5m")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Mode != "report" {
		t.Errorf("Mode = %q, want %q", cfg.Mode, "report")
	}
	if cfg.Trading.MaxPositions != 4 {
		t.Errorf("MaxPositions = %d, want 4", cfg.Trading.MaxPositions)
	}
	if want := []string{"NVDA", "AMD", "MSFT"}; len(cfg.Screener.Watchlist) != len(want) {
		t.Errorf("Watchlist = %v, want %v", cfg.Screener.Watchlist, want)
	} else {
		for i, ticker := range want {
			if cfg.Screener.Watchlist[i] != ticker {
				t.Errorf("Watchlist[%d] = %q, want %q", i, cfg.Screener.Watchlist[i], ticker)
			}
		}
	}
	if cfg.Trading.PollInterval.Duration != 5*time.Minute {
		t.Errorf("PollInterval = %v, want 5m", cfg.Trading.PollInterval.Duration)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := validBase()
	cfg.Postgres.Password = "pg-secret"
	cfg.Notify.TelegramToken = "bot-token"

	red := RedactedConfig(&cfg)

	if red.Postgres.Password != "***" {
		t.Errorf("Postgres.Password = %q, want redacted", red.Postgres.Password)
	}
	if red.Alpaca.ApiSecret != "***" {
		t.Errorf("Alpaca.ApiSecret = %q, want redacted", red.Alpaca.ApiSecret)
	}
	if red.Notify.TelegramToken != "***" {
		t.Errorf("Notify.TelegramToken = %q, want redacted", red.Notify.TelegramToken)
	}
	// Originals are untouched.
	if cfg.Postgres.Password != "pg-secret" {
		t.Errorf("original Postgres.Password mutated to %q", cfg.Postgres.Password)
	}
	// Redacted slice copies do not alias the original.
	red.Screener.Watchlist[0] = "ZZZZ"
	if cfg.Screener.Watchlist[0] == "ZZZZ" {
		t.Error("redacted watchlist aliases the original slice")
	}
}
