// Package config defines the top-level configuration for the stockradar
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by RADAR_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Alpaca   AlpacaConfig   `toml:"alpaca"`
	Trading  TradingConfig  `toml:"trading"`
	Screener ScreenerConfig `toml:"screener"`
	Earnings EarningsConfig `toml:"earnings"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// AlpacaConfig holds market-data API credentials and feed selection. Only
// the data API is used; no orders are ever sent.
type AlpacaConfig struct {
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	DataBaseURL   string `toml:"data_base_url"`
	Feed          string `toml:"feed"`
	StreamURL     string `toml:"stream_url"`
	StreamEnabled bool   `toml:"stream_enabled"`
}

// TradingConfig holds the paper portfolio's risk and exit parameters. All
// *Pct and *Frac fields are fractions, not percentages.
type TradingConfig struct {
	StartingCapital     float64  `toml:"starting_capital"`
	MaxPositions        int      `toml:"max_positions"`
	MinCash             float64  `toml:"min_cash"`
	MaxRiskFrac         float64  `toml:"max_risk_frac"`
	MaxPositionFrac     float64  `toml:"max_position_frac"`
	StopPct             float64  `toml:"stop_pct"`
	TargetPct           float64  `toml:"target_pct"`
	TrailPct            float64  `toml:"trail_pct"`
	TrailTriggerPct     float64  `toml:"trail_trigger_pct"`
	BreakevenTriggerPct float64  `toml:"breakeven_trigger_pct"`
	PollInterval        duration `toml:"poll_interval"`
	Benchmark           string   `toml:"benchmark"`
	AutoEnter           bool     `toml:"auto_enter"`
	ReportTime          string   `toml:"report_time"` // wall-clock HH:MM (UTC) for the evening routine
}

// ScreenerConfig holds the momentum scan parameters.
type ScreenerConfig struct {
	Watchlist    []string `toml:"watchlist"`
	TrendBars    int      `toml:"trend_bars"`
	BaseBars     int      `toml:"base_bars"`
	Concurrency  int      `toml:"concurrency"`
	MinBaseScore int      `toml:"min_base_score"`
	ScanInterval duration `toml:"scan_interval"`
}

// EarningsConfig holds the earnings calendar collector parameters.
type EarningsConfig struct {
	Enabled     bool   `toml:"enabled"`
	CalendarURL string `toml:"calendar_url"`
	BufferDays  int    `toml:"buffer_days"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	ApiKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
	WSEnabled   bool     `toml:"ws_enabled"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "stockradar",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "stockradar-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Alpaca: AlpacaConfig{
			Feed:          "iex",
			StreamURL:     "wss://stream.data.alpaca.markets/v2/iex",
			StreamEnabled: false,
		},
		Trading: TradingConfig{
			StartingCapital:     100_000,
			MaxPositions:        6,
			MinCash:             1_000,
			MaxRiskFrac:         0.02,
			MaxPositionFrac:     0.20,
			StopPct:             0.07,
			TargetPct:           0.20,
			TrailPct:            0.10,
			TrailTriggerPct:     0.10,
			BreakevenTriggerPct: 0.05,
			PollInterval:        duration{15 * time.Minute},
			Benchmark:           "SPY",
			AutoEnter:           true,
			ReportTime:          "21:15",
		},
		Screener: ScreenerConfig{
			TrendBars:    320,
			BaseBars:     90,
			Concurrency:  8,
			MinBaseScore: 40,
			ScanInterval: duration{30 * time.Minute},
		},
		Earnings: EarningsConfig{
			Enabled:    false,
			BufferDays: 5,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 365,
			Cron:          "0 3 1 * *",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateWindow:  duration{time.Minute},
			WSEnabled:   true,
		},
		Notify: NotifyConfig{
			Events: []string{"position_opened", "position_closed", "stop_adjusted", "snapshot_taken"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"trade":   true,
	"report":  true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// fraction reports whether v lies inside (0, 1).
func fraction(v float64) bool {
	return v > 0 && v < 1
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, trade, report, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Alpaca — every mode except archive reads market data.
	if mode != "archive" {
		if c.Alpaca.ApiKey == "" || c.Alpaca.ApiSecret == "" {
			errs = append(errs, "alpaca: api_key and api_secret are required for mode "+c.Mode)
		}
		if c.Alpaca.Feed != "" && c.Alpaca.Feed != "iex" && c.Alpaca.Feed != "sip" {
			errs = append(errs, fmt.Sprintf("alpaca: feed must be %q or %q, got %q", "iex", "sip", c.Alpaca.Feed))
		}
		if c.Alpaca.StreamEnabled && c.Alpaca.StreamURL == "" {
			errs = append(errs, "alpaca: stream_url is required when stream_enabled is true")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only the archive paths need object storage.
	if c.Archive.Enabled || mode == "archive" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archival is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archival is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Trading
	if c.Trading.StartingCapital <= 0 {
		errs = append(errs, "trading: starting_capital must be > 0")
	}
	if c.Trading.MaxPositions < 1 {
		errs = append(errs, "trading: max_positions must be >= 1")
	}
	if !fraction(c.Trading.MaxRiskFrac) {
		errs = append(errs, fmt.Sprintf("trading: max_risk_frac must be in (0, 1), got %g", c.Trading.MaxRiskFrac))
	}
	if !fraction(c.Trading.MaxPositionFrac) {
		errs = append(errs, fmt.Sprintf("trading: max_position_frac must be in (0, 1), got %g", c.Trading.MaxPositionFrac))
	}
	if !fraction(c.Trading.StopPct) {
		errs = append(errs, fmt.Sprintf("trading: stop_pct must be in (0, 1), got %g", c.Trading.StopPct))
	}
	if c.Trading.TargetPct <= 0 {
		errs = append(errs, fmt.Sprintf("trading: target_pct must be > 0, got %g", c.Trading.TargetPct))
	}
	if !fraction(c.Trading.TrailPct) {
		errs = append(errs, fmt.Sprintf("trading: trail_pct must be in (0, 1), got %g", c.Trading.TrailPct))
	}
	if !fraction(c.Trading.TrailTriggerPct) {
		errs = append(errs, fmt.Sprintf("trading: trail_trigger_pct must be in (0, 1), got %g", c.Trading.TrailTriggerPct))
	}
	if !fraction(c.Trading.BreakevenTriggerPct) {
		errs = append(errs, fmt.Sprintf("trading: breakeven_trigger_pct must be in (0, 1), got %g", c.Trading.BreakevenTriggerPct))
	}
	if c.Trading.BreakevenTriggerPct >= c.Trading.TrailTriggerPct {
		errs = append(errs, "trading: breakeven_trigger_pct must be below trail_trigger_pct")
	}
	if c.Trading.ReportTime != "" {
		if _, err := time.Parse("15:04", c.Trading.ReportTime); err != nil {
			errs = append(errs, fmt.Sprintf("trading: report_time %q is not HH:MM", c.Trading.ReportTime))
		}
	}

	// Screener — scanning modes need a watchlist to scan.
	if mode == "scan" || mode == "trade" || mode == "full" {
		if len(c.Screener.Watchlist) == 0 {
			errs = append(errs, "screener: watchlist must not be empty for mode "+c.Mode)
		}
	}
	if c.Screener.Concurrency < 1 {
		errs = append(errs, "screener: concurrency must be >= 1")
	}

	// Earnings
	if c.Earnings.Enabled && c.Earnings.CalendarURL == "" {
		errs = append(errs, "earnings: calendar_url must not be empty when enabled")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
