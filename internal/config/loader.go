package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RADAR_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RADAR_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "RADAR_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "RADAR_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "RADAR_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "RADAR_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "RADAR_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "RADAR_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "RADAR_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "RADAR_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "RADAR_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "RADAR_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "RADAR_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RADAR_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RADAR_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RADAR_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RADAR_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RADAR_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "RADAR_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RADAR_S3_REGION")
	setStr(&cfg.S3.Bucket, "RADAR_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RADAR_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RADAR_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RADAR_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RADAR_S3_FORCE_PATH_STYLE")

	// ── Alpaca ──
	setStr(&cfg.Alpaca.ApiKey, "RADAR_ALPACA_API_KEY")
	setStr(&cfg.Alpaca.ApiSecret, "RADAR_ALPACA_API_SECRET")
	setStr(&cfg.Alpaca.DataBaseURL, "RADAR_ALPACA_DATA_BASE_URL")
	setStr(&cfg.Alpaca.Feed, "RADAR_ALPACA_FEED")
	setStr(&cfg.Alpaca.StreamURL, "RADAR_ALPACA_STREAM_URL")
	setBool(&cfg.Alpaca.StreamEnabled, "RADAR_ALPACA_STREAM_ENABLED")

	// ── Trading ──
	setFloat64(&cfg.Trading.StartingCapital, "RADAR_TRADING_STARTING_CAPITAL")
	setInt(&cfg.Trading.MaxPositions, "RADAR_TRADING_MAX_POSITIONS")
	setFloat64(&cfg.Trading.MinCash, "RADAR_TRADING_MIN_CASH")
	setFloat64(&cfg.Trading.MaxRiskFrac, "RADAR_TRADING_MAX_RISK_FRAC")
	setFloat64(&cfg.Trading.MaxPositionFrac, "RADAR_TRADING_MAX_POSITION_FRAC")
	setFloat64(&cfg.Trading.StopPct, "RADAR_TRADING_STOP_PCT")
	setFloat64(&cfg.Trading.TargetPct, "RADAR_TRADING_TARGET_PCT")
	setFloat64(&cfg.Trading.TrailPct, "RADAR_TRADING_TRAIL_PCT")
	setFloat64(&cfg.Trading.TrailTriggerPct, "RADAR_TRADING_TRAIL_TRIGGER_PCT")
	setFloat64(&cfg.Trading.BreakevenTriggerPct, "RADAR_TRADING_BREAKEVEN_TRIGGER_PCT")
	setDuration(&cfg.Trading.PollInterval, "RADAR_TRADING_POLL_INTERVAL")
	setStr(&cfg.Trading.Benchmark, "RADAR_TRADING_BENCHMARK")
	setBool(&cfg.Trading.AutoEnter, "RADAR_TRADING_AUTO_ENTER")
	setStr(&cfg.Trading.ReportTime, "RADAR_TRADING_REPORT_TIME")

	// ── Screener ──
	setStringSlice(&cfg.Screener.Watchlist, "RADAR_SCREENER_WATCHLIST")
	setInt(&cfg.Screener.TrendBars, "RADAR_SCREENER_TREND_BARS")
	setInt(&cfg.Screener.BaseBars, "RADAR_SCREENER_BASE_BARS")
	setInt(&cfg.Screener.Concurrency, "RADAR_SCREENER_CONCURRENCY")
	setInt(&cfg.Screener.MinBaseScore, "RADAR_SCREENER_MIN_BASE_SCORE")
	setDuration(&cfg.Screener.ScanInterval, "RADAR_SCREENER_SCAN_INTERVAL")

	// ── Earnings ──
	setBool(&cfg.Earnings.Enabled, "RADAR_EARNINGS_ENABLED")
	setStr(&cfg.Earnings.CalendarURL, "RADAR_EARNINGS_CALENDAR_URL")
	setInt(&cfg.Earnings.BufferDays, "RADAR_EARNINGS_BUFFER_DAYS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "RADAR_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "RADAR_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "RADAR_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "RADAR_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "RADAR_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "RADAR_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.ApiKey, "RADAR_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "RADAR_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "RADAR_SERVER_RATE_WINDOW")
	setBool(&cfg.Server.WSEnabled, "RADAR_SERVER_WS_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "RADAR_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RADAR_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RADAR_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "RADAR_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "RADAR_MODE")
	setStr(&cfg.LogLevel, "RADAR_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
