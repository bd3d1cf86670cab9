package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "stockradar/internal/blob/s3"
	"stockradar/internal/cache/redis"
	"stockradar/internal/config"
	"stockradar/internal/domain"
	"stockradar/internal/notify"
	"stockradar/internal/platform/alpaca"
	"stockradar/internal/store/memory"
	"stockradar/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Ledger and stores
	Ledger    domain.Ledger
	Snapshots domain.SnapshotStore
	Audit     domain.AuditStore
	Earnings  domain.EarningsStore

	// Caches and bus
	PriceCache  domain.PriceCache
	Bus         domain.EventBus
	RateLimiter domain.RateLimiter
	Locks       domain.LockManager

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Market data
	Feed *alpaca.Client

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres returns true for modes that touch the ledger.
func needsPostgres(mode string) bool {
	switch mode {
	case "trade", "report", "archive", "full":
		return true
	default:
		return false
	}
}

// needsRedis returns true for modes that use the price cache and event bus.
func needsRedis(mode string) bool {
	switch mode {
	case "trade", "report", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true when a mode will run the cold-storage archiver.
func needsS3(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.Mode)
	return mode == "archive" || (mode == "full" && cfg.Archive.Enabled)
}

// needsFeed returns true for modes that read market data.
func needsFeed(mode string) bool {
	return mode != "archive"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (only for modes that touch the ledger) ---
	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		ledger, err := postgres.NewLedger(ctx, pool, cfg.Trading.StartingCapital)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: ledger: %w", err)
		}
		deps.Ledger = ledger
		deps.Snapshots = postgres.NewSnapshotStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
		deps.Earnings = postgres.NewEarningsStore(pool)
	} else {
		// Scan mode runs against the market only; in-memory stores cover
		// the earnings gate and the audit trail for the session.
		deps.Audit = memory.NewAuditStore()
		deps.Earnings = memory.NewEarningsStore()
	}

	// --- Redis (price cache, event bus) ---
	if needsRedis(mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.Bus = redis.NewEventBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
	}

	// --- S3 blob storage (archival only) ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.Config{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		if deps.Ledger != nil && deps.Snapshots != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.Ledger, deps.Snapshots, deps.Audit)
		}
	}

	// --- Market data ---
	if needsFeed(mode) {
		deps.Feed = alpaca.NewClient(alpaca.Config{
			APIKey:    cfg.Alpaca.ApiKey,
			APISecret: cfg.Alpaca.ApiSecret,
			BaseURL:   cfg.Alpaca.DataBaseURL,
			Feed:      cfg.Alpaca.Feed,
		})
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
