package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"stockradar/internal/domain"
	"stockradar/internal/feed"
	"stockradar/internal/notify"
	"stockradar/internal/pipeline"
	"stockradar/internal/platform/alpaca"
	"stockradar/internal/policy"
	"stockradar/internal/screener"
	"stockradar/internal/server"
	"stockradar/internal/server/handler"
	"stockradar/internal/server/ws"
	"stockradar/internal/trader"
)

// portfolioLockKey is the distributed single-writer lock taken by trading
// modes so two processes never mutate the same portfolio.
const portfolioLockKey = "portfolio"

// portfolioLockTTL bounds how long a crashed process can hold the write
// lock before another may take over.
const portfolioLockTTL = 6 * time.Hour

// earningsCollector builds the earnings gate when enabled. It returns nil
// when the collector is off so callers can pass an untyped nil checker.
func (a *App) earningsCollector(deps *Dependencies) *pipeline.EarningsCollector {
	if !a.cfg.Earnings.Enabled {
		return nil
	}
	return pipeline.NewEarningsCollector(
		deps.Earnings,
		a.cfg.Earnings.CalendarURL,
		a.cfg.Earnings.BufferDays,
		a.logger,
	)
}

// policyParams maps the trading config onto the policy engine's parameters.
func (a *App) policyParams() policy.Params {
	return policy.Params{
		StopPct:             a.cfg.Trading.StopPct,
		TargetPct:           a.cfg.Trading.TargetPct,
		TrailPct:            a.cfg.Trading.TrailPct,
		TrailTriggerPct:     a.cfg.Trading.TrailTriggerPct,
		BreakevenTriggerPct: a.cfg.Trading.BreakevenTriggerPct,
	}
}

// buildTrader constructs the trade coordinator from config.
func (a *App) buildTrader(deps *Dependencies, earnings *pipeline.EarningsCollector) *trader.Service {
	var checker trader.EarningsChecker
	if earnings != nil {
		checker = earnings
	}
	return trader.New(
		deps.Ledger,
		deps.Bus,
		deps.Audit,
		checker,
		trader.Config{
			MaxPositions:    a.cfg.Trading.MaxPositions,
			MinCash:         a.cfg.Trading.MinCash,
			Policy:          a.policyParams(),
			MaxRiskFrac:     a.cfg.Trading.MaxRiskFrac,
			MaxPositionFrac: a.cfg.Trading.MaxPositionFrac,
		},
		a.logger,
	)
}

// buildScanner constructs the momentum screener from config.
func (a *App) buildScanner(deps *Dependencies, earnings *pipeline.EarningsCollector) *screener.Scanner {
	var checker screener.EarningsChecker
	if earnings != nil {
		checker = earnings
	}
	return screener.New(deps.Feed, checker, screener.Config{
		Watchlist:    a.cfg.Screener.Watchlist,
		TrendBars:    a.cfg.Screener.TrendBars,
		BaseBars:     a.cfg.Screener.BaseBars,
		Concurrency:  a.cfg.Screener.Concurrency,
		MinBaseScore: a.cfg.Screener.MinBaseScore,
	}, a.logger)
}

// acquirePortfolioLock takes the cross-process write lock before a mode
// starts mutating the ledger. The returned release function must run on
// shutdown.
func (a *App) acquirePortfolioLock(ctx context.Context, deps *Dependencies) (func(), error) {
	if deps.Locks == nil {
		return func() {}, nil
	}
	release, err := deps.Locks.Acquire(ctx, portfolioLockKey, portfolioLockTTL)
	if err != nil {
		return nil, fmt.Errorf("app: portfolio write lock: %w", err)
	}
	return release, nil
}

// ScanMode runs the morning routine once: refresh earnings dates, list the
// near-pivot watch names, and report confirmed breakouts. Nothing is traded.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode",
		slog.Int("watchlist", len(a.cfg.Screener.Watchlist)),
	)

	earnings := a.earningsCollector(deps)
	if earnings != nil {
		if err := earnings.RefreshAll(ctx, a.cfg.Screener.Watchlist); err != nil {
			a.logger.WarnContext(ctx, "scan mode: earnings refresh failed",
				slog.String("error", err.Error()),
			)
		}
	}

	scanner := a.buildScanner(deps, earnings)

	watch, err := scanner.MorningWatch(ctx)
	if err != nil {
		return fmt.Errorf("scan mode: morning watch: %w", err)
	}
	for _, item := range watch {
		a.logger.InfoContext(ctx, "watchlist setup",
			slog.String("ticker", item.Ticker),
			slog.Float64("price", item.Price),
			slog.Float64("pivot", item.Pivot),
			slog.Float64("distance_pct", item.DistancePct),
			slog.Int("score", item.Score),
			slog.Bool("near_breakout", item.NearBreakout),
		)
	}

	candidates, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}
	for _, cand := range candidates {
		a.logger.InfoContext(ctx, "confirmed breakout",
			slog.String("ticker", cand.Ticker),
			slog.Float64("price", cand.Price),
			slog.Float64("pivot", cand.Pivot),
			slog.String("quality", string(cand.Quality)),
			slog.Int("score", cand.Score),
		)
	}

	if title, msg := notify.WatchReport(watch, candidates); title != "" {
		if err := deps.Notifier.NotifyAll(ctx, title, msg); err != nil {
			a.logger.WarnContext(ctx, "scan mode: notify failed",
				slog.String("error", err.Error()),
			)
		}
	}

	a.logger.InfoContext(ctx, "scan complete",
		slog.Int("watching", len(watch)),
		slog.Int("breakouts", len(candidates)),
	)
	return nil
}

// TradeMode runs the live loop: price polling (plus the optional trade
// stream), the periodic breakout scan feeding the trader, the event
// notifier, and the HTTP API.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	release, err := a.acquirePortfolioLock(ctx, deps)
	if err != nil {
		return err
	}
	defer release()

	g, ctx := errgroup.WithContext(ctx)

	earnings := a.earningsCollector(deps)
	svc := a.buildTrader(deps, earnings)
	valuation := trader.NewValuation(
		deps.Ledger, deps.Snapshots, deps.Bus, deps.Audit,
		a.cfg.Trading.Benchmark, a.logger,
	)
	scanner := a.buildScanner(deps, earnings)

	// Candidate intake: the scan loop produces, the trader consumes.
	candidateCh := make(chan domain.Candidate, 32)
	scanTrigger := make(chan struct{}, 1)

	if a.cfg.Trading.AutoEnter {
		g.Go(func() error {
			return svc.Run(ctx, candidateCh)
		})
	} else {
		a.logger.InfoContext(ctx, "trading.auto_enter is false; breakouts will be reported, not entered")
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case cand, ok := <-candidateCh:
					if !ok {
						return nil
					}
					a.logger.InfoContext(ctx, "breakout candidate (auto_enter off)",
						slog.String("ticker", cand.Ticker),
						slog.Float64("price", cand.Price),
						slog.String("quality", string(cand.Quality)),
					)
				}
			}
		})
	}

	g.Go(func() error {
		return a.scanLoop(ctx, scanner, earnings, candidateCh, scanTrigger)
	})

	// Poller: sweep open positions and the watchlist for latest prices.
	poller := feed.NewPoller(
		deps.Feed,
		deps.Ledger,
		deps.PriceCache,
		svc,
		a.cfg.Screener.Watchlist,
		a.cfg.Trading.PollInterval.Duration,
		a.logger,
	)
	g.Go(func() error {
		return poller.Run(ctx)
	})

	// Optional live trade stream on top of the poller.
	if a.cfg.Alpaca.StreamEnabled {
		feeder := feed.NewStreamFeeder(deps.PriceCache, svc, a.logger)
		stream := alpaca.NewStream(
			a.cfg.Alpaca.StreamURL,
			alpaca.Config{APIKey: a.cfg.Alpaca.ApiKey, APISecret: a.cfg.Alpaca.ApiSecret},
			a.cfg.Screener.Watchlist,
			feeder.HandleTrade,
			a.logger,
		)
		g.Go(func() error {
			return stream.Run(ctx)
		})
	}

	// Notifier listens on the bus for lifecycle events.
	listener := notify.NewListener(deps.Bus, deps.Notifier, a.logger)
	g.Go(func() error {
		return listener.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc, valuation, scanTrigger)
	}

	return g.Wait()
}

// ReportMode runs the evening routine once: a final stop and target sweep at
// the latest prices, the end-of-day snapshot, and the daily report.
func (a *App) ReportMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting report mode")

	release, err := a.acquirePortfolioLock(ctx, deps)
	if err != nil {
		return err
	}
	defer release()

	svc := a.buildTrader(deps, nil)
	valuation := trader.NewValuation(
		deps.Ledger, deps.Snapshots, deps.Bus, deps.Audit,
		a.cfg.Trading.Benchmark, a.logger,
	)
	return a.eveningRoutine(ctx, deps, svc, valuation)
}

// ArchiveMode moves aged ledger history to cold storage: one pass by
// default, or a resident cron loop when archive.cron is configured.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)
	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: archiver not wired (postgres and s3 are required)")
	}

	arch := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	if cron := strings.TrimSpace(a.cfg.Archive.Cron); cron != "" {
		return arch.RunCron(ctx, cron)
	}
	return arch.Run(ctx)
}

// FullMode runs everything: the trade loop with its scan, poll, stream and
// notify goroutines, a scheduled evening routine, and the archiver cron.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	release, err := a.acquirePortfolioLock(ctx, deps)
	if err != nil {
		return err
	}
	defer release()

	g, ctx := errgroup.WithContext(ctx)

	earnings := a.earningsCollector(deps)
	svc := a.buildTrader(deps, earnings)
	valuation := trader.NewValuation(
		deps.Ledger, deps.Snapshots, deps.Bus, deps.Audit,
		a.cfg.Trading.Benchmark, a.logger,
	)
	scanner := a.buildScanner(deps, earnings)

	candidateCh := make(chan domain.Candidate, 32)
	scanTrigger := make(chan struct{}, 1)

	if a.cfg.Trading.AutoEnter {
		g.Go(func() error {
			return svc.Run(ctx, candidateCh)
		})
	} else {
		a.logger.InfoContext(ctx, "trading.auto_enter is false; breakouts will be reported, not entered")
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case cand, ok := <-candidateCh:
					if !ok {
						return nil
					}
					a.logger.InfoContext(ctx, "breakout candidate (auto_enter off)",
						slog.String("ticker", cand.Ticker),
						slog.String("quality", string(cand.Quality)),
					)
				}
			}
		})
	}

	g.Go(func() error {
		return a.scanLoop(ctx, scanner, earnings, candidateCh, scanTrigger)
	})

	poller := feed.NewPoller(
		deps.Feed,
		deps.Ledger,
		deps.PriceCache,
		svc,
		a.cfg.Screener.Watchlist,
		a.cfg.Trading.PollInterval.Duration,
		a.logger,
	)
	g.Go(func() error {
		return poller.Run(ctx)
	})

	if a.cfg.Alpaca.StreamEnabled {
		feeder := feed.NewStreamFeeder(deps.PriceCache, svc, a.logger)
		stream := alpaca.NewStream(
			a.cfg.Alpaca.StreamURL,
			alpaca.Config{APIKey: a.cfg.Alpaca.ApiKey, APISecret: a.cfg.Alpaca.ApiSecret},
			a.cfg.Screener.Watchlist,
			feeder.HandleTrade,
			a.logger,
		)
		g.Go(func() error {
			return stream.Run(ctx)
		})
	}

	listener := notify.NewListener(deps.Bus, deps.Notifier, a.logger)
	g.Go(func() error {
		return listener.Run(ctx)
	})

	// Evening routine on the daily schedule.
	if a.cfg.Trading.ReportTime != "" {
		g.Go(func() error {
			return a.reportSchedule(ctx, deps, svc, valuation)
		})
	}

	// Archiver cron when cold storage is wired.
	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		arch := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
		g.Go(func() error {
			return arch.RunCron(ctx, a.cfg.Archive.Cron)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc, valuation, scanTrigger)
	}

	return g.Wait()
}

// scanLoop runs the breakout scan on the configured interval, and
// immediately when the API trigger fires. An earnings refresh precedes the
// first scan of each trading day.
func (a *App) scanLoop(
	ctx context.Context,
	scanner *screener.Scanner,
	earnings *pipeline.EarningsCollector,
	out chan<- domain.Candidate,
	trigger <-chan struct{},
) error {
	interval := a.cfg.Screener.ScanInterval.Duration
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastRefresh time.Time

	scan := func() {
		if earnings != nil {
			today := domain.TradingDate(time.Now().UTC())
			if lastRefresh.Before(today) {
				if err := earnings.RefreshAll(ctx, a.cfg.Screener.Watchlist); err != nil {
					a.logger.WarnContext(ctx, "scan loop: earnings refresh failed",
						slog.String("error", err.Error()),
					)
				} else {
					lastRefresh = today
				}
			}
		}

		candidates, err := scanner.Scan(ctx)
		if err != nil {
			a.logger.WarnContext(ctx, "scan loop: scan failed",
				slog.String("error", err.Error()),
			)
			return
		}
		for _, cand := range candidates {
			select {
			case out <- cand:
			case <-ctx.Done():
				return
			}
		}
		a.logger.InfoContext(ctx, "scan pass complete",
			slog.Int("candidates", len(candidates)),
		)
	}

	scan()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			scan()
		case <-trigger:
			a.logger.InfoContext(ctx, "scan loop: on-demand scan triggered")
			scan()
		}
	}
}

// reportSchedule fires the evening routine once per day at the configured
// UTC wall-clock time.
func (a *App) reportSchedule(
	ctx context.Context,
	deps *Dependencies,
	svc *trader.Service,
	valuation *trader.Valuation,
) error {
	at, err := time.Parse("15:04", a.cfg.Trading.ReportTime)
	if err != nil {
		return fmt.Errorf("app: report_time: %w", err)
	}

	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, time.UTC)
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		a.logger.InfoContext(ctx, "evening routine scheduled",
			slog.Time("next_run", next),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		if err := a.eveningRoutine(ctx, deps, svc, valuation); err != nil {
			a.logger.WarnContext(ctx, "evening routine failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// eveningRoutine is the end-of-day pass: sweep stops and targets at the
// latest prices, write the daily snapshot, and send the daily report.
func (a *App) eveningRoutine(
	ctx context.Context,
	deps *Dependencies,
	svc *trader.Service,
	valuation *trader.Valuation,
) error {
	open, err := deps.Ledger.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("evening routine: list open: %w", err)
	}

	tickers := make([]string, 0, len(open)+1)
	for _, pos := range open {
		tickers = append(tickers, pos.Ticker)
	}
	if b := a.cfg.Trading.Benchmark; b != "" {
		tickers = append(tickers, b)
	}

	prices := map[string]float64{}
	if len(tickers) > 0 {
		prices, err = deps.Feed.LatestPrices(ctx, tickers)
		if err != nil {
			return fmt.Errorf("evening routine: latest prices: %w", err)
		}
	}

	closed, err := svc.CheckAll(ctx, prices)
	if err != nil {
		return fmt.Errorf("evening routine: check positions: %w", err)
	}
	if len(closed) > 0 {
		a.logger.InfoContext(ctx, "evening routine closed positions",
			slog.Int("count", len(closed)),
		)
	}

	snap, err := valuation.Snapshot(ctx, time.Now().UTC(), prices)
	if err != nil {
		// A re-run after the snapshot was already taken still sends the
		// report from the stored record.
		if stored, getErr := deps.Snapshots.Latest(ctx); getErr == nil &&
			stored.Date.Equal(domain.TradingDate(time.Now().UTC())) {
			a.logger.InfoContext(ctx, "evening routine: snapshot already taken today")
			snap = stored
		} else {
			return fmt.Errorf("evening routine: snapshot: %w", err)
		}
	}

	report, err := valuation.Performance(ctx)
	if err != nil {
		return fmt.Errorf("evening routine: performance: %w", err)
	}

	remaining, err := deps.Ledger.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("evening routine: list open: %w", err)
	}

	title, msg := notify.DailyReport(snap, report, remaining)
	if err := deps.Notifier.NotifyAll(ctx, title, msg); err != nil {
		a.logger.WarnContext(ctx, "evening routine: notify failed",
			slog.String("error", err.Error()),
		)
	}

	a.logger.InfoContext(ctx, "evening routine complete",
		slog.Float64("total_equity", snap.TotalEquity),
		slog.Float64("daily_pnl", snap.DailyPnL),
		slog.Int("open_positions", snap.OpenPositions),
	)
	return nil
}

// startHTTPServer adds the HTTP server goroutine (and the WebSocket hub when
// enabled) to the given errgroup, with graceful shutdown on cancellation.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	svc *trader.Service,
	valuation *trader.Valuation,
	scanTrigger chan struct{},
) {
	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Positions:   handler.NewPositionHandler(deps.Ledger, svc, a.logger),
		Portfolio:   handler.NewPortfolioHandler(valuation, deps.Snapshots, deps.Ledger, deps.PriceCache, a.cfg.Trading.Benchmark, a.logger),
		Performance: handler.NewPerformanceHandler(valuation, a.logger),
	}
	if deps.Bus != nil {
		handlers.Events = handler.NewEventsHandler(deps.Bus, a.logger)
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}
	if scanTrigger != nil {
		handlers.Scan = handler.NewScanHandler(a.logger).WithTriggerChannel(scanTrigger)
	}

	var hub *ws.Hub
	if a.cfg.Server.WSEnabled && deps.Bus != nil {
		hub = ws.NewHub(deps.Bus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.ApiKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http server shutdown failed",
				slog.String("error", err.Error()),
			)
		}
		return ctx.Err()
	})
}
