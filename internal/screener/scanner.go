// Package screener implements the momentum scan that feeds the trader:
// stage-two trend filtering, contraction-base analysis and volume-confirmed
// breakout grading over daily bars.
package screener

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"stockradar/internal/domain"
)

const (
	defaultTrendBars    = 320
	defaultBaseBars     = 90
	defaultConcurrency  = 8
	defaultMinBaseScore = 40

	nearPivotLowPct  = -1.0
	nearPivotHighPct = 3.0
)

// EarningsChecker reports whether a ticker is far enough from its next
// earnings report to trade.
type EarningsChecker interface {
	Safe(ctx context.Context, ticker string, asOf time.Time) (bool, error)
}

// Config controls a Scanner run. Zero fields fall back to the package
// defaults.
type Config struct {
	Watchlist    []string
	TrendBars    int
	BaseBars     int
	Concurrency  int
	MinBaseScore int
	Base         BaseConfig
	Breakout     BreakoutConfig
}

// Scanner runs the scan pipeline over a watchlist using daily bars from a
// price feed.
type Scanner struct {
	feed     domain.PriceFeed
	earnings EarningsChecker
	cfg      Config
	logger   *slog.Logger
}

// New creates a Scanner. The earnings checker may be nil, in which case
// the earnings gate is off and every ticker counts as safe.
func New(feed domain.PriceFeed, earnings EarningsChecker, cfg Config, logger *slog.Logger) *Scanner {
	if cfg.TrendBars <= 0 {
		cfg.TrendBars = defaultTrendBars
	}
	if cfg.BaseBars <= 0 {
		cfg.BaseBars = defaultBaseBars
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.MinBaseScore <= 0 {
		cfg.MinBaseScore = defaultMinBaseScore
	}
	return &Scanner{
		feed:     feed,
		earnings: earnings,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "screener")),
	}
}

// earningsSafe applies the earnings gate. A nil checker means the gate is
// off and every ticker is safe.
func (s *Scanner) earningsSafe(ctx context.Context, ticker string) (bool, error) {
	if s.earnings == nil {
		return true, nil
	}
	return s.earnings.Safe(ctx, ticker, time.Now().UTC())
}

// Scan checks every watchlist ticker for a confirmed breakout above the
// pivot of a scored contraction base. Tickers that error are logged and
// skipped so one bad symbol cannot sink the run. Candidates come back
// ordered by base score, best first.
func (s *Scanner) Scan(ctx context.Context) ([]domain.Candidate, error) {
	var (
		mu  sync.Mutex
		out []domain.Candidate
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, ticker := range s.cfg.Watchlist {
		g.Go(func() error {
			cand, err := s.scanOne(ctx, ticker)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("scan skipped",
					slog.String("ticker", ticker),
					slog.String("error", err.Error()))
				return nil
			}
			if cand == nil {
				return nil
			}
			mu.Lock()
			out = append(out, *cand)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("screener: scan: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Ticker < out[j].Ticker
	})
	s.logger.Info("scan complete",
		slog.Int("watchlist", len(s.cfg.Watchlist)),
		slog.Int("candidates", len(out)))
	return out, nil
}

func (s *Scanner) scanOne(ctx context.Context, ticker string) (*domain.Candidate, error) {
	bars, err := s.feed.DailyBars(ctx, ticker, s.cfg.TrendBars)
	if err != nil {
		return nil, fmt.Errorf("daily bars: %w", err)
	}

	trend, err := AssessTrend(ticker, bars)
	if err != nil {
		return nil, err
	}
	if !trend.Passes || len(bars) < 2 {
		return nil, nil
	}

	// The base is judged as it stood before the latest bar so the pivot is
	// the resistance that bar had to clear.
	base, err := AnalyzeBase(ticker, tailBars(bars[:len(bars)-1], s.cfg.BaseBars), s.cfg.Base)
	if err != nil {
		return nil, err
	}
	if base.Score < s.cfg.MinBaseScore || base.Pivot <= 0 {
		return nil, nil
	}

	safe, err := s.earningsSafe(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("earnings check: %w", err)
	}

	bo, err := ConfirmBreakout(ticker, bars, base.Pivot, !safe, s.cfg.Breakout)
	if err != nil {
		return nil, err
	}
	if !bo.Confirmed {
		return nil, nil
	}

	s.logger.Info("breakout candidate",
		slog.String("ticker", ticker),
		slog.String("quality", string(bo.Quality)),
		slog.Float64("pivot", bo.Pivot),
		slog.Float64("price", bo.Price),
		slog.Float64("volume_ratio", bo.VolumeRatio),
		slog.Int("score", base.Score))

	return &domain.Candidate{
		ID:          uuid.NewString(),
		Ticker:      ticker,
		Pivot:       bo.Pivot,
		Price:       bo.Price,
		BreakoutPct: bo.BreakoutPct,
		VolumeRatio: bo.VolumeRatio,
		Quality:     bo.Quality,
		Score:       base.Score,
		Entry:       bo.Entry,
		Stop:        bo.Stop,
		Target:      bo.Target,
		RewardRisk:  bo.RewardRisk,
		Extended:    bo.Extended,
		Notes:       bo.Notes,
		DetectedAt:  time.Now().UTC(),
	}, nil
}

// WatchItem is a pre-open watchlist entry: a scored base and how far the
// last close sits from its pivot.
type WatchItem struct {
	Ticker       string
	Price        float64
	Pivot        float64
	DistancePct  float64
	Score        int
	NearBreakout bool
}

// MorningWatch lists watchlist tickers in a stage-two trend with a scored
// base, ordered by distance to the pivot. Names inside the near-breakout
// band are flagged. Meant to run before the open, when the latest bar is
// the prior session.
func (s *Scanner) MorningWatch(ctx context.Context) ([]WatchItem, error) {
	var (
		mu  sync.Mutex
		out []WatchItem
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, ticker := range s.cfg.Watchlist {
		g.Go(func() error {
			item, err := s.watchOne(ctx, ticker)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("watch skipped",
					slog.String("ticker", ticker),
					slog.String("error", err.Error()))
				return nil
			}
			if item == nil {
				return nil
			}
			mu.Lock()
			out = append(out, *item)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("screener: morning watch: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistancePct != out[j].DistancePct {
			return out[i].DistancePct < out[j].DistancePct
		}
		return out[i].Ticker < out[j].Ticker
	})
	s.logger.Info("morning watch complete",
		slog.Int("watchlist", len(s.cfg.Watchlist)),
		slog.Int("watching", len(out)))
	return out, nil
}

func (s *Scanner) watchOne(ctx context.Context, ticker string) (*WatchItem, error) {
	bars, err := s.feed.DailyBars(ctx, ticker, s.cfg.TrendBars)
	if err != nil {
		return nil, fmt.Errorf("daily bars: %w", err)
	}

	trend, err := AssessTrend(ticker, bars)
	if err != nil {
		return nil, err
	}
	if !trend.Passes {
		return nil, nil
	}

	safe, err := s.earningsSafe(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("earnings check: %w", err)
	}
	if !safe {
		s.logger.Info("watch skipped, earnings soon", slog.String("ticker", ticker))
		return nil, nil
	}

	base, err := AnalyzeBase(ticker, tailBars(bars, s.cfg.BaseBars), s.cfg.Base)
	if err != nil {
		return nil, err
	}
	if base.Score < s.cfg.MinBaseScore || base.Pivot <= 0 {
		return nil, nil
	}

	price := bars[len(bars)-1].Close
	if price <= 0 {
		return nil, nil
	}
	dist := (base.Pivot - price) / price * 100

	return &WatchItem{
		Ticker:       ticker,
		Price:        price,
		Pivot:        base.Pivot,
		DistancePct:  dist,
		Score:        base.Score,
		NearBreakout: dist >= nearPivotLowPct && dist <= nearPivotHighPct,
	}, nil
}
