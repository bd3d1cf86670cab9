package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stockradar/internal/domain"
)

// EarningsChecker reports whether a ticker is clear of its next earnings
// report.
type EarningsChecker interface {
	Safe(ctx context.Context, ticker string, asOf time.Time) (bool, error)
}

// Run consumes screener candidates until the channel closes or the context
// is cancelled. Each ticker is entered at most once per trading day.
func (s *Service) Run(ctx context.Context, candidates <-chan domain.Candidate) error {
	s.logger.InfoContext(ctx, "trader: candidate intake started")
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "trader: candidate intake stopped")
			return ctx.Err()
		case cand, ok := <-candidates:
			if !ok {
				s.logger.InfoContext(ctx, "trader: candidate channel closed")
				return nil
			}
			s.handleCandidate(ctx, cand)
		}
	}
}

// handleCandidate applies the entry gates to one candidate and enters when
// they all pass. Gate rejections are logged, never returned.
func (s *Service) handleCandidate(ctx context.Context, cand domain.Candidate) {
	log := s.logger.With(
		slog.String("ticker", cand.Ticker),
		slog.String("quality", string(cand.Quality)),
	)

	if s.enteredToday(cand.Ticker) {
		log.DebugContext(ctx, "trader: already entered today, skipping")
		return
	}

	bal, err := s.ledger.Balance(ctx)
	if err != nil {
		log.WarnContext(ctx, "trader: balance check failed", slog.String("error", err.Error()))
		return
	}
	if bal.Cash < s.cfg.MinCash {
		log.InfoContext(ctx, "trader: cash below entry floor, skipping",
			slog.Float64("cash", bal.Cash),
			slog.Float64("floor", s.cfg.MinCash),
		)
		return
	}

	if cand.Extended {
		log.InfoContext(ctx, "trader: extended past pivot, skipping",
			slog.Float64("breakout_pct", cand.BreakoutPct))
		return
	}

	if s.earnings != nil {
		safe, err := s.earnings.Safe(ctx, cand.Ticker, time.Now().UTC())
		if err != nil {
			log.WarnContext(ctx, "trader: earnings check failed", slog.String("error", err.Error()))
			return
		}
		if !safe {
			log.InfoContext(ctx, "trader: earnings too close, skipping")
			return
		}
	}

	if !cand.Quality.Tradeable() {
		log.InfoContext(ctx, "trader: quality below entry bar, skipping")
		return
	}

	entry := cand.Entry
	if entry <= 0 {
		entry = cand.Price
	}
	var stopPct, targetPct float64
	if entry > 0 && cand.Stop > 0 && cand.Stop < entry {
		stopPct = (entry - cand.Stop) / entry
	}
	if entry > 0 && cand.Target > entry {
		targetPct = (cand.Target - entry) / entry
	}

	pos, err := s.EnterPosition(ctx, EntryRequest{
		Ticker:       cand.Ticker,
		EntryPrice:   entry,
		StopPct:      stopPct,
		TargetPct:    targetPct,
		SignalSource: "breakout",
		Notes:        fmt.Sprintf("auto entry over pivot %.2f, grade %s", cand.Pivot, cand.Quality),
	})
	switch {
	case err == nil:
		s.markEntered(cand.Ticker)
		log.InfoContext(ctx, "trader: entered breakout",
			slog.Float64("entry", pos.EntryPrice),
			slog.Int("shares", pos.Shares),
			slog.Float64("stop", pos.StopPrice),
		)
	case errors.Is(err, domain.ErrMaxPositions):
		log.InfoContext(ctx, "trader: at position cap, skipping")
	case errors.Is(err, domain.ErrDuplicateTicker):
		log.DebugContext(ctx, "trader: already holding ticker, skipping")
	case errors.Is(err, domain.ErrZeroShares), errors.Is(err, domain.ErrInsufficientCash):
		log.InfoContext(ctx, "trader: cannot size entry, skipping", slog.String("error", err.Error()))
	default:
		log.WarnContext(ctx, "trader: entry failed", slog.String("error", err.Error()))
	}
}

// enteredToday and markEntered keep the per-day entry ledger that stops the
// intake from re-entering a ticker it already traded this session, even
// after that position closed intraday.
func (s *Service) enteredToday(ticker string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	day, ok := s.entered[ticker]
	return ok && day.Equal(domain.TradingDate(time.Now().UTC()))
}

func (s *Service) markEntered(ticker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := domain.TradingDate(time.Now().UTC())
	s.entered[ticker] = today
	for t, day := range s.entered {
		if day.Before(today) {
			delete(s.entered, t)
		}
	}
}
