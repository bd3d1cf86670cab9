// Package trader coordinates paper-trade entries and exits against the
// ledger. It applies the stop and target policy to price observations,
// sizes new positions, and publishes lifecycle events on the bus. All
// mutating paths run under a single service-level lock, so one trader
// instance is the only writer for its portfolio.
package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockradar/internal/domain"
	"stockradar/internal/policy"
)

const (
	defaultMaxPositions = 6
	defaultMinCash      = 1000.0
)

// Config holds the trader's entry limits and exit policy.
type Config struct {
	MaxPositions    int           // cap on concurrently open positions
	MinCash         float64       // candidates are skipped below this cash floor
	Policy          policy.Params // stop, target and trailing fractions
	MaxRiskFrac     float64       // per-trade risk as a fraction of portfolio value
	MaxPositionFrac float64       // per-position cost cap as a fraction of portfolio value
}

func (c Config) withDefaults() Config {
	if c.MaxPositions <= 0 {
		c.MaxPositions = defaultMaxPositions
	}
	if c.MinCash <= 0 {
		c.MinCash = defaultMinCash
	}
	if c.Policy == (policy.Params{}) {
		c.Policy = policy.DefaultParams()
	}
	if c.MaxRiskFrac <= 0 {
		c.MaxRiskFrac = policy.DefaultMaxRiskFrac
	}
	if c.MaxPositionFrac <= 0 {
		c.MaxPositionFrac = policy.DefaultMaxPositionFrac
	}
	return c
}

// Service opens, monitors and closes positions.
type Service struct {
	ledger   domain.Ledger
	bus      domain.EventBus
	audit    domain.AuditStore
	earnings EarningsChecker
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	entered map[string]time.Time // ticker -> trading date of last auto entry
}

// New creates a trader Service. The earnings checker may be nil, in which
// case the candidate intake skips the earnings gate.
func New(
	ledger domain.Ledger,
	bus domain.EventBus,
	audit domain.AuditStore,
	earnings EarningsChecker,
	cfg Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		ledger:   ledger,
		bus:      bus,
		audit:    audit,
		earnings: earnings,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		entered:  make(map[string]time.Time),
	}
}

// EntryRequest describes a proposed position entry. Zero StopPct, TargetPct
// or PortfolioValue fall back to the configured policy and to the ledger's
// current cost-basis valuation.
type EntryRequest struct {
	Ticker         string
	EntryPrice     float64
	StopPct        float64
	TargetPct      float64
	PortfolioValue float64
	EntryDate      time.Time
	SignalSource   string
	Notes          string
}

// EnterPosition opens a new position. The open-position cap is checked
// first, then the one-position-per-ticker rule; both fail without touching
// the ledger. The stop sits StopPct below the entry, the target TargetPct
// above, and the share count comes from the risk and concentration legs of
// the sizing rule.
func (s *Service) EnterPosition(ctx context.Context, req EntryRequest) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enter(ctx, req)
}

func (s *Service) enter(ctx context.Context, req EntryRequest) (domain.Position, error) {
	count, err := s.ledger.CountOpen(ctx)
	if err != nil {
		return domain.Position{}, fmt.Errorf("trader: count open: %w", err)
	}
	if count >= s.cfg.MaxPositions {
		return domain.Position{}, fmt.Errorf("trader: enter %s: %d of %d positions open: %w",
			req.Ticker, count, s.cfg.MaxPositions, domain.ErrMaxPositions)
	}

	if _, err := s.ledger.GetOpenByTicker(ctx, req.Ticker); err == nil {
		return domain.Position{}, fmt.Errorf("trader: enter %s: %w", req.Ticker, domain.ErrDuplicateTicker)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Position{}, fmt.Errorf("trader: lookup %s: %w", req.Ticker, err)
	}

	stopPct := req.StopPct
	if stopPct == 0 {
		stopPct = s.cfg.Policy.StopPct
	}
	targetPct := req.TargetPct
	if targetPct == 0 {
		targetPct = s.cfg.Policy.TargetPct
	}

	stop, err := policy.InitialStop(req.EntryPrice, stopPct)
	if err != nil {
		return domain.Position{}, fmt.Errorf("trader: enter %s: %w", req.Ticker, err)
	}
	target, err := policy.Target(req.EntryPrice, targetPct)
	if err != nil {
		return domain.Position{}, fmt.Errorf("trader: enter %s: %w", req.Ticker, err)
	}

	portfolioValue := req.PortfolioValue
	if portfolioValue <= 0 {
		portfolioValue, err = s.costBasisValue(ctx)
		if err != nil {
			return domain.Position{}, fmt.Errorf("trader: value portfolio: %w", err)
		}
	}

	size, err := policy.ShareCount(portfolioValue, req.EntryPrice, stop, s.cfg.MaxRiskFrac, s.cfg.MaxPositionFrac)
	if err != nil {
		return domain.Position{}, fmt.Errorf("trader: size %s: %w", req.Ticker, err)
	}

	entryDate := req.EntryDate
	if entryDate.IsZero() {
		entryDate = time.Now().UTC()
	}

	pos := domain.Position{
		Ticker:       req.Ticker,
		EntryDate:    domain.TradingDate(entryDate),
		EntryPrice:   req.EntryPrice,
		Shares:       size.Shares,
		InitialStop:  stop,
		StopPrice:    stop,
		StopType:     domain.StopTypeFixed,
		TargetPrice:  target,
		HighestPrice: req.EntryPrice,
		RiskPerShare: size.RiskPerShare,
		RiskDollars:  size.RiskDollars,
		RewardRisk:   (target - req.EntryPrice) / (req.EntryPrice - stop),
		SignalSource: req.SignalSource,
		Notes:        req.Notes,
	}

	opened, err := s.ledger.Open(ctx, pos)
	if err != nil {
		return domain.Position{}, fmt.Errorf("trader: open %s: %w", req.Ticker, err)
	}

	s.publish(ctx, domain.Event{
		Type:   domain.EventPositionOpened,
		Ticker: opened.Ticker,
		Price:  opened.EntryPrice,
		Reason: opened.SignalSource,
	})
	s.auditLog(ctx, "position_opened", map[string]any{
		"position_id": opened.ID,
		"ticker":      opened.Ticker,
		"entry_price": opened.EntryPrice,
		"shares":      opened.Shares,
		"stop_price":  opened.StopPrice,
		"target":      opened.TargetPrice,
		"signal":      opened.SignalSource,
	})
	s.logger.InfoContext(ctx, "trader: position opened",
		slog.String("position_id", opened.ID),
		slog.String("ticker", opened.Ticker),
		slog.Float64("entry_price", opened.EntryPrice),
		slog.Int("shares", opened.Shares),
		slog.Float64("stop", opened.StopPrice),
		slog.Float64("target", opened.TargetPrice),
	)

	return opened, nil
}

// TickOutcome reports what one price observation did to a position.
type TickOutcome struct {
	Position  domain.Position
	StopMoved bool
	Closed    bool
}

// ProcessTick runs one price observation for a ticker: the trailing rule
// first, persisting any stop or high-water change, then the exit check
// against the updated stop. A ticker with no open position is a no-op and
// returns nil. The stop wins when a price breaches stop and target at once.
func (s *Service) ProcessTick(ctx context.Context, ticker string, price float64) (*TickOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processTick(ctx, ticker, price)
}

func (s *Service) processTick(ctx context.Context, ticker string, price float64) (*TickOutcome, error) {
	if price <= 0 {
		return nil, fmt.Errorf("trader: tick %s: price %.4f: %w", ticker, price, domain.ErrInvalidParameter)
	}

	pos, err := s.ledger.GetOpenByTicker(ctx, ticker)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trader: tick %s: %w", ticker, err)
	}

	newStop, newHighest := policy.Trail(pos.EntryPrice, price, pos.StopPrice, pos.HighestPrice, s.cfg.Policy)
	moved := newStop > pos.StopPrice
	if moved || newHighest > pos.HighestPrice {
		stopType := policy.ClassifyStop(pos.EntryPrice, pos.InitialStop, newStop)
		pos, err = s.ledger.UpdateStop(ctx, pos.ID, newStop, stopType, newHighest)
		if err != nil {
			return nil, fmt.Errorf("trader: update stop %s: %w", ticker, err)
		}
		if moved {
			s.publish(ctx, domain.Event{
				Type:   domain.EventStopAdjusted,
				Ticker: pos.Ticker,
				Price:  pos.StopPrice,
				Reason: string(pos.StopType),
			})
			s.logger.InfoContext(ctx, "trader: stop raised",
				slog.String("ticker", pos.Ticker),
				slog.Float64("stop", pos.StopPrice),
				slog.String("stop_type", string(pos.StopType)),
				slog.Float64("high", pos.HighestPrice),
			)
		}
	}

	signal := policy.EvaluateExit(price, pos.StopPrice, pos.TargetPrice)
	if signal == policy.ExitNone {
		return &TickOutcome{Position: pos, StopMoved: moved}, nil
	}

	closed, err := s.close(ctx, pos, price, signal.Reason())
	if err != nil {
		return nil, err
	}
	return &TickOutcome{Position: closed, StopMoved: moved, Closed: true}, nil
}

// ExitManually closes an open position at the given price regardless of its
// stop and target levels.
func (s *Service) ExitManually(ctx context.Context, positionID string, exitPrice float64) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exitPrice <= 0 {
		return domain.Position{}, fmt.Errorf("trader: exit %s: price %.4f: %w",
			positionID, exitPrice, domain.ErrInvalidParameter)
	}
	pos, err := s.ledger.Get(ctx, positionID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("trader: exit %s: %w", positionID, err)
	}
	return s.close(ctx, pos, exitPrice, domain.ExitReasonManual)
}

// close records the fill on the ledger and emits the closed event.
func (s *Service) close(ctx context.Context, pos domain.Position, price float64, reason domain.ExitReason) (domain.Position, error) {
	closed, err := s.ledger.Close(ctx, pos.ID, time.Now().UTC(), price, reason)
	if err != nil {
		return domain.Position{}, fmt.Errorf("trader: close %s: %w", pos.Ticker, err)
	}

	s.publish(ctx, domain.Event{
		Type:   domain.EventPositionClosed,
		Ticker: closed.Ticker,
		Price:  price,
		Reason: string(reason),
	})
	detail := map[string]any{
		"position_id": closed.ID,
		"ticker":      closed.Ticker,
		"exit_price":  price,
		"reason":      string(reason),
	}
	if closed.ReturnPct != nil {
		detail["return_pct"] = *closed.ReturnPct
	}
	if closed.ReturnDollars != nil {
		detail["return_dollars"] = *closed.ReturnDollars
	}
	s.auditLog(ctx, "position_closed", detail)

	attrs := []any{
		slog.String("ticker", closed.Ticker),
		slog.String("reason", string(reason)),
		slog.Float64("exit_price", price),
	}
	if closed.ReturnPct != nil {
		attrs = append(attrs, slog.Float64("return_pct", *closed.ReturnPct))
	}
	s.logger.InfoContext(ctx, "trader: position closed", attrs...)

	return closed, nil
}

// CheckAll runs every open position through one observation from the price
// map. Tickers without a price are skipped, and a failure on one position
// does not stop the sweep. It returns the positions closed by this pass.
func (s *Service) CheckAll(ctx context.Context, prices map[string]float64) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	open, err := s.ledger.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("trader: list open: %w", err)
	}

	var closed []domain.Position
	for _, pos := range open {
		price, ok := prices[pos.Ticker]
		if !ok {
			s.logger.DebugContext(ctx, "trader: no price for open position",
				slog.String("ticker", pos.Ticker))
			continue
		}
		out, err := s.processTick(ctx, pos.Ticker, price)
		if err != nil {
			s.logger.WarnContext(ctx, "trader: tick failed",
				slog.String("ticker", pos.Ticker),
				slog.String("error", err.Error()),
			)
			continue
		}
		if out != nil && out.Closed {
			closed = append(closed, out.Position)
		}
	}
	return closed, nil
}

// costBasisValue values the portfolio as cash plus the cost of open
// positions, the baseline used when sizing without live prices.
func (s *Service) costBasisValue(ctx context.Context) (float64, error) {
	bal, err := s.ledger.Balance(ctx)
	if err != nil {
		return 0, err
	}
	open, err := s.ledger.ListOpen(ctx)
	if err != nil {
		return 0, err
	}
	total := bal.Cash
	for _, pos := range open {
		total += pos.Cost()
	}
	return total, nil
}

func (s *Service) publish(ctx context.Context, evt domain.Event) {
	evt.ID = uuid.NewString()
	evt.Timestamp = time.Now().UTC()
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if pubErr := s.bus.Publish(ctx, domain.EventChannel, payload); pubErr != nil {
		s.logger.WarnContext(ctx, "trader: publish event failed",
			slog.String("type", string(evt.Type)),
			slog.String("error", pubErr.Error()),
		)
	}
	if appendErr := s.bus.StreamAppend(ctx, domain.EventStream, payload); appendErr != nil {
		s.logger.WarnContext(ctx, "trader: append event failed",
			slog.String("type", string(evt.Type)),
			slog.String("error", appendErr.Error()),
		)
	}
}

func (s *Service) auditLog(ctx context.Context, event string, detail map[string]any) {
	if auditErr := s.audit.Log(ctx, event, detail); auditErr != nil {
		s.logger.WarnContext(ctx, "trader: audit log failed",
			slog.String("event", event),
			slog.String("error", auditErr.Error()),
		)
	}
}
