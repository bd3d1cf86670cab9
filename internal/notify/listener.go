package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"stockradar/internal/domain"
)

// Listener forwards portfolio lifecycle events from the bus to the
// notification channels.
type Listener struct {
	bus      domain.EventBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewListener wires the listener to the bus and notifier.
func NewListener(bus domain.EventBus, notifier *Notifier, logger *slog.Logger) *Listener {
	return &Listener{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_listener")),
	}
}

// Run consumes events until the context is cancelled or the bus closes
// the subscription.
func (l *Listener) Run(ctx context.Context) error {
	ch, err := l.bus.Subscribe(ctx, domain.EventChannel)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", domain.EventChannel, err)
	}
	l.logger.InfoContext(ctx, "notify: listening for portfolio events")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			l.handle(ctx, payload)
		}
	}
}

func (l *Listener) handle(ctx context.Context, payload []byte) {
	var evt domain.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		l.logger.WarnContext(ctx, "notify: dropping malformed event",
			slog.String("error", err.Error()),
		)
		return
	}

	title, message := formatEvent(evt)
	if title == "" {
		return
	}
	if err := l.notifier.Notify(ctx, string(evt.Type), title, message); err != nil {
		l.logger.WarnContext(ctx, "notify: delivery failed",
			slog.String("event", string(evt.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// formatEvent renders one event as a short alert. Unknown event types
// return an empty title and are skipped.
func formatEvent(evt domain.Event) (title, message string) {
	switch evt.Type {
	case domain.EventPositionOpened:
		return "Opened " + evt.Ticker,
			fmt.Sprintf("Entry $%.2f (%s)", evt.Price, evt.Reason)
	case domain.EventPositionClosed:
		return "Closed " + evt.Ticker,
			fmt.Sprintf("Exit $%.2f (%s)", evt.Price, evt.Reason)
	case domain.EventStopAdjusted:
		return "Stop raised on " + evt.Ticker,
			fmt.Sprintf("New stop $%.2f (%s)", evt.Price, evt.Reason)
	case domain.EventSnapshotTaken:
		return "Daily snapshot",
			fmt.Sprintf("Equity $%.2f as of %s", evt.Price, evt.Reason)
	default:
		return "", ""
	}
}
