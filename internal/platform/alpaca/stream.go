package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stockradar/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed between reads before the connection is
	// considered dead. The server pings roughly every 30 seconds.
	pongWait = 70 * time.Second

	// pingPeriod sends our own pings at this interval. Must be less than
	// pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// TradeHandler is called for each live trade print.
type TradeHandler func(ctx context.Context, ticker string, price float64, at time.Time)

// Stream subscribes to the Alpaca stocks stream and dispatches trade prints
// to a handler. It reconnects with backoff until cancelled.
type Stream struct {
	url     string
	key     string
	secret  string
	tickers []string
	onTrade TradeHandler
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewStream creates a trade stream for the given tickers. url is the stocks
// stream endpoint, e.g. "wss://stream.data.alpaca.markets/v2/iex".
func NewStream(url string, cfg Config, tickers []string, onTrade TradeHandler, logger *slog.Logger) *Stream {
	return &Stream{
		url:     url,
		key:     cfg.APIKey,
		secret:  cfg.APISecret,
		tickers: tickers,
		onTrade: onTrade,
		logger:  logger.With(slog.String("component", "alpaca_stream")),
		done:    make(chan struct{}),
	}
}

// Run connects, authenticates, subscribes to trades for the configured
// tickers and dispatches messages until ctx is cancelled or Close is called.
func (s *Stream) Run(ctx context.Context) error {
	if len(s.tickers) == 0 {
		s.logger.Info("no tickers to stream, exiting")
		return nil
	}

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		err := s.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// Close stops the stream.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// streamMessage is one element of the JSON arrays the server sends. Trade
// prints carry T="t"; control frames carry T="success", "subscription" or
// "error".
type streamMessage struct {
	T         string    `json:"T"`
	Symbol    string    `json:"S"`
	Price     float64   `json:"p"`
	Timestamp time.Time `json:"t"`
	Msg       string    `json:"msg"`
	Code      int       `json:"code"`
}

func (s *Stream) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("alpaca: stream connect: %w", err)
	}

	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		case <-connDone:
		}
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := s.send(conn, map[string]any{
		"action": "auth",
		"key":    s.key,
		"secret": s.secret,
	}); err != nil {
		return fmt.Errorf("alpaca: stream auth: %w", err)
	}
	if err := s.send(conn, map[string]any{
		"action": "subscribe",
		"trades": s.tickers,
	}); err != nil {
		return fmt.Errorf("alpaca: stream subscribe: %w", err)
	}

	go s.pingLoop(conn, connDone)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return fmt.Errorf("alpaca: stream read: %w: %w", domain.ErrWSDisconnect, err)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msgs []streamMessage
		if err := json.Unmarshal(payload, &msgs); err != nil {
			s.logger.Warn("stream message unparseable", slog.String("error", err.Error()))
			continue
		}
		for _, msg := range msgs {
			switch msg.T {
			case "t":
				if s.onTrade != nil {
					s.onTrade(ctx, msg.Symbol, msg.Price, msg.Timestamp)
				}
			case "error":
				return fmt.Errorf("alpaca: stream error %d: %s", msg.Code, msg.Msg)
			case "subscription":
				s.logger.Info("stream subscribed", slog.Int("tickers", len(s.tickers)))
			case "success":
				s.logger.Debug("stream handshake", slog.String("msg", msg.Msg))
			}
		}
	}
}

func (s *Stream) send(conn *websocket.Conn, cmd map[string]any) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Stream) pingLoop(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-connDone:
			return
		case <-s.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
