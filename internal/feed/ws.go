package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// wsFrame is the upstream wire envelope. Type "row" carries the captured
// field map; type "symbol" carries a late resolution for an earlier row.
type wsFrame struct {
	Type   string            `json:"type"`
	Hint   string            `json:"hint,omitempty"`
	Symbol string            `json:"symbol,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// WSOptions configure the websocket source.
type WSOptions struct {
	// URL is the upstream websocket endpoint.
	URL string
	// HandshakeTimeout bounds the dial; defaults to 10s.
	HandshakeTimeout time.Duration
	// PingInterval keeps the connection alive; defaults to 45s.
	PingInterval time.Duration
	// MaxBackoff caps the reconnect delay; defaults to 30s.
	MaxBackoff time.Duration
}

func (o *WSOptions) applyDefaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 45 * time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
}

// WSSource streams rows from an upstream capture feed over a websocket,
// reconnecting with exponential backoff on failure.
type WSSource struct {
	logger  zerolog.Logger
	opts    WSOptions
	rows    chan RawRow
	symbols chan SymbolHint
}

var _ Source = (*WSSource)(nil)

// NewWSSource constructs a websocket source for the given endpoint.
func NewWSSource(opts WSOptions, logger zerolog.Logger) *WSSource {
	opts.applyDefaults()
	return &WSSource{
		logger:  logger.With().Str("component", "feed").Str("source", "websocket").Logger(),
		opts:    opts,
		rows:    make(chan RawRow, 256),
		symbols: make(chan SymbolHint, 64),
	}
}

func (s *WSSource) Rows() <-chan RawRow        { return s.rows }
func (s *WSSource) Symbols() <-chan SymbolHint { return s.symbols }

// Run dials the feed and pumps frames until ctx is cancelled. Connection
// failures are logged and retried with exponential backoff.
func (s *WSSource) Run(ctx context.Context) error {
	defer close(s.rows)
	defer close(s.symbols)

	backoff := time.Second
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("feed disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			if backoff < s.opts.MaxBackoff {
				backoff *= 2
			}
		}
	}
}

func (s *WSSource) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()
	s.logger.Info().Str("url", s.opts.URL).Msg("feed connected")

	ping := time.NewTicker(s.opts.PingInterval)
	defer ping.Stop()

	errCh := make(chan error, 1)
	go func() {
		for {
			var frame wsFrame
			if err := conn.ReadJSON(&frame); err != nil {
				errCh <- err
				return
			}
			s.dispatch(ctx, frame)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ping.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case err := <-errCh:
			return fmt.Errorf("read frame: %w", err)
		}
	}
}

func (s *WSSource) dispatch(ctx context.Context, frame wsFrame) {
	switch frame.Type {
	case "row":
		row := RawRow{Fields: frame.Fields, Hint: frame.Hint, Symbol: frame.Symbol}
		select {
		case s.rows <- row:
		case <-ctx.Done():
		}
	case "symbol":
		select {
		case s.symbols <- SymbolHint{Hint: frame.Hint, Symbol: frame.Symbol}:
		case <-ctx.Done():
		}
	default:
		raw, _ := json.Marshal(frame)
		s.logger.Debug().RawJSON("frame", raw).Msg("ignoring unknown frame type")
	}
}
