package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamBaseURL    = "wss://stream.binance.com:9443/stream"
	handshakeTimeout = 10 * time.Second
	readTimeout      = 90 * time.Second
	pingInterval     = 30 * time.Second
	reconnectDelay   = 5 * time.Second
)

// TickerStream keeps a price cache fresh between REST polls by consuming
// the exchange miniTicker websocket stream. Delivery is best effort: on
// any read error the stream reconnects and the cache simply goes stale
// until the next message or REST poll.
type TickerStream struct {
	symbols []string
	cache   *PriceCache
	logger  *slog.Logger
}

// NewTickerStream creates a stream worker updating cache for the given symbols.
func NewTickerStream(symbols []string, cache *PriceCache, logger *slog.Logger) *TickerStream {
	return &TickerStream{symbols: symbols, cache: cache, logger: logger}
}

// miniTickerEvent is the payload of a combined-stream miniTicker message.
type miniTickerEvent struct {
	Data struct {
		Symbol string `json:"s"`
		Close  string `json:"c"`
	} `json:"data"`
}

// Run consumes the stream until ctx is cancelled, reconnecting on failure.
func (ts *TickerStream) Run(ctx context.Context) {
	if len(ts.symbols) == 0 {
		return
	}
	url := ts.streamURL()

	for {
		if err := ts.consume(ctx, url); err != nil {
			if ctx.Err() != nil {
				return
			}
			ts.logger.Warn("Ticker stream disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// consume runs a single websocket session until an error or cancellation.
func (ts *TickerStream) consume(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	ts.logger.Info("Ticker stream connected", "symbols", len(ts.symbols))

	// Close the connection when ctx is cancelled so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go ts.pingLoop(ctx, conn)

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var evt miniTickerEvent
		if err := json.Unmarshal(msg, &evt); err != nil || evt.Data.Symbol == "" {
			continue
		}
		ts.cache.Set(evt.Data.Symbol, parseFloat(evt.Data.Close))
	}
}

func (ts *TickerStream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (ts *TickerStream) streamURL() string {
	streams := make([]string, 0, len(ts.symbols))
	for _, s := range ts.symbols {
		streams = append(streams, strings.ToLower(s)+"@miniTicker")
	}
	return streamBaseURL + "?streams=" + strings.Join(streams, "/")
}
