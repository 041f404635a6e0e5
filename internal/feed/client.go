// Package feed streams live candles from a Binance-style kline websocket
// endpoint. Only closed candles are emitted; forming candles mutate until
// close and never become Bars. The feed sits outside the deterministic
// replay core: reconnects and timeouts live here, and its output is only
// ever appended to snapshot files that later runs validate like any other
// data.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"bar-replay-lab/internal/domain"
)

// Config configures client behavior.
type Config struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff between attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration

	// OnReconnect is called after every successful reconnect, if set.
	OnReconnect func()

	// Logger for skipped payloads and reconnect events. Nil = log.Default().
	Logger *log.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Client consumes one kline stream and emits closed candles as Bars.
// The stream is addressed entirely by the endpoint URL (for example
// wss://host/ws/btcusdt@kline_1m), so a reconnect is a plain redial.
type Client struct {
	endpoint string
	config   Config
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// bars carries closed candles to the consumer. Sends block rather
	// than drop; the buffer absorbs bursts.
	bars chan domain.Bar

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewClient connects to the endpoint and starts the read and ping loops.
func NewClient(ctx context.Context, endpoint string, config *Config) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		bars:     make(chan domain.Bar, 1024),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Bars returns the closed-candle channel. It is closed by Close.
func (c *Client) Bars() <-chan domain.Bar { return c.bars }

// connect establishes the websocket connection.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Close closes the connection and the bars channel. Safe to call twice.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	// The read loop must be fully stopped before the channel closes so no
	// send can race the close.
	c.wg.Wait()
	close(c.bars)
	return nil
}

// readLoop reads messages and dispatches closed candles until Close.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			// Connection error: reconnect with exponential backoff.
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read.
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect redials the endpoint after the given delay.
func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Will retry on the next read error.
		return
	}

	c.logger.Printf("feed: reconnected to %s", c.endpoint)
	if c.config.OnReconnect != nil {
		c.config.OnReconnect()
	}
}

// handleMessage parses one stream payload and forwards the candle if it is
// closed. Non-kline events are ignored; malformed payloads are logged and
// skipped.
func (c *Client) handleMessage(message []byte) {
	var evt klineEvent
	if err := json.Unmarshal(message, &evt); err != nil || evt.Event != "kline" {
		return
	}

	if !evt.Kline.Closed {
		return
	}

	bar, err := evt.bar()
	if err != nil {
		c.logger.Printf("feed: skipping candle: %v", err)
		return
	}

	// Block until the consumer takes the bar; never drop a closed candle.
	select {
	case c.bars <- bar:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead; the reader handles reconnect.
				}
			}
			c.connMu.Unlock()
		}
	}
}

// Kline stream wire types. Prices arrive as strings.

type klineEvent struct {
	Event  string       `json:"e"`
	Symbol string       `json:"s"`
	Kline  klinePayload `json:"k"`
}

type klinePayload struct {
	StartTime int64  `json:"t"` // candle open time, epoch milliseconds
	Interval  string `json:"i"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
	Closed    bool   `json:"x"`
}

// bar converts a closed kline payload into a Bar. Feed candles never carry
// a spread.
func (e *klineEvent) bar() (domain.Bar, error) {
	open, err := parseDecimal("open", e.Kline.Open)
	if err != nil {
		return domain.Bar{}, err
	}
	high, err := parseDecimal("high", e.Kline.High)
	if err != nil {
		return domain.Bar{}, err
	}
	low, err := parseDecimal("low", e.Kline.Low)
	if err != nil {
		return domain.Bar{}, err
	}
	closePrice, err := parseDecimal("close", e.Kline.Close)
	if err != nil {
		return domain.Bar{}, err
	}
	volume, err := parseDecimal("volume", e.Kline.Volume)
	if err != nil {
		return domain.Bar{}, err
	}

	return domain.Bar{
		Timestamp: time.UnixMilli(e.Kline.StartTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}

func parseDecimal(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", name, s, err)
	}
	return v, nil
}
