// Copyright (c) 2025 BVK Chaitanya

// Package bybit implements a price-only client for the Bybit v5 public
// websocket stream. The client maintains a single subscription to the ticker
// channel of one product and republishes last-price updates on a topic.
// Disconnects are retried forever with exponential backoff; consumers only
// ever observe a gap in ticks, never an error.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/bvk/tradesim/ctxutil"
	"github.com/bvk/tradesim/market"
	"github.com/gorilla/websocket"
	"github.com/visvasity/topic"
)

const DefaultWebsocketURL = "wss://stream.bybit.com/v5/public/linear"

type Options struct {
	// WebsocketURL is the stream endpoint.
	WebsocketURL string

	// Product is the instrument symbol, e.g. "BTCUSDT".
	Product string

	// PingInterval keeps the websocket alive.
	PingInterval time.Duration
}

func (v *Options) setDefaults() {
	if len(v.WebsocketURL) == 0 {
		v.WebsocketURL = DefaultWebsocketURL
	}
	if v.PingInterval == 0 {
		v.PingInterval = 20 * time.Second
	}
}

func (v *Options) Check() error {
	if len(v.Product) == 0 {
		return fmt.Errorf("product symbol cannot be empty")
	}
	if _, err := url.Parse(v.WebsocketURL); err != nil {
		return fmt.Errorf("invalid websocket url %q: %w", v.WebsocketURL, err)
	}
	return nil
}

type Client struct {
	opts Options

	tickerTopic *topic.Topic[*market.Tick]
}

var _ market.TickSource = &Client{}

func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	return &Client{
		opts:        *opts,
		tickerTopic: topic.New[*market.Tick](),
	}, nil
}

// GetTickerUpdates subscribes to the tick stream. Slow receivers only miss
// intermediate ticks; the most recent tick is always retained.
func (c *Client) GetTickerUpdates() (*topic.Receiver[*market.Tick], error) {
	return topic.Subscribe(c.tickerTopic, 1, true)
}

// Run keeps a websocket connection open till the context is canceled,
// reopening it with exponential backoff after failures.
func (c *Client) Run(ctx context.Context) error {
	for i := 0; ctx.Err() == nil; i = min(i+1, 5) {
		if err := c.stream(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("price stream has failed (will reconnect)", "product", c.opts.Product, "err", err)
			ctxutil.Sleep(ctx, time.Second<<i)
		}
	}
	return context.Cause(ctx)
}

func (c *Client) stream(ctx context.Context) (status error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer func() {
		cancel(status)
	}()

	dialer := websocket.Dialer{
		EnableCompression: true,
	}
	conn, _, err := dialer.DialContext(ctx, c.opts.WebsocketURL, nil)
	if err != nil {
		return fmt.Errorf("could not dial to the websocket feed: %w", err)
	}
	defer conn.Close()

	sub := &websocketRequest{
		Op:   "subscribe",
		Args: []string{"tickers." + c.opts.Product},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("could not subscribe to the ticker channel: %w", err)
	}
	slog.Info("connected to the price stream", "product", c.opts.Product, "url", c.opts.WebsocketURL)

	// Send ping messages in the background to keep the websocket alive.
	pingCh := make(chan error, 1)
	go func() {
		for ctx.Err() == nil {
			ctxutil.Sleep(ctx, c.opts.PingInterval)
			if ctx.Err() != nil {
				return
			}
			if err := conn.WriteJSON(&websocketRequest{Op: "ping"}); err != nil {
				pingCh <- err
				cancel(err)
				return
			}
		}
	}()

	for ctx.Err() == nil {
		msg, err := c.readMessage(ctx, conn)
		if err != nil {
			select {
			case perr := <-pingCh:
				return fmt.Errorf("websocket ping failed: %w", perr)
			default:
			}
			return err
		}
		if err := c.handleMessage(msg); err != nil {
			slog.Warn("could not handle websocket message (ignored)", "err", err)
		}
	}
	return context.Cause(ctx)
}

func (c *Client) readMessage(ctx context.Context, conn *websocket.Conn) (*websocketMessage, error) {
	stopc := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
		close(stopc)
	})

	_, data, err := conn.ReadMessage()
	if !stop() {
		// The AfterFunc has fired. Wait for it to complete and reset the
		// connection read deadline.
		<-stopc
		conn.SetReadDeadline(time.Time{})
		return nil, context.Cause(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read websocket message: %w", err)
	}

	msg := new(websocketMessage)
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("could not unmarshal websocket message: %w", err)
	}
	return msg, nil
}

func (c *Client) handleMessage(msg *websocketMessage) error {
	if msg.Success != nil {
		if !*msg.Success {
			return fmt.Errorf("websocket op %q failed: %s", msg.Op, msg.RetMsg)
		}
		return nil
	}
	if !strings.HasPrefix(msg.Topic, "tickers.") {
		return nil
	}

	tick, err := parseTick(msg)
	if err != nil {
		return err
	}
	if tick == nil {
		return nil
	}
	c.tickerTopic.Send(tick)
	return nil
}
