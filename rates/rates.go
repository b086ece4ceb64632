// Copyright (c) 2025 BVK Chaitanya

// Package rates implements the fiat conversion-rate refresher. The most
// recent successfully fetched rate is retained indefinitely; consumers never
// block on the network and never observe a non-positive rate.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bvk/tradesim/ctxutil"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const DefaultEndpoint = "https://open.er-api.com/v6/latest/USD"

type Options struct {
	// Endpoint is the exchange-rate api URL.
	Endpoint string

	// Symbol selects the rate from the api response, e.g. "INR".
	Symbol string

	// DefaultRate is used till the first successful fetch.
	DefaultRate decimal.Decimal

	// Interval is the refresh cadence.
	Interval time.Duration

	HttpClientTimeout time.Duration
}

func (v *Options) setDefaults() {
	if len(v.Endpoint) == 0 {
		v.Endpoint = DefaultEndpoint
	}
	if len(v.Symbol) == 0 {
		v.Symbol = "INR"
	}
	if v.Interval == 0 {
		v.Interval = 30 * time.Second
	}
	if v.HttpClientTimeout == 0 {
		v.HttpClientTimeout = 4 * time.Second
	}
}

func (v *Options) Check() error {
	if !v.DefaultRate.IsPositive() {
		return fmt.Errorf("default conversion rate %s must be positive", v.DefaultRate)
	}
	if _, err := url.Parse(v.Endpoint); err != nil {
		return fmt.Errorf("invalid endpoint url %q: %w", v.Endpoint, err)
	}
	return nil
}

type Client struct {
	opts Options

	client http.Client

	// limiter guards against hammering the free api when the refresh interval
	// is configured too aggressively.
	limiter *rate.Limiter

	mu sync.Mutex

	current decimal.Decimal

	updatedAt time.Time
}

func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	c := &Client{
		opts: *opts,
		client: http.Client{
			Timeout: opts.HttpClientTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(10*time.Second), 3),
		current: opts.DefaultRate,
	}
	return c, nil
}

// Current returns the last known-good conversion rate. Never blocks on the
// network; always positive.
func (c *Client) Current() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// UpdatedAt returns the time of the last successful fetch. Returns the zero
// time while the default rate is still in effect.
func (c *Client) UpdatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updatedAt
}

// Run refreshes the rate periodically till the context is canceled. Fetch
// failures are logged and the previous rate stays in effect.
func (c *Client) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if err := c.refresh(ctx); err != nil {
			slog.Warn("could not refresh the conversion rate (will retry)", "symbol", c.opts.Symbol, "err", err)
		}
		ctxutil.Sleep(ctx, c.opts.Interval)
	}
	return context.Cause(ctx)
}

func (c *Client) refresh(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return context.Cause(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.Endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exchange-rate api returned status %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]json.Number `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("could not decode exchange-rate response: %w", err)
	}
	v, ok := body.Rates[c.opts.Symbol]
	if !ok {
		return fmt.Errorf("exchange-rate response has no %q rate", c.opts.Symbol)
	}
	fresh, err := decimal.NewFromString(v.String())
	if err != nil {
		return fmt.Errorf("could not parse rate %q: %w", v, err)
	}
	if !fresh.IsPositive() {
		return fmt.Errorf("fetched rate %s is not positive", fresh)
	}

	c.mu.Lock()
	c.current = fresh
	c.updatedAt = time.Now()
	c.mu.Unlock()

	slog.Debug("refreshed the conversion rate", "symbol", c.opts.Symbol, "rate", fresh)
	return nil
}
