// Copyright (c) 2025 BVK Chaitanya

// Package reporter prints a periodic one-screen summary of the simulation to
// standard output.
package reporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bvk/tradesim/ctxutil"
	"github.com/bvk/tradesim/engine"
	"github.com/bvk/tradesim/gobs"
	"github.com/bvk/tradesim/ledger"
	"github.com/bvk/tradesim/market"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

var sparks = []rune("▁▂▃▄▅▆▇█")

type Options struct {
	// Interval is the delay between two reports.
	Interval time.Duration

	// Window selects the price history range used for the sparkline.
	Window time.Duration
}

func (v *Options) setDefaults() {
	if v.Interval == 0 {
		v.Interval = 10 * time.Second
	}
	if v.Window == 0 {
		v.Window = 2 * time.Minute
	}
}

func (v *Options) Check() error {
	if v.Interval < 0 || v.Window < 0 {
		return fmt.Errorf("report interval and window cannot be negative")
	}
	return nil
}

type Reporter struct {
	opts Options

	out io.Writer

	ledger  *ledger.Ledger
	history *market.History
	engine  *engine.Engine
	rates   market.RateSource

	// startValue is the portfolio value at the first report, used to show the
	// session profit or loss.
	startValue decimal.Decimal
	haveStart  bool
}

func New(l *ledger.Ledger, history *market.History, eng *engine.Engine, rates market.RateSource, opts *Options) (*Reporter, error) {
	if opts == nil {
		opts = new(Options)
	}
	if err := opts.Check(); err != nil {
		return nil, err
	}
	r := &Reporter{
		opts:    *opts,
		out:     os.Stdout,
		ledger:  l,
		history: history,
		engine:  eng,
		rates:   rates,
	}
	r.opts.setDefaults()
	return r, nil
}

// Run reports periodically till the context is canceled.
func (r *Reporter) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		r.report()
		ctxutil.Sleep(ctx, r.opts.Interval)
	}
	return context.Cause(ctx)
}

func (r *Reporter) report() {
	snap := r.ledger.Snapshot()
	status := r.engine.Status()
	rate := r.rates.Current()

	width := 80
	if f, ok := r.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  rate %s INR/USD\n", time.Now().Format(time.TimeOnly), rate)

	total := snap.CashBalance
	if p, ok := r.history.Latest(); ok {
		total = snap.CashBalance.Add(snap.AssetBalance.Mul(p.Price))
		fmt.Fprintf(&sb, "price %s INR at %s\n", p.Price.StringFixed(2), p.Time.Format(time.TimeOnly))
	} else {
		fmt.Fprintf(&sb, "price -- (no data yet)\n")
	}

	if !r.haveStart {
		r.startValue = total
		r.haveStart = true
	}
	change := total.Sub(r.startValue)
	sign := ""
	if !change.IsNegative() {
		sign = "+"
	}

	fmt.Fprintf(&sb, "asset %s  cash %s  total %s (%s%s)\n",
		snap.AssetBalance, snap.CashBalance.StringFixed(2), total.StringFixed(2), sign, change.StringFixed(2))
	fmt.Fprintf(&sb, "engine %s  last %s  episodes %d  trades %d\n",
		status.State, status.LastAction, status.Episodes, snap.NumTrades)

	if line := sparkline(r.history.Points(r.opts.Window), width); len(line) > 0 {
		fmt.Fprintf(&sb, "%s\n", line)
	}
	fmt.Fprintln(r.out, sb.String())
}

// sparkline renders prices as a single line of block characters scaled to the
// min and max over the window.
func sparkline(points []*gobs.PricePoint, width int) string {
	if len(points) < 2 || width < 2 {
		return ""
	}
	if len(points) > width {
		points = points[len(points)-width:]
	}

	lo, hi := points[0].Price, points[0].Price
	for _, p := range points[1:] {
		if p.Price.LessThan(lo) {
			lo = p.Price
		}
		if p.Price.GreaterThan(hi) {
			hi = p.Price
		}
	}
	span := hi.Sub(lo)

	var sb strings.Builder
	for _, p := range points {
		i := 0
		if span.IsPositive() {
			nlevels := decimal.NewFromInt(int64(len(sparks) - 1))
			i = int(p.Price.Sub(lo).Mul(nlevels).Div(span).Round(0).IntPart())
			if i < 0 {
				i = 0
			}
			if i >= len(sparks) {
				i = len(sparks) - 1
			}
		}
		sb.WriteRune(sparks[i])
	}
	return sb.String()
}
