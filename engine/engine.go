// Copyright (c) 2025 BVK Chaitanya

// Package engine implements the reversal-detection trading engine. The
// engine watches the converted price stream for threshold crossings, tracks
// the local peak or trough and trades exactly once per watch episode when the
// price reverses direction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bvk/tradesim/gobs"
	"github.com/bvk/tradesim/ledger"
	"github.com/shopspring/decimal"
	"github.com/visvasity/topic"
)

// Action is the direction of the most recent executed trade. It guards
// against re-entering a same-direction watch while the price is still inside
// the same threshold band.
type Action string

const (
	ActionNone Action = "NONE"
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

type watchState int

const (
	stateIdle watchState = iota
	stateWatchingPeak
	stateWatchingTrough
)

func (s watchState) String() string {
	switch s {
	case stateIdle:
		return "IDLE"
	case stateWatchingPeak:
		return "WATCHING-PEAK"
	case stateWatchingTrough:
		return "WATCHING-TROUGH"
	}
	return "UNKNOWN"
}

// PriceSource delivers converted price points. The engine evaluates every
// point it receives and does nothing in between; "no new price yet" is a
// legitimate, indefinitely-continuing condition.
type PriceSource interface {
	GetPriceUpdates() (*topic.Receiver[*gobs.PricePoint], error)
}

type Options struct {
	// UpperThreshold arms the peak watch; LowerThreshold arms the trough
	// watch. Both are in the domain currency.
	UpperThreshold decimal.Decimal
	LowerThreshold decimal.Decimal

	// TradeSize is the asset quantity bought or sold per episode.
	TradeSize decimal.Decimal
}

func (v *Options) setDefaults() {
	if v.TradeSize.IsZero() {
		v.TradeSize = decimal.NewFromInt(1)
	}
}

func (v *Options) Check() error {
	if !v.UpperThreshold.IsPositive() {
		return fmt.Errorf("upper threshold %s must be positive", v.UpperThreshold)
	}
	if !v.LowerThreshold.IsPositive() {
		return fmt.Errorf("lower threshold %s must be positive", v.LowerThreshold)
	}
	if v.LowerThreshold.GreaterThanOrEqual(v.UpperThreshold) {
		return fmt.Errorf("lower threshold %s must be below the upper threshold %s", v.LowerThreshold, v.UpperThreshold)
	}
	if !v.TradeSize.IsPositive() {
		return fmt.Errorf("trade size %s must be positive", v.TradeSize)
	}
	return nil
}

type Engine struct {
	runtimeLock sync.Mutex

	opts Options

	ledger *ledger.Ledger

	source PriceSource

	tradeTopic *topic.Topic[*gobs.Trade]

	mu sync.Mutex

	state watchState

	// mark is the running peak or trough while a watch is active.
	mark decimal.Decimal

	last Action

	episodes int64
}

// Status is a point-in-time view of the engine for the status api.
type Status struct {
	State      string
	LastAction string
	Episodes   int64
}

func New(l *ledger.Ledger, source PriceSource, opts *Options) (*Engine, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	return &Engine{
		opts:       *opts,
		ledger:     l,
		source:     source,
		tradeTopic: topic.New[*gobs.Trade](),
		state:      stateIdle,
		last:       ActionNone,
	}, nil
}

// GetTradeUpdates subscribes to the executed-trade stream.
func (e *Engine) GetTradeUpdates() (*topic.Receiver[*gobs.Trade], error) {
	return topic.Subscribe(e.tradeTopic, 0, false)
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		State:      e.state.String(),
		LastAction: string(e.last),
		Episodes:   e.episodes,
	}
}

// handleTick evaluates one price sample against the state machine. Each
// watch episode performs at most one ledger mutation and always returns to
// the idle state after a reversal, whether or not the trade went through.
func (e *Engine) handleTick(ctx context.Context, p *gobs.PricePoint) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateIdle:
		if p.Price.GreaterThanOrEqual(e.opts.UpperThreshold) && e.last != ActionSell {
			e.state = stateWatchingPeak
			e.mark = p.Price
			e.episodes++
			slog.Info("price is at or above the upper threshold, watching for a peak", "price", p.Price, "upper", e.opts.UpperThreshold)
			return
		}
		if p.Price.LessThanOrEqual(e.opts.LowerThreshold) && e.last != ActionBuy {
			e.state = stateWatchingTrough
			e.mark = p.Price
			e.episodes++
			slog.Info("price is at or below the lower threshold, watching for a trough", "price", p.Price, "lower", e.opts.LowerThreshold)
			return
		}

	case stateWatchingPeak:
		if p.Price.GreaterThan(e.mark) {
			e.mark = p.Price
			return
		}
		if p.Price.LessThan(e.mark) {
			// Reversal: the price stopped rising. Sell at the current price.
			e.state = stateIdle
			trade, err := e.ledger.Sell(ctx, e.opts.TradeSize, p.Price)
			if err != nil {
				if errors.Is(err, ledger.ErrInsufficientAsset) {
					slog.Warn("reversal sell skipped", "price", p.Price, "err", err)
					return
				}
				slog.Error("could not execute reversal sell", "price", p.Price, "err", err)
				return
			}
			e.last = ActionSell
			slog.Info("sold at reversal", "size", trade.Size, "price", trade.Price, "peak", e.mark, "asset", trade.AssetBalance, "cash", trade.CashBalance)
			e.tradeTopic.Send(trade)
			return
		}
		// Price equal to the running peak: keep watching.

	case stateWatchingTrough:
		if p.Price.LessThan(e.mark) {
			e.mark = p.Price
			return
		}
		if p.Price.GreaterThan(e.mark) {
			// Reversal: the price stopped falling. Buy at the current price.
			e.state = stateIdle
			trade, err := e.ledger.Buy(ctx, e.opts.TradeSize, p.Price)
			if err != nil {
				if errors.Is(err, ledger.ErrInsufficientFunds) {
					slog.Warn("reversal buy skipped", "price", p.Price, "err", err)
					return
				}
				slog.Error("could not execute reversal buy", "price", p.Price, "err", err)
				return
			}
			e.last = ActionBuy
			slog.Info("bought at reversal", "size", trade.Size, "price", trade.Price, "trough", e.mark, "asset", trade.AssetBalance, "cash", trade.CashBalance)
			e.tradeTopic.Send(trade)
			return
		}
	}
}
