// Copyright (c) 2025 BVK Chaitanya

// Package market holds the shared price state of a simulation: the raw tick
// stream converted into the domain currency, the most recent price and a
// bounded trailing history of price points.
package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/visvasity/topic"
)

// Tick is one raw price update from the streaming source, denominated in the
// reference currency (e.g. USDT for a Bybit linear product).
type Tick struct {
	Time time.Time

	Price decimal.Decimal
}

// TickSource is the price feed contract. Implementations deliver an unbounded
// sequence of ticks with no minimum or maximum inter-tick interval and must
// recover from transient upstream failures on their own.
type TickSource interface {
	GetTickerUpdates() (*topic.Receiver[*Tick], error)
}

// RateSource supplies the last known-good conversion rate from the reference
// currency into the domain currency. Implementations must never block on the
// network and must never return a non-positive rate.
type RateSource interface {
	Current() decimal.Decimal
}

// Convert turns a raw tick price into the domain currency using the given
// conversion rate. Returns a non-nil error if the rate is not positive.
func Convert(tick, rate decimal.Decimal) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("conversion rate %s is not positive", rate)
	}
	return tick.Mul(rate), nil
}
