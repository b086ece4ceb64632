// Copyright (c) 2025 BVK Chaitanya

// Package gobs defines the stable record types shared between the trade
// journal, the HTTP status api and the notifiers. Values of these types are
// gob-encoded when stored in the key-value database, so fields must not be
// renamed or removed.
package gobs

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is a single converted price sample in the domain currency.
type PricePoint struct {
	Time time.Time

	Price decimal.Decimal
}

// Trade records one simulated trade executed against the ledger.
type Trade struct {
	// ID is the unique identifier assigned when the trade is journaled.
	ID string

	Time time.Time

	// Side is "BUY" or "SELL".
	Side string

	Size  decimal.Decimal
	Price decimal.Decimal

	// AssetBalance and CashBalance are the ledger balances immediately after
	// this trade was applied.
	AssetBalance decimal.Decimal
	CashBalance  decimal.Decimal
}

// LedgerState is the journaled form of the ledger balances.
type LedgerState struct {
	AssetBalance decimal.Decimal
	CashBalance  decimal.Decimal

	NumTrades int64
}
