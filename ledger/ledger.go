// Copyright (c) 2025 BVK Chaitanya

// Package ledger maintains the simulated asset and cash balances. All
// mutations are atomic read-modify-write operations; a debit that would drive
// a balance below zero fails without any mutation. Executed trades are
// journaled in the key-value database.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/bvk/tradesim/gobs"
	"github.com/bvk/tradesim/kvutil"
	"github.com/bvkgo/kv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultKeyspace = "/trades/"

var (
	// ErrInsufficientFunds is returned when a cash debit would make the cash
	// balance negative.
	ErrInsufficientFunds = errors.New("insufficient cash balance")

	// ErrInsufficientAsset is returned when an asset debit would make the asset
	// balance negative.
	ErrInsufficientAsset = errors.New("insufficient asset balance")
)

type Options struct {
	// AssetBalance and CashBalance are the starting balances.
	AssetBalance decimal.Decimal
	CashBalance  decimal.Decimal
}

func (v *Options) Check() error {
	if v.AssetBalance.IsNegative() {
		return fmt.Errorf("starting asset balance cannot be negative")
	}
	if v.CashBalance.IsNegative() {
		return fmt.Errorf("starting cash balance cannot be negative")
	}
	return nil
}

type Ledger struct {
	db kv.Database

	mu sync.Mutex

	asset decimal.Decimal
	cash  decimal.Decimal

	numTrades int64
}

// Snapshot is a consistent view of both balances as of one instant.
type Snapshot struct {
	AssetBalance decimal.Decimal
	CashBalance  decimal.Decimal

	NumTrades int64
}

func New(db kv.Database, opts *Options) (*Ledger, error) {
	if err := opts.Check(); err != nil {
		return nil, err
	}
	return &Ledger{
		db:    db,
		asset: opts.AssetBalance,
		cash:  opts.CashBalance,
	}, nil
}

// Snapshot returns both balances as of one instant. A concurrent trade is
// observed either fully applied or not at all.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		AssetBalance: l.asset,
		CashBalance:  l.cash,
		NumTrades:    l.numTrades,
	}
}

func (l *Ledger) CreditCash(amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creditCashLocked(amount)
}

func (l *Ledger) DebitCash(amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debitCashLocked(amount)
}

func (l *Ledger) CreditAsset(qty decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creditAssetLocked(qty)
}

func (l *Ledger) DebitAsset(qty decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debitAssetLocked(qty)
}

func (l *Ledger) creditCashLocked(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("credit amount cannot be negative")
	}
	l.cash = l.cash.Add(amount)
	return nil
}

func (l *Ledger) debitCashLocked(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("debit amount cannot be negative")
	}
	if l.cash.LessThan(amount) {
		return fmt.Errorf("cannot debit %s from cash balance %s: %w", amount, l.cash, ErrInsufficientFunds)
	}
	l.cash = l.cash.Sub(amount)
	return nil
}

func (l *Ledger) creditAssetLocked(qty decimal.Decimal) error {
	if qty.IsNegative() {
		return fmt.Errorf("credit quantity cannot be negative")
	}
	l.asset = l.asset.Add(qty)
	return nil
}

func (l *Ledger) debitAssetLocked(qty decimal.Decimal) error {
	if qty.IsNegative() {
		return fmt.Errorf("debit quantity cannot be negative")
	}
	if l.asset.LessThan(qty) {
		return fmt.Errorf("cannot debit %s from asset balance %s: %w", qty, l.asset, ErrInsufficientAsset)
	}
	l.asset = l.asset.Sub(qty)
	return nil
}

// Sell debits the given asset quantity and credits the sale proceeds under a
// single lock acquisition. Nothing is mutated when the asset balance is
// insufficient.
func (l *Ledger) Sell(ctx context.Context, size, price decimal.Decimal) (*gobs.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.debitAssetLocked(size); err != nil {
		return nil, err
	}
	if err := l.creditCashLocked(size.Mul(price)); err != nil {
		// Undo the debit; a trade is never partially applied.
		l.asset = l.asset.Add(size)
		return nil, err
	}
	return l.journalLocked(ctx, "SELL", size, price), nil
}

// Buy debits the purchase cost and credits the asset quantity under a single
// lock acquisition. Nothing is mutated when the cash balance is insufficient.
func (l *Ledger) Buy(ctx context.Context, size, price decimal.Decimal) (*gobs.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.debitCashLocked(size.Mul(price)); err != nil {
		return nil, err
	}
	if err := l.creditAssetLocked(size); err != nil {
		l.cash = l.cash.Add(size.Mul(price))
		return nil, err
	}
	return l.journalLocked(ctx, "BUY", size, price), nil
}

func (l *Ledger) journalLocked(ctx context.Context, side string, size, price decimal.Decimal) *gobs.Trade {
	l.numTrades++
	trade := &gobs.Trade{
		ID:           uuid.New().String(),
		Time:         time.Now(),
		Side:         side,
		Size:         size,
		Price:        price,
		AssetBalance: l.asset,
		CashBalance:  l.cash,
	}
	key := path.Join(DefaultKeyspace, fmt.Sprintf("%019d-%s", trade.Time.UnixNano(), trade.ID))
	if err := kvutil.SetDB(ctx, l.db, key, trade); err != nil {
		// The journal is informational; the balances are already correct.
		slog.Error("could not journal trade (ignored)", "trade", trade.ID, "err", err)
	}
	return trade
}

// Trades returns the journaled trades in execution order.
func (l *Ledger) Trades(ctx context.Context) ([]*gobs.Trade, error) {
	var trades []*gobs.Trade
	begin, end := kvutil.PathRange(DefaultKeyspace)
	fn := func(ctx context.Context, r kv.Reader, key string, v *gobs.Trade) error {
		trades = append(trades, v)
		return nil
	}
	if err := kvutil.AscendDB(ctx, l.db, begin, end, fn); err != nil {
		return nil, fmt.Errorf("could not scan the trade journal: %w", err)
	}
	return trades, nil
}
