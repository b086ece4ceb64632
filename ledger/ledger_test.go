// Copyright (c) 2025 BVK Chaitanya

package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bvkgo/kv/kvmemdb"
	"github.com/shopspring/decimal"
)

func newTestLedger(t *testing.T, asset, cash int64) *Ledger {
	t.Helper()
	opts := &Options{
		AssetBalance: decimal.NewFromInt(asset),
		CashBalance:  decimal.NewFromInt(cash),
	}
	l, err := New(kvmemdb.New(), opts)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestOptionsCheck(t *testing.T) {
	opts := &Options{
		AssetBalance: decimal.NewFromInt(-1),
		CashBalance:  decimal.NewFromInt(100),
	}
	if _, err := New(kvmemdb.New(), opts); err == nil {
		t.Fatalf("negative starting balance must be rejected")
	}
}

func TestDebitInsufficiency(t *testing.T) {
	l := newTestLedger(t, 1, 100)

	if err := l.DebitCash(decimal.NewFromInt(101)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if err := l.DebitAsset(decimal.NewFromInt(2)); !errors.Is(err, ErrInsufficientAsset) {
		t.Fatalf("want ErrInsufficientAsset, got %v", err)
	}

	// Failed debits must not mutate anything.
	s := l.Snapshot()
	if !s.AssetBalance.Equal(decimal.NewFromInt(1)) || !s.CashBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balances changed on failed debits: %+v", s)
	}
}

func TestSellBuy(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, 10, 1000000)

	one := decimal.NewFromInt(1)
	sellPrice := decimal.NewFromInt(9250000)
	if _, err := l.Sell(ctx, one, sellPrice); err != nil {
		t.Fatal(err)
	}
	s := l.Snapshot()
	if want := decimal.NewFromInt(9); !s.AssetBalance.Equal(want) {
		t.Fatalf("want asset %s, got %s", want, s.AssetBalance)
	}
	if want := decimal.NewFromInt(10250000); !s.CashBalance.Equal(want) {
		t.Fatalf("want cash %s, got %s", want, s.CashBalance)
	}

	buyPrice := decimal.NewFromInt(8950000)
	if _, err := l.Buy(ctx, one, buyPrice); err != nil {
		t.Fatal(err)
	}
	s = l.Snapshot()
	if want := decimal.NewFromInt(10); !s.AssetBalance.Equal(want) {
		t.Fatalf("want asset %s, got %s", want, s.AssetBalance)
	}
	if want := decimal.NewFromInt(1300000); !s.CashBalance.Equal(want) {
		t.Fatalf("want cash %s, got %s", want, s.CashBalance)
	}

	trades, err := l.Trades(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 2 {
		t.Fatalf("want 2 journaled trades, got %d", len(trades))
	}
	if trades[0].Side != "SELL" || trades[1].Side != "BUY" {
		t.Fatalf("journal is out of order: %s %s", trades[0].Side, trades[1].Side)
	}
}

func TestSellInsufficientAsset(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, 0, 1000)

	if _, err := l.Sell(ctx, decimal.NewFromInt(1), decimal.NewFromInt(10)); !errors.Is(err, ErrInsufficientAsset) {
		t.Fatalf("want ErrInsufficientAsset, got %v", err)
	}
	s := l.Snapshot()
	if !s.AssetBalance.IsZero() || !s.CashBalance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("failed sell mutated the ledger: %+v", s)
	}
	if s.NumTrades != 0 {
		t.Fatalf("failed sell was journaled")
	}
}

func TestSnapshotConsistency(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, 100, 0)

	one := decimal.NewFromInt(1)
	price := decimal.NewFromInt(5)

	var wg sync.WaitGroup
	stopCh := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if _, err := l.Sell(ctx, one, price); err != nil {
				t.Errorf("sell %d: %v", i, err)
				return
			}
		}
		close(stopCh)
	}()

	// Every observed snapshot must account for all value: asset*price + cash
	// is invariant when each sale converts one unit at the fixed price.
	total := decimal.NewFromInt(100).Mul(price)
	for done := false; !done; {
		select {
		case <-stopCh:
			done = true
		default:
		}
		s := l.Snapshot()
		if s.AssetBalance.IsNegative() || s.CashBalance.IsNegative() {
			t.Fatalf("negative balance observed: %+v", s)
		}
		if v := s.AssetBalance.Mul(price).Add(s.CashBalance); !v.Equal(total) {
			t.Fatalf("torn snapshot observed: %+v", s)
		}
	}
	wg.Wait()
}
