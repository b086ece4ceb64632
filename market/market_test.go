// Copyright (c) 2025 BVK Chaitanya

package market

import (
	"testing"
	"time"

	"github.com/bvk/tradesim/gobs"
	"github.com/shopspring/decimal"
)

func TestConvert(t *testing.T) {
	tick := decimal.RequireFromString("104000.5")
	rate := decimal.RequireFromString("88")

	v, err := Convert(tick, rate)
	if err != nil {
		t.Fatal(err)
	}
	if want := decimal.RequireFromString("9152044"); !v.Equal(want) {
		t.Fatalf("want %s, got %s", want, v)
	}

	// Convert is a pure function.
	w, err := Convert(tick, rate)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Equal(w) {
		t.Fatalf("want %s == %s", v, w)
	}
}

func TestConvertBadRate(t *testing.T) {
	tick := decimal.NewFromInt(100)
	for _, rate := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1)} {
		if _, err := Convert(tick, rate); err == nil {
			t.Fatalf("rate %s must be rejected", rate)
		}
	}
}

func TestHistoryEviction(t *testing.T) {
	h := NewHistory(time.Minute)

	now := time.Now()
	for i := 0; i < 180; i++ {
		h.Add(&gobs.PricePoint{
			Time:  now.Add(time.Duration(i) * time.Second),
			Price: decimal.NewFromInt(int64(i)),
		})
	}

	last, ok := h.Latest()
	if !ok {
		t.Fatalf("latest point must exist")
	}
	if want := decimal.NewFromInt(179); !last.Price.Equal(want) {
		t.Fatalf("want %s, got %s", want, last.Price)
	}

	points := h.Points(0)
	for _, p := range points {
		if p.Time.Before(last.Time.Add(-time.Minute)) {
			t.Fatalf("point at %s is older than the retention window", p.Time)
		}
	}
	if n := len(points); n != 61 {
		t.Fatalf("want 61 points in the window, got %d", n)
	}
}

func TestHistorySubWindow(t *testing.T) {
	h := NewHistory(time.Minute)

	now := time.Now()
	for i := 0; i < 30; i++ {
		h.Add(&gobs.PricePoint{
			Time:  now.Add(time.Duration(i) * time.Second),
			Price: decimal.NewFromInt(int64(i)),
		})
	}

	points := h.Points(10 * time.Second)
	if n := len(points); n != 11 {
		t.Fatalf("want 11 points, got %d", n)
	}
	for i := 1; i < len(points); i++ {
		if points[i].Time.Before(points[i-1].Time) {
			t.Fatalf("points must be in time order")
		}
	}
}
