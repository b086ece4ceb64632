// Copyright (c) 2025 BVK Chaitanya

package rates

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRefresh(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"result":"success","rates":{"USD":1,"INR":88.35}}`)
	}))
	defer s.Close()

	c, err := New(&Options{
		Endpoint:    s.URL,
		Symbol:      "INR",
		DefaultRate: decimal.NewFromInt(88),
	})
	if err != nil {
		t.Fatal(err)
	}

	if want := decimal.NewFromInt(88); !c.Current().Equal(want) {
		t.Fatalf("want default rate %s, got %s", want, c.Current())
	}
	if !c.UpdatedAt().IsZero() {
		t.Fatalf("updatedAt must be zero before the first fetch")
	}

	if err := c.refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if want := decimal.RequireFromString("88.35"); !c.Current().Equal(want) {
		t.Fatalf("want %s, got %s", want, c.Current())
	}
	if c.UpdatedAt().IsZero() {
		t.Fatalf("updatedAt must advance after a successful fetch")
	}
}

func TestRefreshFailureKeepsLastGood(t *testing.T) {
	fail := false
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"rates":{"INR":90.5}}`)
	}))
	defer s.Close()

	c, err := New(&Options{
		Endpoint:    s.URL,
		DefaultRate: decimal.NewFromInt(88),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := decimal.RequireFromString("90.5")
	if !c.Current().Equal(want) {
		t.Fatalf("want %s, got %s", want, c.Current())
	}

	fail = true
	if err := c.refresh(context.Background()); err == nil {
		t.Fatalf("refresh must fail when the api fails")
	}
	if !c.Current().Equal(want) {
		t.Fatalf("failed refresh must keep the last known-good rate")
	}
}

func TestOptionsCheck(t *testing.T) {
	if _, err := New(&Options{DefaultRate: decimal.Zero}); err == nil {
		t.Fatalf("zero default rate must be rejected")
	}
	if _, err := New(&Options{DefaultRate: decimal.NewFromInt(-1)}); err == nil {
		t.Fatalf("negative default rate must be rejected")
	}
}
