// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bvk/tradesim/engine"
	"github.com/bvk/tradesim/gobs"
	"github.com/bvk/tradesim/ledger"
	"github.com/bvk/tradesim/market"
	"github.com/shopspring/decimal"
)

// StatusResponse is the /status reply.
type StatusResponse struct {
	AssetBalance decimal.Decimal
	CashBalance  decimal.Decimal

	// TotalValue is cash plus asset valued at the last price.
	TotalValue decimal.Decimal

	LastPrice     decimal.Decimal
	LastPriceTime time.Time

	ConversionRate decimal.Decimal

	EngineState      string
	EngineLastAction string
	Episodes         int64
	NumTrades        int64
}

// HistoryResponse is the /history reply.
type HistoryResponse struct {
	Points []*gobs.PricePoint
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("could not encode api response (ignored)", "err", err)
	}
}

// StatusHandler serves a consistent snapshot of the simulation.
func StatusHandler(l *ledger.Ledger, history *market.History, eng *engine.Engine, rates market.RateSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := l.Snapshot()
		status := eng.Status()

		resp := &StatusResponse{
			AssetBalance:     snap.AssetBalance,
			CashBalance:      snap.CashBalance,
			TotalValue:       snap.CashBalance,
			ConversionRate:   rates.Current(),
			EngineState:      status.State,
			EngineLastAction: status.LastAction,
			Episodes:         status.Episodes,
			NumTrades:        snap.NumTrades,
		}
		if p, ok := history.Latest(); ok {
			resp.LastPrice = p.Price
			resp.LastPriceTime = p.Time
			resp.TotalValue = snap.CashBalance.Add(snap.AssetBalance.Mul(p.Price))
		}
		writeJSON(w, resp)
	})
}

// HistoryHandler serves the price points within the trailing window given by
// the optional "window" query parameter.
func HistoryHandler(history *market.History) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var window time.Duration
		if v := r.FormValue("window"); len(v) > 0 {
			d, err := time.ParseDuration(v)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid window %q: %v", v, err), http.StatusBadRequest)
				return
			}
			window = d
		}
		writeJSON(w, &HistoryResponse{Points: history.Points(window)})
	})
}

// PidHandler reports the process id, used to check which process owns the
// listening address.
func PidHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, fmt.Sprintf("%d", os.Getpid()))
	})
}
