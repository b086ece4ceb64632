// Copyright (c) 2025 BVK Chaitanya

package bybit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bvk/tradesim/market"
	"github.com/shopspring/decimal"
)

type websocketRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

type websocketMessage struct {
	// Success and RetMsg are present on op responses (subscribe acks, pongs).
	Success *bool  `json:"success,omitempty"`
	RetMsg  string `json:"ret_msg,omitempty"`
	Op      string `json:"op,omitempty"`

	// Topic and Data are present on stream messages.
	Topic string          `json:"topic,omitempty"`
	Type  string          `json:"type,omitempty"`
	TS    int64           `json:"ts,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type tickerData struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
}

// parseTick extracts a price tick from a tickers stream message. Returns nil
// without an error for messages that carry no price, e.g. delta updates where
// the last price did not change.
func parseTick(msg *websocketMessage) (*market.Tick, error) {
	var data tickerData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, fmt.Errorf("could not unmarshal ticker data: %w", err)
	}
	if len(data.LastPrice) == 0 {
		return nil, nil
	}
	price, err := decimal.NewFromString(data.LastPrice)
	if err != nil {
		return nil, fmt.Errorf("could not parse last price %q: %w", data.LastPrice, err)
	}

	at := time.Now()
	if msg.TS > 0 {
		at = time.UnixMilli(msg.TS)
	}
	return &market.Tick{Time: at, Price: price}, nil
}
