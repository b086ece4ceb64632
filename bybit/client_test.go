// Copyright (c) 2025 BVK Chaitanya

package bybit

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/visvasity/topic"
)

func parse(t *testing.T, s string) *websocketMessage {
	t.Helper()
	msg := new(websocketMessage)
	if err := json.Unmarshal([]byte(s), msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestHandleTickerMessage(t *testing.T) {
	c, err := New(&Options{Product: "BTCUSDT"})
	if err != nil {
		t.Fatal(err)
	}

	recv, err := c.GetTickerUpdates()
	if err != nil {
		t.Fatal(err)
	}
	defer recv.Close()
	tickCh, err := topic.ReceiveCh(recv)
	if err != nil {
		t.Fatal(err)
	}

	msg := parse(t, `{"topic":"tickers.BTCUSDT","type":"snapshot","ts":1700000000000,"data":{"symbol":"BTCUSDT","lastPrice":"104003.10"}}`)
	if err := c.handleMessage(msg); err != nil {
		t.Fatal(err)
	}

	tick := <-tickCh
	if want := decimal.RequireFromString("104003.10"); !tick.Price.Equal(want) {
		t.Fatalf("want %s, got %s", want, tick.Price)
	}
	if tick.Time.UnixMilli() != 1700000000000 {
		t.Fatalf("tick time must come from the message timestamp")
	}
}

func TestHandleDeltaWithoutPrice(t *testing.T) {
	c, err := New(&Options{Product: "BTCUSDT"})
	if err != nil {
		t.Fatal(err)
	}

	// Delta updates may not carry lastPrice; they must be skipped silently.
	msg := parse(t, `{"topic":"tickers.BTCUSDT","type":"delta","ts":1700000000001,"data":{"symbol":"BTCUSDT","markPrice":"104000"}}`)
	if err := c.handleMessage(msg); err != nil {
		t.Fatal(err)
	}
}

func TestHandleOpResponses(t *testing.T) {
	c, err := New(&Options{Product: "BTCUSDT"})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.handleMessage(parse(t, `{"success":true,"op":"subscribe","ret_msg":""}`)); err != nil {
		t.Fatal(err)
	}
	if err := c.handleMessage(parse(t, `{"success":false,"op":"subscribe","ret_msg":"bad args"}`)); err == nil {
		t.Fatalf("failed op response must be reported")
	}
}

func TestOptionsCheck(t *testing.T) {
	if _, err := New(&Options{}); err == nil {
		t.Fatalf("empty product must be rejected")
	}
}
