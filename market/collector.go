// Copyright (c) 2025 BVK Chaitanya

package market

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bvk/tradesim/gobs"
	"github.com/visvasity/topic"
)

// Collector converts raw ticks into domain-currency price points. Each
// converted point is recorded in the trailing history and republished for the
// trading engine and other consumers. The collector is the only writer of the
// shared price state; consumers always observe complete price points.
type Collector struct {
	source TickSource

	rates RateSource

	history *History

	priceTopic *topic.Topic[*gobs.PricePoint]
}

func NewCollector(source TickSource, rates RateSource, history *History) *Collector {
	return &Collector{
		source:     source,
		rates:      rates,
		history:    history,
		priceTopic: topic.New[*gobs.PricePoint](),
	}
}

func (c *Collector) History() *History {
	return c.history
}

// GetPriceUpdates subscribes to the converted price point stream. Slow
// receivers only miss intermediate points; the most recent point is always
// retained.
func (c *Collector) GetPriceUpdates() (*topic.Receiver[*gobs.PricePoint], error) {
	return topic.Subscribe(c.priceTopic, 1, true)
}

// Run consumes the tick stream until the context is canceled.
func (c *Collector) Run(ctx context.Context) error {
	recv, err := c.source.GetTickerUpdates()
	if err != nil {
		return fmt.Errorf("could not subscribe to the tick stream: %w", err)
	}
	defer recv.Close()

	tickCh, err := topic.ReceiveCh(recv)
	if err != nil {
		return fmt.Errorf("could not open the tick receive channel: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)

		case tick, ok := <-tickCh:
			if !ok {
				return fmt.Errorf("tick stream is closed unexpectedly")
			}
			price, err := Convert(tick.Price, c.rates.Current())
			if err != nil {
				slog.Warn("could not convert tick into domain currency (ignored)", "tick", tick.Price, "err", err)
				continue
			}
			p := &gobs.PricePoint{
				Time:  tick.Time,
				Price: price,
			}
			c.history.Add(p)
			c.priceTopic.Send(p)
		}
	}
}
