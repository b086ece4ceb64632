// Copyright (c) 2025 BVK Chaitanya

package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/visvasity/topic"
)

// Run evaluates the price stream till the context is canceled. The engine
// wakes only when a new price point arrives; there is no polling. An
// in-flight evaluation always completes before Run returns, so cancellation
// never leaves a partially applied trade.
func (e *Engine) Run(ctx context.Context) error {
	if !e.runtimeLock.TryLock() {
		return fmt.Errorf("engine is already running: %w", os.ErrInvalid)
	}
	defer e.runtimeLock.Unlock()

	recv, err := e.source.GetPriceUpdates()
	if err != nil {
		return fmt.Errorf("could not subscribe to price updates: %w", err)
	}
	defer recv.Close()

	priceCh, err := topic.ReceiveCh(recv)
	if err != nil {
		return fmt.Errorf("could not open the price receive channel: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)

		case p, ok := <-priceCh:
			if !ok {
				return fmt.Errorf("price stream is closed unexpectedly")
			}
			e.handleTick(ctx, p)
		}
	}
}
