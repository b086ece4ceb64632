// Copyright (c) 2025 BVK Chaitanya

// Package telegram sends a message for every executed trade. The notifier is
// optional; send failures are logged and never affect trading.
package telegram

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/bvk/tradesim/gobs"
	"github.com/go-telegram/bot"
	"github.com/visvasity/topic"
)

type Secrets struct {
	BotToken string

	ChatID int64
}

func (v *Secrets) Check() error {
	if len(v.BotToken) == 0 {
		return fmt.Errorf("telegram bot token cannot be empty")
	}
	if v.ChatID == 0 {
		return fmt.Errorf("telegram chat id cannot be zero")
	}
	return nil
}

// TradeSource delivers executed trades.
type TradeSource interface {
	GetTradeUpdates() (*topic.Receiver[*gobs.Trade], error)
}

type Notifier struct {
	secrets Secrets

	bot *bot.Bot

	source TradeSource
}

func New(secrets *Secrets, source TradeSource) (*Notifier, error) {
	if err := secrets.Check(); err != nil {
		return nil, err
	}
	b, err := bot.New(secrets.BotToken)
	if err != nil {
		return nil, fmt.Errorf("could not create telegram bot: %w", err)
	}
	return &Notifier{
		secrets: *secrets,
		bot:     b,
		source:  source,
	}, nil
}

// Run forwards trade notifications till the context is canceled.
func (n *Notifier) Run(ctx context.Context) error {
	recv, err := n.source.GetTradeUpdates()
	if err != nil {
		return fmt.Errorf("could not subscribe to trade updates: %w", err)
	}
	defer recv.Close()

	tradeCh, err := topic.ReceiveCh(recv)
	if err != nil {
		return fmt.Errorf("could not open the trade receive channel: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)

		case trade, ok := <-tradeCh:
			if !ok {
				return fmt.Errorf("trade stream is closed unexpectedly")
			}
			text := fmt.Sprintf("%s %s @ %s (asset %s, cash %s)",
				trade.Side, trade.Size, trade.Price.StringFixed(0), trade.AssetBalance, trade.CashBalance.StringFixed(0))
			m := &bot.SendMessageParams{
				ChatID: n.secrets.ChatID,
				Text:   text,
			}
			if _, err := n.bot.SendMessage(ctx, m); err != nil {
				slog.Warn("could not send trade notification (ignored)", "trade", trade.ID, "err", err)
			}
		}
	}
}
