// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bvk/tradesim/bybit"
	"github.com/bvk/tradesim/ctxutil"
	"github.com/bvk/tradesim/engine"
	"github.com/bvk/tradesim/ledger"
	"github.com/bvk/tradesim/market"
	"github.com/bvk/tradesim/rates"
	"github.com/bvk/tradesim/reporter"
	"github.com/bvk/tradesim/server"
	"github.com/bvk/tradesim/telegram"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/nightlyone/lockfile"
	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"
	"github.com/visvasity/sglog"
)

type Run struct {
	ip   string
	port int

	dataDir string

	product string

	upperThreshold float64
	lowerThreshold float64
	tradeSize      float64

	startAsset float64
	startCash  float64

	defaultRate  float64
	rateInterval time.Duration

	historyWindow  time.Duration
	reportInterval time.Duration
	noReport       bool

	telegramToken  string
	telegramChatID int64
}

func (c *Run) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	fset.StringVar(&c.ip, "ip", "127.0.0.1", "TCP ip address for the status api")
	fset.IntVar(&c.port, "port", 10900, "TCP port number for the status api")
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.product, "product", "BTCUSDT", "instrument symbol on the exchange")
	fset.Float64Var(&c.upperThreshold, "upper-threshold", 9150000, "peak watch arming price in INR")
	fset.Float64Var(&c.lowerThreshold, "lower-threshold", 9050000, "trough watch arming price in INR")
	fset.Float64Var(&c.tradeSize, "trade-size", 1, "asset quantity per trade")
	fset.Float64Var(&c.startAsset, "start-asset", 10, "starting asset balance")
	fset.Float64Var(&c.startCash, "start-cash", 10000000, "starting cash balance in INR")
	fset.Float64Var(&c.defaultRate, "default-rate", 88.0, "USD/INR rate used till the first fetch")
	fset.DurationVar(&c.rateInterval, "rate-interval", 30*time.Second, "USD/INR rate refresh interval")
	fset.DurationVar(&c.historyWindow, "history-window", 2*time.Minute, "trailing price history window")
	fset.DurationVar(&c.reportInterval, "report-interval", 10*time.Second, "delay between terminal reports")
	fset.BoolVar(&c.noReport, "no-report", false, "when true, the terminal reporter is disabled")
	fset.StringVar(&c.telegramToken, "telegram-token", "", "telegram bot token for trade notifications")
	fset.Int64Var(&c.telegramChatID, "telegram-chat", 0, "telegram chat id for trade notifications")
	return "run", fset, cli.CmdFunc(c.run)
}

func (c *Run) Purpose() string {
	return "Runs the trading simulator in foreground"
}

func (c *Run) run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(c.dataDir) == 0 {
		c.dataDir = filepath.Join(os.Getenv("HOME"), ".tradesim")
	}
	if _, err := os.Stat(c.dataDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not stat data directory %q: %w", c.dataDir, err)
		}
		if err := os.MkdirAll(c.dataDir, 0700); err != nil {
			return fmt.Errorf("could not create data directory %q: %w", c.dataDir, err)
		}
	}
	dataDir, err := filepath.Abs(c.dataDir)
	if err != nil {
		return fmt.Errorf("could not determine data-dir %q absolute path: %w", c.dataDir, err)
	}

	if ip := net.ParseIP(c.ip); ip == nil {
		return fmt.Errorf("invalid ip address")
	}
	if c.port <= 0 {
		return fmt.Errorf("invalid port number")
	}
	addr := &net.TCPAddr{
		IP:   net.ParseIP(c.ip),
		Port: c.port,
	}

	lockPath := filepath.Join(dataDir, "tradesim.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		return fmt.Errorf("could not get lock on file %q: %w", lockPath, err)
	}
	defer flock.Unlock()

	backend := sglog.NewBackend(&sglog.Options{
		LogDirs: []string{dataDir},
	})
	defer backend.Close()
	slog.SetDefault(slog.New(backend.Handler()))

	slog.Info("using data directory", "data-dir", dataDir)

	db := kvmemdb.New()
	l, err := ledger.New(db, &ledger.Options{
		AssetBalance: decimal.NewFromFloat(c.startAsset),
		CashBalance:  decimal.NewFromFloat(c.startCash),
	})
	if err != nil {
		return fmt.Errorf("could not create the ledger: %w", err)
	}

	rateClient, err := rates.New(&rates.Options{
		DefaultRate: decimal.NewFromFloat(c.defaultRate),
		Interval:    c.rateInterval,
	})
	if err != nil {
		return fmt.Errorf("could not create the exchange-rate client: %w", err)
	}

	exchange, err := bybit.New(&bybit.Options{
		Product: c.product,
	})
	if err != nil {
		return fmt.Errorf("could not create the exchange client: %w", err)
	}

	history := market.NewHistory(c.historyWindow)
	collector := market.NewCollector(exchange, rateClient, history)

	eng, err := engine.New(l, collector, &engine.Options{
		UpperThreshold: decimal.NewFromFloat(c.upperThreshold),
		LowerThreshold: decimal.NewFromFloat(c.lowerThreshold),
		TradeSize:      decimal.NewFromFloat(c.tradeSize),
	})
	if err != nil {
		return fmt.Errorf("could not create the trading engine: %w", err)
	}

	// Start the status api server.
	s := server.New()
	defer s.Close()

	s.AddHandler("/status", server.StatusHandler(l, history, eng, rateClient))
	s.AddHandler("/history", server.HistoryHandler(history))
	s.AddHandler("/pid", server.PidHandler())

	if err := s.Start(ctx, addr); err != nil {
		return fmt.Errorf("could not start the status api server: %w", err)
	}

	// Start the background activities.
	var cg ctxutil.CloseGroup
	defer cg.Close()

	background := func(name string, run func(context.Context) error) {
		cg.Go(func(ctx context.Context) {
			if err := run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("background activity has failed", "name", name, "err", err)
			}
		})
	}

	background("rates", rateClient.Run)
	background("exchange", exchange.Run)
	background("collector", collector.Run)
	background("engine", eng.Run)

	if len(c.telegramToken) > 0 {
		notifier, err := telegram.New(&telegram.Secrets{
			BotToken: c.telegramToken,
			ChatID:   c.telegramChatID,
		}, eng)
		if err != nil {
			return fmt.Errorf("could not create the telegram notifier: %w", err)
		}
		background("telegram", notifier.Run)
	}

	if !c.noReport {
		rep, err := reporter.New(l, history, eng, rateClient, &reporter.Options{
			Interval: c.reportInterval,
			Window:   c.historyWindow,
		})
		if err != nil {
			return fmt.Errorf("could not create the terminal reporter: %w", err)
		}
		background("reporter", rep.Run)
	}

	slog.Info("started the trading simulator", "addr", addr, "product", c.product)

	<-ctx.Done()
	slog.Info("trading simulator is shutting down")
	return nil
}
