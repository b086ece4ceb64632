// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/bvk/tradesim/server"
	"github.com/visvasity/cli"
)

type Status struct {
	ip   string
	port int

	timeout time.Duration
}

func (c *Status) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	fset.StringVar(&c.ip, "ip", "127.0.0.1", "TCP ip address of the simulator")
	fset.IntVar(&c.port, "port", 10900, "TCP port number of the simulator")
	fset.DurationVar(&c.timeout, "timeout", 5*time.Second, "http request timeout")
	return "status", fset, cli.CmdFunc(c.run)
}

func (c *Status) Purpose() string {
	return "Prints balances and engine state of a running simulator"
}

func (c *Status) run(ctx context.Context, args []string) error {
	url := fmt.Sprintf("http://%s:%d/status", c.ip, c.port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: c.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("could not fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status: %d", resp.StatusCode)
	}

	status := new(server.StatusResponse)
	if err := json.NewDecoder(resp.Body).Decode(status); err != nil {
		return fmt.Errorf("could not decode the status response: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "Asset Balance:\t%s\n", status.AssetBalance)
	fmt.Fprintf(tw, "Cash Balance:\t%s\n", status.CashBalance.StringFixed(2))
	fmt.Fprintf(tw, "Total Value:\t%s\n", status.TotalValue.StringFixed(2))
	fmt.Fprintf(tw, "Last Price:\t%s\n", status.LastPrice.StringFixed(2))
	if !status.LastPriceTime.IsZero() {
		fmt.Fprintf(tw, "Last Price Time:\t%s\n", status.LastPriceTime.Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "Conversion Rate:\t%s\n", status.ConversionRate)
	fmt.Fprintf(tw, "Engine State:\t%s\n", status.EngineState)
	fmt.Fprintf(tw, "Last Action:\t%s\n", status.EngineLastAction)
	fmt.Fprintf(tw, "Episodes:\t%d\n", status.Episodes)
	fmt.Fprintf(tw, "Trades:\t%d\n", status.NumTrades)
	return tw.Flush()
}
