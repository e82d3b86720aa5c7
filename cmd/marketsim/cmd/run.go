package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rustyeddy/marketsim/journal"
	"github.com/rustyeddy/marketsim/market"
	"github.com/rustyeddy/marketsim/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a headless simulation",
	Long: `Run the simulator without a network surface for a fixed duration.

Fills, closes and liquidations are printed as they happen. --tape adds the
trade tape of one symbol. Orders can be scripted with --order, using
side:SYMBOL:qty@offset for market orders and close:SYMBOL@offset to exit a
position. The offset is measured from the start of the run.

Example:
  marketsim run -c marketsim.yaml --duration 1m --tape NEXUS \
    --order buy:NEXUS:100@2s --order close:NEXUS@40s`,
	RunE: runRun,
}

var (
	runDuration time.Duration
	runTape     string
	runOrders   []string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVarP(&runDuration, "duration", "d", 30*time.Second, "how long to simulate")
	runCmd.Flags().StringVarP(&runTape, "tape", "t", "", "print the trade tape for this symbol")
	runCmd.Flags().StringArrayVarP(&runOrders, "order", "o", nil, "scripted order, e.g. buy:NEXUS:100@5s or close:NEXUS@20s")
}

// scriptedOrder is one --order entry. Qty is zero for closes.
type scriptedOrder struct {
	Close  bool
	Side   market.Side
	Symbol string
	Qty    int64
	At     time.Duration
}

func parseOrder(s string) (scriptedOrder, error) {
	var o scriptedOrder
	body, at, hasAt := strings.Cut(strings.TrimSpace(s), "@")
	if hasAt {
		d, err := time.ParseDuration(at)
		if err != nil {
			return o, fmt.Errorf("order %q: offset: %w", s, err)
		}
		if d < 0 {
			return o, fmt.Errorf("order %q: negative offset", s)
		}
		o.At = d
	}

	parts := strings.Split(body, ":")
	if strings.EqualFold(parts[0], "close") {
		if len(parts) != 2 || parts[1] == "" {
			return o, fmt.Errorf("order %q: want close:SYMBOL[@offset]", s)
		}
		o.Close = true
		o.Symbol = strings.ToUpper(parts[1])
		return o, nil
	}

	if len(parts) != 3 || parts[1] == "" {
		return o, fmt.Errorf("order %q: want side:SYMBOL:qty[@offset]", s)
	}
	side, err := market.ParseSide(parts[0])
	if err != nil {
		return o, fmt.Errorf("order %q: %w", s, err)
	}
	qty, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || qty <= 0 {
		return o, fmt.Errorf("order %q: quantity must be a positive integer", s)
	}
	o.Side = side
	o.Symbol = strings.ToUpper(parts[1])
	o.Qty = qty
	return o, nil
}

func parseOrders(args []string) ([]scriptedOrder, error) {
	orders := make([]scriptedOrder, 0, len(args))
	for _, s := range args {
		o, err := parseOrder(s)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].At < orders[j].At })
	return orders, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	orders, err := parseOrders(runOrders)
	if err != nil {
		return err
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	j, err := journal.Open(cfg.Journal.Type, cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	sess, err := session.FromConfig(cfg, j, log, nil)
	if err != nil {
		return err
	}
	poll, err := cfg.Simulation.ParsePollInterval()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Simulating %d symbols for %s (cash $%.2f, %d:1)\n\n",
		len(sess.Symbols()), runDuration, cfg.Account.Cash, cfg.Account.Leverage)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runDuration)
	defer cancel()

	tape := strings.ToUpper(runTape)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(gctx) })
	g.Go(func() error {
		return sess.Pump(gctx, poll, func(events []market.Event) {
			printEvents(out, events, tape)
		})
	})
	g.Go(func() error { return runScript(gctx, sess, orders, out, log) })

	if err := g.Wait(); err != nil {
		return err
	}

	printAccount(out, sess)
	return nil
}

func printEvents(out io.Writer, events []market.Event, tape string) {
	for _, e := range events {
		switch e.Kind {
		case market.KindTick:
			continue
		case market.KindTrade:
			if e.Symbol != tape {
				continue
			}
		}
		fmt.Fprintln(out, e)
	}
}

// runScript submits orders at their offsets and stops early when ctx ends.
// Rejected orders are reported and do not stop the run.
func runScript(ctx context.Context, sess *session.Session, orders []scriptedOrder, out io.Writer, log *zap.Logger) error {
	start := time.Now()
	for _, o := range orders {
		wait := time.NewTimer(time.Until(start.Add(o.At)))
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil
		case <-wait.C:
		}

		var err error
		if o.Close {
			_, err = sess.ClosePosition(ctx, o.Symbol)
		} else {
			_, err = sess.SubmitOrder(ctx, o.Symbol, o.Side, o.Qty)
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Warn("scripted order rejected", zap.String("symbol", o.Symbol), zap.Error(err))
			fmt.Fprintf(out, "order rejected: %v\n", err)
		}
	}
	return nil
}

func printAccount(out io.Writer, sess *session.Session) {
	a := sess.Account("")
	fmt.Fprintf(out, "\nFinal Account:\n")
	fmt.Fprintf(out, "  Cash:        $%.2f\n", a.Cash)
	fmt.Fprintf(out, "  Equity:      $%.2f\n", a.Equity)
	fmt.Fprintf(out, "  Unrealized:  $%+.2f\n", a.UnrealizedPnL)
	fmt.Fprintf(out, "  Margin used: $%.2f\n", a.UsedMargin)
	fmt.Fprintf(out, "  Free margin: $%.2f\n", a.FreeMargin)

	positions := sess.Positions()
	if len(positions) == 0 {
		return
	}
	fmt.Fprintf(out, "\nOpen Positions:\n")
	for _, p := range positions {
		fmt.Fprintf(out, "  %-8s %+8d @ %.3f\n", p.Symbol, p.Size, p.AvgPrice)
	}
}
