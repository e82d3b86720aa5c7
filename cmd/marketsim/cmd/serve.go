package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/marketsim/internal/metrics"
	"github.com/rustyeddy/marketsim/internal/server"
	"github.com/rustyeddy/marketsim/journal"
	"github.com/rustyeddy/marketsim/market"
	"github.com/rustyeddy/marketsim/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulator behind an HTTP and WebSocket API",
	Long: `Run the simulator until interrupted and expose it over HTTP.

Endpoints:
  GET    /api/v1/instruments[/:symbol]
  GET    /api/v1/candles/:symbol?tf=5s|15s|30s|1m|5m
  GET    /api/v1/indicators/:symbol?name=ema|adx&period=14&tf=1m
  GET    /api/v1/book/:symbol
  GET    /api/v1/account?symbol=
  GET    /api/v1/positions
  GET    /api/v1/markers/:symbol
  POST   /api/v1/orders      {"symbol","side","quantity"}
  DELETE /api/v1/positions/:symbol
  POST   /api/v1/deposits    {"amount"}
  GET    /ws                 event feed
  GET    /metrics            Prometheus metrics
  GET    /healthz

Example:
  marketsim serve -c marketsim.yaml --addr :9000`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	j, err := journal.Open(cfg.Journal.Type, cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	m := metrics.New()
	sess, err := session.FromConfig(cfg, j, log, m)
	if err != nil {
		return err
	}
	poll, err := cfg.Simulation.ParsePollInterval()
	if err != nil {
		return err
	}

	hub := server.NewHub(log, m)
	srv := server.New(sess, hub, server.Options{
		OrderRate:  cfg.Server.OrderRate,
		OrderBurst: cfg.Server.OrderBurst,
		Logger:     log,
		Metrics:    m,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting marketsim",
		zap.String("addr", cfg.Server.Addr),
		zap.Int("symbols", len(sess.Symbols())),
		zap.String("journal", cfg.Journal.Type),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(gctx) })
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return sess.Pump(gctx, poll, func(events []market.Event) {
			hub.Broadcast(events)
		})
	})
	g.Go(func() error { return srv.Run(gctx, cfg.Server.Addr) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("marketsim stopped")
	return nil
}
