package cmd

import (
	"fmt"

	"github.com/rustyeddy/marketsim/config"
	"github.com/rustyeddy/marketsim/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "marketsim",
	Short: "A synthetic market simulator with a margin trading account",
	Long: `Marketsim simulates a universe of synthetic instruments and a leveraged
account that trades against them.

It provides:
  - Random-walk prices with trend, volatility and order-flow pressure
  - Multi-timeframe candles, a synthetic order book and a trade tape
  - Market orders, position closes and deposits on a margin account
  - Automatic liquidation when free margin goes negative
  - A JSON/WebSocket API and Prometheus metrics (serve)
  - Trade, fill and equity journals in CSV or SQLite

Configuration comes from a YAML, JSON or TOML file, a .env file and
MARKETSIM_* environment variables, in that order.`,
	SilenceUsage: true,
}

var (
	configPath string
	logLevel   string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML, JSON or TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// setup loads the effective configuration and builds the logger it asks for.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}
