package session

import (
	"fmt"

	"github.com/rustyeddy/marketsim/config"
	"github.com/rustyeddy/marketsim/internal/metrics"
	"github.com/rustyeddy/marketsim/journal"
	"github.com/rustyeddy/marketsim/market"
	"github.com/rustyeddy/marketsim/sim"
	"go.uber.org/zap"
)

// BuildInstruments seeds the configured universe. Symbols with an
// instruments entry start from that entry; the rest are random.
func BuildInstruments(sc config.SimulationConfig) []market.Instrument {
	pinned := make(map[string]config.InstrumentConfig, len(sc.Instruments))
	for _, ic := range sc.Instruments {
		pinned[ic.Symbol] = ic
	}

	symbols := sc.AllSymbols()
	out := sim.SeedInstruments(sc.Seed, symbols)
	for i, inst := range out {
		if ic, ok := pinned[inst.Symbol]; ok {
			out[i] = sim.NewInstrument(ic.Symbol, ic.Price, ic.Volatility, ic.Trend)
		}
	}
	return out
}

// FromConfig builds a session from a validated configuration.
func FromConfig(cfg *config.Config, j journal.Journal, log *zap.Logger, m *metrics.Metrics) (*Session, error) {
	minDelay, err := cfg.Simulation.ParseMinDelay()
	if err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	maxDelay, err := cfg.Simulation.ParseMaxDelay()
	if err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}

	return New(Options{
		Instruments: BuildInstruments(cfg.Simulation),
		Params: sim.Params{
			Seed:             cfg.Simulation.Seed,
			TradeProbability: cfg.Simulation.TradeProbability,
			CandleCapacity:   cfg.Simulation.CandleCapacity,
		},
		Cash:     cfg.Account.Cash,
		Leverage: cfg.Account.Leverage,
		MinDelay: minDelay,
		MaxDelay: maxDelay,
		Journal:  j,
		Logger:   log,
		Metrics:  m,
	})
}
