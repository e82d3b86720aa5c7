package sim

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/rustyeddy/marketsim/market"
)

const (
	// DefaultTradeProbability is the chance a step prints an aggressor trade.
	DefaultTradeProbability = 0.92

	// TradeImpact converts synthetic trade size (per 1000) into flow pressure.
	TradeImpact = 0.004

	minTradeSize   = 200
	maxTradeSize   = 35000
	maxTradeOffset = 0.4
)

// TapeGenerator prints synthetic aggressor trades and feeds their impact
// back into the instrument's flow pressure.
type TapeGenerator struct {
	rng         *rand.Rand
	probability float64
}

func NewTapeGenerator(rng *rand.Rand, probability float64) *TapeGenerator {
	return &TapeGenerator{rng: rng, probability: probability}
}

// MaybeEmitTrade returns the events for one step of inst: an optional Trade
// followed by a Tick.
func (g *TapeGenerator) MaybeEmitTrade(inst *market.Instrument, now time.Time) []market.Event {
	events := make([]market.Event, 0, 2)

	if g.rng.Float64() < g.probability {
		side := market.Buy
		if g.rng.IntN(2) == 1 {
			side = market.Sell
		}
		size := uniformInt(g.rng, minTradeSize, maxTradeSize)
		price := math.Max(MinPrice, round3(inst.Price+uniform(g.rng, -maxTradeOffset, maxTradeOffset)))

		inst.FlowPressure += float64(size) / 1000 * TradeImpact * side.Sign()
		events = append(events, market.TradeEvent(inst.Symbol, side, size, price, now))
	}

	return append(events, market.TickEvent(inst.Symbol, now))
}
