// sim/price.go
package sim

import (
	"math"
	"math/rand/v2"

	"github.com/rustyeddy/marketsim/market"
	"github.com/shopspring/decimal"
)

const (
	// MinPrice is the floor of the price process.
	MinPrice = 0.01

	// FlowImpact scales pending flow pressure into the next move.
	FlowImpact = 0.8
	// FlowDecay is the per-step memory of flow pressure.
	FlowDecay = 0.88

	spreadMoveFactor = 50
	minSpreadJitter  = 0.03
	maxSpreadJitter  = 0.35

	priceDecimals = 3
	priceTick     = 0.001
)

// PriceEngine advances instrument prices with a drift + gaussian step that
// is pushed around by recent order flow.
type PriceEngine struct {
	rng *rand.Rand
}

func NewPriceEngine(rng *rand.Rand) *PriceEngine {
	return &PriceEngine{rng: rng}
}

// Advance moves inst one step and returns the price before and after.
func (p *PriceEngine) Advance(inst *market.Instrument) (oldPrice, newPrice float64) {
	move := inst.Trend + p.rng.NormFloat64()*inst.Volatility + inst.FlowPressure*FlowImpact
	inst.FlowPressure *= FlowDecay

	oldPrice = inst.Price
	inst.Price = math.Max(MinPrice, round3(math.Max(MinPrice, oldPrice*(1+move))))

	spread := math.Max(market.MinSpread, math.Abs(move)*spreadMoveFactor+uniform(p.rng, minSpreadJitter, maxSpreadJitter))
	setQuote(inst, spread)

	return oldPrice, inst.Price
}

// setQuote centres bid/ask on the current price. The rounded quotes keep
// Ask-Bid >= MinSpread exactly in float64, widening the ask by a tick when
// rounding lands just under the floor.
func setQuote(inst *market.Instrument, spread float64) {
	inst.Bid = round3(inst.Price - spread/2)
	inst.Ask = round3(inst.Price + spread/2)
	for inst.Ask-inst.Bid < market.MinSpread {
		inst.Ask = round3(inst.Ask + priceTick)
	}
}

func round3(x float64) float64 {
	return decimal.NewFromFloat(x).Round(priceDecimals).InexactFloat64()
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// uniformInt returns an integer in [lo, hi].
func uniformInt(rng *rand.Rand, lo, hi int64) int64 {
	return lo + rng.Int64N(hi-lo+1)
}
