package indicators

import (
	"fmt"

	"github.com/rustyeddy/marketsim/market"
)

// EMA is an exponential moving average of candle closes, seeded with the
// simple average of the first period closes.
type EMA struct {
	period int
	alpha  float64
	seed   wilder
	value  float64
}

func NewEMA(period int) *EMA {
	if period <= 0 {
		panic("EMA period must be > 0")
	}
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
		seed:   wilder{n: period},
	}
}

func (e *EMA) Name() string     { return fmt.Sprintf("EMA(%d)", e.period) }
func (e *EMA) Warmup() int      { return e.period }
func (e *EMA) Ready() bool      { return e.seed.ready() }
func (e *EMA) Float64() float64 { return e.value }

func (e *EMA) Reset() {
	e.seed.reset()
	e.value = 0
}

func (e *EMA) Update(c market.Candle) {
	if !e.seed.ready() {
		e.seed.add(c.Close)
		e.value = e.seed.avg
		return
	}
	e.value += e.alpha * (c.Close - e.value)
}
