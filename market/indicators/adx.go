package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/marketsim/market"
)

// ADX is Wilder's Average Directional Index over candle ranges, in [0, 100].
//
// The first candle only primes the previous range. The next period
// candles seed the smoothed true range and directional movement, and period
// DX values after that seed the ADX itself, so Warmup is 2*period.
type ADX struct {
	period int

	prev    market.Candle
	hasPrev bool

	tr, plusDM, minusDM wilder
	adx                 wilder

	plusDI, minusDI, dx float64
}

func NewADX(period int) *ADX {
	if period <= 0 {
		panic("ADX period must be > 0")
	}
	a := &ADX{period: period}
	a.Reset()
	return a
}

func (a *ADX) Name() string { return fmt.Sprintf("ADX(%d)", a.period) }
func (a *ADX) Warmup() int  { return 2 * a.period }
func (a *ADX) Ready() bool  { return a.adx.ready() }

func (a *ADX) Float64() float64 {
	if !a.Ready() {
		return 0
	}
	return a.adx.avg
}

func (a *ADX) PlusDI() float64  { return a.plusDI }
func (a *ADX) MinusDI() float64 { return a.minusDI }
func (a *ADX) DX() float64      { return a.dx }

func (a *ADX) Reset() {
	n := a.period
	*a = ADX{
		period:  n,
		tr:      wilder{n: n},
		plusDM:  wilder{n: n},
		minusDM: wilder{n: n},
		adx:     wilder{n: n},
	}
}

func (a *ADX) Update(c market.Candle) {
	if !a.hasPrev {
		a.prev, a.hasPrev = c, true
		return
	}
	p := a.prev
	a.prev = c

	up, down := c.High-p.High, p.Low-c.Low
	var plus, minus float64
	if up > down && up > 0 {
		plus = up
	}
	if down > up && down > 0 {
		minus = down
	}

	a.tr.add(max(c.High-c.Low, math.Abs(c.High-p.Close), math.Abs(c.Low-p.Close)))
	a.plusDM.add(plus)
	a.minusDM.add(minus)
	if !a.tr.ready() {
		return
	}

	a.plusDI, a.minusDI = 0, 0
	if a.tr.avg > 0 {
		a.plusDI = 100 * a.plusDM.avg / a.tr.avg
		a.minusDI = 100 * a.minusDM.avg / a.tr.avg
	}
	a.dx = 0
	if sum := a.plusDI + a.minusDI; sum > 0 {
		a.dx = 100 * math.Abs(a.plusDI-a.minusDI) / sum
	}
	a.adx.add(a.dx)
}
