// Package indicators computes streaming technical indicators over candles.
package indicators

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/marketsim/market"
)

// Indicator consumes closed candles one at a time.
type Indicator interface {
	Name() string
	Warmup() int
	Ready() bool
	Float64() float64
	Reset()
	Update(c market.Candle)
}

// Point is an indicator value at a candle's bucket start.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// New builds an indicator by name ("ema" or "adx").
func New(name string, period int) (Indicator, error) {
	if period <= 0 {
		return nil, fmt.Errorf("indicator %s: period must be positive, got %d", name, period)
	}
	switch strings.ToLower(name) {
	case "ema":
		return NewEMA(period), nil
	case "adx":
		return NewADX(period), nil
	}
	return nil, fmt.Errorf("unknown indicator %q", name)
}

// Series feeds the closed candles of a live series to ind from a reset state
// and returns one point per candle from the first ready candle on. The last
// candle is still forming and never reaches the indicator.
func Series(ind Indicator, candles []market.Candle) []Point {
	ind.Reset()
	if len(candles) == 0 {
		return []Point{}
	}
	candles = candles[:len(candles)-1]
	out := make([]Point, 0, len(candles))
	for _, c := range candles {
		ind.Update(c)
		if ind.Ready() {
			out = append(out, Point{Time: c.Time, Value: ind.Float64()})
		}
	}
	return out
}
