package broker

import (
	"math"

	"github.com/rustyeddy/marketsim/market"
)

// UnrealizedPL marks size units bought (or sold, when negative) at entry
// against price.
func UnrealizedPL(size int64, entry, price float64) float64 {
	return float64(size) * (price - entry)
}

// PositionMargin is the margin held by size units at price.
func PositionMargin(size int64, price float64, leverage int) float64 {
	return math.Abs(float64(size)) * price / float64(leverage)
}

// ExecutionPrice is the quote an order on side fills at.
func ExecutionPrice(inst *market.Instrument, side market.Side) float64 {
	if side == market.Sell {
		return inst.Bid
	}
	return inst.Ask
}

// ExitPrice is the quote every position is closed at, long or short.
func ExitPrice(inst *market.Instrument) float64 {
	return inst.Bid
}

// MaxQty is the largest order that free margin supports at price.
func MaxQty(freeMargin, price float64, leverage int) int64 {
	if freeMargin <= 0 || price <= 0 {
		return 0
	}
	return int64(math.Floor(freeMargin * float64(leverage) / price))
}

func sign(x int64) int64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
