package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSide(t *testing.T) {
	t.Parallel()

	s, err := ParseSide("buy")
	assert.NoError(t, err)
	assert.Equal(t, Buy, s)

	s, err = ParseSide(" SELL ")
	assert.NoError(t, err)
	assert.Equal(t, Sell, s)

	_, err = ParseSide("hold")
	assert.Error(t, err)

	assert.Equal(t, 1.0, Buy.Sign())
	assert.Equal(t, -1.0, Sell.Sign())
}

func TestLiquidationEventCopiesSymbols(t *testing.T) {
	t.Parallel()

	syms := []string{"AXION", "NEXUS"}
	e := LiquidationEvent(syms, -12.5, time.Time{})
	syms[0] = "CHANGED"

	assert.Equal(t, []string{"AXION", "NEXUS"}, e.Symbols)
	assert.Equal(t, KindLiquidation, e.Kind)
}

func TestEventString(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 1, 10, 0, 1, 500_000_000, time.UTC)

	assert.Contains(t, TradeEvent("NEXUS", Buy, 1200, 101.25, ts).String(), "NEXUS")
	assert.Contains(t, FillEvent("NEXUS", Sell, 10, 99, ts).String(), "YOU SHORT 10 NEXUS")
	assert.Contains(t, CloseEvent("NEXUS", 10, 99, -3, ts).String(), "P&L -3.00")
	assert.Contains(t, LiquidationEvent([]string{"A", "B"}, -5, ts).String(), "MARGIN CALL")
	assert.Contains(t, TickEvent("NEXUS", ts).String(), "10:00:01.500")
}

func TestCumulative(t *testing.T) {
	t.Parallel()

	got := Cumulative([]DepthLevel{{Size: 3}, {Size: 4}, {Size: 5}})
	assert.Equal(t, []int64{3, 7, 12}, got)
}
