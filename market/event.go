package market

import (
	"fmt"
	"strings"
	"time"
)

// Side is the direction of an order or an aggressor trade.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide accepts buy/sell in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("invalid side %q", s)
}

// Sign is +1 for Buy and -1 for Sell.
func (s Side) Sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

// EventKind tags the payload carried by an Event.
type EventKind string

const (
	KindTick        EventKind = "tick"
	KindTrade       EventKind = "trade"
	KindFill        EventKind = "fill"
	KindClose       EventKind = "close"
	KindLiquidation EventKind = "liquidation"
)

// Event is the only payload that crosses from the simulation goroutine to
// consumers. Events are never mutated after construction.
//
// Tick carries Symbol. Trade and Fill carry Symbol, Side, Size, Price and Time.
// Close carries Symbol, Size, Price and PnL. Liquidation carries PnL (the sum
// over every closed position) and Symbols.
type Event struct {
	Kind    EventKind `json:"kind"`
	Symbol  string    `json:"symbol,omitempty"`
	Side    Side      `json:"side,omitempty"`
	Size    int64     `json:"size,omitempty"`
	Price   float64   `json:"price,omitempty"`
	PnL     float64   `json:"pnl,omitempty"`
	Symbols []string  `json:"symbols,omitempty"`
	Time    time.Time `json:"time"`
}

func TickEvent(symbol string, t time.Time) Event {
	return Event{Kind: KindTick, Symbol: symbol, Time: t}
}

func TradeEvent(symbol string, side Side, size int64, price float64, t time.Time) Event {
	return Event{Kind: KindTrade, Symbol: symbol, Side: side, Size: size, Price: price, Time: t}
}

func FillEvent(symbol string, side Side, size int64, price float64, t time.Time) Event {
	return Event{Kind: KindFill, Symbol: symbol, Side: side, Size: size, Price: price, Time: t}
}

func CloseEvent(symbol string, size int64, price, pnl float64, t time.Time) Event {
	return Event{Kind: KindClose, Symbol: symbol, Size: size, Price: price, PnL: pnl, Time: t}
}

func LiquidationEvent(symbols []string, pnl float64, t time.Time) Event {
	s := make([]string, len(symbols))
	copy(s, symbols)
	return Event{Kind: KindLiquidation, Symbols: s, PnL: pnl, Time: t}
}

// String renders the event as a tape line.
func (e Event) String() string {
	ts := e.Time.Format("15:04:05.000")
	switch e.Kind {
	case KindTrade:
		return fmt.Sprintf("%s  %-7s  %-4s  %6d @ %8.3f", ts, e.Symbol, e.Side, e.Size, e.Price)
	case KindFill:
		action := "LONG"
		if e.Side == Sell {
			action = "SHORT"
		}
		return fmt.Sprintf("%s  YOU %s %d %s @ %.3f", ts, action, e.Size, e.Symbol, e.Price)
	case KindClose:
		return fmt.Sprintf("%s  CLOSED %s -> P&L %+.2f", ts, e.Symbol, e.PnL)
	case KindLiquidation:
		return fmt.Sprintf("%s  MARGIN CALL - ALL POSITIONS LIQUIDATED (%s) P&L %+.2f",
			ts, strings.Join(e.Symbols, ","), e.PnL)
	}
	return fmt.Sprintf("%s  tick %s", ts, e.Symbol)
}
