// journal/journal.go
package journal

import (
	"fmt"
	"time"
)

// Close reasons carried by TradeRecord.Reason.
const (
	ReasonClose       = "CLOSE"
	ReasonFlat        = "FLAT"
	ReasonReduce      = "REDUCE"
	ReasonLiquidation = "LIQUIDATION"
)

// TradeRecord is one realized round trip (or the realized part of one).
type TradeRecord struct {
	TradeID     string
	Symbol      string
	Size        int64 // signed: + long, - short
	EntryPrice  float64
	ExitPrice   float64
	OpenTime    time.Time
	CloseTime   time.Time
	RealizedPnL float64
	Reason      string
}

// FillRecord is one executed user order.
type FillRecord struct {
	FillID string
	Symbol string
	Side   string
	Size   int64
	Price  float64
	Time   time.Time
}

type EquitySnapshot struct {
	Time          time.Time
	Cash          float64
	Equity        float64
	MarginUsed    float64
	FreeMargin    float64
	UnrealizedPnL float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordFill(FillRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) RecordFill(FillRecord) error { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error { return nil }

// Open returns the journal for kind ("none", "csv" or "sqlite"). For csv,
// path is a directory; for sqlite, the database file.
func Open(kind, path string) (Journal, error) {
	switch kind {
	case "", "none":
		return Nop{}, nil
	case "csv":
		return NewCSV(path)
	case "sqlite":
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("journal: unknown type %q", kind)
	}
}
