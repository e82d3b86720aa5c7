package broker

import (
	"errors"
	"time"

	"github.com/rustyeddy/marketsim/market"
)

const (
	// DefaultLeverage is the notional-to-margin ratio of the account.
	DefaultLeverage = 1000

	// OrderImpact converts user order size (per 1000) into flow pressure.
	OrderImpact = 0.0055
)

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrNoPosition   = errors.New("no position")

	// ErrUnknownSymbol is shared with the market package so callers can match
	// either layer's error with errors.Is.
	ErrUnknownSymbol = market.ErrUnknownSymbol
)

// Instruments resolves the live state the ledger trades against.
type Instruments interface {
	Instrument(symbol string) (*market.Instrument, bool)
}

// Publisher receives the informational events a ledger produces.
type Publisher interface {
	Publish(events ...market.Event)
}

type Position struct {
	Symbol   string    `json:"symbol"`
	Size     int64     `json:"size"` // + long, - short
	AvgPrice float64   `json:"avg_price"`
	OpenedAt time.Time `json:"opened_at"`
}

func (p Position) Long() bool { return p.Size > 0 }

type Fill struct {
	ID     string      `json:"id"`
	Symbol string      `json:"symbol"`
	Side   market.Side `json:"side"`
	Size   int64       `json:"size"`
	Price  float64     `json:"price"`
	Time   time.Time   `json:"time"`

	// RealizedPnL is non-zero when the fill reduced or flipped a position.
	RealizedPnL float64 `json:"realized_pnl"`
	// Position is the resulting position; Size is 0 when the fill flattened it.
	Position Position `json:"position"`
}

// Closed describes a position closed by ClosePosition or liquidation.
type Closed struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Size   int64     `json:"size"`
	Entry  float64   `json:"entry"`
	Exit   float64   `json:"exit"`
	PnL    float64   `json:"pnl"`
	Time   time.Time `json:"time"`
}

type Liquidation struct {
	Symbols []string  `json:"symbols"`
	PnL     float64   `json:"pnl"`
	Closed  []Closed  `json:"closed"`
	Time    time.Time `json:"time"`
}

type AccountSummary struct {
	Cash          float64 `json:"cash"`
	UsedMargin    float64 `json:"used_margin"`
	FreeMargin    float64 `json:"free_margin"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Equity        float64 `json:"equity"`
	MaxBuyQty     int64   `json:"max_buy_qty"`
	MaxSellQty    int64   `json:"max_sell_qty"`
}

// State is the ledger's liquidation state.
type State int

const (
	Normal State = iota
	Liquidating
)

func (s State) String() string {
	if s == Liquidating {
		return "liquidating"
	}
	return "normal"
}

type nopPublisher struct{}

func (nopPublisher) Publish(...market.Event) {}
