// market/instrument.go
package market

// MinSpread is the narrowest quote the simulator will produce.
const MinSpread = 0.05

// Instrument is the live quote state of one synthetic symbol.
//
// FlowPressure is a decaying scalar of recent net order flow that feeds the
// next price move. UserBidSize and UserAskSize are the user's resting order
// sizes shown in the book at the current bid/ask.
type Instrument struct {
	Symbol       string  `json:"symbol" yaml:"symbol"`
	Price        float64 `json:"price" yaml:"price"`
	Bid          float64 `json:"bid" yaml:"bid"`
	Ask          float64 `json:"ask" yaml:"ask"`
	Volatility   float64 `json:"volatility" yaml:"volatility"`
	Trend        float64 `json:"trend" yaml:"trend"`
	FlowPressure float64 `json:"flow_pressure" yaml:"flow_pressure"`
	UserBidSize  int64   `json:"user_bid_size" yaml:"user_bid_size"`
	UserAskSize  int64   `json:"user_ask_size" yaml:"user_ask_size"`
}

func (i Instrument) Mid() float64 {
	return (i.Bid + i.Ask) / 2
}

func (i Instrument) Spread() float64 {
	return i.Ask - i.Bid
}

// ClearResting removes the user's resting sizes from the book.
func (i *Instrument) ClearResting() {
	i.UserBidSize = 0
	i.UserAskSize = 0
}

// DefaultSymbols is the instrument universe used when none is configured.
var DefaultSymbols = []string{
	"AXION", "BLUEX", "CRYPTOX", "DYNEX", "ECHELON",
	"FUSION", "HELIX", "INFINEX", "NEXUS", "OMEGA",
}

// Volatilities and Trends are the per-step parameter choices an instrument
// is seeded from when the config leaves them unset.
var (
	Volatilities = []float64{0.004, 0.008, 0.012, 0.018, 0.022}
	Trends       = []float64{-0.0012, -0.0005, 0, 0.0005, 0.0012}
)

const (
	// MinInitialPrice and MaxInitialPrice bound a randomly seeded price.
	MinInitialPrice = 120.0
	MaxInitialPrice = 580.0

	// InitialHalfSpread is the fractional half spread of a freshly seeded quote.
	InitialHalfSpread = 0.0009
)
