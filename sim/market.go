// sim/market.go
package sim

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rustyeddy/marketsim/market"
)

// Params tunes a Market. Zero values fall back to the defaults.
type Params struct {
	Seed             uint64
	TradeProbability float64
	CandleCapacity   int
}

// Market owns the simulated instruments and the components that evolve
// them. It is not safe for concurrent use; the owner serializes access.
// Book snapshots and the event queue are the exceptions.
type Market struct {
	rng         *rand.Rand
	symbols     []string
	instruments map[string]*market.Instrument

	prices  *PriceEngine
	candles *CandleAggregator
	book    *BookSynthesizer
	tape    *TapeGenerator
	queue   *EventQueue
}

func NewMarket(instruments []market.Instrument, p Params) (*Market, error) {
	if len(instruments) == 0 {
		return nil, fmt.Errorf("new market: no instruments")
	}
	if p.Seed == 0 {
		p.Seed = uint64(time.Now().UnixNano())
	}
	if p.TradeProbability == 0 {
		p.TradeProbability = DefaultTradeProbability
	}
	if p.CandleCapacity == 0 {
		p.CandleCapacity = market.CandleCapacity
	}

	rng := newRand(p.Seed)
	m := &Market{
		rng:         rng,
		instruments: make(map[string]*market.Instrument, len(instruments)),
		prices:      NewPriceEngine(rng),
		candles:     NewCandleAggregator(rng, p.CandleCapacity, market.Timeframes...),
		book:        NewBookSynthesizer(newRand(p.Seed + 1)),
		tape:        NewTapeGenerator(rng, p.TradeProbability),
		queue:       NewEventQueue(),
	}

	for _, inst := range instruments {
		if inst.Symbol == "" {
			return nil, fmt.Errorf("new market: instrument without symbol")
		}
		if _, dup := m.instruments[inst.Symbol]; dup {
			return nil, fmt.Errorf("new market: duplicate symbol %q", inst.Symbol)
		}
		if inst.Price <= 0 {
			return nil, fmt.Errorf("new market: %s price must be positive", inst.Symbol)
		}
		if inst.Bid >= inst.Ask {
			return nil, fmt.Errorf("new market: %s bid must be below ask", inst.Symbol)
		}
		inst := inst
		m.instruments[inst.Symbol] = &inst
		m.symbols = append(m.symbols, inst.Symbol)
	}
	return m, nil
}

// SeedInstruments creates instruments for symbols with a random price,
// volatility and trend.
func SeedInstruments(seed uint64, symbols []string) []market.Instrument {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := newRand(seed)

	out := make([]market.Instrument, 0, len(symbols))
	for _, sym := range symbols {
		price := round3(uniform(rng, market.MinInitialPrice, market.MaxInitialPrice))
		out = append(out, NewInstrument(sym, price,
			market.Volatilities[rng.IntN(len(market.Volatilities))],
			market.Trends[rng.IntN(len(market.Trends))],
		))
	}
	return out
}

// NewInstrument returns an instrument quoted symmetrically around price.
func NewInstrument(symbol string, price, volatility, trend float64) market.Instrument {
	inst := market.Instrument{
		Symbol:     symbol,
		Price:      price,
		Volatility: volatility,
		Trend:      trend,
	}
	inst.Bid = round3(price * (1 - market.InitialHalfSpread))
	inst.Ask = round3(price * (1 + market.InitialHalfSpread))
	if inst.Ask-inst.Bid < market.MinSpread {
		setQuote(&inst, market.MinSpread)
	}
	return inst
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Step runs one simulation event on a randomly chosen instrument and
// returns the symbol that moved.
func (m *Market) Step(now time.Time) string {
	sym := m.symbols[m.rng.IntN(len(m.symbols))]
	m.step(m.instruments[sym], now)
	return sym
}

// StepSymbol runs one simulation event on symbol.
func (m *Market) StepSymbol(symbol string, now time.Time) error {
	inst, ok := m.instruments[symbol]
	if !ok {
		return fmt.Errorf("step %q: %w", symbol, market.ErrUnknownSymbol)
	}
	m.step(inst, now)
	return nil
}

func (m *Market) step(inst *market.Instrument, now time.Time) {
	oldPrice, newPrice := m.prices.Advance(inst)
	m.candles.OnPriceChange(inst.Symbol, oldPrice, newPrice, now)
	m.queue.Push(m.tape.MaybeEmitTrade(inst, now)...)
}

// Instrument returns the live, mutable state of symbol.
func (m *Market) Instrument(symbol string) (*market.Instrument, bool) {
	inst, ok := m.instruments[symbol]
	return inst, ok
}

// Snapshot returns a copy of symbol's state.
func (m *Market) Snapshot(symbol string) (market.Instrument, error) {
	inst, ok := m.instruments[symbol]
	if !ok {
		return market.Instrument{}, fmt.Errorf("instrument %q: %w", symbol, market.ErrUnknownSymbol)
	}
	return *inst, nil
}

// Instruments returns copies of every instrument in symbol order.
func (m *Market) Instruments() []market.Instrument {
	out := make([]market.Instrument, 0, len(m.symbols))
	for _, sym := range m.symbols {
		out = append(out, *m.instruments[sym])
	}
	return out
}

func (m *Market) Symbols() []string {
	out := make([]string, len(m.symbols))
	copy(out, m.symbols)
	return out
}

func (m *Market) Candles(symbol string, tf market.Timeframe) ([]market.Candle, error) {
	if _, ok := m.instruments[symbol]; !ok {
		return nil, fmt.Errorf("candles %q: %w", symbol, market.ErrUnknownSymbol)
	}
	return m.candles.Candles(symbol, tf)
}

// Book synthesizes the depth of market for symbol.
func (m *Market) Book(symbol string) (market.Book, error) {
	inst, ok := m.instruments[symbol]
	if !ok {
		return market.Book{}, fmt.Errorf("book %q: %w", symbol, market.ErrUnknownSymbol)
	}
	return m.book.Snapshot(*inst), nil
}

// Publish queues events produced outside the simulation step.
func (m *Market) Publish(events ...market.Event) {
	m.queue.Push(events...)
}

func (m *Market) Queue() *EventQueue {
	return m.queue
}
