package broker

import (
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/marketsim/journal"
	"github.com/rustyeddy/marketsim/market"
	"github.com/rustyeddy/marketsim/pkg/id"
	"go.uber.org/zap"
)

// Options configures a Ledger. Nil fields fall back to no-op implementations.
type Options struct {
	Cash      float64
	Leverage  int
	Journal   journal.Journal
	Publisher Publisher
	Logger    *zap.Logger
}

// Ledger is the account: cash, signed positions, margin and liquidation.
//
// A Ledger is not safe for concurrent use. It mutates the instruments it
// trades (flow pressure and resting user sizes), so it must be driven by the
// same goroutine that advances prices.
type Ledger struct {
	instruments Instruments
	leverage    int
	cash        float64
	positions   map[string]*Position
	state       State

	journal journal.Journal
	pub     Publisher
	log     *zap.Logger
}

func NewLedger(instruments Instruments, opts Options) *Ledger {
	if opts.Leverage <= 0 {
		opts.Leverage = DefaultLeverage
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Ledger{
		instruments: instruments,
		leverage:    opts.Leverage,
		cash:        opts.Cash,
		positions:   make(map[string]*Position),
		journal:     opts.Journal,
		pub:         opts.Publisher,
		log:         opts.Logger.Named("ledger"),
	}
}

func (l *Ledger) Cash() float64 { return l.cash }
func (l *Ledger) Leverage() int { return l.leverage }
func (l *Ledger) State() State { return l.state }
func (l *Ledger) OpenCount() int { return len(l.positions) }

// Position returns a copy of symbol's position.
func (l *Ledger) Position(symbol string) (Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of all open positions ordered by symbol.
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// MarginUsed is the margin held by every open position at current prices.
func (l *Ledger) MarginUsed() float64 {
	var used float64
	for sym, p := range l.positions {
		inst, ok := l.instruments.Instrument(sym)
		if !ok {
			continue
		}
		used += PositionMargin(p.Size, inst.Price, l.leverage)
	}
	return used
}

func (l *Ledger) UnrealizedPnL() float64 {
	var pnl float64
	for sym, p := range l.positions {
		inst, ok := l.instruments.Instrument(sym)
		if !ok {
			continue
		}
		pnl += UnrealizedPL(p.Size, p.AvgPrice, inst.Price)
	}
	return pnl
}

func (l *Ledger) Equity() float64 {
	return l.cash + l.UnrealizedPnL()
}

func (l *Ledger) FreeMargin() float64 {
	return l.cash + l.UnrealizedPnL() - l.MarginUsed()
}

// MaxQty is the largest order on side that current free margin supports.
// Unknown symbols return 0.
func (l *Ledger) MaxQty(symbol string, side market.Side) int64 {
	inst, ok := l.instruments.Instrument(symbol)
	if !ok {
		return 0
	}
	return MaxQty(l.FreeMargin(), ExecutionPrice(inst, side), l.leverage)
}

// Summary reports the account, with order limits for symbol when it is known.
func (l *Ledger) Summary(symbol string) AccountSummary {
	unrealized := l.UnrealizedPnL()
	used := l.MarginUsed()
	s := AccountSummary{
		Cash:          l.cash,
		UsedMargin:    used,
		FreeMargin:    l.cash + unrealized - used,
		UnrealizedPnL: unrealized,
		Equity:        l.cash + unrealized,
	}
	if inst, ok := l.instruments.Instrument(symbol); ok {
		s.MaxBuyQty = MaxQty(s.FreeMargin, ExecutionPrice(inst, market.Buy), l.leverage)
		s.MaxSellQty = MaxQty(s.FreeMargin, ExecutionPrice(inst, market.Sell), l.leverage)
	}
	return s
}

// ExecuteOrder fills qty units of symbol on side at the current ask (BUY) or
// bid (SELL).
//
// Adding exposure in either direction moves the average price to the
// size-weighted mean. Reducing exposure realizes P&L on the reduced units
// into cash and keeps the average. A fill that crosses zero opens the
// remainder at the fill price.
func (l *Ledger) ExecuteOrder(symbol string, side market.Side, qty int64, now time.Time) (Fill, error) {
	inst, ok := l.instruments.Instrument(symbol)
	if !ok {
		return Fill{}, fmt.Errorf("order %s: %w", symbol, ErrUnknownSymbol)
	}
	if side != market.Buy && side != market.Sell {
		return Fill{}, fmt.Errorf("order %s: %w: side %q", symbol, ErrInvalidOrder, side)
	}
	if qty <= 0 {
		return Fill{}, fmt.Errorf("order %s: %w: quantity must be positive, got %d", symbol, ErrInvalidOrder, qty)
	}

	price := ExecutionPrice(inst, side)
	if maxQty := MaxQty(l.FreeMargin(), price, l.leverage); qty > maxQty {
		return Fill{}, fmt.Errorf("order %s: %w: quantity %d exceeds max %d", symbol, ErrInvalidOrder, qty, maxQty)
	}

	inst.FlowPressure += float64(qty) / 1000 * OrderImpact * side.Sign()

	fill := Fill{
		ID:     id.NewAt(now),
		Symbol: symbol,
		Side:   side,
		Size:   qty,
		Price:  price,
		Time:   now,
	}

	delta := qty
	if side == market.Sell {
		delta = -qty
	}
	realized, closed := l.applyFill(symbol, delta, price, now, fill.ID)
	fill.RealizedPnL = realized

	// One resting user order per symbol: the latest fill replaces the other side.
	if side == market.Buy {
		inst.UserBidSize, inst.UserAskSize = qty, 0
	} else {
		inst.UserBidSize, inst.UserAskSize = 0, qty
	}

	events := []market.Event{market.FillEvent(symbol, side, qty, price, now)}
	if p, open := l.positions[symbol]; open {
		fill.Position = *p
	} else {
		fill.Position = Position{Symbol: symbol}
		inst.ClearResting()
	}
	if closed != nil {
		events = append(events, market.CloseEvent(symbol, closed.Size, price, closed.PnL, now))
	}

	l.recordFill(fill)
	l.pub.Publish(events...)
	l.recordEquity(now)

	l.log.Info("order filled",
		zap.String("id", fill.ID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Int64("qty", qty),
		zap.Float64("price", price),
		zap.Float64("realized", realized),
	)
	return fill, nil
}

// applyFill books delta units at price. It returns the realized P&L and,
// when the fill flattened or flipped the position, the closed part.
func (l *Ledger) applyFill(symbol string, delta int64, price float64, now time.Time, fillID string) (float64, *Closed) {
	pos, ok := l.positions[symbol]
	if !ok {
		l.positions[symbol] = &Position{Symbol: symbol, Size: delta, AvgPrice: price, OpenedAt: now}
		return 0, nil
	}

	old := pos.Size
	if sign(old) == sign(delta) {
		n := float64(abs(old) + abs(delta))
		pos.AvgPrice = (pos.AvgPrice*float64(abs(old)) + price*float64(abs(delta))) / n
		pos.Size = old + delta
		return 0, nil
	}

	reduced := min(abs(old), abs(delta)) * sign(old)
	realized := UnrealizedPL(reduced, pos.AvgPrice, price)
	l.cash += realized

	rec := journal.TradeRecord{
		TradeID:     fillID,
		Symbol:      symbol,
		Size:        reduced,
		EntryPrice:  pos.AvgPrice,
		ExitPrice:   price,
		OpenTime:    pos.OpenedAt,
		CloseTime:   now,
		RealizedPnL: realized,
		Reason:      journal.ReasonReduce,
	}

	newSize := old + delta
	var closed *Closed
	switch {
	case newSize == 0:
		delete(l.positions, symbol)
		rec.Reason = journal.ReasonFlat
	case sign(newSize) != sign(old):
		*pos = Position{Symbol: symbol, Size: newSize, AvgPrice: price, OpenedAt: now}
		rec.Reason = journal.ReasonFlat
	default:
		pos.Size = newSize
	}
	if rec.Reason == journal.ReasonFlat {
		closed = &Closed{
			ID:     fillID,
			Symbol: symbol,
			Size:   reduced,
			Entry:  rec.EntryPrice,
			Exit:   price,
			PnL:    realized,
			Time:   now,
		}
	}

	l.recordTrade(rec)
	return realized, closed
}

// ClosePosition exits symbol's whole position at the bid, so realized P&L
// is (bid - avg) * size for longs and shorts alike.
func (l *Ledger) ClosePosition(symbol string, now time.Time) (Closed, error) {
	c, err := l.close(symbol, journal.ReasonClose, now)
	if err != nil {
		return Closed{}, err
	}
	l.pub.Publish(market.CloseEvent(symbol, c.Size, c.Exit, c.PnL, now))
	l.recordEquity(now)
	return c, nil
}

func (l *Ledger) close(symbol, reason string, now time.Time) (Closed, error) {
	inst, ok := l.instruments.Instrument(symbol)
	if !ok {
		return Closed{}, fmt.Errorf("close %s: %w", symbol, ErrUnknownSymbol)
	}
	pos, ok := l.positions[symbol]
	if !ok {
		return Closed{}, fmt.Errorf("close %s: %w", symbol, ErrNoPosition)
	}

	exit := ExitPrice(inst)
	c := Closed{
		ID:     id.NewAt(now),
		Symbol: symbol,
		Size:   pos.Size,
		Entry:  pos.AvgPrice,
		Exit:   exit,
		PnL:    UnrealizedPL(pos.Size, pos.AvgPrice, exit),
		Time:   now,
	}

	l.cash += c.PnL
	delete(l.positions, symbol)
	inst.ClearResting()

	l.recordTrade(journal.TradeRecord{
		TradeID:     c.ID,
		Symbol:      symbol,
		Size:        c.Size,
		EntryPrice:  c.Entry,
		ExitPrice:   exit,
		OpenTime:    pos.OpenedAt,
		CloseTime:   now,
		RealizedPnL: c.PnL,
		Reason:      reason,
	})

	l.log.Info("position closed",
		zap.String("symbol", symbol),
		zap.Int64("size", c.Size),
		zap.Float64("exit", exit),
		zap.Float64("pnl", c.PnL),
		zap.String("reason", reason),
	)
	return c, nil
}

// Deposit adds amount to cash. Callers validate the amount.
func (l *Ledger) Deposit(amount float64, now time.Time) {
	l.cash += amount
	l.recordEquity(now)
	l.log.Info("deposit", zap.Float64("amount", amount), zap.Float64("cash", l.cash))
}

// CheckMargin liquidates every open position once free margin goes
// negative. The second return is false when nothing happened, including
// re-entrant calls made while a liquidation is in progress.
func (l *Ledger) CheckMargin(now time.Time) (Liquidation, bool) {
	if l.state == Liquidating || len(l.positions) == 0 {
		return Liquidation{}, false
	}
	if l.FreeMargin() >= 0 {
		return Liquidation{}, false
	}

	l.state = Liquidating
	defer func() { l.state = Normal }()

	symbols := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	liq := Liquidation{Time: now}
	events := make([]market.Event, 0, len(symbols)+1)
	for _, sym := range symbols {
		c, err := l.close(sym, journal.ReasonLiquidation, now)
		if err != nil {
			l.log.Warn("liquidation close failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		liq.Symbols = append(liq.Symbols, sym)
		liq.Closed = append(liq.Closed, c)
		liq.PnL += c.PnL
		events = append(events, market.CloseEvent(sym, c.Size, c.Exit, c.PnL, now))
	}
	events = append(events, market.LiquidationEvent(liq.Symbols, liq.PnL, now))

	l.pub.Publish(events...)
	l.recordEquity(now)

	l.log.Warn("margin call, positions liquidated",
		zap.Strings("symbols", liq.Symbols),
		zap.Float64("pnl", liq.PnL),
		zap.Float64("cash", l.cash),
	)
	return liq, true
}

func (l *Ledger) recordTrade(rec journal.TradeRecord) {
	if err := l.journal.RecordTrade(rec); err != nil {
		l.log.Warn("journal trade", zap.String("trade_id", rec.TradeID), zap.Error(err))
	}
}

func (l *Ledger) recordFill(f Fill) {
	err := l.journal.RecordFill(journal.FillRecord{
		FillID: f.ID,
		Symbol: f.Symbol,
		Side:   string(f.Side),
		Size:   f.Size,
		Price:  f.Price,
		Time:   f.Time,
	})
	if err != nil {
		l.log.Warn("journal fill", zap.String("fill_id", f.ID), zap.Error(err))
	}
}

func (l *Ledger) recordEquity(now time.Time) {
	unrealized := l.UnrealizedPnL()
	used := l.MarginUsed()
	err := l.journal.RecordEquity(journal.EquitySnapshot{
		Time:          now,
		Cash:          l.cash,
		Equity:        l.cash + unrealized,
		MarginUsed:    used,
		FreeMargin:    l.cash + unrealized - used,
		UnrealizedPnL: unrealized,
	})
	if err != nil {
		l.log.Warn("journal equity", zap.Error(err))
	}
}
