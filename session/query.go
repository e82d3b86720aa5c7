package session

import (
	"fmt"

	"github.com/rustyeddy/marketsim/broker"
	"github.com/rustyeddy/marketsim/market"
)

func (s *Session) Instrument(symbol string) (market.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.market.Snapshot(symbol)
}

func (s *Session) Instruments() []market.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.market.Instruments()
}

func (s *Session) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.market.Symbols()
}

func (s *Session) Candles(symbol string, tf market.Timeframe) ([]market.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.market.Candles(symbol, tf)
}

func (s *Session) Book(symbol string) (market.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.market.Book(symbol)
}

// Account summarizes the account; the order limits refer to symbol.
func (s *Session) Account(symbol string) broker.AccountSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Summary(symbol)
}

func (s *Session) Positions() []broker.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Positions()
}

// Markers returns symbol's fill and close markers, oldest first.
func (s *Session) Markers(symbol string) ([]market.Marker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.markers[symbol]
	if !ok {
		return nil, fmt.Errorf("markers %q: %w", symbol, market.ErrUnknownSymbol)
	}
	return r.Slice(), nil
}
