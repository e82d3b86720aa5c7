package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/marketsim/broker"
	"github.com/rustyeddy/marketsim/market"
)

// SubmitOrder executes a market order on the simulation goroutine.
func (s *Session) SubmitOrder(ctx context.Context, symbol string, side market.Side, qty int64) (broker.Fill, error) {
	var fill broker.Fill
	err := s.do(ctx, func(now time.Time) error {
		var err error
		fill, err = s.ledger.ExecuteOrder(symbol, side, qty, now)
		if err != nil {
			s.metrics.ObserveOrder(string(side), "rejected")
			return err
		}
		s.metrics.ObserveOrder(string(side), "filled")

		kind := market.MarkerBuy
		if side == market.Sell {
			kind = market.MarkerSell
		}
		s.markLocked(symbol, market.Marker{
			Time:  now,
			Price: fill.Price,
			Kind:  kind,
			Label: fmt.Sprintf("%s %d", side, qty),
		})
		return nil
	})
	return fill, err
}

// ClosePosition exits the whole position in symbol.
func (s *Session) ClosePosition(ctx context.Context, symbol string) (broker.Closed, error) {
	var closed broker.Closed
	err := s.do(ctx, func(now time.Time) error {
		var err error
		closed, err = s.ledger.ClosePosition(symbol, now)
		if err != nil {
			return err
		}
		s.markLocked(symbol, market.Marker{
			Time:  now,
			Price: closed.Exit,
			Kind:  market.MarkerClose,
			Label: fmt.Sprintf("CLOSE %+.2f", closed.PnL),
		})
		return nil
	})
	return closed, err
}

// Deposit adds amount to the account's cash. The amount is not validated
// here; callers reject non-positive deposits.
func (s *Session) Deposit(ctx context.Context, amount float64) error {
	return s.do(ctx, func(now time.Time) error {
		s.ledger.Deposit(amount, now)
		return nil
	})
}
