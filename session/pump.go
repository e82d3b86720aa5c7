package session

import (
	"context"
	"time"

	"github.com/rustyeddy/marketsim/market"
)

// drainGrace bounds how long Pump waits for Run to stop before its final drain.
const drainGrace = time.Second

// DrainEvents removes and returns every queued event without blocking.
func (s *Session) DrainEvents() []market.Event {
	events := s.market.Queue().Drain()
	for _, e := range events {
		s.metrics.ObserveEvent(string(e.Kind))
	}
	s.metrics.SetQueueDepth(0)
	return events
}

// Pump drains the event queue every interval and hands non-empty batches to
// handle. When ctx is cancelled it waits for Run to return, drains once
// more and returns.
func (s *Session) Pump(ctx context.Context, interval time.Duration, handle func([]market.Event)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	flush := func() {
		if events := s.DrainEvents(); len(events) > 0 {
			handle(events)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if s.running.Load() {
				select {
				case <-s.done:
				case <-time.After(drainGrace):
				}
			}
			flush()
			return nil
		case <-ticker.C:
			flush()
		}
	}
}
