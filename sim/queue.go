package sim

import (
	"sync"

	"github.com/rustyeddy/marketsim/market"
)

// EventQueue is an unbounded FIFO between the simulation goroutine and its
// consumers. Push never blocks and Pop never waits.
type EventQueue struct {
	mu     sync.Mutex
	events []market.Event
}

func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

func (q *EventQueue) Push(events ...market.Event) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	q.events = append(q.events, events...)
	q.mu.Unlock()
}

// Pop removes the oldest event. ok is false when the queue is empty.
func (q *EventQueue) Pop() (e market.Event, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return market.Event{}, false
	}
	e = q.events[0]
	q.events[0] = market.Event{}
	q.events = q.events[1:]
	return e, true
}

// Drain removes and returns everything currently queued.
func (q *EventQueue) Drain() []market.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.events
	q.events = nil
	return out
}

func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
