// Package session owns one running simulation: the market, the account
// ledger and the goroutine that drives them.
//
// Every mutation happens on the goroutine running Session.Run. Price steps
// are timer driven; orders, closes and deposits arrive as commands on a
// channel and are executed between steps. Queries may be made from any
// goroutine and return copies.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rustyeddy/marketsim/broker"
	"github.com/rustyeddy/marketsim/internal/metrics"
	"github.com/rustyeddy/marketsim/journal"
	"github.com/rustyeddy/marketsim/market"
	"github.com/rustyeddy/marketsim/sim"
	"go.uber.org/zap"
)

const (
	DefaultMinDelay     = 70 * time.Millisecond
	DefaultMaxDelay     = 200 * time.Millisecond
	DefaultPollInterval = 60 * time.Millisecond
)

// ErrStopped is returned by commands issued after Run has returned.
var ErrStopped = errors.New("session stopped")

type Options struct {
	Instruments []market.Instrument
	Params      sim.Params

	Cash     float64
	Leverage int

	// Steps are spaced uniformly in [MinDelay, MaxDelay).
	MinDelay time.Duration
	MaxDelay time.Duration

	Journal journal.Journal
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Clock stamps steps and fills. Defaults to time.Now.
	Clock func() time.Time
}

type command struct {
	fn    func(now time.Time) error
	reply chan error
}

type Session struct {
	mu      sync.RWMutex
	market  *sim.Market
	ledger  *broker.Ledger
	markers map[string]*market.Ring[market.Marker]

	cmds    chan command
	done    chan struct{}
	running atomic.Bool

	delayRng *rand.Rand
	minDelay time.Duration
	maxDelay time.Duration

	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = DefaultMinDelay
	}
	if opts.MaxDelay <= opts.MinDelay {
		opts.MaxDelay = max(DefaultMaxDelay, opts.MinDelay+time.Millisecond)
	}
	if opts.Params.Seed == 0 {
		opts.Params.Seed = uint64(time.Now().UnixNano())
	}

	m, err := sim.NewMarket(opts.Instruments, opts.Params)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	s := &Session{
		market:   m,
		markers:  make(map[string]*market.Ring[market.Marker]),
		cmds:     make(chan command),
		done:     make(chan struct{}),
		delayRng: rand.New(rand.NewPCG(opts.Params.Seed, opts.Params.Seed>>1|1)),
		minDelay: opts.MinDelay,
		maxDelay: opts.MaxDelay,
		now:      opts.Clock,
		log:      opts.Logger.Named("session"),
		metrics:  opts.Metrics,
	}
	for _, sym := range m.Symbols() {
		s.markers[sym] = market.NewRing[market.Marker](market.MarkerCapacity)
	}
	s.ledger = broker.NewLedger(m, broker.Options{
		Cash:      opts.Cash,
		Leverage:  opts.Leverage,
		Journal:   opts.Journal,
		Publisher: m,
		Logger:    opts.Logger,
	})
	s.publishAccount()
	return s, nil
}

// Run drives the simulation until ctx is cancelled. A session runs once;
// after Run returns, commands fail with ErrStopped.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("session: already running")
	}
	defer close(s.done)

	s.log.Info("simulation started",
		zap.Strings("symbols", s.market.Symbols()),
		zap.Duration("min_delay", s.minDelay),
		zap.Duration("max_delay", s.maxDelay),
	)

	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("simulation stopped")
			return nil

		case cmd := <-s.cmds:
			cmd.reply <- s.exec(cmd.fn)

		case <-timer.C:
			s.Step()
			timer.Reset(s.nextDelay())
		}
	}
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) nextDelay() time.Duration {
	span := int64(s.maxDelay - s.minDelay)
	return s.minDelay + time.Duration(s.delayRng.Int64N(span))
}

// Step advances one randomly chosen instrument and then checks margin.
// Run calls it on every timer tick; headless callers may call it directly.
func (s *Session) Step() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	now := s.now()
	sym := s.market.Step(now)
	s.checkMarginLocked(now)

	s.metrics.ObserveStep(sym, time.Since(start).Seconds())
	s.metrics.SetQueueDepth(s.market.Queue().Len())
	return sym
}

func (s *Session) exec(fn func(time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	err := fn(now)
	s.checkMarginLocked(now)
	return err
}

// do hands fn to the Run goroutine and waits for its result.
func (s *Session) do(ctx context.Context, fn func(time.Time) error) error {
	reply := make(chan error, 1)
	select {
	case s.cmds <- command{fn: fn, reply: reply}:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) checkMarginLocked(now time.Time) {
	liq, ok := s.ledger.CheckMargin(now)
	if ok {
		for _, c := range liq.Closed {
			s.markLocked(c.Symbol, market.Marker{
				Time:  now,
				Price: c.Exit,
				Kind:  market.MarkerClose,
				Label: fmt.Sprintf("LIQ %+.2f", c.PnL),
			})
		}
		s.metrics.ObserveLiquidation()
	}
	s.publishAccount()
}

func (s *Session) publishAccount() {
	if s.metrics == nil {
		return
	}
	a := s.ledger.Summary("")
	s.metrics.SetAccount(a.Cash, a.Equity, a.FreeMargin, s.ledger.OpenCount())
}

func (s *Session) markLocked(symbol string, m market.Marker) {
	r, ok := s.markers[symbol]
	if !ok {
		return
	}
	r.Push(m)
}
