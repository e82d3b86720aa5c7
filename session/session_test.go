package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rustyeddy/marketsim/broker"
	"github.com/rustyeddy/marketsim/config"
	"github.com/rustyeddy/marketsim/internal/metrics"
	"github.com/rustyeddy/marketsim/market"
	"github.com/rustyeddy/marketsim/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

// newQuiet builds a session whose timer never fires during a test, so every
// state change comes from a command.
func newQuiet(t *testing.T, m *metrics.Metrics) *Session {
	t.Helper()
	s, err := New(Options{
		Instruments: []market.Instrument{
			sim.NewInstrument("NEXUS", 100, 0.5, 0),
			sim.NewInstrument("ORBIT", 50, 0.5, 0),
		},
		Params:   sim.Params{Seed: 7},
		Cash:     10000,
		MinDelay: time.Hour,
		MaxDelay: 2 * time.Hour,
		Metrics:  m,
		Clock:    func() time.Time { return epoch },
	})
	require.NoError(t, err)
	return s
}

// start runs s until the test ends.
func start(t *testing.T, s *Session) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return cancel
}

func TestNewRejectsEmptyUniverse(t *testing.T) {
	t.Parallel()

	_, err := New(Options{})
	require.Error(t, err)
}

func TestStepMovesOneSymbol(t *testing.T) {
	t.Parallel()

	s := newQuiet(t, nil)
	sym := s.Step()
	assert.Contains(t, []string{"NEXUS", "ORBIT"}, sym)

	events := s.DrainEvents()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, market.KindTick, last.Kind)
	assert.Equal(t, sym, last.Symbol)

	candles, err := s.Candles(sym, market.S5)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, epoch, candles[0].Time)

	assert.Empty(t, s.DrainEvents())
}

func TestOrderLifecycle(t *testing.T) {
	t.Parallel()

	s := newQuiet(t, nil)
	start(t, s)
	ctx := context.Background()

	inst, err := s.Instrument("NEXUS")
	require.NoError(t, err)

	fill, err := s.SubmitOrder(ctx, "NEXUS", market.Buy, 10)
	require.NoError(t, err)
	assert.Equal(t, inst.Ask, fill.Price)
	assert.Equal(t, int64(10), fill.Position.Size)

	positions := s.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "NEXUS", positions[0].Symbol)

	after, err := s.Instrument("NEXUS")
	require.NoError(t, err)
	assert.Equal(t, int64(10), after.UserBidSize)
	assert.Greater(t, after.FlowPressure, inst.FlowPressure)

	closed, err := s.ClosePosition(ctx, "NEXUS")
	require.NoError(t, err)
	assert.Equal(t, int64(10), closed.Size)
	assert.Equal(t, inst.Bid, closed.Exit)
	assert.Empty(t, s.Positions())

	acct := s.Account("NEXUS")
	assert.InDelta(t, 10000+closed.PnL, acct.Cash, 1e-9)
	assert.Less(t, acct.Cash, 10000.0)
	assert.Positive(t, acct.MaxBuyQty)

	markers, err := s.Markers("NEXUS")
	require.NoError(t, err)
	require.Len(t, markers, 2)
	assert.Equal(t, market.MarkerBuy, markers[0].Kind)
	assert.Equal(t, "BUY 10", markers[0].Label)
	assert.Equal(t, market.MarkerClose, markers[1].Kind)

	kinds := []market.EventKind{}
	for _, e := range s.DrainEvents() {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []market.EventKind{market.KindFill, market.KindClose}, kinds)
}

func TestOrderErrors(t *testing.T) {
	t.Parallel()

	s := newQuiet(t, nil)
	start(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		symbol string
		side   market.Side
		qty    int64
		want   error
	}{
		{"unknown symbol", "NOPE", market.Buy, 1, broker.ErrUnknownSymbol},
		{"zero quantity", "NEXUS", market.Buy, 0, broker.ErrInvalidOrder},
		{"bad side", "NEXUS", market.Side("HOLD"), 1, broker.ErrInvalidOrder},
		{"over margin", "NEXUS", market.Sell, 1 << 40, broker.ErrInvalidOrder},
	}
	for _, tt := range tests {
		_, err := s.SubmitOrder(ctx, tt.symbol, tt.side, tt.qty)
		assert.ErrorIs(t, err, tt.want, tt.name)
	}

	_, err := s.ClosePosition(ctx, "NEXUS")
	assert.ErrorIs(t, err, broker.ErrNoPosition)

	markers, err := s.Markers("NEXUS")
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func TestDeposit(t *testing.T) {
	t.Parallel()

	s := newQuiet(t, nil)
	start(t, s)

	require.NoError(t, s.Deposit(context.Background(), 2500))
	assert.Equal(t, 12500.0, s.Account("").Cash)
}

func TestCommandsAfterStop(t *testing.T) {
	t.Parallel()

	s := newQuiet(t, nil)
	cancel := start(t, s)
	cancel()
	<-s.Done()

	_, err := s.SubmitOrder(context.Background(), "NEXUS", market.Buy, 1)
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, s.Deposit(context.Background(), 1), ErrStopped)

	assert.Error(t, s.Run(context.Background()))
}

func TestCommandHonoursContext(t *testing.T) {
	t.Parallel()

	// Nothing is running, so the command can never be accepted.
	s := newQuiet(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Deposit(ctx, 1)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunSteps(t *testing.T) {
	t.Parallel()

	s, err := New(Options{
		Instruments: []market.Instrument{sim.NewInstrument("NEXUS", 100, 0.5, 0)},
		Params:      sim.Params{Seed: 3, TradeProbability: 1},
		MinDelay:    time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	})
	require.NoError(t, err)
	start(t, s)

	require.Eventually(t, func() bool {
		c, err := s.Candles("NEXUS", market.S5)
		return err == nil && len(c) > 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPumpFinalDrain(t *testing.T) {
	t.Parallel()

	s := newQuiet(t, nil)
	s.Step()

	var got []market.Event
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Run never started, so Pump drains immediately and returns.
	require.NoError(t, s.Pump(ctx, time.Hour, func(events []market.Event) {
		got = append(got, events...)
	}))
	require.NotEmpty(t, got)
	assert.Equal(t, market.KindTick, got[len(got)-1].Kind)
}

func TestPumpDeliversBatches(t *testing.T) {
	t.Parallel()

	s := newQuiet(t, nil)
	start(t, s)

	var mu sync.Mutex
	var got []market.Event
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Pump(ctx, 5*time.Millisecond, func(events []market.Event) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, events...)
		})
	}()

	_, err := s.SubmitOrder(context.Background(), "ORBIT", market.Sell, 3)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, market.KindFill, got[0].Kind)
	assert.Equal(t, market.Sell, got[0].Side)
}

func TestQueriesUnknownSymbol(t *testing.T) {
	t.Parallel()

	s := newQuiet(t, nil)

	_, err := s.Instrument("NOPE")
	assert.ErrorIs(t, err, market.ErrUnknownSymbol)
	_, err = s.Book("NOPE")
	assert.ErrorIs(t, err, market.ErrUnknownSymbol)
	_, err = s.Candles("NOPE", market.M1)
	assert.ErrorIs(t, err, market.ErrUnknownSymbol)
	_, err = s.Markers("NOPE")
	assert.ErrorIs(t, err, market.ErrUnknownSymbol)

	assert.Equal(t, []string{"NEXUS", "ORBIT"}, s.Symbols())
	assert.Len(t, s.Instruments(), 2)

	book, err := s.Book("NEXUS")
	require.NoError(t, err)
	assert.NotEmpty(t, book.Bids)
}

func TestMetricsFollowTheSession(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	s := newQuiet(t, m)
	start(t, s)

	_, err := s.SubmitOrder(context.Background(), "NEXUS", market.Buy, 5)
	require.NoError(t, err)
	_, err = s.SubmitOrder(context.Background(), "NEXUS", market.Buy, 0)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Orders.WithLabelValues("BUY", "filled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Orders.WithLabelValues("BUY", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpenPositions))

	s.DrainEvents()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("fill")))
}

func TestBuildInstruments(t *testing.T) {
	t.Parallel()

	sc := config.Default().Simulation
	sc.Seed = 11
	sc.Symbols = []string{"NEXUS", "ORBIT"}
	sc.Instruments = []config.InstrumentConfig{
		{Symbol: "ORBIT", Price: 42, Volatility: 0.3, Trend: 0.01},
		{Symbol: "ZENITH", Price: 7, Volatility: 1},
	}

	insts := BuildInstruments(sc)
	require.Len(t, insts, 3)
	assert.Equal(t, "NEXUS", insts[0].Symbol)
	assert.Equal(t, sim.NewInstrument("ORBIT", 42, 0.3, 0.01), insts[1])
	assert.Equal(t, sim.NewInstrument("ZENITH", 7, 1, 0), insts[2])

	// Random seeding is reproducible.
	assert.Equal(t, insts[0], BuildInstruments(sc)[0])
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Simulation.Seed = 5
	cfg.Account.Cash = 500

	s, err := FromConfig(cfg, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, market.DefaultSymbols, s.Symbols())
	assert.Equal(t, 500.0, s.Account("").Cash)
}
