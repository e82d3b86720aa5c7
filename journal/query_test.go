package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTrades(t *testing.T, j *SQLite, base time.Time) []TradeRecord {
	t.Helper()

	trades := []TradeRecord{
		{TradeID: "T001", Symbol: "NEXUS", Size: 100, EntryPrice: 300, ExitPrice: 302, OpenTime: base, CloseTime: base.Add(1 * time.Minute), RealizedPnL: 200, Reason: ReasonClose},
		{TradeID: "T002", Symbol: "ORBIT", Size: -50, EntryPrice: 200, ExitPrice: 201, OpenTime: base, CloseTime: base.Add(2 * time.Minute), RealizedPnL: -50, Reason: ReasonFlat},
		{TradeID: "T003", Symbol: "NEXUS", Size: 10, EntryPrice: 305, ExitPrice: 290, OpenTime: base, CloseTime: base.Add(3 * time.Minute), RealizedPnL: -150, Reason: ReasonLiquidation},
	}
	for _, tr := range trades {
		require.NoError(t, j.RecordTrade(tr))
	}
	return trades
}

func TestGetTrade(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	base := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	trades := seedTrades(t, j, base)

	got, err := j.GetTrade("T002")
	require.NoError(t, err)

	want := trades[1]
	assert.Equal(t, want.TradeID, got.TradeID)
	assert.Equal(t, want.Symbol, got.Symbol)
	assert.Equal(t, want.Size, got.Size)
	assert.InDelta(t, want.EntryPrice, got.EntryPrice, 1e-9)
	assert.InDelta(t, want.ExitPrice, got.ExitPrice, 1e-9)
	assert.True(t, got.OpenTime.Equal(want.OpenTime))
	assert.True(t, got.CloseTime.Equal(want.CloseTime))
	assert.InDelta(t, want.RealizedPnL, got.RealizedPnL, 1e-6)
	assert.Equal(t, want.Reason, got.Reason)
}

func TestGetTradeNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	_, err := j.GetTrade("nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListTrades(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	seedTrades(t, j, time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC))

	tests := []struct {
		name   string
		symbol string
		limit  int
		want   []string
	}{
		{"all", "", 0, []string{"T003", "T002", "T001"}},
		{"limited", "", 2, []string{"T003", "T002"}},
		{"by symbol", "NEXUS", 0, []string{"T003", "T001"}},
		{"unknown symbol", "NOPE", 0, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := j.ListTrades(tt.symbol, tt.limit)
			require.NoError(t, err)

			var ids []string
			for _, tr := range got {
				ids = append(ids, tr.TradeID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestListTradesClosedBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	base := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	seedTrades(t, j, base)

	got, err := j.ListTradesClosedBetween(base.Add(90*time.Second), base.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "T002", got[0].TradeID)
}

func TestListEquityBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	base := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.RecordEquity(EquitySnapshot{
			Time: base.Add(time.Duration(i) * time.Second),
			Cash: 10000 + float64(i),
		}))
	}

	got, err := j.ListEquityBetween(base.Add(time.Second), base.Add(4*time.Second))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.InDelta(t, 10001.0, got[0].Cash, 1e-9)
	assert.InDelta(t, 10003.0, got[2].Cash, 1e-9)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := Summarize([]TradeRecord{
		{RealizedPnL: 200},
		{RealizedPnL: -50},
		{RealizedPnL: 0},
		{RealizedPnL: -150},
	})
	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.InDelta(t, 0.0, s.NetPnL, 1e-9)
	assert.InDelta(t, 1.0, s.ProfitFactor, 1e-9)

	assert.Zero(t, Summarize(nil).ProfitFactor)
}
