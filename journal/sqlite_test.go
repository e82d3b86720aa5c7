package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('trades','fills','equity')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["trades"])
	assert.True(t, found["fills"])
	assert.True(t, found["equity"])
}

func TestSQLiteRecordTrade(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	open := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	closeT := time.Date(2024, 1, 2, 4, 5, 6, 0, time.UTC)

	rec := TradeRecord{
		TradeID:     "T1",
		Symbol:      "NEXUS",
		Size:        -250,
		EntryPrice:  312.455,
		ExitPrice:   309.12,
		OpenTime:    open,
		CloseTime:   closeT,
		RealizedPnL: 833.75,
		Reason:      ReasonClose,
	}

	assert.NoError(t, j.RecordTrade(rec))
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		tradeID     string
		symbol      string
		size        int64
		entry       float64
		exit        float64
		openTime    time.Time
		closeTime   time.Time
		realizedPnL float64
		reason      string
	)

	err = db.QueryRow(`
        SELECT trade_id, symbol, size, entry_price, exit_price, open_time, close_time, realized_pnl, reason
        FROM trades LIMIT 1`).Scan(
		&tradeID, &symbol, &size, &entry, &exit, &openTime, &closeTime, &realizedPnL, &reason,
	)
	require.NoError(t, err)

	assert.Equal(t, rec.TradeID, tradeID)
	assert.Equal(t, rec.Symbol, symbol)
	assert.Equal(t, rec.Size, size)
	assert.InDelta(t, rec.EntryPrice, entry, 1e-9)
	assert.InDelta(t, rec.ExitPrice, exit, 1e-9)
	assert.True(t, openTime.Equal(rec.OpenTime))
	assert.True(t, closeTime.Equal(rec.CloseTime))
	assert.InDelta(t, rec.RealizedPnL, realizedPnL, 1e-6)
	assert.Equal(t, rec.Reason, reason)
}

func TestSQLiteRecordFill(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, j.RecordFill(FillRecord{FillID: "F1", Symbol: "ORBIT", Side: "BUY", Size: 40, Price: 201.5, Time: ts}))
	require.NoError(t, j.RecordFill(FillRecord{FillID: "F2", Symbol: "HELIX", Side: "SELL", Size: 10, Price: 99.1, Time: ts.Add(time.Second)}))

	all, err := j.ListFills("")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "F1", all[0].FillID)
	assert.Equal(t, int64(40), all[0].Size)
	assert.True(t, all[0].Time.Equal(ts))

	orbit, err := j.ListFills("ORBIT")
	require.NoError(t, err)
	require.Len(t, orbit, 1)
	assert.Equal(t, "BUY", orbit[0].Side)
}

func TestSQLiteRecordEquity(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	rec := EquitySnapshot{
		Time:          ts,
		Cash:          1000.1,
		Equity:        999.9,
		MarginUsed:    10.5,
		FreeMargin:    989.4,
		UnrealizedPnL: -0.2,
	}

	assert.NoError(t, j.RecordEquity(rec))
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		gotTime    time.Time
		cash       float64
		equity     float64
		marginUsed float64
		freeMargin float64
		unrealized float64
	)

	err = db.QueryRow(`
        SELECT time, cash, equity, margin_used, free_margin, unrealized_pnl
        FROM equity LIMIT 1`).Scan(
		&gotTime, &cash, &equity, &marginUsed, &freeMargin, &unrealized,
	)
	require.NoError(t, err)

	assert.True(t, gotTime.Equal(rec.Time))
	assert.InDelta(t, rec.Cash, cash, 1e-6)
	assert.InDelta(t, rec.Equity, equity, 1e-6)
	assert.InDelta(t, rec.MarginUsed, marginUsed, 1e-6)
	assert.InDelta(t, rec.FreeMargin, freeMargin, 1e-6)
	assert.InDelta(t, rec.UnrealizedPnL, unrealized, 1e-6)
}
