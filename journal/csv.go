package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var (
	tradesHeader = []string{"trade_id", "symbol", "size", "entry_price", "exit_price", "open_time", "close_time", "realized_pnl", "reason"}
	fillsHeader  = []string{"fill_id", "symbol", "side", "size", "price", "time"}
	equityHeader = []string{"time", "cash", "equity", "margin_used", "free_margin", "unrealized_pnl"}
)

// CSVJournal writes trades.csv, fills.csv and equity.csv into one directory.
type CSVJournal struct {
	trades *csv.Writer
	fills  *csv.Writer
	equity *csv.Writer
	files  []*os.File
}

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSVJournal{}
	var err error
	if j.trades, err = j.create(filepath.Join(dir, "trades.csv"), tradesHeader); err != nil {
		_ = j.closeFiles()
		return nil, err
	}
	if j.fills, err = j.create(filepath.Join(dir, "fills.csv"), fillsHeader); err != nil {
		_ = j.closeFiles()
		return nil, err
	}
	if j.equity, err = j.create(filepath.Join(dir, "equity.csv"), equityHeader); err != nil {
		_ = j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) create(path string, header []string) (*csv.Writer, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	j.files = append(j.files, fh)

	w := csv.NewWriter(fh)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write header %s: %w", path, err)
	}
	w.Flush()
	return w, w.Error()
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return write(j.trades, []string{
		t.TradeID,
		t.Symbol,
		strconv.FormatInt(t.Size, 10),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.OpenTime.Format(time.RFC3339),
		t.CloseTime.Format(time.RFC3339),
		f(t.RealizedPnL),
		t.Reason,
	})
}

func (j *CSVJournal) RecordFill(r FillRecord) error {
	return write(j.fills, []string{
		r.FillID,
		r.Symbol,
		r.Side,
		strconv.FormatInt(r.Size, 10),
		f(r.Price),
		r.Time.Format(time.RFC3339),
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return write(j.equity, []string{
		e.Time.Format(time.RFC3339),
		f(e.Cash),
		f(e.Equity),
		f(e.MarginUsed),
		f(e.FreeMargin),
		f(e.UnrealizedPnL),
	})
}

func (j *CSVJournal) Close() error {
	for _, w := range []*csv.Writer{j.trades, j.fills, j.equity} {
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	}
	return j.closeFiles()
}

func (j *CSVJournal) closeFiles() error {
	var first error
	for _, fh := range j.files {
		if err := fh.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
