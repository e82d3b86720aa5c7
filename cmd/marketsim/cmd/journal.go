package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/marketsim/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display trade journal records from a SQLite journal.

Subcommands:
  trade   - Get details of a specific trade by ID
  trades  - List recent trades, newest first
  today   - List trades closed today
  day     - List trades closed on a specific day

Examples:
  marketsim journal trade 01J0Z3N8W2J6Q9A8VXR1K3C4D5
  marketsim journal trades --symbol NEXUS --limit 20
  marketsim journal day 2024-01-15`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List recent trades with a summary",
	Args:  cobra.NoArgs,
	RunE:  runJournalTrades,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var (
	journalDBPath string
	journalSymbol string
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./marketsim.sqlite", "path to SQLite journal DB")
	journalTradesCmd.Flags().StringVarP(&journalSymbol, "symbol", "s", "", "only trades in this symbol")
	journalTradesCmd.Flags().IntVarP(&journalLimit, "limit", "n", 50, "maximum number of trades (0 for all)")
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Trade %s\n", rec.TradeID)
	fmt.Fprintf(out, "  Symbol:  %s\n", rec.Symbol)
	fmt.Fprintf(out, "  Size:    %d\n", rec.Size)
	fmt.Fprintf(out, "  Entry:   %.3f  %s\n", rec.EntryPrice, rec.OpenTime.Format(time.RFC3339))
	fmt.Fprintf(out, "  Exit:    %.3f  %s\n", rec.ExitPrice, rec.CloseTime.Format(time.RFC3339))
	fmt.Fprintf(out, "  P&L:     %+.2f\n", rec.RealizedPnL)
	fmt.Fprintf(out, "  Reason:  %s\n", rec.Reason)
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListTrades(journalSymbol, journalLimit)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	printTrades(cmd.OutOrStdout(), recs)
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return listDay(cmd, time.Now().In(time.Local).Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return listDay(cmd, args[0])
}

func listDay(cmd *cobra.Command, day string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	printTrades(cmd.OutOrStdout(), recs)
	return nil
}

func printTrades(out io.Writer, recs []journal.TradeRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(out, "No trades.")
		return
	}
	fmt.Fprintf(out, "%-26s  %-8s  %8s  %9s  %9s  %10s  %s\n",
		"ID", "SYMBOL", "SIZE", "ENTRY", "EXIT", "P&L", "REASON")
	for _, r := range recs {
		fmt.Fprintf(out, "%-26s  %-8s  %8d  %9.3f  %9.3f  %+10.2f  %s\n",
			r.TradeID, r.Symbol, r.Size, r.EntryPrice, r.ExitPrice, r.RealizedPnL, r.Reason)
	}

	s := journal.Summarize(recs)
	fmt.Fprintf(out, "\n%d trades, %d wins, %d losses, net %+.2f, profit factor %.2f\n",
		s.Trades, s.Wins, s.Losses, s.NetPnL, s.ProfitFactor)
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
