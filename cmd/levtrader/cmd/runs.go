package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/report"
	"github.com/vadiminshakov/levtrader/internal/storage/journal"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded backtest runs, or show the trades of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

var (
	runsJournal string
	runsLimit   int
)

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().StringVar(&runsJournal, "journal", "", "SQLite journal path (default from config)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs")
}

func runRuns(cmd *cobra.Command, args []string) error {
	conf, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer l.Sync()

	path := runsJournal
	if path == "" {
		path = conf.Backtest.JournalPath
	}
	if path == "" {
		return errors.New("no journal configured, pass --journal")
	}

	j, err := journal.NewSQLite(path)
	if err != nil {
		return err
	}
	defer j.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		trades, err := j.TradesByRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, report.Trades(trades))
		return nil
	}

	runs, err := j.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %s/%s  %s..%s  total %s  annualized %.2f%%  buy&hold %s\n",
			r.ID, r.SymbolA, r.SymbolB,
			r.Start.Format(domain.DateLayout), r.End.Format(domain.DateLayout),
			r.Total.StringFixed(2), r.AnnualizedReturn, r.BuyAndHoldValue.StringFixed(2))
	}
	return nil
}
