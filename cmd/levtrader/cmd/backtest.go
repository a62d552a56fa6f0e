package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/levtrader/config"
	"github.com/vadiminshakov/levtrader/internal"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/report"
	"github.com/vadiminshakov/levtrader/internal/services/backtest"
	"github.com/vadiminshakov/levtrader/internal/services/marketdata"
	"github.com/vadiminshakov/levtrader/internal/storage/journal"
	"go.uber.org/zap"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the strategy over daily history",
	Long: `Backtest aligns the daily series of both instruments, computes the lagged
moving averages and replays the strategy in a single pass.

History comes from two CSV files (date and open columns required) or, when no
files are given, from the configured quote source.

Example:
  levtrader backtest --csv-a data/TECL.csv --csv-b data/VIX.csv --trades
  levtrader backtest --years 10 --journal backtests.sqlite`,
	RunE: runBacktest,
}

var (
	btCSVA      string
	btCSVB      string
	btFund      string
	btYears     int
	btShow      bool
	btTradesCSV string
	btJournal   string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btCSVA, "csv-a", "", "CSV history of the traded instrument")
	backtestCmd.Flags().StringVar(&btCSVB, "csv-b", "", "CSV history of the volatility gauge")
	backtestCmd.Flags().StringVar(&btFund, "fund", "", "initial fund (default from config)")
	backtestCmd.Flags().IntVar(&btYears, "years", 10, "years of history to fetch when no CSV is given")
	backtestCmd.Flags().BoolVar(&btShow, "trades", false, "print every trade")
	backtestCmd.Flags().StringVar(&btTradesCSV, "trades-csv", "", "write the trade list to this CSV file")
	backtestCmd.Flags().StringVar(&btJournal, "journal", "", "record the run in this SQLite journal")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	conf, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer l.Sync()

	fund := conf.Backtest.InitialFund
	if btFund != "" {
		if fund, err = decimal.NewFromString(btFund); err != nil {
			return errors.Wrap(err, "invalid --fund")
		}
	}

	a, b, err := loadSeries(cmd.Context(), conf, l)
	if err != nil {
		return err
	}

	runner, err := backtest.NewRunner(l.Named("backtest"), conf.Params, fund)
	if err != nil {
		return err
	}
	res, err := runner.Run(a, b)
	if err != nil {
		return errors.Wrap(err, "backtest failed")
	}

	fmt.Fprintln(cmd.OutOrStdout(), report.Backtest(conf.SymbolA, conf.SymbolB, res, btShow))

	if btTradesCSV != "" {
		if err := writeTrades(btTradesCSV, res.Trades); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Trades written to %s\n", btTradesCSV)
	}

	journalPath := btJournal
	if journalPath == "" {
		journalPath = conf.Backtest.JournalPath
	}
	if journalPath != "" {
		id, err := recordRun(cmd.Context(), journalPath, conf, res)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Run %s recorded in %s\n", id, journalPath)
	}

	return nil
}

func loadSeries(ctx context.Context, conf config.Config, l *zap.Logger) (domain.Series, domain.Series, error) {
	csvA, csvB := btCSVA, btCSVB
	if csvA == "" {
		csvA = conf.Backtest.CSVA
	}
	if csvB == "" {
		csvB = conf.Backtest.CSVB
	}

	if csvA != "" || csvB != "" {
		if csvA == "" || csvB == "" {
			return domain.Series{}, domain.Series{}, errors.New("both --csv-a and --csv-b are required")
		}
		a, err := marketdata.LoadCSV(csvA, conf.SymbolA)
		if err != nil {
			return domain.Series{}, domain.Series{}, err
		}
		b, err := marketdata.LoadCSV(csvB, conf.SymbolB)
		if err != nil {
			return domain.Series{}, domain.Series{}, err
		}
		return a, b, nil
	}

	src, err := internal.NewServiceProvider(conf, l).QuoteSource()
	if err != nil {
		return domain.Series{}, domain.Series{}, err
	}

	now := time.Now()
	days := btYears * 365
	l.Info("fetching history", zap.String("source", src.Name()), zap.Int("days", days))

	a, err := marketdata.History(ctx, src, conf.SymbolA, days, now)
	if err != nil {
		return domain.Series{}, domain.Series{}, errors.Wrapf(err, "fetch %s history", conf.SymbolA)
	}
	b, err := marketdata.History(ctx, src, conf.SymbolB, days, now)
	if err != nil {
		return domain.Series{}, domain.Series{}, errors.Wrapf(err, "fetch %s history", conf.SymbolB)
	}
	return a, b, nil
}

func writeTrades(path string, trades []domain.TradeEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create trades file")
	}
	defer f.Close()

	return backtest.WriteTradesCSV(f, trades)
}

func recordRun(ctx context.Context, path string, conf config.Config, res *backtest.Result) (string, error) {
	j, err := journal.NewSQLite(path)
	if err != nil {
		return "", errors.Wrap(err, "open journal")
	}
	defer j.Close()

	p := conf.Params
	return j.RecordRun(ctx, journal.Run{
		SymbolA:          conf.SymbolA,
		SymbolB:          conf.SymbolB,
		Start:            res.Start,
		End:              res.End,
		InitialFund:      res.InitialFund,
		FinalFund:        res.FinalFund,
		FinalBank:        res.FinalBank,
		Total:            res.Total,
		AnnualizedReturn: res.AnnualizedReturn,
		BuyAndHoldValue:  res.BuyAndHold.Value,
		Params: fmt.Sprintf("window=%d sell=%s low=%s high=%s vix=%s skim=%s lag=%d cooldown=%d",
			p.Window, p.SellMultiplier, p.LowMultiplier, p.HighMultiplier, p.VolatilityMultiplier,
			p.BankSkim, p.ConditionalLag, p.CooldownDays),
	}, res.Trades)
}
