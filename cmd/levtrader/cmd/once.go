package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vadiminshakov/levtrader/internal"
	"github.com/vadiminshakov/levtrader/internal/report"
	"go.uber.org/zap"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single trading cycle and exit",
	Long: `Once reconciles with the broker and runs one signal check, placing at most
one order. It is meant for external schedulers such as cron.`,
	RunE: runOnce,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the daily account report",
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(reportCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	conf, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer l.Sync()

	stores, err := internal.OpenStores(conf.DataDir)
	if err != nil {
		return err
	}
	defer stores.Close()

	trader, err := internal.NewServiceProvider(conf, l).LiveTrader(stores)
	if err != nil {
		return err
	}
	if err := trader.Initialize(cmd.Context()); err != nil {
		return err
	}

	res, err := trader.RunCycle(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case res.Skipped != "":
		fmt.Fprintf(out, "cycle skipped: %s\n", res.Skipped)
	case res.Order != nil:
		fmt.Fprintf(out, "%s %s x%s at %s (%s)\n", res.Decision.Action, conf.SymbolA, res.Quantity, res.Decision.Price, res.Decision.Reason)
	default:
		fmt.Fprintf(out, "no trade: %s\n", res.Decision.Outcome)
		if res.Decision.Reason != "" {
			l.Debug("decision", zap.String("reason", res.Decision.Reason))
		}
	}

	fmt.Fprintln(out, report.State(trader.State()))
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	conf, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer l.Sync()

	stores, err := internal.OpenStores(conf.DataDir)
	if err != nil {
		return err
	}
	defer stores.Close()

	trader, err := internal.NewServiceProvider(conf, l).LiveTrader(stores)
	if err != nil {
		return err
	}
	if err := trader.Initialize(cmd.Context()); err != nil {
		return err
	}

	r, err := trader.DailyReport(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), report.Daily(conf.SymbolA, r))
	return nil
}
