package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vadiminshakov/levtrader/internal"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/report"
	"github.com/vadiminshakov/levtrader/internal/storage/events"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the persisted trader state",
	RunE:  runState,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List logged trading events",
	Long: `Events lists the event log of the last days, newest first.

Example:
  levtrader events --days 3 --type SIGNAL_CHECK --limit 20`,
	RunE: runEvents,
}

var (
	evDays  int
	evType  string
	evLimit int
)

func init() {
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().IntVar(&evDays, "days", 7, "number of days to look back")
	eventsCmd.Flags().StringVar(&evType, "type", "", "only events of this type (BUY, SELL, SIGNAL_CHECK, DAILY_REPORT)")
	eventsCmd.Flags().IntVar(&evLimit, "limit", 50, "maximum number of events")
}

func runState(cmd *cobra.Command, args []string) error {
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

	st, err := stores.State.Load(conf.TraderID)
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "no state saved for trader %s\n", conf.TraderID)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), report.State(*st))
	return nil
}

func runEvents(cmd *cobra.Command, args []string) error {
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

	from := time.Now().AddDate(0, 0, -evDays)
	list, err := stores.Events.Since(from, events.Filter{
		Type:  domain.EventType(strings.ToUpper(evType)),
		Limit: evLimit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "no events")
		return nil
	}
	for _, e := range list {
		fmt.Fprintln(out, formatEvent(e))
	}
	return nil
}

func formatEvent(e domain.LogEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-12s %s", e.Timestamp.In(domain.MarketLocation).Format("2006-01-02 15:04:05"), e.Type, e.Symbol)
	if e.Price.Valid {
		fmt.Fprintf(&b, " price=%s", e.Price.Decimal.StringFixed(2))
	}
	if e.Quantity.Valid {
		fmt.Fprintf(&b, " qty=%s", e.Quantity.Decimal.String())
	}
	if e.VIX.Valid {
		fmt.Fprintf(&b, " vix=%s", e.VIX.Decimal.StringFixed(2))
	}
	if e.SMA.Valid {
		fmt.Fprintf(&b, " sma=%s", e.SMA.Decimal.StringFixed(2))
	}
	if e.WMA.Valid {
		fmt.Fprintf(&b, " wma=%s", e.WMA.Decimal.StringFixed(2))
	}
	for _, k := range sortedKeys(e.Details) {
		fmt.Fprintf(&b, " %s=%s", k, e.Details[k])
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
