package cmd

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/levtrader/config"
	"github.com/vadiminshakov/levtrader/dashboard"
	"github.com/vadiminshakov/levtrader/internal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live trading loop and the status dashboard",
	Long: `Run reconciles the persisted state with the broker, then checks the signals
every poll interval while the market is open. The first cycle of each trading
day also logs the daily account report.

The dashboard is served on dashboard.addr unless --no-dashboard is given.

Example:
  levtrader run --config config.yaml`,
	RunE: runLive,
}

var runNoDashboard bool

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runNoDashboard, "no-dashboard", false, "do not serve the status dashboard")
}

func runLive(cmd *cobra.Command, args []string) error {
	conf, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer l.Sync()

	stores, err := internal.OpenStores(conf.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			l.Error("failed to close stores", zap.Error(err))
		}
	}()

	trader, err := internal.NewServiceProvider(conf, l).LiveTrader(stores)
	if err != nil {
		return err
	}
	bot, err := internal.NewTradingBot(l.Named("bot"), trader, conf.PollPriceInterval)
	if err != nil {
		return err
	}

	l.Info("starting levtrader",
		zap.String("trader", conf.TraderID),
		zap.String("symbol", conf.SymbolA),
		zap.String("gauge", conf.SymbolB),
		zap.String("source", conf.Source),
		zap.String("broker", conf.Broker),
		zap.Duration("interval", conf.PollPriceInterval))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return bot.Run(ctx)
	})
	if !runNoDashboard {
		srv := dashboard.NewServer(l.Named("dashboard"), conf.Dashboard.Addr, conf.TraderID, stores.State, stores.Events, conf.Dashboard.AllowedOrigins)
		g.Go(func() error {
			return serveDashboard(ctx, srv, conf)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	l.Info("levtrader stopped")
	return nil
}

func serveDashboard(ctx context.Context, srv *dashboard.Server, conf config.Config) error {
	if conf.Dashboard.Domain != "" {
		return srv.StartWithAutoTLS(ctx, strings.Split(conf.Dashboard.Domain, ","), conf.Dashboard.CertCache)
	}
	return srv.Start(ctx)
}
