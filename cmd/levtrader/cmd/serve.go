package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/levtrader/dashboard"
	"github.com/vadiminshakov/levtrader/internal"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the status dashboard without trading",
	RunE:  runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	conf, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer l.Sync()

	if serveAddr != "" {
		conf.Dashboard.Addr = serveAddr
	}

	stores, err := internal.OpenStores(conf.DataDir)
	if err != nil {
		return err
	}
	defer stores.Close()

	srv := dashboard.NewServer(l.Named("dashboard"), conf.Dashboard.Addr, conf.TraderID, stores.State, stores.Events, conf.Dashboard.AllowedOrigins)
	if err := serveDashboard(cmd.Context(), srv, conf); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
