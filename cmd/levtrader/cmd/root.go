package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/levtrader/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	logLevel   string
	dataDir    string
)

var rootCmd = &cobra.Command{
	Use:   "levtrader",
	Short: "Dip-buying trader for a leveraged ETF with a volatility filter",
	Long: `levtrader buys a leveraged ETF (TECL by default) when it trades far below its
moving average, or moderately below it while the volatility index (VIX) spikes,
and sells at a fixed take-profit over the purchase price.

It provides tools for:
  - Backtesting over CSV files or fetched daily history
  - Running the live loop against Alpaca or a simulated broker
  - Inspecting the persisted trader state and event log
  - Serving a read-only status dashboard`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for state, events and journal")
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() (config.Config, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "failed to load configuration")
	}
	if logLevel != "" {
		conf.LogLevel = logLevel
	}
	if dataDir != "" {
		conf.DataDir = dataDir
	}
	return conf, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", level)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// bootstrap loads the configuration and builds the logger shared by every command.
func bootstrap() (config.Config, *zap.Logger, error) {
	conf, err := loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := os.MkdirAll(conf.DataDir, 0o755); err != nil {
		return config.Config{}, nil, errors.Wrapf(err, "create data dir %s", conf.DataDir)
	}
	l, err := newLogger(conf.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return conf, l, nil
}
