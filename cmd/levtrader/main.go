// Command levtrader backtests and trades the leveraged ETF dip strategy.
//
// Usage:
//
//	levtrader backtest --csv-a TECL.csv --csv-b VIX.csv
//	levtrader run --config config.yaml
//
// Broker credentials come from the environment or a .env file:
//
//	ALPACA_API_KEY, ALPACA_SECRET_KEY, ALPACA_BASE_URL
//	BINANCE_API_KEY, BINANCE_API_SECRET
package main

import (
	"os"

	"github.com/vadiminshakov/levtrader/cmd/levtrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
