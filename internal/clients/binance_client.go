package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient returns a spot client. Empty keys are enough for public market data.
func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}
