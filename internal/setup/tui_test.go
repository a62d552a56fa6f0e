package setup

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/levtrader/config"
)

func TestAnswers_Build(t *testing.T) {
	a := DefaultAnswers()
	a.SymbolA = " tqqq "
	a.Window = "45"
	a.SellMultiplier = "1.0575"
	a.PollInterval = "15m"

	conf, err := a.Build()
	require.NoError(t, err)
	assert.Equal(t, "TQQQ", conf.SymbolA)
	assert.Equal(t, 45, conf.Params.Window)
	assert.Equal(t, 90, conf.HistoryDays)
	assert.Equal(t, 15*time.Minute, conf.PollPriceInterval)
	assert.True(t, conf.Params.SellMultiplier.Equal(decimal.RequireFromString("1.0575")))

	a.PositionFraction = "1.5"
	_, err = a.Build()
	assert.Error(t, err)
}

func TestSave_WritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	a := DefaultAnswers()
	a.Source = config.SourceBinance

	require.NoError(t, Save(a, path))

	conf, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.SourceBinance, conf.Source)
	assert.Equal(t, "TECL", conf.SymbolA)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateSymbol("TECL"))
	assert.Error(t, validateSymbol(""))
	assert.Error(t, validateSymbol("BTC/USDT"))

	assert.NoError(t, validateDuration("30m"))
	assert.Error(t, validateDuration("-1m"))
	assert.Error(t, validateDuration("soon"))

	assert.NoError(t, validatePositiveInt("30"))
	assert.Error(t, validatePositiveInt("0"))

	assert.NoError(t, validatePositiveDecimal("1.058"))
	assert.Error(t, validatePositiveDecimal("0"))

	assert.NoError(t, validateFraction("1"))
	assert.Error(t, validateFraction("0"))
	assert.Error(t, validateFraction("1.01"))
}
