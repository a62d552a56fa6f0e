package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	l, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = newLogger("")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestFormatEvent(t *testing.T) {
	e := domain.LogEvent{
		Timestamp: time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC),
		Type:      domain.EventBuy,
		Symbol:    "TECL",
		Price:     decimal.NewNullDecimal(decimal.RequireFromString("74.5")),
		Quantity:  decimal.NewNullDecimal(decimal.NewFromInt(128)),
		Details:   map[string]string{"success": "true", "action": "BUY_IMMEDIATE"},
	}

	assert.Equal(t,
		"2024-03-04 10:00:00  BUY          TECL price=74.50 qty=128 action=BUY_IMMEDIATE success=true",
		formatEvent(e))
}

func writeCSV(t *testing.T, dir, name string, opens []string) string {
	t.Helper()
	var b bytes.Buffer
	b.WriteString("Date,Open,High,Low,Close\n")
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, o := range opens {
		b.WriteString(day.Format(domain.DateLayout) + "," + o + "," + o + "," + o + "," + o + "\n")
		day = day.AddDate(0, 0, 1)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}

func TestBacktestCommand(t *testing.T) {
	dir := t.TempDir()

	// 31 flat days, then a crash below 0.75 x SMA, then a recovery over 1.058 x purchase.
	a := make([]string, 0, 40)
	b := make([]string, 0, 40)
	for i := 0; i < 31; i++ {
		a = append(a, "100")
	}
	a = append(a, "74", "74", "74", "79.3", "80", "80")
	for range a {
		b = append(b, "20")
	}

	csvA := writeCSV(t, dir, "a.csv", a)
	csvB := writeCSV(t, dir, "b.csv", b)
	tradesPath := filepath.Join(dir, "trades.csv")
	journalPath := filepath.Join(dir, "journal.sqlite")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"backtest",
		"--data-dir", dir,
		"--log-level", "error",
		"--csv-a", csvA,
		"--csv-b", csvB,
		"--trades-csv", tradesPath,
		"--journal", journalPath,
	})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "Total trades")
	assert.Contains(t, out.String(), "recorded in "+journalPath)

	trades, err := os.ReadFile(tradesPath)
	require.NoError(t, err)
	assert.Contains(t, string(trades), "BUY_IMMEDIATE")
	assert.Contains(t, string(trades), "SELL")
}
