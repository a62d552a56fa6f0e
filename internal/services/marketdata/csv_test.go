package marketdata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

func TestReadCSV(t *testing.T) {
	input := "Date,Open,High,Low,Close,Adj Close,Volume\n" +
		"2020-01-02,100.5,101,99,100.9,100.9,12345\n" +
		"2020-01-03, 99.1 ,100,98,99.5,99.5,23456\n"

	series, err := ReadCSV(strings.NewReader(input), "TECL")
	require.NoError(t, err)
	require.Len(t, series.Bars, 2)

	assert.Equal(t, "TECL", series.Symbol)
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), series.Bars[0].Date)
	assert.Equal(t, "100.5", series.Bars[0].Open.String())
	assert.Equal(t, "100.9", series.Bars[0].Close.String())
	assert.Equal(t, int64(12345), series.Bars[0].Volume)
	assert.Equal(t, "99.1", series.Bars[1].Open.String())
}

func TestReadCSV_UpperCaseHeaders(t *testing.T) {
	input := "DATE,OPEN,HIGH,LOW,CLOSE\n01/02/2020,13.46,13.72,12.42,12.47\n"

	series, err := ReadCSV(strings.NewReader(input), "VIX")
	require.NoError(t, err)
	require.Len(t, series.Bars, 1)
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), series.Bars[0].Date)
	assert.Equal(t, "13.46", series.Bars[0].Open.String())
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Date,Close\n2020-01-02,1\n"), "A")
	require.Error(t, err)
	assert.True(t, domain.IsMissingColumn(err))

	_, err = ReadCSV(strings.NewReader("Open,Close\n1,1\n"), "A")
	require.Error(t, err)
	assert.True(t, domain.IsMissingColumn(err))

	_, err = ReadCSV(strings.NewReader(""), "A")
	require.Error(t, err)
	assert.True(t, domain.IsMissingColumn(err))
}

func TestReadCSV_BadValues(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Date,Open\nyesterday,1\n"), "A")
	require.Error(t, err)

	_, err = ReadCSV(strings.NewReader("Date,Open\n2020-01-02,abc\n"), "A")
	require.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tecl.csv")
	require.NoError(t, os.WriteFile(path, []byte("Date,Open\n2020-01-02,1\n"), 0o644))

	series, err := LoadCSV(path, "TECL")
	require.NoError(t, err)
	assert.Len(t, series.Bars, 1)

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), "TECL")
	require.Error(t, err)
}
