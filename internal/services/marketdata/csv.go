package marketdata

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

var dateLayouts = []string{domain.DateLayout, "01/02/2006", time.RFC3339, "2006-01-02 15:04:05"}

// LoadCSV reads a daily price file. Column names are matched case-insensitively,
// date and open are required.
func LoadCSV(path, symbol string) (domain.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Series{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	return ReadCSV(f, symbol)
}

// ReadCSV parses daily bars from r.
func ReadCSV(r io.Reader, symbol string) (domain.Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Series{}, &domain.MissingColumnError{Source: symbol, Column: "date"}
		}
		return domain.Series{}, errors.Wrapf(err, "read %s header", symbol)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}

	dateCol, ok := columns["date"]
	if !ok {
		return domain.Series{}, &domain.MissingColumnError{Source: symbol, Column: "date"}
	}
	openCol, ok := columns["open"]
	if !ok {
		return domain.Series{}, &domain.MissingColumnError{Source: symbol, Column: "open"}
	}

	series := domain.Series{Symbol: symbol}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Series{}, errors.Wrapf(err, "read %s line %d", symbol, line)
		}

		date, err := parseDate(field(record, dateCol))
		if err != nil {
			return domain.Series{}, errors.Wrapf(err, "%s line %d", symbol, line)
		}
		open, err := decimal.NewFromString(field(record, openCol))
		if err != nil {
			return domain.Series{}, errors.Wrapf(err, "%s line %d: open", symbol, line)
		}

		bar := domain.PriceBar{Date: date, Open: open}
		bar.High = optionalDecimal(record, columns, "high")
		bar.Low = optionalDecimal(record, columns, "low")
		bar.Close = optionalDecimal(record, columns, "close")
		if col, ok := columns["volume"]; ok {
			bar.Volume, _ = strconv.ParseInt(field(record, col), 10, 64)
		}

		series.Bars = append(series.Bars, bar)
	}

	return series, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return domain.Day(t), nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized date %q", value)
}

func field(record []string, col int) string {
	if col >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[col])
}

func optionalDecimal(record []string, columns map[string]int, name string) decimal.Decimal {
	col, ok := columns[name]
	if !ok {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(field(record, col))
	if err != nil {
		return decimal.Zero
	}
	return v
}
