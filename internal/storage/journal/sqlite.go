// Package journal stores backtest runs and their trades in SQLite.
package journal

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/levtrader/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	created_at      TEXT NOT NULL,
	symbol_a        TEXT NOT NULL,
	symbol_b        TEXT NOT NULL,
	start_date      TEXT NOT NULL,
	end_date        TEXT NOT NULL,
	initial_fund    TEXT NOT NULL,
	final_fund      TEXT NOT NULL,
	final_bank      TEXT NOT NULL,
	total           TEXT NOT NULL,
	annualized      REAL NOT NULL,
	buy_hold_value  TEXT NOT NULL,
	params          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id    TEXT NOT NULL REFERENCES runs(run_id),
	seq       INTEGER NOT NULL,
	date      TEXT NOT NULL,
	action    TEXT NOT NULL,
	price     TEXT NOT NULL,
	quantity  TEXT NOT NULL,
	fund      TEXT NOT NULL,
	bank      TEXT,
	reason    TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

var ErrRunNotFound = errors.New("backtest run not found")

// Run is the summary row of one backtest.
type Run struct {
	ID               string
	CreatedAt        time.Time
	SymbolA          string
	SymbolB          string
	Start            time.Time
	End              time.Time
	InitialFund      decimal.Decimal
	FinalFund        decimal.Decimal
	FinalBank        decimal.Decimal
	Total            decimal.Decimal
	AnnualizedReturn float64
	BuyAndHoldValue  decimal.Decimal
	// Params is a free-form description of the strategy parameters.
	Params string
}

// SQLite is a backtest journal backed by a SQLite file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the journal at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create journal schema")
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// RecordRun stores a run with its trades and returns the run id.
func (j *SQLite) RecordRun(ctx context.Context, run Run, trades []domain.TradeEvent) (string, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = j.now()
	}
	if run.ID == "" {
		run.ID = NewRunID(run.CreatedAt)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "begin journal tx")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, created_at, symbol_a, symbol_b, start_date, end_date, initial_fund, final_fund, final_bank, total, annualized, buy_hold_value, params)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(time.RFC3339), run.SymbolA, run.SymbolB,
		run.Start.Format(domain.DateLayout), run.End.Format(domain.DateLayout),
		run.InitialFund.String(), run.FinalFund.String(), run.FinalBank.String(), run.Total.String(),
		run.AnnualizedReturn, run.BuyAndHoldValue.String(), run.Params,
	)
	if err != nil {
		return "", errors.Wrap(err, "insert run")
	}

	for i, t := range trades {
		var bank sql.NullString
		if t.Bank.Valid {
			bank = sql.NullString{String: t.Bank.Decimal.String(), Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO trades (run_id, seq, date, action, price, quantity, fund, bank, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, t.Date.Format(domain.DateLayout), t.Action.String(),
			t.Price.String(), t.Quantity.String(), t.Fund.String(), bank, t.Reason,
		)
		if err != nil {
			return "", errors.Wrapf(err, "insert trade %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit journal tx")
	}

	return run.ID, nil
}

// GetRun loads one run summary.
func (j *SQLite) GetRun(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx, selectRuns+` WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, errors.Wrap(ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns the newest runs first.
func (j *SQLite) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx, selectRuns+` ORDER BY run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}

// TradesByRun returns the trades of a run in execution order.
func (j *SQLite) TradesByRun(ctx context.Context, runID string) ([]domain.TradeEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, action, price, quantity, fund, bank, reason
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "list trades")
	}
	defer rows.Close()

	trades := make([]domain.TradeEvent, 0)
	for rows.Next() {
		var (
			date, action, price, qty, fund, reason string
			bank                                   sql.NullString
		)
		if err := rows.Scan(&date, &action, &price, &qty, &fund, &bank, &reason); err != nil {
			return nil, errors.Wrap(err, "scan trade")
		}

		t := domain.TradeEvent{Reason: reason}
		if t.Date, err = time.Parse(domain.DateLayout, date); err != nil {
			return nil, errors.Wrap(err, "parse trade date")
		}
		if err := t.Action.UnmarshalText([]byte(action)); err != nil {
			return nil, err
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrap(err, "parse trade price")
		}
		if t.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, errors.Wrap(err, "parse trade quantity")
		}
		if t.Fund, err = decimal.NewFromString(fund); err != nil {
			return nil, errors.Wrap(err, "parse trade fund")
		}
		if bank.Valid {
			b, err := decimal.NewFromString(bank.String)
			if err != nil {
				return nil, errors.Wrap(err, "parse trade bank")
			}
			t.Bank = decimal.NewNullDecimal(b)
		}

		trades = append(trades, t)
	}
	return trades, errors.Wrap(rows.Err(), "iterate trades")
}

// Close closes the database.
func (j *SQLite) Close() error {
	return j.db.Close()
}

const selectRuns = `
	SELECT run_id, created_at, symbol_a, symbol_b, start_date, end_date,
	       initial_fund, final_fund, final_bank, total, annualized, buy_hold_value, params
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run                                      Run
		created, start, end                      string
		initial, fund, bank, total, buyHoldValue string
	)

	err := s.Scan(&run.ID, &created, &run.SymbolA, &run.SymbolB, &start, &end,
		&initial, &fund, &bank, &total, &run.AnnualizedReturn, &buyHoldValue, &run.Params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, errors.Wrap(err, "scan run")
	}

	if run.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return Run{}, errors.Wrap(err, "parse created_at")
	}
	if run.Start, err = time.Parse(domain.DateLayout, start); err != nil {
		return Run{}, errors.Wrap(err, "parse start_date")
	}
	if run.End, err = time.Parse(domain.DateLayout, end); err != nil {
		return Run{}, errors.Wrap(err, "parse end_date")
	}

	for _, f := range []struct {
		src string
		dst *decimal.Decimal
	}{
		{initial, &run.InitialFund},
		{fund, &run.FinalFund},
		{bank, &run.FinalBank},
		{total, &run.Total},
		{buyHoldValue, &run.BuyAndHoldValue},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return Run{}, errors.Wrap(err, "parse run amount")
		}
	}

	return run, nil
}
