package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"quantor/internal/backtest"
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

// SQLiteStore implements ResultStore backed by a SQLite database. Parameter
// sets, cost configs, and metrics are stored as JSON blobs; trades get their
// own rows so runs can be compared trade by trade with plain SQL.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at   TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	strategy     TEXT NOT NULL,
	params_json  TEXT NOT NULL,
	config_json  TEXT NOT NULL,
	metrics_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id       INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	entry_date   TEXT NOT NULL,
	entry_price  REAL NOT NULL,
	exit_date    TEXT NOT NULL,
	exit_price   REAL NOT NULL,
	shares       INTEGER NOT NULL,
	gross_profit REAL NOT NULL,
	net_profit   REAL NOT NULL,
	holding_days INTEGER NOT NULL,
	exit_reason  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun persists a run and its trade log in one transaction and returns
// the assigned run ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec *RunRecord) (int64, error) {
	paramsJSON, err := json.Marshal(rec.Params)
	if err != nil {
		return 0, fmt.Errorf("encoding params: %w", err)
	}
	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return 0, fmt.Errorf("encoding config: %w", err)
	}
	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return 0, fmt.Errorf("encoding metrics: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (created_at, symbol, strategy, params_json, config_json, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		createdAt.Format(time.RFC3339), rec.Symbol, rec.Strategy,
		string(paramsJSON), string(configJSON), string(metricsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, tr := range rec.Trades {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trades (run_id, entry_date, entry_price, exit_date, exit_price,
			                     shares, gross_profit, net_profit, holding_days, exit_reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, tr.EntryDate.Format(time.RFC3339), tr.EntryPrice,
			tr.ExitDate.Format(time.RFC3339), tr.ExitPrice,
			tr.Shares, tr.GrossProfit, tr.NetProfit, tr.HoldingDays, string(tr.ExitReason),
		); err != nil {
			return 0, fmt.Errorf("inserting trade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// GetRun retrieves a single run, including its trade log. A missing ID
// returns sql.ErrNoRows.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, symbol, strategy, params_json, config_json, metrics_json
		 FROM runs WHERE id = ?`, id)

	rec, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_date, entry_price, exit_date, exit_price, shares,
		        gross_profit, net_profit, holding_days, exit_reason
		 FROM trades WHERE run_id = ? ORDER BY exit_date`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var tr backtest.Trade
		var entryDate, exitDate, reason string
		if err := rows.Scan(&entryDate, &tr.EntryPrice, &exitDate, &tr.ExitPrice,
			&tr.Shares, &tr.GrossProfit, &tr.NetProfit, &tr.HoldingDays, &reason); err != nil {
			return nil, err
		}
		if tr.EntryDate, err = time.Parse(time.RFC3339, entryDate); err != nil {
			return nil, fmt.Errorf("decoding entry date: %w", err)
		}
		if tr.ExitDate, err = time.Parse(time.RFC3339, exitDate); err != nil {
			return nil, fmt.Errorf("decoding exit date: %w", err)
		}
		tr.ExitReason = backtest.ExitReason(reason)
		rec.Trades = append(rec.Trades, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first, without trade logs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT id, created_at, symbol, strategy, params_json, config_json, metrics_json
	          FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var rec RunRecord
	var createdAt, paramsJSON, configJSON, metricsJSON string
	if err := row.Scan(&rec.ID, &createdAt, &rec.Symbol, &rec.Strategy,
		&paramsJSON, &configJSON, &metricsJSON); err != nil {
		return nil, err
	}

	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("decoding created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &rec.Params); err != nil {
		return nil, fmt.Errorf("decoding params: %w", err)
	}
	if err := json.Unmarshal([]byte(configJSON), &rec.Config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &rec.Metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}
	return &rec, nil
}
