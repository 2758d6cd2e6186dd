// Package store defines storage interfaces for persisting and retrieving
// market data and completed backtest runs.
package store

import (
	"context"
	"time"

	"quantor/internal/backtest"
	"quantor/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars under the given market.
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error)

	// ReadSeries returns the bars as a validated price series ready for
	// simulation.
	ReadSeries(ctx context.Context, symbol string, market domain.Market, start, end time.Time) (domain.PriceSeries, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)
}

// RunRecord is one persisted backtest run: the inputs that produced it and
// the results it produced.
type RunRecord struct {
	ID        int64
	CreatedAt time.Time
	Symbol    string
	Strategy  string
	Params    map[string]any
	Config    backtest.Config
	Metrics   *backtest.Metrics
	Trades    []backtest.Trade
}

// ResultStore persists completed backtest runs for later comparison.
type ResultStore interface {
	// SaveRun persists a run and returns its assigned ID.
	SaveRun(ctx context.Context, rec *RunRecord) (int64, error)

	// GetRun retrieves a single run, including its trade log.
	GetRun(ctx context.Context, id int64) (*RunRecord, error)

	// ListRuns returns the most recent runs, newest first, without trade
	// logs. limit <= 0 means no limit.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// Close releases the underlying storage.
	Close() error
}
