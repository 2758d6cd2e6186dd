package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"quantor/internal/backtest"
	"quantor/internal/domain"
)

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	bp := ps.barPath("aapl", domain.MarketUS, 2024)
	want := filepath.Join("/data", "us", "daily", "AAPL", "2024.parquet")
	if bp != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", bp, want)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := []domain.Bar{
		{
			Symbol:     "AAPL",
			Timestamp:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Open:       185.0,
			High:       186.5,
			Low:        184.0,
			Close:      185.5,
			Volume:     50000000,
			TradeCount: 500000,
			VWAP:       185.25,
		},
		{
			Symbol:     "AAPL",
			Timestamp:  time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Open:       185.5,
			High:       187.0,
			Low:        185.0,
			Close:      186.0,
			Volume:     45000000,
			TradeCount: 450000,
			VWAP:       185.75,
		},
	}

	if err := ps.WriteBars(ctx, domain.MarketUS, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "AAPL", domain.MarketUS, start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 185.5 {
		t.Errorf("first bar Close = %v, want 185.5", got[0].Close)
	}
	if got[1].Close != 186.0 {
		t.Errorf("second bar Close = %v, want 186.0", got[1].Close)
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars1 := []domain.Bar{
		{
			Symbol:    "MSFT",
			Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Open:      400.0, High: 405.0, Low: 399.0, Close: 403.0,
			Volume: 30000000, TradeCount: 300000, VWAP: 402.0,
		},
	}
	if err := ps.WriteBars(ctx, domain.MarketUS, bars1); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// Same symbol+year plus a rewrite of the existing date with a corrected
	// close. The merge must keep both dates and prefer the newer row.
	bars2 := []domain.Bar{
		{
			Symbol:    "MSFT",
			Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Open:      400.0, High: 405.0, Low: 399.0, Close: 404.0,
			Volume: 30000000, TradeCount: 300000, VWAP: 402.0,
		},
		{
			Symbol:    "MSFT",
			Timestamp: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			Open:      403.0, High: 410.0, Low: 402.0, Close: 408.0,
			Volume: 35000000, TradeCount: 350000, VWAP: 406.0,
		},
	}
	if err := ps.WriteBars(ctx, domain.MarketUS, bars2); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "MSFT", domain.MarketUS, start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
	if got[0].Close != 404.0 {
		t.Errorf("merged bar Close = %v, want corrected 404.0", got[0].Close)
	}
}

func TestParquetStoreReadSeries(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "AAPL", Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 186, High: 187, Low: 185, Close: 186, Volume: 100},
		{Symbol: "AAPL", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 185, High: 186, Low: 184, Close: 185.5, Volume: 100},
	}
	if err := ps.WriteBars(ctx, domain.MarketUS, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	series, err := ps.ReadSeries(ctx, "AAPL", domain.MarketUS, start, end)
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(series))
	}
	if !series[0].Timestamp.Before(series[1].Timestamp) {
		t.Error("series not sorted by date")
	}

	if _, err := ps.ReadSeries(ctx, "MISSING", domain.MarketUS, start, end); err == nil {
		t.Error("expected error for symbol with no data")
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "AAPL", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 185.0, High: 186.0, Low: 184.0, Close: 185.5, Volume: 50000000},
		{Symbol: "GOOGL", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 140.0, High: 141.0, Low: 139.0, Close: 140.5, Volume: 20000000},
	}
	if err := ps.WriteBars(ctx, domain.MarketUS, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err := ps.ListSymbols(ctx, domain.MarketUS)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "GOOGL" {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", symbols)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	st, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	rec := &RunRecord{
		Symbol:   "AAPL",
		Strategy: "ma-cross",
		Params:   map[string]any{"short_window": float64(5), "long_window": float64(20)},
		Config:   backtest.DefaultConfig(),
		Metrics:  &backtest.Metrics{TotalReturn: 0.12, SharpeRatio: 1.1, TotalTrades: 2},
		Trades: []backtest.Trade{
			{
				EntryDate:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				EntryPrice: 100, ExitPrice: 110,
				ExitDate:    time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC),
				Shares:      10, NetProfit: 100, GrossProfit: 100,
				HoldingDays: 8, ExitReason: backtest.ExitSignal,
			},
			{
				EntryDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				EntryPrice: 110, ExitPrice: 105,
				ExitDate:    time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
				Shares:      10, NetProfit: -50, GrossProfit: -50,
				HoldingDays: 4, ExitReason: backtest.ExitStopLoss,
			},
		},
	}

	id, err := st.SaveRun(ctx, rec)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive run ID, got %d", id)
	}

	got, err := st.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Symbol != "AAPL" || got.Strategy != "ma-cross" {
		t.Errorf("unexpected run identity: %s/%s", got.Symbol, got.Strategy)
	}
	if got.Metrics.TotalReturn != 0.12 || got.Metrics.TotalTrades != 2 {
		t.Errorf("metrics did not round-trip: %+v", got.Metrics)
	}
	if got.Config.InitialCapital != 100000 {
		t.Errorf("config did not round-trip: %+v", got.Config)
	}
	if len(got.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got.Trades))
	}
	if got.Trades[1].ExitReason != backtest.ExitStopLoss {
		t.Errorf("trade exit reason did not round-trip: %q", got.Trades[1].ExitReason)
	}
	if got.Params["short_window"] != float64(5) {
		t.Errorf("params did not round-trip: %v", got.Params)
	}
}

func TestSQLiteStoreListRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	st, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	for _, sym := range []string{"AAPL", "MSFT", "GOOGL"} {
		rec := &RunRecord{
			Symbol:   sym,
			Strategy: "macd",
			Params:   map[string]any{},
			Config:   backtest.DefaultConfig(),
			Metrics:  &backtest.Metrics{},
		}
		if _, err := st.SaveRun(ctx, rec); err != nil {
			t.Fatalf("SaveRun(%s): %v", sym, err)
		}
	}

	runs, err := st.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs with limit, got %d", len(runs))
	}
	// Newest first.
	if runs[0].Symbol != "GOOGL" || runs[1].Symbol != "MSFT" {
		t.Errorf("unexpected order: %s, %s", runs[0].Symbol, runs[1].Symbol)
	}

	all, err := st.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns (no limit): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 runs without limit, got %d", len(all))
	}
}

const sampleCSV = `Date,Open,High,Low,Close,Volume
2024-01-02,185.0,186.5,184.0,185.5,50000000
2024-01-03,185.5,187.0,185.0,186.0,45000000
2024-01-04,186.0,188.0,185.5,187.5,47000000
`

func TestLoadCSVBars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aapl.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	prices, err := LoadCSVBars(path, "AAPL")
	if err != nil {
		t.Fatalf("LoadCSVBars: %v", err)
	}
	if len(prices) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(prices))
	}
	if prices[0].Symbol != "AAPL" {
		t.Errorf("expected symbol AAPL, got %q", prices[0].Symbol)
	}
	if prices[2].Close != 187.5 {
		t.Errorf("expected close 187.5, got %v", prices[2].Close)
	}
	if domain.DateKey(prices[0].Timestamp) != "2024-01-02" {
		t.Errorf("unexpected first date %s", domain.DateKey(prices[0].Timestamp))
	}
}

func TestLoadCSVBarsUTF16(t *testing.T) {
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, _, err := transform.Bytes(encoder, []byte(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "aapl_utf16.csv")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatal(err)
	}

	prices, err := LoadCSVBars(path, "AAPL")
	if err != nil {
		t.Fatalf("LoadCSVBars: %v", err)
	}
	if len(prices) != 3 {
		t.Fatalf("expected 3 bars from UTF-16 file, got %d", len(prices))
	}
	if prices[0].Close != 185.5 {
		t.Errorf("expected close 185.5, got %v", prices[0].Close)
	}
}

func TestLoadCSVBarsMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("Date,Open,High,Low,Close\n2024-01-02,1,1,1,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCSVBars(path, "X"); err == nil {
		t.Error("expected error for missing volume column")
	}
}

func TestLoadCSVBarsBadPrice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neg.csv")
	csv := "Date,Open,High,Low,Close,Volume\n2024-01-02,-1,1,1,1,100\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCSVBars(path, "X"); err == nil {
		t.Error("expected validation error for non-positive price")
	}
}
