// Command quantor-backtest runs a single strategy backtest over stored or
// CSV price data and prints the performance report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quantor/internal/backtest"
	"quantor/internal/config"
	"quantor/internal/domain"
	"quantor/internal/report"
	"quantor/internal/store"
	"quantor/internal/strategy"
	"quantor/internal/strategy/builtins"
	"quantor/internal/util"
)

func main() {
	var (
		cfgPath    = flag.String("config", "", "path to quantor.yaml (optional)")
		csvPath    = flag.String("csv", "", "load prices from a CSV file instead of the bar store")
		symbol     = flag.String("symbol", "", "instrument symbol (required)")
		market     = flag.String("market", "us", "market for bar-store reads (us or cn)")
		startDate  = flag.String("start", "", "start date YYYY-MM-DD for bar-store reads")
		endDate    = flag.String("end", "", "end date YYYY-MM-DD for bar-store reads (default today)")
		stratName  = flag.String("strategy", "ma-cross", "strategy name")
		params     = flag.String("params", "", "strategy parameters as inline YAML, e.g. '{short_window: 5, long_window: 20}'")
		showTrades = flag.Bool("trades", false, "print the trade log")
		save       = flag.Bool("save", false, "persist the run to the results database")
	)
	flag.Parse()

	if *symbol == "" {
		log.Fatal("-symbol is required")
	}

	cfg, err := config.Load(configPath(*cfgPath))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	ctx := context.Background()

	prices, err := loadPrices(ctx, cfg, *csvPath, *symbol, *market, *startDate, *endDate)
	if err != nil {
		log.Fatalf("loading prices: %v", err)
	}

	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)
	factory, ok := registry.Get(*stratName)
	if !ok {
		log.Fatalf("unknown strategy %q (available: %v)", *stratName, registry.List())
	}

	paramMap, err := parseParams(*params)
	if err != nil {
		log.Fatalf("parsing -params: %v", err)
	}
	strat, err := factory(paramMap)
	if err != nil {
		log.Fatalf("building strategy: %v", err)
	}

	signals, err := strat.ComputeSignals(ctx, prices)
	if err != nil {
		log.Fatalf("computing signals: %v", err)
	}

	ledger, trades, err := backtest.NewSimulator(logger).Run(prices, signals, cfg.Backtest)
	if err != nil {
		log.Fatalf("running backtest: %v", err)
	}
	metrics, err := backtest.Analyze(ledger, trades, prices, cfg.Backtest.InitialCapital)
	if err != nil {
		log.Fatalf("analyzing results: %v", err)
	}

	fmt.Printf("%s / %s over %d days (%s .. %s)\n\n",
		*symbol, strat.Name(), len(prices),
		domain.DateKey(prices[0].Timestamp),
		domain.DateKey(prices[len(prices)-1].Timestamp),
	)
	fmt.Print(report.RenderMetrics(metrics))
	if *showTrades {
		fmt.Println()
		fmt.Print(report.RenderTrades(trades))
	}

	if *save {
		rs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening results database: %v", err)
		}
		defer rs.Close()

		id, err := rs.SaveRun(ctx, &store.RunRecord{
			Symbol:   *symbol,
			Strategy: strat.Name(),
			Params:   paramMap,
			Config:   cfg.Backtest,
			Metrics:  metrics,
			Trades:   trades,
		})
		if err != nil {
			log.Fatalf("saving run: %v", err)
		}
		fmt.Printf("\nsaved run %d to %s\n", id, cfg.Storage.SQLitePath)
	}
}

func configPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv("QUANTOR_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("config/quantor.yaml"); err == nil {
		return "config/quantor.yaml"
	}
	return ""
}

func parseParams(s string) (map[string]any, error) {
	params := map[string]any{}
	if s == "" {
		return params, nil
	}
	if err := yaml.Unmarshal([]byte(s), &params); err != nil {
		return nil, err
	}
	return params, nil
}

func loadPrices(ctx context.Context, cfg *config.Config, csvPath, symbol, market, start, end string) (domain.PriceSeries, error) {
	if csvPath != "" {
		return store.LoadCSVBars(csvPath, symbol)
	}

	if start == "" {
		return nil, fmt.Errorf("-start is required when reading from the bar store")
	}
	startT, err := time.Parse("2006-01-02", start)
	if err != nil {
		return nil, fmt.Errorf("parsing -start: %w", err)
	}
	endT := time.Now().UTC()
	if end != "" {
		if endT, err = time.Parse("2006-01-02", end); err != nil {
			return nil, fmt.Errorf("parsing -end: %w", err)
		}
	}

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	return bars.ReadSeries(ctx, symbol, domain.Market(market), startT, endT)
}
