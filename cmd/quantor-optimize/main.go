// Command quantor-optimize grid-searches strategy parameters over stored or
// CSV price data and prints the ranked results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
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
		cfgPath   = flag.String("config", "", "path to quantor.yaml (optional)")
		csvPath   = flag.String("csv", "", "load prices from a CSV file instead of the bar store")
		symbol    = flag.String("symbol", "", "instrument symbol (required)")
		market    = flag.String("market", "us", "market for bar-store reads (us or cn)")
		startDate = flag.String("start", "", "start date YYYY-MM-DD for bar-store reads")
		endDate   = flag.String("end", "", "end date YYYY-MM-DD for bar-store reads (default today)")
		stratName = flag.String("strategy", "ma-cross", "strategy name")
		gridPath  = flag.String("grid", "", "path to the parameter grid YAML (required)")
		metric    = flag.String("metric", "", "metric to optimize (default from config)")
		minimize  = flag.Bool("minimize", false, "minimize the metric instead of maximizing")
		workers   = flag.Int("workers", 0, "concurrent runs (default from config, 0 means one per CPU)")
		topN      = flag.Int("top", 10, "number of ranked results to print (0 for all)")
	)
	flag.Parse()

	if *symbol == "" {
		log.Fatal("-symbol is required")
	}
	if *gridPath == "" {
		log.Fatal("-grid is required")
	}

	cfg, err := config.Load(configPath(*cfgPath))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	prices, err := loadPrices(ctx, cfg, *csvPath, *symbol, *market, *startDate, *endDate)
	if err != nil {
		log.Fatalf("loading prices: %v", err)
	}

	grid, err := loadGrid(*gridPath)
	if err != nil {
		log.Fatalf("loading grid: %v", err)
	}

	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)
	stratFactory, ok := registry.Get(*stratName)
	if !ok {
		log.Fatalf("unknown strategy %q (available: %v)", *stratName, registry.List())
	}
	factory := func(params map[string]any) (backtest.Signaler, error) {
		return stratFactory(params)
	}

	target := cfg.Optimizer.Metric
	if *metric != "" {
		target = *metric
	}
	maximize := cfg.Optimizer.Maximize
	if *minimize {
		maximize = false
	}
	poolSize := cfg.Optimizer.Workers
	if *workers > 0 {
		poolSize = *workers
	}

	opt := backtest.NewOptimizer(poolSize, logger)
	rep, err := opt.Optimize(ctx, prices, factory, grid, cfg.Backtest, target, maximize)
	if err != nil {
		log.Fatalf("optimizing: %v", err)
	}

	fmt.Printf("%s / %s: %d combinations, %d succeeded\n\n",
		*symbol, *stratName, len(grid.Combinations()), len(rep.Results))
	fmt.Print(report.RenderSweep(rep, target, maximize, *topN))
}

func loadGrid(path string) (backtest.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var grid backtest.Grid
	if err := yaml.Unmarshal(data, &grid); err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("grid file %s defines no parameters", path)
	}
	return grid, nil
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
