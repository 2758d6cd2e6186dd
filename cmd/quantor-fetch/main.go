// Command quantor-fetch gathers daily bars from the Alpaca market-data API
// into the Parquet bar store.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"quantor/internal/config"
	"quantor/internal/gather"
	"quantor/internal/store"
	"quantor/internal/util"
)

func main() {
	var (
		cfgPath   = flag.String("config", "", "path to quantor.yaml (optional)")
		symbols   = flag.String("symbols", "", "comma-separated symbols (overrides config)")
		startDate = flag.String("start", "", "start date YYYY-MM-DD (overrides config)")
	)
	flag.Parse()

	path := *cfgPath
	if path == "" {
		if p := os.Getenv("QUANTOR_CONFIG"); p != "" {
			path = p
		} else if _, err := os.Stat("config/quantor.yaml"); err == nil {
			path = "config/quantor.yaml"
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	job := cfg.Gather.USDaily
	if *symbols != "" {
		job.Symbols = nil
		for _, s := range strings.Split(*symbols, ",") {
			if s = strings.TrimSpace(s); s != "" {
				job.Symbols = append(job.Symbols, strings.ToUpper(s))
			}
		}
	}
	if *startDate != "" {
		job.StartDate = *startDate
	}
	if len(job.Symbols) == 0 {
		log.Fatal("no symbols configured: set gather.us_daily.symbols or pass -symbols")
	}

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	gatherer := gather.NewDailyBarGatherer(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		bars,
		job.Symbols,
		job.BatchSize,
		job.RateLimitPerMin,
		job.StartDate,
		logger,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting quantor-fetch", "symbols", len(job.Symbols), "start", job.StartDate)
	if err := gatherer.Run(ctx); err != nil {
		log.Fatalf("gathering: %v", err)
	}
}
