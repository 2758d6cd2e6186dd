package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"quantor/internal/domain"
	"quantor/internal/store"
	"quantor/internal/util"
)

// Compile-time interface check.
var _ Gatherer = (*DailyBarGatherer)(nil)

// DailyBarGatherer gathers daily OHLCV bars for a configured symbol list via
// the Alpaca market-data API and writes them to the bar store. Re-running
// over an already-gathered range is idempotent: the store merges by date.
type DailyBarGatherer struct {
	client    *marketdata.Client
	store     store.BarStore
	symbols   []string
	batchSize int
	startDate string
	limiter   *util.RateLimiter
	calendar  *util.TradingCalendar
	log       *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer configured with the given
// Alpaca credentials, target store, symbol list, and batch parameters.
func NewDailyBarGatherer(apiKey, apiSecret, dataURL string, s store.BarStore, symbols []string, batchSize, rateLimitPerMin int, startDate string, log *slog.Logger) *DailyBarGatherer {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if log == nil {
		log = slog.Default()
	}
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 200
	}

	return &DailyBarGatherer{
		client:    marketdata.NewClient(opts),
		store:     s,
		symbols:   symbols,
		batchSize: batchSize,
		startDate: startDate,
		limiter:   util.NewRateLimiter(rateLimitPerMin),
		calendar:  util.NewTradingCalendar(domain.MarketUS),
		log:       log.With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// Run fetches daily bars for every configured symbol from the start date up
// to the latest finished trading day and writes them to the store.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	if len(g.symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}
	start, err := time.Parse("2006-01-02", g.startDate)
	if err != nil {
		return fmt.Errorf("parsing start date %q: %w", g.startDate, err)
	}
	end := g.calendar.LatestFinishedTradingDay(time.Now().UTC())
	if !start.Before(end) {
		return fmt.Errorf("start date %s is not before end date %s", g.startDate, end.Format("2006-01-02"))
	}

	batches := SplitBatches(g.symbols, g.batchSize)
	g.log.Info("starting us-daily",
		"symbols", len(g.symbols),
		"batches", len(batches),
		"start", g.startDate,
		"end", end.Format("2006-01-02"),
	)

	runStart := time.Now()
	var totalBars int
	for i, batch := range batches {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}

		var bars []domain.Bar
		err := util.Retry(ctx, 3, 2*time.Second, func() error {
			var ferr error
			bars, ferr = g.fetchMultiBars(ctx, batch, DateRange{Start: start, End: end})
			return ferr
		})
		if err != nil {
			g.log.Error("batch fetch failed",
				"batch", fmt.Sprintf("%d/%d", i+1, len(batches)),
				"err", err,
			)
			continue
		}

		if err := g.store.WriteBars(ctx, domain.MarketUS, bars); err != nil {
			return fmt.Errorf("writing bars: %w", err)
		}
		totalBars += len(bars)

		g.log.Info("batch done",
			"batch", fmt.Sprintf("%d/%d", i+1, len(batches)),
			"bars", len(bars),
			"elapsed", time.Since(runStart).Round(time.Second),
		)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	g.log.Info("complete", "bars", totalBars, "elapsed", time.Since(runStart).Round(time.Second))
	return nil
}

// fetchMultiBars fetches daily bars for multiple symbols in a single API call.
func (g *DailyBarGatherer) fetchMultiBars(ctx context.Context, symbols []string, r DateRange) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     r.Start,
		End:       r.End,
		Feed:      "sip",
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}
