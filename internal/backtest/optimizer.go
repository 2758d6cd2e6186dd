package backtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"quantor/internal/domain"
)

// Signaler produces a signal series for a price history. The strategy layer
// satisfies this interface; the optimizer needs nothing more from it.
type Signaler interface {
	ComputeSignals(ctx context.Context, prices domain.PriceSeries) ([]domain.Signal, error)
}

// Factory builds a Signaler from one parameter combination. The optimizer
// calls the factory once per combination; each call must return a fresh
// instance so runs never share mutable state.
type Factory func(params map[string]any) (Signaler, error)

// GridParam is one axis of a parameter grid.
type GridParam struct {
	Name   string `yaml:"name"`
	Values []any  `yaml:"values"`
}

// Grid is an ordered parameter grid. Axis order fixes the enumeration order
// of Combinations, which keeps sweeps and tie-breaking reproducible.
type Grid []GridParam

// Combinations returns the Cartesian product of all axes in grid order, with
// the last axis varying fastest. An empty grid, or any axis with no values,
// yields no combinations.
func (g Grid) Combinations() []map[string]any {
	if len(g) == 0 {
		return nil
	}
	combos := []map[string]any{{}}
	for _, axis := range g {
		if len(axis.Values) == 0 {
			return nil
		}
		next := make([]map[string]any, 0, len(combos)*len(axis.Values))
		for _, base := range combos {
			for _, v := range axis.Values {
				m := make(map[string]any, len(base)+1)
				for k, bv := range base {
					m[k] = bv
				}
				m[axis.Name] = v
				next = append(next, m)
			}
		}
		combos = next
	}
	return combos
}

// Result is the outcome of one successfully evaluated combination.
type Result struct {
	Params  map[string]any `json:"params"`
	Metrics *Metrics       `json:"metrics"`
	Score   float64        `json:"score"`
}

// Report is the full output of a sweep. Results holds every combination that
// evaluated successfully, in enumeration order. BestParams is nil when the
// entire grid failed.
type Report struct {
	Results    []Result       `json:"results"`
	BestParams map[string]any `json:"best_params"`
	BestScore  float64        `json:"best_score"`
}

// outcome is the tagged per-combination result: exactly one of res or err is
// set. The sweep loop pattern-matches on it instead of propagating panics or
// aborting mid-sweep.
type outcome struct {
	res *Result
	err error
}

// Optimizer runs a grid-search sweep of backtests and ranks the results by a
// chosen metric.
type Optimizer struct {
	workers int
	log     *slog.Logger
}

// NewOptimizer creates an Optimizer running up to workers combinations
// concurrently. workers <= 0 selects GOMAXPROCS. A nil logger silences
// diagnostics.
func NewOptimizer(workers int, log *slog.Logger) *Optimizer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Optimizer{workers: workers, log: log}
}

// Optimize evaluates every grid combination against prices: build a strategy
// via factory, compute its signals, simulate under cfg, analyze, and score
// by metric. Failing combinations are logged and skipped, never fatal; the
// caller always receives the surviving results.
//
// The incumbent best is replaced only on strict improvement, so ties keep
// the first-enumerated combination. Cancellation is cooperative: ctx is
// checked between combinations and the sweep stops scheduling once it fires.
func (o *Optimizer) Optimize(
	ctx context.Context,
	prices domain.PriceSeries,
	factory Factory,
	grid Grid,
	cfg Config,
	metric string,
	maximize bool,
) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Validate (and sort) once up front so concurrent runs only ever read
	// the series.
	if err := prices.Validate(); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	combos := grid.Combinations()
	if len(combos) == 0 {
		o.log.Warn("parameter grid is empty, nothing to optimize")
		return &Report{}, nil
	}
	o.log.Info("starting sweep", "combinations", len(combos), "metric", metric, "maximize", maximize)

	// Each worker writes only its own slots, so no lock is needed and the
	// outcome order stays the enumeration order.
	outcomes := make([]outcome, len(combos))
	jobs := make(chan int)

	workers := o.workers
	if workers > len(combos) {
		workers = len(combos)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = o.evaluate(ctx, prices, factory, combos[idx], cfg, metric)
			}
		}()
	}

feed:
	for i := range combos {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{}
	for i, out := range outcomes {
		if out.err != nil {
			o.log.Warn("skipping combination", "params", combos[i], "err", out.err)
			continue
		}
		report.Results = append(report.Results, *out.res)

		score := out.res.Score
		better := report.BestParams == nil ||
			(maximize && score > report.BestScore) ||
			(!maximize && score < report.BestScore)
		if better {
			report.BestParams = out.res.Params
			report.BestScore = score
		}
	}

	o.log.Info("sweep complete",
		"tested", len(combos),
		"succeeded", len(report.Results),
		"bestScore", report.BestScore,
	)
	return report, nil
}

// evaluate runs one combination end to end with a fresh strategy, simulator,
// and ledger of its own.
func (o *Optimizer) evaluate(
	ctx context.Context,
	prices domain.PriceSeries,
	factory Factory,
	params map[string]any,
	cfg Config,
	metric string,
) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: err}
	}

	strat, err := factory(params)
	if err != nil {
		return outcome{err: fmt.Errorf("building strategy: %w", err)}
	}

	signals, err := strat.ComputeSignals(ctx, prices)
	if err != nil {
		return outcome{err: fmt.Errorf("computing signals: %w", err)}
	}

	ledger, trades, err := NewSimulator(o.log).Run(prices, signals, cfg)
	if err != nil {
		return outcome{err: fmt.Errorf("running simulation: %w", err)}
	}

	metrics, err := Analyze(ledger, trades, prices, cfg.InitialCapital)
	if err != nil {
		return outcome{err: fmt.Errorf("analyzing run: %w", err)}
	}

	score, ok := metrics.Value(metric)
	if !ok {
		return outcome{err: fmt.Errorf("metrics have no field %q", metric)}
	}
	return outcome{res: &Result{Params: params, Metrics: metrics, Score: score}}
}
