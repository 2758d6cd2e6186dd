// Package backtest implements the portfolio simulator, performance analyzer,
// and grid-search parameter optimizer that form the quantor backtesting core.
//
// A run replays one instrument day by day: signals decide entries and exits,
// the cost model decides fills, and the resulting ledger and trade log feed
// the analyzer. The core performs no I/O; all inputs are materialized before
// Run begins.
package backtest

import (
	"io"
	"log/slog"
	"math"
	"time"

	"quantor/internal/domain"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitSignal      ExitReason = "signal"
	ExitStopLoss    ExitReason = "stop_loss"
	ExitTakeProfit  ExitReason = "take_profit"
	ExitBacktestEnd ExitReason = "backtest_end"
)

// Trade is one completed round-trip. Trades are emitted only on exit and
// appended in exit-date order.
type Trade struct {
	EntryDate   time.Time  `json:"entry_date"`
	EntryPrice  float64    `json:"entry_price"`
	ExitDate    time.Time  `json:"exit_date"`
	ExitPrice   float64    `json:"exit_price"`
	Shares      int64      `json:"shares"`
	GrossProfit float64    `json:"gross_profit"`
	NetProfit   float64    `json:"net_profit"`
	HoldingDays int        `json:"holding_days"`
	ExitReason  ExitReason `json:"exit_reason"`
}

// Snapshot is one ledger row. TotalEquity == Cash + Holdings on every row.
type Snapshot struct {
	Date        time.Time `json:"date"`
	Cash        float64   `json:"cash"`
	Shares      int64     `json:"shares"`
	Holdings    float64   `json:"holdings"`
	TotalEquity float64   `json:"total_equity"`
	DailyReturn float64   `json:"daily_return"`
	CumReturn   float64   `json:"cum_return"`
	RunningMax  float64   `json:"running_max"`
	Drawdown    float64   `json:"drawdown"`
}

// Ledger is the full equity curve, one Snapshot per simulated day.
type Ledger []Snapshot

// position is the single mutable position state of a run. A nil position
// means flat. One instance exists per run; it is never shared.
type position struct {
	entryPrice float64
	entryDate  time.Time
	shares     int64
}

// Simulator replays a signal series against a price history under a cost
// model. A Simulator is stateless across runs and safe to reuse; all per-run
// state lives inside Run.
type Simulator struct {
	log *slog.Logger
}

// NewSimulator creates a Simulator that emits diagnostics on log. A nil
// logger silences diagnostics.
func NewSimulator(log *slog.Logger) *Simulator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Simulator{log: log}
}

// Run simulates trading over prices driven by signals and returns the daily
// ledger and the completed-trade log. Day 1 seeds the ledger with the
// starting capital; trading decisions begin on day 2. An empty signal series
// is not an error: the run completes with zero trades and flat returns.
//
// The run holds at most one open position at a time. A stop exit pre-empts
// the same day's signal, and any position still open on the final day is
// force-closed so every run ends flat.
func (s *Simulator) Run(prices domain.PriceSeries, signals []domain.Signal, cfg Config) (Ledger, []Trade, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := prices.Validate(); err != nil {
		return nil, nil, &ValidationError{Reason: err.Error()}
	}

	sigByDate := make(map[string]domain.Direction, len(signals))
	for _, sig := range signals {
		if sig.Direction != domain.SignalHold {
			sigByDate[domain.DateKey(sig.Date)] = sig.Direction
		}
	}

	ledger := make(Ledger, len(prices))
	ledger[0] = Snapshot{
		Date:        prices[0].Timestamp,
		Cash:        cfg.InitialCapital,
		TotalEquity: cfg.InitialCapital,
	}

	var (
		trades []Trade
		pos    *position
		cash   = cfg.InitialCapital
		shares int64
	)

	for i := 1; i < len(prices); i++ {
		bar := prices[i]
		closePx := bar.Close

		// Stop-check first: a forced exit pre-empts today's signal, so a
		// fresh buy signal on a stop day never re-opens the position.
		exitedToday := false
		if pos != nil {
			ratio := (closePx - pos.entryPrice) / pos.entryPrice
			var reason ExitReason
			switch {
			case cfg.StopLoss > 0 && ratio <= -cfg.StopLoss:
				reason = ExitStopLoss
			case cfg.TakeProfit > 0 && ratio >= cfg.TakeProfit:
				reason = ExitTakeProfit
			}
			if reason != "" {
				cash += s.closePosition(&trades, pos, bar.Timestamp, closePx, cfg, reason)
				pos = nil
				shares = 0
				exitedToday = true
			}
		}

		if !exitedToday {
			switch sigByDate[domain.DateKey(bar.Timestamp)] {
			case domain.SignalBuy:
				if pos == nil {
					if p := s.openPosition(bar.Timestamp, closePx, cash, cfg); p != nil {
						notional := float64(p.shares) * p.entryPrice
						cash -= notional + notional*cfg.TransactionCost
						pos = p
						shares = p.shares
					}
				}
			case domain.SignalSell:
				if pos != nil {
					cash += s.closePosition(&trades, pos, bar.Timestamp, closePx, cfg, ExitSignal)
					pos = nil
					shares = 0
				}
			}
		}

		holdings := float64(shares) * closePx
		total := cash + holdings
		ledger[i] = Snapshot{
			Date:        bar.Timestamp,
			Cash:        cash,
			Shares:      shares,
			Holdings:    holdings,
			TotalEquity: total,
			DailyReturn: total/ledger[i-1].TotalEquity - 1,
		}
	}

	// End-of-run liquidation: every run ends flat.
	if pos != nil {
		last := len(prices) - 1
		cash += s.closePosition(&trades, pos, prices[last].Timestamp, prices[last].Close, cfg, ExitBacktestEnd)
		pos = nil
		shares = 0

		snap := &ledger[last]
		snap.Cash = cash
		snap.Shares = 0
		snap.Holdings = 0
		snap.TotalEquity = cash
		if last > 0 {
			snap.DailyReturn = cash/ledger[last-1].TotalEquity - 1
		}
	}

	// Cumulative return, running max, and drawdown over the whole curve.
	cum, runMax := 1.0, 1.0
	for i := range ledger {
		cum *= 1 + ledger[i].DailyReturn
		if cum > runMax {
			runMax = cum
		}
		ledger[i].CumReturn = cum
		ledger[i].RunningMax = runMax
		ledger[i].Drawdown = cum/runMax - 1
	}

	return ledger, trades, nil
}

// openPosition sizes and prices an entry at the day's close. It returns nil
// when the computed size is zero or the total cost exceeds available cash;
// both cases are silent no-ops, not errors.
func (s *Simulator) openPosition(date time.Time, closePx, cash float64, cfg Config) *position {
	buyPrice := closePx * (1 + cfg.Slippage)

	base := cash
	if cfg.PositionSizing == SizingFixed {
		base = cash * fixedSizingFraction
	}
	invest := base * cfg.MaxPositionRatio
	qty := int64(math.Floor(invest / (1 + cfg.TransactionCost) / buyPrice))
	if qty <= 0 {
		return nil
	}

	notional := float64(qty) * buyPrice
	commission := notional * cfg.TransactionCost
	if notional+commission > cash {
		s.log.Debug("trade rejected: insufficient cash",
			"date", domain.DateKey(date),
			"required", notional+commission,
			"cash", cash,
		)
		return nil
	}

	s.log.Debug("entered position",
		"date", domain.DateKey(date),
		"shares", qty,
		"price", buyPrice,
	)
	return &position{entryPrice: buyPrice, entryDate: date, shares: qty}
}

// closePosition fills an exit at the day's close, appends the completed
// trade, and returns the net proceeds to be credited to cash.
func (s *Simulator) closePosition(trades *[]Trade, pos *position, exitDate time.Time, closePx float64, cfg Config, reason ExitReason) float64 {
	sellPrice := closePx * (1 - cfg.Slippage)
	revenue := float64(pos.shares) * sellPrice
	commission := revenue * cfg.TransactionCost
	net := revenue - commission
	costBasis := float64(pos.shares) * pos.entryPrice

	*trades = append(*trades, Trade{
		EntryDate:   pos.entryDate,
		EntryPrice:  pos.entryPrice,
		ExitDate:    exitDate,
		ExitPrice:   sellPrice,
		Shares:      pos.shares,
		GrossProfit: revenue - costBasis,
		NetProfit:   net - costBasis,
		HoldingDays: int(exitDate.Sub(pos.entryDate).Hours() / 24),
		ExitReason:  reason,
	})

	s.log.Debug("closed position",
		"date", domain.DateKey(exitDate),
		"shares", pos.shares,
		"price", sellPrice,
		"reason", reason,
	)
	return net
}
