package backtest

import (
	"math"

	"quantor/internal/domain"
)

// tradingDaysPerYear is the annualization basis for returns and volatility.
const tradingDaysPerYear = 252

// Metrics is the flat record of named numeric results produced once per
// completed simulation. It is immutable after Analyze returns.
type Metrics struct {
	// Return metrics.
	TotalReturn         float64 `json:"total_return"`
	AnnualizedReturn    float64 `json:"annualized_return"`
	BenchmarkReturn     float64 `json:"benchmark_return"`
	BenchmarkAnnualized float64 `json:"benchmark_annualized"`
	ExcessReturn        float64 `json:"excess_return"`

	// Risk metrics.
	Volatility  float64 `json:"volatility"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`

	// Trade statistics.
	TotalTrades       int     `json:"total_trades"`
	WinningTrades     int     `json:"winning_trades"`
	LosingTrades      int     `json:"losing_trades"`
	WinRate           float64 `json:"win_rate"`
	ProfitFactor      float64 `json:"profit_factor"`
	AvgProfitPerTrade float64 `json:"avg_profit_per_trade"`
	AvgLossPerTrade   float64 `json:"avg_loss_per_trade"`
	AvgHoldingPeriod  float64 `json:"avg_holding_period"`

	// Streak statistics.
	MaxConsecutiveWins   int `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`

	// Capital.
	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	Profit         float64 `json:"profit"`
}

// Analyze computes the performance record for a completed run. trades must
// be in exit-date order (Simulator.Run emits them that way). An empty trade
// log is not an error: all trade and streak statistics are zero.
func Analyze(ledger Ledger, trades []Trade, prices domain.PriceSeries, initialCapital float64) (*Metrics, error) {
	if len(ledger) == 0 {
		return nil, validationErrorf("ledger is empty")
	}
	if len(prices) == 0 {
		return nil, validationErrorf("price series is empty")
	}
	if initialCapital <= 0 {
		return nil, validationErrorf("initial capital must be positive, got %v", initialCapital)
	}

	m := &Metrics{InitialCapital: initialCapital}

	// Returns. Annualization clamps to one day to avoid division by zero on
	// degenerate ledgers.
	m.FinalCapital = ledger[len(ledger)-1].TotalEquity
	m.Profit = m.FinalCapital - initialCapital
	m.TotalReturn = m.FinalCapital/initialCapital - 1

	nDays := len(ledger)
	if nDays < 1 {
		nDays = 1
	}
	exponent := tradingDaysPerYear / float64(nDays)
	m.AnnualizedReturn = math.Pow(1+m.TotalReturn, exponent) - 1

	// Benchmark: buy and hold from first to last close.
	startPx := prices[0].Close
	endPx := prices[len(prices)-1].Close
	m.BenchmarkReturn = endPx/startPx - 1
	m.BenchmarkAnnualized = math.Pow(1+m.BenchmarkReturn, exponent) - 1
	m.ExcessReturn = m.TotalReturn - m.BenchmarkReturn

	// Risk.
	m.Volatility = stdev(dailyReturns(ledger)) * math.Sqrt(tradingDaysPerYear)
	if m.Volatility != 0 {
		m.SharpeRatio = m.AnnualizedReturn / m.Volatility
	}
	m.MaxDrawdown = 0
	for _, snap := range ledger {
		if snap.Drawdown < m.MaxDrawdown {
			m.MaxDrawdown = snap.Drawdown
		}
	}

	// Trade statistics.
	m.TotalTrades = len(trades)
	if m.TotalTrades == 0 {
		return m, nil
	}

	var totalProfit, totalLoss, totalHolding float64
	for _, tr := range trades {
		totalHolding += float64(tr.HoldingDays)
		if tr.NetProfit > 0 {
			m.WinningTrades++
			totalProfit += tr.NetProfit
		} else {
			m.LosingTrades++
			totalLoss += -tr.NetProfit
		}
	}
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	if totalLoss > 0 {
		m.ProfitFactor = totalProfit / totalLoss
	} else {
		m.ProfitFactor = math.Inf(1)
	}
	if m.WinningTrades > 0 {
		m.AvgProfitPerTrade = totalProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLossPerTrade = totalLoss / float64(m.LosingTrades)
	}
	m.AvgHoldingPeriod = totalHolding / float64(m.TotalTrades)

	// Streaks: scan in exit-date order, resetting whenever the win/loss
	// classification flips.
	streak, wasWin := 0, false
	for i, tr := range trades {
		win := tr.NetProfit > 0
		if i == 0 || win != wasWin {
			streak = 1
		} else {
			streak++
		}
		wasWin = win
		if win && streak > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = streak
		}
		if !win && streak > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = streak
		}
	}

	return m, nil
}

// Value returns the metric with the given snake_case name. The second return
// value reports whether the name is known. Integer statistics are returned
// as floats so every metric can serve as an optimization score.
func (m *Metrics) Value(name string) (float64, bool) {
	switch name {
	case "total_return":
		return m.TotalReturn, true
	case "annualized_return":
		return m.AnnualizedReturn, true
	case "benchmark_return":
		return m.BenchmarkReturn, true
	case "benchmark_annualized":
		return m.BenchmarkAnnualized, true
	case "excess_return":
		return m.ExcessReturn, true
	case "volatility":
		return m.Volatility, true
	case "sharpe_ratio":
		return m.SharpeRatio, true
	case "max_drawdown":
		return m.MaxDrawdown, true
	case "total_trades":
		return float64(m.TotalTrades), true
	case "winning_trades":
		return float64(m.WinningTrades), true
	case "losing_trades":
		return float64(m.LosingTrades), true
	case "win_rate":
		return m.WinRate, true
	case "profit_factor":
		return m.ProfitFactor, true
	case "avg_profit_per_trade":
		return m.AvgProfitPerTrade, true
	case "avg_loss_per_trade":
		return m.AvgLossPerTrade, true
	case "avg_holding_period":
		return m.AvgHoldingPeriod, true
	case "max_consecutive_wins":
		return float64(m.MaxConsecutiveWins), true
	case "max_consecutive_losses":
		return float64(m.MaxConsecutiveLosses), true
	case "initial_capital":
		return m.InitialCapital, true
	case "final_capital":
		return m.FinalCapital, true
	case "profit":
		return m.Profit, true
	default:
		return 0, false
	}
}

func dailyReturns(ledger Ledger) []float64 {
	returns := make([]float64, len(ledger))
	for i, snap := range ledger {
		returns[i] = snap.DailyReturn
	}
	return returns
}

// stdev returns the sample standard deviation (n−1 denominator).
func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}
