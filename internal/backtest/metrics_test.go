package backtest

import (
	"errors"
	"math"
	"testing"
)

func tradeOn(day int, net float64) Trade {
	exit := testBase.AddDate(0, 0, day)
	return Trade{
		EntryDate:   exit.AddDate(0, 0, -3),
		ExitDate:    exit,
		NetProfit:   net,
		GrossProfit: net,
		HoldingDays: 3,
		ExitReason:  ExitSignal,
	}
}

func flatLedger(equities ...float64) Ledger {
	ledger := make(Ledger, len(equities))
	cum, runMax := 1.0, 1.0
	for i, eq := range equities {
		ret := 0.0
		if i > 0 {
			ret = eq/equities[i-1] - 1
		}
		cum *= 1 + ret
		if cum > runMax {
			runMax = cum
		}
		ledger[i] = Snapshot{
			Date:        testBase.AddDate(0, 0, i),
			Cash:        eq,
			TotalEquity: eq,
			DailyReturn: ret,
			CumReturn:   cum,
			RunningMax:  runMax,
			Drawdown:    cum/runMax - 1,
		}
	}
	return ledger
}

func TestAnalyzeReturns(t *testing.T) {
	ledger := flatLedger(100000, 101000, 102000, 103000, 110000)
	prices := testSeries(100, 101, 102, 103, 105)

	m, err := Analyze(ledger, nil, prices, 100000)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !almostEqual(m.TotalReturn, 0.10) {
		t.Errorf("expected total return 0.10, got %v", m.TotalReturn)
	}
	if !almostEqual(m.BenchmarkReturn, 0.05) {
		t.Errorf("expected benchmark return 0.05, got %v", m.BenchmarkReturn)
	}
	if !almostEqual(m.ExcessReturn, 0.05) {
		t.Errorf("expected excess return 0.05, got %v", m.ExcessReturn)
	}

	wantAnnualized := math.Pow(1.10, 252.0/5.0) - 1
	if !almostEqual(m.AnnualizedReturn, wantAnnualized) {
		t.Errorf("expected annualized return %v, got %v", wantAnnualized, m.AnnualizedReturn)
	}
	if !almostEqual(m.Profit, 10000) {
		t.Errorf("expected profit 10000, got %v", m.Profit)
	}
}

func TestAnalyzeMaxDrawdown(t *testing.T) {
	// Peak at 120000 then trough at 96000 is a 20% drawdown.
	ledger := flatLedger(100000, 120000, 108000, 96000, 110000)
	prices := testSeries(100, 100, 100, 100, 100)

	m, err := Analyze(ledger, nil, prices, 100000)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !almostEqual(m.MaxDrawdown, -0.20) {
		t.Errorf("expected max drawdown -0.20, got %v", m.MaxDrawdown)
	}
}

func TestAnalyzeZeroVolatility(t *testing.T) {
	ledger := flatLedger(100000, 100000, 100000, 100000)
	prices := testSeries(100, 100, 100, 100)

	m, err := Analyze(ledger, nil, prices, 100000)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m.Volatility != 0 {
		t.Errorf("expected zero volatility, got %v", m.Volatility)
	}
	if m.SharpeRatio != 0 {
		t.Errorf("expected zero sharpe on zero volatility, got %v", m.SharpeRatio)
	}
}

func TestAnalyzeNoTrades(t *testing.T) {
	ledger := flatLedger(100000, 100000)
	prices := testSeries(100, 100)

	m, err := Analyze(ledger, nil, prices, 100000)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m.TotalTrades != 0 || m.WinRate != 0 || m.ProfitFactor != 0 {
		t.Errorf("expected zero trade statistics, got trades=%d winRate=%v pf=%v",
			m.TotalTrades, m.WinRate, m.ProfitFactor)
	}
	if m.MaxConsecutiveWins != 0 || m.MaxConsecutiveLosses != 0 {
		t.Errorf("expected zero streaks, got %d/%d", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
	}
}

func TestAnalyzeTradeStatistics(t *testing.T) {
	ledger := flatLedger(100000, 101000)
	prices := testSeries(100, 101)
	trades := []Trade{
		tradeOn(1, 500),
		tradeOn(2, 300),
		tradeOn(3, -200),
		tradeOn(4, -100),
		tradeOn(5, 400),
	}

	m, err := Analyze(ledger, trades, prices, 100000)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m.TotalTrades != 5 || m.WinningTrades != 3 || m.LosingTrades != 2 {
		t.Errorf("unexpected trade counts: %d/%d/%d", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	}
	if !almostEqual(m.WinRate, 0.6) {
		t.Errorf("expected win rate 0.6, got %v", m.WinRate)
	}
	if !almostEqual(m.ProfitFactor, 1200.0/300.0) {
		t.Errorf("expected profit factor 4, got %v", m.ProfitFactor)
	}
	if !almostEqual(m.AvgProfitPerTrade, 400) {
		t.Errorf("expected avg profit 400, got %v", m.AvgProfitPerTrade)
	}
	if !almostEqual(m.AvgLossPerTrade, 150) {
		t.Errorf("expected avg loss 150, got %v", m.AvgLossPerTrade)
	}
	if !almostEqual(m.AvgHoldingPeriod, 3) {
		t.Errorf("expected avg holding 3, got %v", m.AvgHoldingPeriod)
	}
	if m.MaxConsecutiveWins != 2 || m.MaxConsecutiveLosses != 2 {
		t.Errorf("unexpected streaks: wins %d losses %d", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
	}
}

func TestAnalyzeProfitFactorNoLosses(t *testing.T) {
	ledger := flatLedger(100000, 101000)
	prices := testSeries(100, 101)
	trades := []Trade{tradeOn(1, 500), tradeOn(2, 300)}

	m, err := Analyze(ledger, trades, prices, 100000)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Errorf("expected +Inf profit factor, got %v", m.ProfitFactor)
	}
}

func TestAnalyzeBreakEvenTradeCountsAsLoss(t *testing.T) {
	ledger := flatLedger(100000, 100000)
	prices := testSeries(100, 100)
	trades := []Trade{tradeOn(1, 0)}

	m, err := Analyze(ledger, trades, prices, 100000)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m.LosingTrades != 1 || m.WinningTrades != 0 {
		t.Errorf("break-even trade misclassified: %d wins %d losses", m.WinningTrades, m.LosingTrades)
	}
}

func TestAnalyzeValidation(t *testing.T) {
	var verr *ValidationError

	_, err := Analyze(nil, nil, testSeries(100), 100000)
	if !errors.As(err, &verr) {
		t.Errorf("empty ledger: expected ValidationError, got %v", err)
	}
	_, err = Analyze(flatLedger(100000), nil, nil, 100000)
	if !errors.As(err, &verr) {
		t.Errorf("empty prices: expected ValidationError, got %v", err)
	}
	_, err = Analyze(flatLedger(100000), nil, testSeries(100), 0)
	if !errors.As(err, &verr) {
		t.Errorf("zero capital: expected ValidationError, got %v", err)
	}
}

func TestMetricsValue(t *testing.T) {
	m := &Metrics{SharpeRatio: 1.5, TotalTrades: 7}

	if v, ok := m.Value("sharpe_ratio"); !ok || v != 1.5 {
		t.Errorf("sharpe_ratio: got %v, %v", v, ok)
	}
	if v, ok := m.Value("total_trades"); !ok || v != 7 {
		t.Errorf("total_trades: got %v, %v", v, ok)
	}
	if _, ok := m.Value("alpha_decay"); ok {
		t.Error("unknown metric name accepted")
	}
}

func TestStdev(t *testing.T) {
	if got := stdev([]float64{5}); got != 0 {
		t.Errorf("single value: expected 0, got %v", got)
	}
	got := stdev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	want := math.Sqrt(32.0 / 7.0)
	if !almostEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
