// Package report renders backtest results as plain text for the CLI tools.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"quantor/internal/backtest"
	"quantor/internal/domain"
)

// FormatMoney formats a dollar value with two decimals.
func FormatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// FormatPct formats a ratio as a signed percentage. Infinities render as
// "inf" so profit factors stay printable.
func FormatPct(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	if math.IsInf(v, -1) {
		return "-inf"
	}
	return fmt.Sprintf("%+.2f%%", v*100)
}

// FormatRatio formats a unitless ratio with two decimals, or "inf".
func FormatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}

// RenderMetrics renders the full metrics record as an aligned two-column
// text block.
func RenderMetrics(m *backtest.Metrics) string {
	rows := []struct {
		label string
		value string
	}{
		{"Initial capital", FormatMoney(m.InitialCapital)},
		{"Final capital", FormatMoney(m.FinalCapital)},
		{"Profit", FormatMoney(m.Profit)},
		{"Total return", FormatPct(m.TotalReturn)},
		{"Annualized return", FormatPct(m.AnnualizedReturn)},
		{"Benchmark return", FormatPct(m.BenchmarkReturn)},
		{"Excess return", FormatPct(m.ExcessReturn)},
		{"Volatility", FormatPct(m.Volatility)},
		{"Sharpe ratio", FormatRatio(m.SharpeRatio)},
		{"Max drawdown", FormatPct(m.MaxDrawdown)},
		{"Total trades", fmt.Sprintf("%d", m.TotalTrades)},
		{"Winning trades", fmt.Sprintf("%d", m.WinningTrades)},
		{"Losing trades", fmt.Sprintf("%d", m.LosingTrades)},
		{"Win rate", FormatPct(m.WinRate)},
		{"Profit factor", FormatRatio(m.ProfitFactor)},
		{"Avg profit per trade", FormatMoney(m.AvgProfitPerTrade)},
		{"Avg loss per trade", FormatMoney(m.AvgLossPerTrade)},
		{"Avg holding period", fmt.Sprintf("%.1f days", m.AvgHoldingPeriod)},
		{"Max consecutive wins", fmt.Sprintf("%d", m.MaxConsecutiveWins)},
		{"Max consecutive losses", fmt.Sprintf("%d", m.MaxConsecutiveLosses)},
	}

	width := 0
	for _, r := range rows {
		if len(r.label) > width {
			width = len(r.label)
		}
	}

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%-*s  %s\n", width, r.label, r.value)
	}
	return b.String()
}

// RenderTrades renders the trade log as a text table, one row per completed
// round-trip.
func RenderTrades(trades []backtest.Trade) string {
	if len(trades) == 0 {
		return "no trades\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-12s %10s %10s %8s %12s %6s  %s\n",
		"ENTRY", "EXIT", "ENTRY PX", "EXIT PX", "SHARES", "NET P/L", "DAYS", "REASON")
	for _, tr := range trades {
		fmt.Fprintf(&b, "%-12s %-12s %10.2f %10.2f %8d %12.2f %6d  %s\n",
			domain.DateKey(tr.EntryDate),
			domain.DateKey(tr.ExitDate),
			tr.EntryPrice,
			tr.ExitPrice,
			tr.Shares,
			tr.NetProfit,
			tr.HoldingDays,
			tr.ExitReason,
		)
	}
	return b.String()
}

// RenderSweep renders the top results of an optimization sweep, best first.
// topN <= 0 renders every result.
func RenderSweep(rep *backtest.Report, metric string, maximize bool, topN int) string {
	if len(rep.Results) == 0 {
		return "no successful combinations\n"
	}

	ranked := make([]backtest.Result, len(rep.Results))
	copy(ranked, rep.Results)
	sort.SliceStable(ranked, func(i, j int) bool {
		if maximize {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Score < ranked[j].Score
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %14s  %s\n", "#", strings.ToUpper(metric), "PARAMS")
	for i, res := range ranked {
		fmt.Fprintf(&b, "%-4d %14s  %s\n", i+1, FormatRatio(res.Score), formatParams(res.Params))
	}
	fmt.Fprintf(&b, "\nbest: %s = %s with %s\n",
		metric, FormatRatio(rep.BestScore), formatParams(rep.BestParams))
	return b.String()
}

// formatParams renders a parameter map with stable key order.
func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, " ")
}
