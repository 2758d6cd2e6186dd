package builtins

import (
	"context"
	"fmt"
	"math"

	"quantor/internal/domain"
	"quantor/internal/indicator"
	"quantor/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MACDStrategy)(nil)

// MACDStrategy emits a buy signal when the MACD histogram turns positive and
// a sell signal when it turns negative. histThreshold filters marginal
// flips: the histogram magnitude must exceed it for a signal to fire.
type MACDStrategy struct {
	fastPeriod    int
	slowPeriod    int
	signalPeriod  int
	histThreshold float64
}

// NewMACDStrategy creates a MACDStrategy with the given EMA periods.
func NewMACDStrategy(fast, slow, signal int, histThreshold float64) (*MACDStrategy, error) {
	if fast < 2 || slow < 2 || signal < 2 {
		return nil, fmt.Errorf("macd periods must be >= 2, got fast=%d slow=%d signal=%d", fast, slow, signal)
	}
	if fast >= slow {
		return nil, fmt.Errorf("fast period (%d) must be less than slow period (%d)", fast, slow)
	}
	if histThreshold < 0 {
		return nil, fmt.Errorf("hist threshold must be >= 0, got %v", histThreshold)
	}
	return &MACDStrategy{
		fastPeriod:    fast,
		slowPeriod:    slow,
		signalPeriod:  signal,
		histThreshold: histThreshold,
	}, nil
}

// MACDFactory builds a MACDStrategy from a parameter map. Recognised keys:
// fast_period (default 12), slow_period (default 26), signal_period
// (default 9), hist_threshold (default 0).
func MACDFactory(params map[string]any) (strategy.Strategy, error) {
	fast, err := intParam(params, "fast_period", 12)
	if err != nil {
		return nil, err
	}
	slow, err := intParam(params, "slow_period", 26)
	if err != nil {
		return nil, err
	}
	signal, err := intParam(params, "signal_period", 9)
	if err != nil {
		return nil, err
	}
	threshold, err := floatParam(params, "hist_threshold", 0)
	if err != nil {
		return nil, err
	}
	return NewMACDStrategy(fast, slow, signal, threshold)
}

// Name returns "macd".
func (s *MACDStrategy) Name() string { return "macd" }

// ComputeSignals emits signals at histogram sign changes.
func (s *MACDStrategy) ComputeSignals(_ context.Context, prices domain.PriceSeries) ([]domain.Signal, error) {
	if err := prices.Validate(); err != nil {
		return nil, fmt.Errorf("macd: %w", err)
	}

	_, _, hist := indicator.MACD(prices.Closes(), s.fastPeriod, s.slowPeriod, s.signalPeriod)

	signals := make([]domain.Signal, len(prices))
	prevHist := math.NaN()
	for i := range prices {
		signals[i] = domain.Signal{Date: prices[i].Timestamp, Direction: domain.SignalHold}

		if math.IsNaN(hist[i]) {
			continue
		}
		if !math.IsNaN(prevHist) {
			switch {
			case hist[i] > s.histThreshold && prevHist <= 0:
				signals[i].Direction = domain.SignalBuy
			case hist[i] < -s.histThreshold && prevHist >= 0:
				signals[i].Direction = domain.SignalSell
			}
		}
		prevHist = hist[i]
	}
	return signals, nil
}
