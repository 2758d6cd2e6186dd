// Package builtins provides the built-in strategy implementations that ship
// with the quantor platform.
package builtins

import (
	"context"
	"fmt"
	"math"
	"strings"

	"quantor/internal/domain"
	"quantor/internal/indicator"
	"quantor/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MACross)(nil)

// MACross implements a moving-average crossover strategy. It emits a buy
// signal when the short-period average crosses above the long-period average
// (golden cross) and a sell signal when it crosses below (death cross).
type MACross struct {
	shortWindow int
	longWindow  int
	maType      string // "sma" or "ema"
}

// NewMACross creates a MACross strategy with the given windows and average
// type. Windows follow the platform conventions: short >= 2, long >= 5,
// short < long.
func NewMACross(short, long int, maType string) (*MACross, error) {
	maType = strings.ToLower(maType)
	if short < 2 {
		return nil, fmt.Errorf("short window must be >= 2, got %d", short)
	}
	if long < 5 {
		return nil, fmt.Errorf("long window must be >= 5, got %d", long)
	}
	if short >= long {
		return nil, fmt.Errorf("short window (%d) must be less than long window (%d)", short, long)
	}
	if maType != "sma" && maType != "ema" {
		return nil, fmt.Errorf("invalid ma type %q: must be sma or ema", maType)
	}
	return &MACross{shortWindow: short, longWindow: long, maType: maType}, nil
}

// MACrossFactory builds a MACross from a parameter map. Recognised keys:
// short_window (default 5), long_window (default 20), ma_type (default sma).
func MACrossFactory(params map[string]any) (strategy.Strategy, error) {
	short, err := intParam(params, "short_window", 5)
	if err != nil {
		return nil, err
	}
	long, err := intParam(params, "long_window", 20)
	if err != nil {
		return nil, err
	}
	maType := strParam(params, "ma_type", "sma")
	return NewMACross(short, long, maType)
}

// Name returns "ma-cross".
func (s *MACross) Name() string { return "ma-cross" }

// ComputeSignals emits buy/sell signals at golden/death crosses of the two
// moving averages. Rows inside the long-window warm-up are forced to hold.
func (s *MACross) ComputeSignals(_ context.Context, prices domain.PriceSeries) ([]domain.Signal, error) {
	if err := prices.Validate(); err != nil {
		return nil, fmt.Errorf("ma-cross: %w", err)
	}

	closes := prices.Closes()
	var shortMA, longMA []float64
	if s.maType == "ema" {
		shortMA = indicator.EMA(closes, s.shortWindow)
		longMA = indicator.EMA(closes, s.longWindow)
	} else {
		shortMA = indicator.SMA(closes, s.shortWindow)
		longMA = indicator.SMA(closes, s.longWindow)
	}

	signals := make([]domain.Signal, len(prices))
	prevDiff := math.NaN()
	for i := range prices {
		signals[i] = domain.Signal{Date: prices[i].Timestamp, Direction: domain.SignalHold}

		if math.IsNaN(shortMA[i]) || math.IsNaN(longMA[i]) {
			continue
		}
		diff := shortMA[i] - longMA[i]

		if i >= s.longWindow && !math.IsNaN(prevDiff) {
			switch {
			case diff > 0 && prevDiff <= 0:
				signals[i].Direction = domain.SignalBuy
			case diff < 0 && prevDiff > 0:
				signals[i].Direction = domain.SignalSell
			}
		}
		prevDiff = diff
	}
	return signals, nil
}
