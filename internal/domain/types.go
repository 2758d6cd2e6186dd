// Package domain defines the core market-data types shared across the
// quantor backtesting platform.
package domain

import (
	"fmt"
	"sort"
	"time"
)

// Market identifies the exchange universe a symbol belongs to.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// Bar is one daily OHLCV bar. Bars are owned by the caller and treated as
// read-only by the simulation core.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Direction is a daily trading instruction produced by a strategy.
type Direction int

const (
	SignalSell Direction = -1
	SignalHold Direction = 0
	SignalBuy  Direction = 1
)

// Signal pairs a trading day with a direction. Days absent from a signal
// series are treated as hold.
type Signal struct {
	Date      time.Time
	Direction Direction
}

// PriceSeries is an ordered, date-keyed sequence of daily bars.
type PriceSeries []Bar

// DateKey formats a timestamp as the canonical day key used to align
// signals with bars.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Validate checks that the series is non-empty, carries usable prices, and
// is sorted by strictly increasing date. An unsorted series is sorted in
// place; duplicate dates are rejected.
func (p PriceSeries) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("price series is empty")
	}

	for i := range p {
		b := &p[i]
		if b.Timestamp.IsZero() {
			return fmt.Errorf("bar %d: missing timestamp", i)
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("bar %d (%s): non-positive price", i, DateKey(b.Timestamp))
		}
		if b.Volume < 0 {
			return fmt.Errorf("bar %d (%s): negative volume", i, DateKey(b.Timestamp))
		}
	}

	if !sort.SliceIsSorted(p, func(i, j int) bool {
		return p[i].Timestamp.Before(p[j].Timestamp)
	}) {
		sort.Slice(p, func(i, j int) bool {
			return p[i].Timestamp.Before(p[j].Timestamp)
		})
	}

	for i := 1; i < len(p); i++ {
		if DateKey(p[i].Timestamp) == DateKey(p[i-1].Timestamp) {
			return fmt.Errorf("duplicate date %s", DateKey(p[i].Timestamp))
		}
	}
	return nil
}

// Closes returns the close prices of the series in order.
func (p PriceSeries) Closes() []float64 {
	closes := make([]float64, len(p))
	for i, b := range p {
		closes[i] = b.Close
	}
	return closes
}
