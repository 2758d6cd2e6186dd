package util

import (
	"time"

	"quantor/internal/domain"
)

// TradingCalendar provides trading-day awareness for a specific market.
// It covers weekends only; exchange holidays are not modelled.
type TradingCalendar struct {
	market domain.Market
}

// NewTradingCalendar creates a TradingCalendar for the given market.
func NewTradingCalendar(market domain.Market) *TradingCalendar {
	return &TradingCalendar{
		market: market,
	}
}

// IsTradingDay reports whether t falls on a weekday.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// LatestFinishedTradingDay returns the most recent weekday strictly before
// the calendar day of t. Daily bars for that day are complete.
func (tc *TradingCalendar) LatestFinishedTradingDay(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	for {
		d = d.AddDate(0, 0, -1)
		if tc.IsTradingDay(d) {
			return d
		}
	}
}
