package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"quantor/internal/domain"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRateLimiterNew(t *testing.T) {
	rl := NewRateLimiter(60)
	if rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	}
}

func TestTradingCalendarIsTradingDay(t *testing.T) {
	cal := NewTradingCalendar(domain.MarketUS)

	monday := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)

	if !cal.IsTradingDay(monday) {
		t.Error("Monday should be a trading day")
	}
	if cal.IsTradingDay(saturday) {
		t.Error("Saturday should not be a trading day")
	}
	if cal.IsTradingDay(sunday) {
		t.Error("Sunday should not be a trading day")
	}
}

func TestLatestFinishedTradingDay(t *testing.T) {
	cal := NewTradingCalendar(domain.MarketUS)

	// Monday noon — the latest finished trading day is the prior Friday.
	monday := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	got := cal.LatestFinishedTradingDay(monday)
	want := time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("LatestFinishedTradingDay(Monday) = %v, want %v", got, want)
	}

	// Wednesday — the latest finished trading day is Tuesday.
	wednesday := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	got = cal.LatestFinishedTradingDay(wednesday)
	want = time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("LatestFinishedTradingDay(Wednesday) = %v, want %v", got, want)
	}
}
