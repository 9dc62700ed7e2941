package sqlstore

import (
	"time"

	"github.com/sparkmesh/miner-agent/internal/domain"
)

// The aggregate queries fetch raw timestamps inside a window and bucket
// them here rather than in SQL, so the same store works unchanged against
// PostgreSQL and SQLite.

// startOfDay truncates t to midnight UTC.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// hourlySeries builds a zero-filled series of n hourly buckets starting at
// start, then accumulates every timestamp that truncates into one of them.
// Timestamps outside [start, start+n*1h) are dropped.
func hourlySeries(start time.Time, n int, times []time.Time) []domain.SeriesPoint {
	series := make([]domain.SeriesPoint, n)
	for i := range series {
		series[i] = domain.SeriesPoint{Timestamp: start.Add(time.Duration(i) * time.Hour)}
	}
	for _, t := range times {
		ts := t.UTC()
		// Negative durations divide toward zero, so a pre-window timestamp
		// would otherwise land in bucket 0. The SQL window prefilters these,
		// but the helper guards on its own.
		if ts.Before(start) {
			continue
		}
		idx := int(ts.Sub(start) / time.Hour)
		if idx < n {
			series[idx].Count++
		}
	}
	return series
}

// dailySeries builds a zero-filled series of n daily buckets starting at
// start (a midnight), then accumulates every timestamp whose calendar day
// falls into one of them.
func dailySeries(start time.Time, n int, times []time.Time) []domain.SeriesPoint {
	series := make([]domain.SeriesPoint, n)
	for i := range series {
		series[i] = domain.SeriesPoint{Timestamp: start.AddDate(0, 0, i)}
	}
	for _, t := range times {
		idx := daysBetween(start, startOfDay(t))
		if idx >= 0 && idx < n {
			series[idx].Count++
		}
	}
	return series
}

// dailyEarningSeries builds a zero-filled series of n calendar days
// starting at start, then folds each (timestamp, amount) pair into its day.
func dailyEarningSeries(start time.Time, n int, entries []amountAt) []domain.DailyEarning {
	series := make([]domain.DailyEarning, n)
	for i := range series {
		series[i] = domain.DailyEarning{Date: start.AddDate(0, 0, i)}
	}
	for _, e := range entries {
		idx := daysBetween(start, startOfDay(e.at))
		if idx >= 0 && idx < n {
			series[idx].DailyEarning += e.amount
		}
	}
	return series
}

// amountAt pairs an earning amount with its creation time.
type amountAt struct {
	at     time.Time
	amount float64
}

// daysBetween counts the calendar days from a (a midnight) to b (a midnight).
// Both inputs are UTC midnights, so plain division is exact.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// distinctDays counts the distinct calendar days covered by the timestamps.
func distinctDays(times []time.Time) int {
	seen := make(map[time.Time]struct{}, len(times))
	for _, t := range times {
		seen[startOfDay(t)] = struct{}{}
	}
	return len(seen)
}

// daysInMonth returns the number of days in the given month of year.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
