package sqlstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHourlySeries(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	times := []time.Time{
		start.Add(5 * time.Minute),
		start.Add(30 * time.Minute),
		start.Add(2*time.Hour + 59*time.Minute),
		start.Add(-time.Minute),   // before the window
		start.Add(24 * time.Hour), // after the window
	}

	series := hourlySeries(start, 24, times)

	assert.Len(t, series, 24)
	assert.Equal(t, 2, series[0].Count)
	assert.Equal(t, 0, series[1].Count)
	assert.Equal(t, 1, series[2].Count)
	assert.Equal(t, start, series[0].Timestamp)
	assert.Equal(t, start.Add(23*time.Hour), series[23].Timestamp)

	var total int
	for _, p := range series {
		total += p.Count
	}
	assert.Equal(t, 3, total, "Out-of-window timestamps should be dropped")
}

func TestDailySeries(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		start.Add(3 * time.Hour),
		start.Add(23 * time.Hour),
		start.AddDate(0, 0, 6).Add(12 * time.Hour),
		start.Add(-time.Second),
	}

	series := dailySeries(start, 8, times)

	assert.Len(t, series, 8)
	assert.Equal(t, 2, series[0].Count)
	assert.Equal(t, 1, series[6].Count)
	assert.Equal(t, 0, series[7].Count)
	assert.Equal(t, start.AddDate(0, 0, 7), series[7].Timestamp)
}

func TestDailyEarningSeries(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	entries := []amountAt{
		{at: start.Add(time.Hour), amount: 1.5},
		{at: start.Add(10 * time.Hour), amount: 0.25},
		{at: start.AddDate(0, 0, 2), amount: 3},
	}

	series := dailyEarningSeries(start, 7, entries)

	assert.Len(t, series, 7)
	assert.Equal(t, 1.75, series[0].DailyEarning)
	assert.Equal(t, 0.0, series[1].DailyEarning)
	assert.Equal(t, 3.0, series[2].DailyEarning)
	assert.Equal(t, start, series[0].Date)
}

func TestStartOfDay(t *testing.T) {
	t.Parallel()

	in := time.Date(2026, 8, 29, 23, 59, 59, 999, time.FixedZone("plus2", 2*3600))
	got := startOfDay(in)

	// 23:59 at UTC+2 is 21:59 UTC on the same calendar day.
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), got)
}

func TestDaysBetween(t *testing.T) {
	t.Parallel()

	a := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, daysBetween(a, a))
	assert.Equal(t, 30, daysBetween(a, a.AddDate(0, 0, 30)))
	assert.Equal(t, -1, daysBetween(a, a.AddDate(0, 0, -1)))
}

func TestDistinctDays(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		day.Add(time.Hour),
		day.Add(5 * time.Hour),
		day.AddDate(0, 0, 1).Add(time.Minute),
	}

	assert.Equal(t, 2, distinctDays(times))
	assert.Equal(t, 0, distinctDays(nil))
}

func TestDaysInMonth(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 31, daysInMonth(2026, time.January))
	assert.Equal(t, 28, daysInMonth(2026, time.February))
	assert.Equal(t, 29, daysInMonth(2028, time.February))
	assert.Equal(t, 30, daysInMonth(2026, time.April))
	assert.Equal(t, 31, daysInMonth(2026, time.December))
}
