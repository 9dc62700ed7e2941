package aggregate

import "time"

// RangePeriod selects the absolute window a rollup is filtered to.
type RangePeriod string

// Possible range period values
const (
	RangeToday RangePeriod = "today"
	RangeWeek  RangePeriod = "week"
	RangeMonth RangePeriod = "month"
	RangeAll   RangePeriod = "all"
)

// Start returns the absolute start timestamp of the period relative to
// now: midnight today, now minus 7 days, now minus one calendar month, or
// the epoch for the unbounded period. Unknown values behave like RangeAll.
func (p RangePeriod) Start(now time.Time) time.Time {
	now = now.UTC()
	switch p {
	case RangeToday:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case RangeWeek:
		return now.AddDate(0, 0, -7)
	case RangeMonth:
		return now.AddDate(0, -1, 0)
	default:
		return time.Unix(0, 0).UTC()
	}
}
