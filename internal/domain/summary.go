package domain

import "time"

// Period selects the granularity of a request-count series.
type Period string

// Possible period values
const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// IsValid reports whether p is one of the known period values.
func (p Period) IsValid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	default:
		return false
	}
}

// Trend classifies the direction of a data series.
type Trend string

// Possible trend values
const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// EarningInfo holds the running reward totals for a device.
type EarningInfo struct {
	TotalBlockRewards float64 `json:"total_block_rewards"`
	TotalJobRewards   float64 `json:"total_job_rewards"`
}

// DeviceInfo identifies the device a summary was computed for.
type DeviceInfo struct {
	DeviceID   string `json:"device_id"`
	Registered bool   `json:"registered"`
}

// SeriesPoint is one fixed-width bucket in a request-count series.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

// DailyEarning is one calendar day in an earnings history series.
// Days with no earnings are present with a zero amount.
type DailyEarning struct {
	Date         time.Time `json:"date"`
	DailyEarning float64   `json:"daily_earning"`
}

// ActivityPoint is one labelled bucket in a task-activity series,
// where the label is a month name or a day-of-month number.
type ActivityPoint struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Statistics is the chartable portion of a dashboard summary.
type Statistics struct {
	UptimePercentage float64         `json:"uptime_percentage"`
	EarningSerials   []DailyEarning  `json:"earning_serials"`
	RequestSerials   []SeriesPoint   `json:"request_serials"`
	TaskActivity     []ActivityPoint `json:"task_activity"`
	EarningTrend     Trend           `json:"earning_trend"`
}

// Summary is the read-only dashboard projection recomputed on every
// request from the underlying task and earning rows. It has no
// independent lifecycle and is never persisted.
type Summary struct {
	EarningInfo EarningInfo `json:"earning_info"`
	DeviceInfo  DeviceInfo  `json:"device_info"`
	Statistics  Statistics  `json:"statistics"`
}
