package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sparkmesh/miner-agent/internal/device"
	"github.com/sparkmesh/miner-agent/internal/domain"
)

// TaskReader is the slice of the Task Manager the rollups depend on.
type TaskReader interface {
	GetDeviceTasks(ctx context.Context, deviceID string, limit int) ([]*domain.Task, error)
}

// TaskCounts is the full breakdown of a device's task collection.
type TaskCounts struct {
	TotalTasks      int                       `json:"total_tasks"`
	StatusBreakdown map[domain.TaskStatus]int `json:"status_breakdown"`
	SourceBreakdown map[domain.TaskSource]int `json:"source_breakdown"`
	ModelBreakdown  map[string]int            `json:"model_breakdown"`
}

// ActivitySummary is the chartable activity view: fixed-length daily and
// hourly series plus the detected peaks.
type ActivitySummary struct {
	Daily    []domain.SeriesPoint `json:"daily"`
	Hourly   []domain.SeriesPoint `json:"hourly"`
	PeakDay  time.Time            `json:"peak_day"`
	PeakHour int                  `json:"peak_hour"`
}

// TaskAggregator computes read-side rollups over the current device's full
// task collection.
type TaskAggregator struct {
	tasks    TaskReader
	identity device.Identity
	logger   *slog.Logger
}

// NewTaskAggregator creates a new TaskAggregator.
func NewTaskAggregator(tasks TaskReader, identity device.Identity, logger *slog.Logger) (*TaskAggregator, error) {
	if tasks == nil {
		return nil, errors.New("tasks cannot be nil")
	}
	if identity == nil {
		return nil, errors.New("identity cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskAggregator{
		tasks:    tasks,
		identity: identity,
		logger:   logger.With(slog.String("component", "task_aggregator")),
	}, nil
}

// TaskCountAggregation returns the device's total task count with status,
// source, and model breakdowns.
func (a *TaskAggregator) TaskCountAggregation(ctx context.Context) (*TaskCounts, error) {
	tasks, err := a.tasks.GetDeviceTasks(ctx, a.identity.DeviceID(), 0)
	if err != nil {
		return nil, err
	}
	return countTasks(tasks), nil
}

// TaskCountByPeriod returns the breakdown of tasks created at or after the
// period's start.
func (a *TaskAggregator) TaskCountByPeriod(ctx context.Context, period RangePeriod) (*TaskCounts, error) {
	tasks, err := a.tasks.GetDeviceTasks(ctx, a.identity.DeviceID(), 0)
	if err != nil {
		return nil, err
	}
	return countTasks(filterSince(tasks, period.Start(time.Now()))), nil
}

// TaskActivitySummary returns the last 7 days as a daily series and the
// last 24 hours as an hourly series, both zero-filled, with the peak day
// and peak hour detected over those windows.
func (a *TaskAggregator) TaskActivitySummary(ctx context.Context) (*ActivitySummary, error) {
	tasks, err := a.tasks.GetDeviceTasks(ctx, a.identity.DeviceID(), 0)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	daily := DailyCountSeries(tasks, now, 7)
	hourly := HourlyCountSeries(tasks, now, 24)

	summary := &ActivitySummary{Daily: daily, Hourly: hourly}
	if i := peakIndex(daily); i >= 0 {
		summary.PeakDay = daily[i].Timestamp
	}
	if i := peakIndex(hourly); i >= 0 {
		summary.PeakHour = hourly[i].Timestamp.Hour()
	}
	return summary, nil
}

// TaskTrends classifies the direction of the device's daily task counts
// over the last days calendar days.
func (a *TaskAggregator) TaskTrends(ctx context.Context, days int) (domain.Trend, error) {
	if days <= 0 {
		days = 7
	}

	tasks, err := a.tasks.GetDeviceTasks(ctx, a.identity.DeviceID(), 0)
	if err != nil {
		return domain.TrendStable, err
	}

	series := DailyCountSeries(tasks, time.Now().UTC(), days)
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = float64(p.Count)
	}
	return HalvesTrend(values), nil
}

// countTasks rolls a task collection up into its breakdowns.
func countTasks(tasks []*domain.Task) *TaskCounts {
	counts := &TaskCounts{
		TotalTasks:      len(tasks),
		StatusBreakdown: make(map[domain.TaskStatus]int),
		SourceBreakdown: make(map[domain.TaskSource]int),
		ModelBreakdown:  make(map[string]int),
	}
	for _, t := range tasks {
		counts.StatusBreakdown[t.Status]++
		counts.SourceBreakdown[t.Source]++
		counts.ModelBreakdown[t.Model]++
	}
	return counts
}

// filterSince keeps the tasks created at or after start.
func filterSince(tasks []*domain.Task, start time.Time) []*domain.Task {
	filtered := make([]*domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.CreatedAt.Before(start) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// DailyCountSeries buckets task creation times into the last days calendar
// days ending today, zero-filling every bucket before accumulating rows.
func DailyCountSeries(tasks []*domain.Task, now time.Time, days int) []domain.SeriesPoint {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -(days - 1))

	series := make([]domain.SeriesPoint, days)
	for i := range series {
		series[i] = domain.SeriesPoint{Timestamp: start.AddDate(0, 0, i)}
	}
	for _, t := range tasks {
		created := t.CreatedAt.UTC()
		day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
		idx := int(day.Sub(start) / (24 * time.Hour))
		if idx >= 0 && idx < days {
			series[idx].Count++
		}
	}
	return series
}

// HourlyCountSeries buckets task creation times into the last hours hourly
// buckets ending with the current hour, zero-filled.
func HourlyCountSeries(tasks []*domain.Task, now time.Time, hours int) []domain.SeriesPoint {
	start := now.UTC().Truncate(time.Hour).Add(-time.Duration(hours-1) * time.Hour)

	series := make([]domain.SeriesPoint, hours)
	for i := range series {
		series[i] = domain.SeriesPoint{Timestamp: start.Add(time.Duration(i) * time.Hour)}
	}
	for _, t := range tasks {
		created := t.CreatedAt.UTC()
		// Negative durations divide toward zero, so a pre-window row would
		// otherwise land in bucket 0.
		if created.Before(start) {
			continue
		}
		idx := int(created.Sub(start) / time.Hour)
		if idx < hours {
			series[idx].Count++
		}
	}
	return series
}

// peakIndex returns the index of the bucket with the highest count, or -1
// when every bucket is zero.
func peakIndex(series []domain.SeriesPoint) int {
	best := -1
	bestCount := 0
	for i, p := range series {
		if p.Count > bestCount {
			best = i
			bestCount = p.Count
		}
	}
	return best
}
