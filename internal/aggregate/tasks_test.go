package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sparkmesh/miner-agent/internal/device"
	"github.com/sparkmesh/miner-agent/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// taskReaderFunc adapts a function to the TaskReader interface.
type taskReaderFunc func(ctx context.Context, deviceID string, limit int) ([]*domain.Task, error)

func (f taskReaderFunc) GetDeviceTasks(ctx context.Context, deviceID string, limit int) ([]*domain.Task, error) {
	return f(ctx, deviceID, limit)
}

func aggIdentity() device.StaticIdentity {
	return device.StaticIdentity{ID: "device-test", IsRegistered: false}
}

func fixedTasks(tasks []*domain.Task) TaskReader {
	return taskReaderFunc(func(ctx context.Context, deviceID string, limit int) ([]*domain.Task, error) {
		return tasks, nil
	})
}

func makeTask(model string, status domain.TaskStatus, source domain.TaskSource, createdAt time.Time) *domain.Task {
	return &domain.Task{
		ID:        uuid.New(),
		Model:     model,
		Status:    status,
		DeviceID:  "device-test",
		Source:    source,
		CreatedAt: createdAt,
	}
}

func TestTaskCountAggregation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("single pending task", func(t *testing.T) {
		t.Parallel()

		tasks := []*domain.Task{
			makeTask("llama3", domain.TaskStatusPending, domain.TaskSourceLocal, time.Now().UTC()),
		}
		agg, err := NewTaskAggregator(fixedTasks(tasks), aggIdentity(), nil)
		require.NoError(t, err)

		counts, err := agg.TaskCountAggregation(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, counts.TotalTasks)
		assert.Equal(t, map[domain.TaskStatus]int{domain.TaskStatusPending: 1}, counts.StatusBreakdown)
		assert.Equal(t, map[domain.TaskSource]int{domain.TaskSourceLocal: 1}, counts.SourceBreakdown)
		assert.Equal(t, map[string]int{"llama3": 1}, counts.ModelBreakdown)
	})

	t.Run("mixed collection", func(t *testing.T) {
		t.Parallel()

		now := time.Now().UTC()
		tasks := []*domain.Task{
			makeTask("llama3", domain.TaskStatusCompleted, domain.TaskSourceLocal, now),
			makeTask("llama3", domain.TaskStatusCompleted, domain.TaskSourceGateway, now),
			makeTask("mistral", domain.TaskStatusFailed, domain.TaskSourceLocal, now),
		}
		agg, err := NewTaskAggregator(fixedTasks(tasks), aggIdentity(), nil)
		require.NoError(t, err)

		counts, err := agg.TaskCountAggregation(ctx)

		require.NoError(t, err)
		assert.Equal(t, 3, counts.TotalTasks)
		assert.Equal(t, 2, counts.StatusBreakdown[domain.TaskStatusCompleted])
		assert.Equal(t, 1, counts.StatusBreakdown[domain.TaskStatusFailed])
		assert.Equal(t, 2, counts.SourceBreakdown[domain.TaskSourceLocal])
		assert.Equal(t, 1, counts.SourceBreakdown[domain.TaskSourceGateway])
		assert.Equal(t, 2, counts.ModelBreakdown["llama3"])
	})

	t.Run("empty collection yields empty maps", func(t *testing.T) {
		t.Parallel()

		agg, err := NewTaskAggregator(fixedTasks(nil), aggIdentity(), nil)
		require.NoError(t, err)

		counts, err := agg.TaskCountAggregation(ctx)

		require.NoError(t, err)
		assert.Equal(t, 0, counts.TotalTasks)
		assert.Empty(t, counts.StatusBreakdown)
		assert.NotNil(t, counts.StatusBreakdown, "Breakdowns are empty maps, not nil")
	})

	t.Run("propagates reader errors", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("backend down")
		reader := taskReaderFunc(func(ctx context.Context, deviceID string, limit int) ([]*domain.Task, error) {
			return nil, boom
		})
		agg, err := NewTaskAggregator(reader, aggIdentity(), nil)
		require.NoError(t, err)

		_, err = agg.TaskCountAggregation(ctx)
		assert.ErrorIs(t, err, boom)
	})
}

func TestTaskCountByPeriod(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Now().UTC()
	tasks := []*domain.Task{
		makeTask("llama3", domain.TaskStatusCompleted, domain.TaskSourceLocal, now.Add(-time.Hour)),
		makeTask("llama3", domain.TaskStatusCompleted, domain.TaskSourceLocal, now.AddDate(0, 0, -3)),
		makeTask("llama3", domain.TaskStatusCompleted, domain.TaskSourceLocal, now.AddDate(0, 0, -20)),
		makeTask("llama3", domain.TaskStatusCompleted, domain.TaskSourceLocal, now.AddDate(0, -3, 0)),
	}
	agg, err := NewTaskAggregator(fixedTasks(tasks), aggIdentity(), nil)
	require.NoError(t, err)

	counts, err := agg.TaskCountByPeriod(ctx, RangeWeek)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.TotalTasks)

	counts, err = agg.TaskCountByPeriod(ctx, RangeMonth)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.TotalTasks)

	counts, err = agg.TaskCountByPeriod(ctx, RangeAll)
	require.NoError(t, err)
	assert.Equal(t, 4, counts.TotalTasks)
}

func TestTaskActivitySummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Now().UTC()
	tasks := []*domain.Task{
		makeTask("llama3", domain.TaskStatusCompleted, domain.TaskSourceLocal, now),
		makeTask("llama3", domain.TaskStatusCompleted, domain.TaskSourceLocal, now),
		makeTask("llama3", domain.TaskStatusCompleted, domain.TaskSourceLocal, now.AddDate(0, 0, -2)),
	}
	agg, err := NewTaskAggregator(fixedTasks(tasks), aggIdentity(), nil)
	require.NoError(t, err)

	summary, err := agg.TaskActivitySummary(ctx)

	require.NoError(t, err)
	assert.Len(t, summary.Daily, 7)
	assert.Len(t, summary.Hourly, 24)

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	assert.Equal(t, today, summary.PeakDay, "Two of three tasks landed today")
	assert.Equal(t, now.Truncate(time.Hour).Hour(), summary.PeakHour)
}

func TestTaskActivitySummaryEmpty(t *testing.T) {
	t.Parallel()

	agg, err := NewTaskAggregator(fixedTasks(nil), aggIdentity(), nil)
	require.NoError(t, err)

	summary, err := agg.TaskActivitySummary(context.Background())

	require.NoError(t, err)
	assert.True(t, summary.PeakDay.IsZero(), "No activity means no peak day")
	assert.Zero(t, summary.PeakHour)
}

func TestTaskTrends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Now().UTC()

	// One task per day in the older half, two per day in the recent half.
	var tasks []*domain.Task
	for i := 0; i < 6; i++ {
		day := now.AddDate(0, 0, -i)
		tasks = append(tasks, makeTask("llama3", domain.TaskStatusCompleted, domain.TaskSourceLocal, day))
		if i < 3 {
			tasks = append(tasks, makeTask("llama3", domain.TaskStatusCompleted, domain.TaskSourceLocal, day))
		}
	}
	agg, err := NewTaskAggregator(fixedTasks(tasks), aggIdentity(), nil)
	require.NoError(t, err)

	trend, err := agg.TaskTrends(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, domain.TrendUp, trend)
}

func TestDailyCountSeries(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tasks := []*domain.Task{
		makeTask("m", domain.TaskStatusCompleted, domain.TaskSourceLocal, now),
		makeTask("m", domain.TaskStatusCompleted, domain.TaskSourceLocal, now.AddDate(0, 0, -1)),
		makeTask("m", domain.TaskStatusCompleted, domain.TaskSourceLocal, now.AddDate(0, 0, -1)),
		makeTask("m", domain.TaskStatusCompleted, domain.TaskSourceLocal, now.AddDate(0, 0, -10)),
	}

	series := DailyCountSeries(tasks, now, 7)

	require.Len(t, series, 7)
	assert.Equal(t, 1, series[6].Count, "Today is the last bucket")
	assert.Equal(t, 2, series[5].Count)
	assert.Equal(t, 0, series[0].Count, "Tasks outside the window are dropped")
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), series[0].Timestamp)
}

func TestHourlyCountSeries(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)
	tasks := []*domain.Task{
		makeTask("m", domain.TaskStatusCompleted, domain.TaskSourceLocal, now),
		makeTask("m", domain.TaskStatusCompleted, domain.TaskSourceLocal, now.Add(-time.Hour)),
		makeTask("m", domain.TaskStatusCompleted, domain.TaskSourceLocal, now.Add(-30*time.Hour)),
	}

	series := HourlyCountSeries(tasks, now, 24)

	require.Len(t, series, 24)
	assert.Equal(t, 1, series[23].Count, "The current hour is the last bucket")
	assert.Equal(t, 1, series[22].Count)
	assert.Equal(t, 0, series[0].Count)
}

func TestHourlyCountSeriesDropsPreWindowTasks(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)
	start := now.Truncate(time.Hour).Add(-23 * time.Hour)
	tasks := []*domain.Task{
		// Within the hour before the window. A negative sub-hour offset
		// divides to index 0, so these must be dropped, not counted into
		// the oldest bucket.
		makeTask("m", domain.TaskStatusCompleted, domain.TaskSourceLocal, start.Add(-30*time.Minute)),
		makeTask("m", domain.TaskStatusCompleted, domain.TaskSourceLocal, start.Add(-time.Second)),
		makeTask("m", domain.TaskStatusCompleted, domain.TaskSourceLocal, start),
	}

	series := HourlyCountSeries(tasks, now, 24)

	require.Len(t, series, 24)
	assert.Equal(t, 1, series[0].Count, "Only the task exactly at the window start belongs in the oldest bucket")

	var total int
	for _, p := range series {
		total += p.Count
	}
	assert.Equal(t, 1, total)
}
