package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sparkmesh/miner-agent/internal/domain"
	"github.com/sparkmesh/miner-agent/internal/platform/logger"
	"github.com/sparkmesh/miner-agent/internal/store"
)

// taskColumns is the canonical column list for task reads.
const taskColumns = `id, model, status, device_id, source,
	total_duration, load_duration, prompt_eval_count, prompt_eval_duration,
	eval_count, eval_duration, created_at, updated_at`

// TaskStore implements the store.TaskStore interface against any
// database/sql backend. Placeholders are written $1..$n in strictly
// ascending order of appearance, which both the pgx and sqlite3 drivers
// bind positionally.
type TaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTaskStore creates a new SQL-backed implementation of the TaskStore
// interface. It accepts a database connection or transaction that should be
// initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &TaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure TaskStore implements store.TaskStore interface
var _ store.TaskStore = (*TaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
func (s *TaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &TaskStore{db: tx, logger: s.logger}
}

// Create implements store.TaskStore.Create
// It saves a new task to the database, handling domain validation.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Model,
		task.Status,
		task.DeviceID,
		task.Source,
		task.TotalDuration,
		task.LoadDuration,
		task.PromptEvalCount,
		task.PromptEvalDuration,
		task.EvalCount,
		task.EvalDuration,
		task.CreatedAt,
		task.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()),
			slog.String("device_id", task.DeviceID))
		return store.NewStoreError("task", "create", "failed to insert task",
			map[string]any{"task_id": task.ID, "device_id": task.DeviceID},
			MapError(err))
	}

	log.Info("task created successfully",
		slog.String("task_id", task.ID.String()),
		slog.String("device_id", task.DeviceID),
		slog.String("model", task.Model),
		slog.String("status", string(task.Status)))
	return nil
}

// Update implements store.TaskStore.Update
// It applies a partial update and returns the re-read row.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *TaskStore) Update(ctx context.Context, id uuid.UUID, update domain.TaskUpdate) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if update.IsEmpty() {
		return nil, store.ErrEmptyUpdate
	}
	if err := update.Validate(); err != nil {
		log.Warn("task update validation failed",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, err
	}

	// Build the SET clause dynamically; placeholders stay in ascending
	// order of appearance.
	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)
	next := func(expr string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", expr, len(args)+1))
		args = append(args, v)
	}
	if update.Status != nil {
		next("status", *update.Status)
	}
	if update.TotalDuration != nil {
		next("total_duration", *update.TotalDuration)
	}
	if update.LoadDuration != nil {
		next("load_duration", *update.LoadDuration)
	}
	if update.PromptEvalCount != nil {
		next("prompt_eval_count", *update.PromptEvalCount)
	}
	if update.PromptEvalDuration != nil {
		next("prompt_eval_duration", *update.PromptEvalDuration)
	}
	if update.EvalCount != nil {
		next("eval_count", *update.EvalCount)
	}
	if update.EvalDuration != nil {
		next("eval_duration", *update.EvalDuration)
	}
	next("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, store.NewStoreError("task", "update", "failed to update task",
			map[string]any{"task_id": id},
			MapError(err))
	}

	if err := CheckRowsAffected(result, "task"); err != nil {
		log.Debug("task not found for update", slog.String("task_id", id.String()))
		return nil, store.ErrTaskNotFound
	}

	return s.GetByID(ctx, id)
}

// GetByID implements store.TaskStore.GetByID
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, store.NewStoreError("task", "get", "failed to read task",
			map[string]any{"task_id": id},
			MapError(err))
	}

	return task, nil
}

// ListByDevice implements store.TaskStore.ListByDevice
func (s *TaskStore) ListByDevice(ctx context.Context, deviceID string, source domain.TaskSource) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE device_id = $1 AND source = $2
		ORDER BY created_at DESC
	`
	return s.queryTasks(ctx, "list_by_device",
		map[string]any{"device_id": deviceID, "source": source},
		query, deviceID, source)
}

// ListPaginated implements store.TaskStore.ListPaginated
func (s *TaskStore) ListPaginated(ctx context.Context, deviceID string, source domain.TaskSource, page, limit int) (int64, []*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit

	countQuery := `SELECT COUNT(*) FROM tasks WHERE device_id = $1 AND source = $2`

	var total int64
	if err := s.db.QueryRowContext(ctx, countQuery, deviceID, source).Scan(&total); err != nil {
		log.Error("failed to count tasks",
			slog.String("error", err.Error()),
			slog.String("device_id", deviceID))
		return 0, nil, store.NewStoreError("task", "list_paginated", "failed to count tasks",
			map[string]any{"device_id": deviceID, "source": source},
			MapError(err))
	}

	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE device_id = $1 AND source = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	tasks, err := s.queryTasks(ctx, "list_paginated",
		map[string]any{"device_id": deviceID, "source": source, "page": page, "limit": limit},
		query, deviceID, source, limit, offset)
	if err != nil {
		return 0, nil, err
	}

	return total, tasks, nil
}

// RequestSeries implements store.TaskStore.RequestSeries
// The period→window mapping is fixed: daily covers the last 24 hours in
// hourly buckets, weekly the last 7 days in 8 daily buckets, monthly the
// last 30 days in 31 daily buckets.
func (s *TaskStore) RequestSeries(ctx context.Context, deviceID string, source domain.TaskSource, period domain.Period) ([]domain.SeriesPoint, error) {
	now := time.Now().UTC()

	var start time.Time
	var buckets int
	hourly := false

	switch period {
	case domain.PeriodWeekly:
		start = startOfDay(now).AddDate(0, 0, -7)
		buckets = 8
	case domain.PeriodMonthly:
		start = startOfDay(now).AddDate(0, 0, -30)
		buckets = 31
	default: // daily
		start = now.Truncate(time.Hour).Add(-23 * time.Hour)
		buckets = 24
		hourly = true
	}

	times, err := s.createdTimesSince(ctx, "request_series", deviceID, source, start)
	if err != nil {
		return nil, err
	}

	if hourly {
		return hourlySeries(start, buckets, times), nil
	}
	return dailySeries(start, buckets, times), nil
}

// MonthlyActivity implements store.TaskStore.MonthlyActivity
func (s *TaskStore) MonthlyActivity(ctx context.Context, year int, deviceID string, source domain.TaskSource) ([]domain.ActivityPoint, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	times, err := s.createdTimesBetween(ctx, "monthly_activity", deviceID, source, start, end)
	if err != nil {
		return nil, err
	}

	activity := make([]domain.ActivityPoint, 12)
	for i := range activity {
		activity[i] = domain.ActivityPoint{Label: time.Month(i + 1).String()[:3]}
	}
	for _, t := range times {
		activity[int(t.UTC().Month())-1].Count++
	}
	return activity, nil
}

// DailyActivity implements store.TaskStore.DailyActivity
// The month is resolved against the current year.
func (s *TaskStore) DailyActivity(ctx context.Context, month time.Month, deviceID string, source domain.TaskSource) ([]domain.ActivityPoint, error) {
	year := time.Now().UTC().Year()
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	times, err := s.createdTimesBetween(ctx, "daily_activity", deviceID, source, start, end)
	if err != nil {
		return nil, err
	}

	days := daysInMonth(year, month)
	activity := make([]domain.ActivityPoint, days)
	for i := range activity {
		activity[i] = domain.ActivityPoint{Label: strconv.Itoa(i + 1)}
	}
	for _, t := range times {
		activity[t.UTC().Day()-1].Count++
	}
	return activity, nil
}

// UptimePercentage implements store.TaskStore.UptimePercentage
// It counts distinct calendar days with at least one task in the last 30
// days and reports the ratio to 30 as a percentage. No explicit cap at 100
// is applied beyond the natural bound of the ratio.
func (s *TaskStore) UptimePercentage(ctx context.Context, deviceID string, source domain.TaskSource) (float64, error) {
	now := time.Now().UTC()
	since := startOfDay(now).AddDate(0, 0, -29)

	times, err := s.createdTimesSince(ctx, "uptime_percentage", deviceID, source, since)
	if err != nil {
		return 0, err
	}

	return float64(distinctDays(times)) / 30 * 100, nil
}

// createdTimesSince fetches the creation timestamps of all device tasks
// created at or after since.
func (s *TaskStore) createdTimesSince(ctx context.Context, op, deviceID string, source domain.TaskSource, since time.Time) ([]time.Time, error) {
	query := `
		SELECT created_at FROM tasks
		WHERE device_id = $1 AND source = $2 AND created_at >= $3
	`
	return s.queryTimes(ctx, op, deviceID, source, query, deviceID, source, since)
}

// createdTimesBetween fetches the creation timestamps of all device tasks
// created in [start, end).
func (s *TaskStore) createdTimesBetween(ctx context.Context, op, deviceID string, source domain.TaskSource, start, end time.Time) ([]time.Time, error) {
	query := `
		SELECT created_at FROM tasks
		WHERE device_id = $1 AND source = $2 AND created_at >= $3 AND created_at < $4
	`
	return s.queryTimes(ctx, op, deviceID, source, query, deviceID, source, start, end)
}

func (s *TaskStore) queryTimes(ctx context.Context, op, deviceID string, source domain.TaskSource, query string, args ...any) ([]time.Time, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query task timestamps",
			slog.String("error", err.Error()),
			slog.String("operation", op),
			slog.String("device_id", deviceID))
		return nil, store.NewStoreError("task", op, "failed to query task timestamps",
			map[string]any{"device_id": deviceID, "source": source},
			MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			log.Error("failed to scan task timestamp",
				slog.String("error", err.Error()))
			return nil, store.NewStoreError("task", op, "failed to scan task timestamp",
				map[string]any{"device_id": deviceID, "source": source},
				MapError(err))
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", op, "error iterating task timestamps",
			map[string]any{"device_id": deviceID, "source": source},
			MapError(err))
	}

	return times, nil
}

func (s *TaskStore) queryTasks(ctx context.Context, op string, opArgs map[string]any, query string, args ...any) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks",
			slog.String("error", err.Error()),
			slog.String("operation", op))
		return nil, store.NewStoreError("task", op, "failed to query tasks", opArgs, MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("error", err.Error()),
				slog.String("operation", op))
			return nil, store.NewStoreError("task", op, "failed to scan task row", opArgs, MapError(err))
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", op, "error iterating task rows", opArgs, MapError(err))
	}

	return tasks, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var status, source string

	err := row.Scan(
		&task.ID,
		&task.Model,
		&status,
		&task.DeviceID,
		&source,
		&task.TotalDuration,
		&task.LoadDuration,
		&task.PromptEvalCount,
		&task.PromptEvalDuration,
		&task.EvalCount,
		&task.EvalDuration,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.Source = domain.TaskSource(source)
	return &task, nil
}
