package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sparkmesh/miner-agent/internal/config"
	"github.com/sparkmesh/miner-agent/internal/device"
	"github.com/sparkmesh/miner-agent/internal/domain"
	"github.com/sparkmesh/miner-agent/internal/platform/logger"
	"github.com/sparkmesh/miner-agent/internal/retry"
	"github.com/sparkmesh/miner-agent/internal/store"
)

// CreateTaskRequest carries the caller-supplied fields for a new task.
// DeviceID is optional; when empty the current device identity is used.
type CreateTaskRequest struct {
	Model    string `json:"model"    validate:"required"`
	DeviceID string `json:"device_id"`
}

// TaskHistory is one page of a device's task history.
type TaskHistory struct {
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int64          `json:"total"`
	Tasks []*domain.Task `json:"tasks"`
}

// TaskService manages the task lifecycle for the current device: creation,
// partial updates, paginated history, device-scoped listing, and the
// stale-task sweep driven by the reaper.
type TaskService struct {
	txm      store.TxManager
	tasks    store.TaskStore
	identity device.Identity
	cfg      config.MinerConfig
	policy   retry.Policy
	logger   *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	txm store.TxManager,
	tasks store.TaskStore,
	identity device.Identity,
	cfg config.MinerConfig,
	logger *slog.Logger,
) (*TaskService, error) {
	if txm == nil {
		return nil, errors.New("txm cannot be nil")
	}
	if tasks == nil {
		return nil, errors.New("tasks cannot be nil")
	}
	if identity == nil {
		return nil, errors.New("identity cannot be nil")
	}
	if cfg.StaleTaskThreshold <= 0 {
		cfg.StaleTaskThreshold = 5 * time.Minute
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &TaskService{
		txm:      txm,
		tasks:    tasks,
		identity: identity,
		cfg:      cfg,
		policy:   retryPolicy(cfg),
		logger:   logger.With(slog.String("component", "task_service")),
	}, nil
}

// retryPolicy builds the retry policy applied to persistence calls from the
// miner configuration.
func retryPolicy(cfg config.MinerConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	if cfg.RetryMaxAttempts >= 0 {
		policy.MaxRetries = cfg.RetryMaxAttempts
	}
	if cfg.RetryBaseDelay > 0 {
		policy.BaseDelay = cfg.RetryBaseDelay
	}
	return policy
}

// source returns the record lineage for the current device.
func (s *TaskService) source() domain.TaskSource {
	return domain.SourceForRegistration(s.identity.Registered())
}

// CreateTask records a new task. The device id falls back to the current
// device identity when the request leaves it empty. The insert runs inside
// a retried transaction; failures are wrapped as TASK_CREATION_ERROR.
func (s *TaskService) CreateTask(ctx context.Context, req CreateTaskRequest) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = s.identity.DeviceID()
	}

	task, err := domain.NewTask(req.Model, deviceID, s.source())
	if err != nil {
		log.Warn("task validation failed",
			slog.String("error", err.Error()),
			slog.String("model", req.Model))
		return nil, NewMinerError(CodeTaskCreation, "invalid task request",
			map[string]any{"model": req.Model, "device_id": deviceID}, err)
	}

	err = retry.DoVoid(ctx, s.policy, "create_task", func(ctx context.Context) error {
		return s.txm.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return s.tasks.WithTx(tx).Create(ctx, task)
		})
	})
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()),
			slog.String("device_id", deviceID))
		return nil, NewMinerError(CodeTaskCreation, "failed to create task",
			map[string]any{"model": req.Model, "device_id": deviceID}, err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("device_id", deviceID),
		slog.String("model", task.Model))
	return task, nil
}

// UpdateTask applies a partial update to an existing task. The task is
// re-read first; a missing id fails with TASK_NOT_FOUND before any write.
// Transitions are free-form; callers are responsible for valid ones.
func (s *TaskService) UpdateTask(ctx context.Context, id uuid.UUID, update domain.TaskUpdate) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, err := retry.Do(ctx, s.policy, "get_task", func(ctx context.Context) (*domain.Task, error) {
		return s.tasks.GetByID(ctx, id)
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Debug("task not found for update", slog.String("task_id", id.String()))
			return nil, NewTaskNotFoundError(id, err)
		}
		return nil, NewMinerError(CodeTaskCreation, "failed to read task for update",
			map[string]any{"task_id": id}, err)
	}

	updated, err := retry.Do(ctx, s.policy, "update_task", func(ctx context.Context) (*domain.Task, error) {
		var out *domain.Task
		txErr := s.txm.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			var innerErr error
			out, innerErr = s.tasks.WithTx(tx).Update(ctx, id, update)
			return innerErr
		})
		return out, txErr
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			// Deleted between the read and the write.
			return nil, NewTaskNotFoundError(id, err)
		}
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, NewMinerError(CodeTaskCreation, "failed to update task",
			map[string]any{"task_id": id}, err)
	}

	log.Info("task updated", slog.String("task_id", id.String()))
	return updated, nil
}

// GetTaskHistory returns one page of the current device's task history,
// most recent first.
func (s *TaskService) GetTaskHistory(ctx context.Context, page, limit int) (*TaskHistory, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	deviceID := s.identity.DeviceID()

	type pageResult struct {
		total int64
		tasks []*domain.Task
	}
	result, err := retry.Do(ctx, s.policy, "task_history", func(ctx context.Context) (pageResult, error) {
		total, tasks, err := s.tasks.ListPaginated(ctx, deviceID, s.source(), page, limit)
		return pageResult{total: total, tasks: tasks}, err
	})
	if err != nil {
		return nil, err
	}

	return &TaskHistory{
		Page:  page,
		Limit: limit,
		Total: result.total,
		Tasks: result.tasks,
	}, nil
}

// GetDeviceTasks returns all tasks for the given device, truncated to limit
// when limit is positive.
func (s *TaskService) GetDeviceTasks(ctx context.Context, deviceID string, limit int) ([]*domain.Task, error) {
	if deviceID == "" {
		deviceID = s.identity.DeviceID()
	}

	tasks, err := retry.Do(ctx, s.policy, "device_tasks", func(ctx context.Context) ([]*domain.Task, error) {
		return s.tasks.ListByDevice(ctx, deviceID, s.source())
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// GetTaskStats returns the status breakdown of the current device's tasks.
func (s *TaskService) GetTaskStats(ctx context.Context) (map[domain.TaskStatus]int, error) {
	tasks, err := s.GetDeviceTasks(ctx, "", 0)
	if err != nil {
		return nil, err
	}

	stats := make(map[domain.TaskStatus]int, 5)
	for _, task := range tasks {
		stats[task.Status]++
	}
	return stats, nil
}

// HandleStaleTasks sweeps the current device's tasks and marks every
// running task older than the stale threshold as failed. Per-task update
// failures are logged and skipped so a single bad row cannot abort the
// sweep. The sweep is idempotent: reclaimed tasks are no longer running,
// so a re-run finds nothing left to do.
//
// A task that completes between the sweep's read and its write can still
// be marked failed; closing that window would need a conditional update,
// which the reaper deliberately does not use.
func (s *TaskService) HandleStaleTasks(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	deviceID := s.identity.DeviceID()
	tasks, err := retry.Do(ctx, s.policy, "stale_sweep_list", func(ctx context.Context) ([]*domain.Task, error) {
		return s.tasks.ListByDevice(ctx, deviceID, s.source())
	})
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-s.cfg.StaleTaskThreshold)
	failed := domain.TaskStatusFailed

	reclaimed := 0
	for _, task := range tasks {
		if task.Status != domain.TaskStatusRunning || !task.CreatedAt.Before(cutoff) {
			continue
		}

		_, err := s.tasks.Update(ctx, task.ID, domain.TaskUpdate{Status: &failed})
		if err != nil {
			log.Warn("failed to reclaim stale task",
				slog.String("error", err.Error()),
				slog.String("task_id", task.ID.String()))
			continue
		}

		reclaimed++
		log.Info("reclaimed stale task",
			slog.String("task_id", task.ID.String()),
			slog.Time("created_at", task.CreatedAt))
	}

	if reclaimed > 0 {
		log.Info("stale task sweep finished",
			slog.Int("reclaimed", reclaimed),
			slog.String("device_id", deviceID))
	}
	return reclaimed, nil
}
