package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sparkmesh/miner-agent/internal/domain"
)

// TaskStore defines the interface for task data persistence.
//
// Every read is scoped by (device_id, source) so that node-local and
// gateway-synced lineages are never mixed in one result set. Implementations
// must be usable both against a standalone connection and inside a
// transaction obtained via WithTx.
type TaskStore interface {
	// Create saves a new task to the store.
	// The task must be valid according to domain validation rules.
	Create(ctx context.Context, task *domain.Task) error

	// Update applies a partial update to an existing task and returns the
	// updated row. Returns ErrTaskNotFound if the task does not exist and
	// ErrEmptyUpdate if the update carries no fields.
	Update(ctx context.Context, id uuid.UUID, update domain.TaskUpdate) (*domain.Task, error)

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ListByDevice retrieves all tasks for a device and source lineage,
	// ordered by created_at descending.
	ListByDevice(ctx context.Context, deviceID string, source domain.TaskSource) ([]*domain.Task, error)

	// ListPaginated retrieves one page of tasks for a device ordered by
	// created_at descending, with offset (page-1)*limit, along with the
	// total row count for the device.
	ListPaginated(ctx context.Context, deviceID string, source domain.TaskSource, page, limit int) (int64, []*domain.Task, error)

	// RequestSeries returns a fixed-length, zero-filled request-count
	// series for the device: 24 hourly buckets for PeriodDaily, 8 daily
	// buckets for PeriodWeekly, 31 daily buckets for PeriodMonthly.
	RequestSeries(ctx context.Context, deviceID string, source domain.TaskSource, period domain.Period) ([]domain.SeriesPoint, error)

	// MonthlyActivity returns 12 rows, one per calendar month of the given
	// year, each counting the device's tasks created in that month.
	MonthlyActivity(ctx context.Context, year int, deviceID string, source domain.TaskSource) ([]domain.ActivityPoint, error)

	// DailyActivity returns one row per day of the given month in the
	// current year, each counting the device's tasks created that day.
	DailyActivity(ctx context.Context, month time.Month, deviceID string, source domain.TaskSource) ([]domain.ActivityPoint, error)

	// UptimePercentage returns the ratio of distinct days with at least one
	// task in the last 30 days to 30, as a percentage. The value is not
	// explicitly capped at 100; the natural bound of the ratio applies.
	UptimePercentage(ctx context.Context, deviceID string, source domain.TaskSource) (float64, error)

	// WithTx returns a store instance bound to the provided transaction.
	WithTx(tx *sql.Tx) TaskStore
}
