package store

import (
	"context"
	"database/sql"

	"github.com/sparkmesh/miner-agent/internal/domain"
)

// EarningStore defines the interface for earning-ledger persistence.
//
// Earning rows are immutable: the interface deliberately has no update or
// delete path. Like TaskStore, every read is scoped by (device_id, source).
type EarningStore interface {
	// Create saves a new earning row to the store.
	// The earning must be valid according to domain validation rules.
	//
	// Creating the row and re-reading the device totals must happen in the
	// same transaction; use WithTx with store.RunInTransaction.
	Create(ctx context.Context, earning *domain.Earning) error

	// ListByDevice retrieves all earning rows for a device and source
	// lineage, ordered by created_at descending.
	ListByDevice(ctx context.Context, deviceID string, source domain.TaskSource) ([]*domain.Earning, error)

	// Totals returns the device's summed block and job rewards,
	// defaulting to zero when no rows exist.
	Totals(ctx context.Context, deviceID string, source domain.TaskSource) (domain.EarningInfo, error)

	// History returns one row per calendar day in [now-days+1, now], each
	// carrying the day's combined earnings. Days with no earnings are
	// present with a zero amount, preserving a fixed-length series.
	History(ctx context.Context, deviceID string, source domain.TaskSource, days int) ([]domain.DailyEarning, error)

	// WithTx returns a store instance bound to the provided transaction.
	WithTx(tx *sql.Tx) EarningStore
}
