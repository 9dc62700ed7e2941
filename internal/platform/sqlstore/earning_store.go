package sqlstore

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/sparkmesh/miner-agent/internal/domain"
	"github.com/sparkmesh/miner-agent/internal/platform/logger"
	"github.com/sparkmesh/miner-agent/internal/store"
)

// earningColumns is the canonical column list for earning reads.
const earningColumns = `id, block_rewards, job_rewards, device_id, task_id, source, created_at`

// EarningStore implements the store.EarningStore interface against any
// database/sql backend. Rows are immutable once written; the store exposes
// no update or delete path.
type EarningStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewEarningStore creates a new SQL-backed implementation of the
// EarningStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewEarningStore(db store.DBTX, logger *slog.Logger) *EarningStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &EarningStore{
		db:     db,
		logger: logger.With(slog.String("component", "earning_store")),
	}
}

// Ensure EarningStore implements store.EarningStore interface
var _ store.EarningStore = (*EarningStore)(nil)

// WithTx implements store.EarningStore.WithTx
func (s *EarningStore) WithTx(tx *sql.Tx) store.EarningStore {
	return &EarningStore{db: tx, logger: s.logger}
}

// Create implements store.EarningStore.Create
// It saves a new earning row to the database, handling domain validation.
func (s *EarningStore) Create(ctx context.Context, earning *domain.Earning) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := earning.Validate(); err != nil {
		log.Warn("earning validation failed during create",
			slog.String("error", err.Error()),
			slog.String("earning_id", earning.ID.String()))
		return err
	}

	query := `
		INSERT INTO earnings (` + earningColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		earning.ID,
		earning.BlockRewards,
		earning.JobRewards,
		earning.DeviceID,
		earning.TaskID,
		earning.Source,
		earning.CreatedAt,
	)

	if err != nil {
		log.Error("failed to create earning",
			slog.String("error", err.Error()),
			slog.String("earning_id", earning.ID.String()),
			slog.String("device_id", earning.DeviceID),
			slog.String("task_id", earning.TaskID.String()))
		return store.NewStoreError("earning", "create", "failed to insert earning",
			map[string]any{
				"earning_id": earning.ID,
				"device_id":  earning.DeviceID,
				"task_id":    earning.TaskID,
			},
			MapError(err))
	}

	log.Info("earning created successfully",
		slog.String("earning_id", earning.ID.String()),
		slog.String("device_id", earning.DeviceID),
		slog.String("task_id", earning.TaskID.String()),
		slog.Float64("block_rewards", earning.BlockRewards),
		slog.Float64("job_rewards", earning.JobRewards))
	return nil
}

// ListByDevice implements store.EarningStore.ListByDevice
func (s *EarningStore) ListByDevice(ctx context.Context, deviceID string, source domain.TaskSource) ([]*domain.Earning, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + earningColumns + `
		FROM earnings
		WHERE device_id = $1 AND source = $2
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, deviceID, source)
	if err != nil {
		log.Error("failed to query earnings",
			slog.String("error", err.Error()),
			slog.String("device_id", deviceID))
		return nil, store.NewStoreError("earning", "list_by_device", "failed to query earnings",
			map[string]any{"device_id": deviceID, "source": source},
			MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	earnings := []*domain.Earning{}
	for rows.Next() {
		var earning domain.Earning
		var source string

		err := rows.Scan(
			&earning.ID,
			&earning.BlockRewards,
			&earning.JobRewards,
			&earning.DeviceID,
			&earning.TaskID,
			&source,
			&earning.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan earning row",
				slog.String("error", err.Error()))
			return nil, store.NewStoreError("earning", "list_by_device", "failed to scan earning row",
				map[string]any{"device_id": deviceID},
				MapError(err))
		}

		earning.Source = domain.TaskSource(source)
		earnings = append(earnings, &earning)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("earning", "list_by_device", "error iterating earning rows",
			map[string]any{"device_id": deviceID},
			MapError(err))
	}

	return earnings, nil
}

// Totals implements store.EarningStore.Totals
// Sums default to zero when the device has no earning rows.
func (s *EarningStore) Totals(ctx context.Context, deviceID string, source domain.TaskSource) (domain.EarningInfo, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT COALESCE(SUM(block_rewards), 0), COALESCE(SUM(job_rewards), 0)
		FROM earnings
		WHERE device_id = $1 AND source = $2
	`

	var info domain.EarningInfo
	err := s.db.QueryRowContext(ctx, query, deviceID, source).
		Scan(&info.TotalBlockRewards, &info.TotalJobRewards)
	if err != nil {
		log.Error("failed to sum earnings",
			slog.String("error", err.Error()),
			slog.String("device_id", deviceID))
		return domain.EarningInfo{}, store.NewStoreError("earning", "totals", "failed to sum earnings",
			map[string]any{"device_id": deviceID, "source": source},
			MapError(err))
	}

	return info, nil
}

// History implements store.EarningStore.History
// It returns exactly one entry per calendar day in [now-days+1, now],
// zero-filled for days without earnings.
func (s *EarningStore) History(ctx context.Context, deviceID string, source domain.TaskSource, days int) ([]domain.DailyEarning, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if days <= 0 {
		days = 30
	}
	start := startOfDay(time.Now().UTC()).AddDate(0, 0, -(days - 1))

	query := `
		SELECT created_at, block_rewards, job_rewards
		FROM earnings
		WHERE device_id = $1 AND source = $2 AND created_at >= $3
	`

	rows, err := s.db.QueryContext(ctx, query, deviceID, source, start)
	if err != nil {
		log.Error("failed to query earnings history",
			slog.String("error", err.Error()),
			slog.String("device_id", deviceID))
		return nil, store.NewStoreError("earning", "history", "failed to query earnings history",
			map[string]any{"device_id": deviceID, "source": source, "days": days},
			MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var entries []amountAt
	for rows.Next() {
		var at time.Time
		var block, job float64
		if err := rows.Scan(&at, &block, &job); err != nil {
			log.Error("failed to scan earning history row",
				slog.String("error", err.Error()))
			return nil, store.NewStoreError("earning", "history", "failed to scan earning history row",
				map[string]any{"device_id": deviceID},
				MapError(err))
		}
		entries = append(entries, amountAt{at: at, amount: block + job})
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("earning", "history", "error iterating earning history rows",
			map[string]any{"device_id": deviceID},
			MapError(err))
	}

	return dailyEarningSeries(start, days, entries), nil
}
