package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sparkmesh/miner-agent/internal/config"
	"github.com/sparkmesh/miner-agent/internal/domain"
	"github.com/sparkmesh/miner-agent/internal/store"
)

// testMinerConfig returns a config with near-zero retry delay so that
// retried failures do not slow the suite down.
func testMinerConfig() config.MinerConfig {
	return config.MinerConfig{
		DeviceID:           "device-test",
		Registered:         false,
		StaleTaskThreshold: 5 * time.Minute,
		ReapInterval:       time.Minute,
		RetryMaxAttempts:   1,
		RetryBaseDelay:     time.Microsecond,
	}
}

// fakeTxManager runs the transaction function directly with a nil *sql.Tx.
// The store mocks below return themselves from WithTx, so services under
// test never touch a real transaction.
type fakeTxManager struct {
	err   error
	calls int
}

func (m *fakeTxManager) WithinTx(ctx context.Context, fn store.TxFn) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	return fn(ctx, nil)
}

// mockTaskStore implements store.TaskStore with overridable function fields.
// A nil field falls back to an empty success.
type mockTaskStore struct {
	createFn        func(ctx context.Context, task *domain.Task) error
	updateFn        func(ctx context.Context, id uuid.UUID, update domain.TaskUpdate) (*domain.Task, error)
	getByIDFn       func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	listByDeviceFn  func(ctx context.Context, deviceID string, source domain.TaskSource) ([]*domain.Task, error)
	listPaginatedFn func(ctx context.Context, deviceID string, source domain.TaskSource, page, limit int) (int64, []*domain.Task, error)
	requestSeriesFn func(ctx context.Context, deviceID string, source domain.TaskSource, period domain.Period) ([]domain.SeriesPoint, error)
	monthlyFn       func(ctx context.Context, year int, deviceID string, source domain.TaskSource) ([]domain.ActivityPoint, error)
	dailyFn         func(ctx context.Context, month time.Month, deviceID string, source domain.TaskSource) ([]domain.ActivityPoint, error)
	uptimeFn        func(ctx context.Context, deviceID string, source domain.TaskSource) (float64, error)
}

func (m *mockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if m.createFn != nil {
		return m.createFn(ctx, task)
	}
	return nil
}

func (m *mockTaskStore) Update(ctx context.Context, id uuid.UUID, update domain.TaskUpdate) (*domain.Task, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, update)
	}
	return &domain.Task{ID: id}, nil
}

func (m *mockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &domain.Task{ID: id}, nil
}

func (m *mockTaskStore) ListByDevice(ctx context.Context, deviceID string, source domain.TaskSource) ([]*domain.Task, error) {
	if m.listByDeviceFn != nil {
		return m.listByDeviceFn(ctx, deviceID, source)
	}
	return nil, nil
}

func (m *mockTaskStore) ListPaginated(ctx context.Context, deviceID string, source domain.TaskSource, page, limit int) (int64, []*domain.Task, error) {
	if m.listPaginatedFn != nil {
		return m.listPaginatedFn(ctx, deviceID, source, page, limit)
	}
	return 0, nil, nil
}

func (m *mockTaskStore) RequestSeries(ctx context.Context, deviceID string, source domain.TaskSource, period domain.Period) ([]domain.SeriesPoint, error) {
	if m.requestSeriesFn != nil {
		return m.requestSeriesFn(ctx, deviceID, source, period)
	}
	return nil, nil
}

func (m *mockTaskStore) MonthlyActivity(ctx context.Context, year int, deviceID string, source domain.TaskSource) ([]domain.ActivityPoint, error) {
	if m.monthlyFn != nil {
		return m.monthlyFn(ctx, year, deviceID, source)
	}
	return nil, nil
}

func (m *mockTaskStore) DailyActivity(ctx context.Context, month time.Month, deviceID string, source domain.TaskSource) ([]domain.ActivityPoint, error) {
	if m.dailyFn != nil {
		return m.dailyFn(ctx, month, deviceID, source)
	}
	return nil, nil
}

func (m *mockTaskStore) UptimePercentage(ctx context.Context, deviceID string, source domain.TaskSource) (float64, error) {
	if m.uptimeFn != nil {
		return m.uptimeFn(ctx, deviceID, source)
	}
	return 0, nil
}

func (m *mockTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return m }

// mockEarningStore implements store.EarningStore with overridable fields.
type mockEarningStore struct {
	createFn       func(ctx context.Context, earning *domain.Earning) error
	listByDeviceFn func(ctx context.Context, deviceID string, source domain.TaskSource) ([]*domain.Earning, error)
	totalsFn       func(ctx context.Context, deviceID string, source domain.TaskSource) (domain.EarningInfo, error)
	historyFn      func(ctx context.Context, deviceID string, source domain.TaskSource, days int) ([]domain.DailyEarning, error)
}

func (m *mockEarningStore) Create(ctx context.Context, earning *domain.Earning) error {
	if m.createFn != nil {
		return m.createFn(ctx, earning)
	}
	return nil
}

func (m *mockEarningStore) ListByDevice(ctx context.Context, deviceID string, source domain.TaskSource) ([]*domain.Earning, error) {
	if m.listByDeviceFn != nil {
		return m.listByDeviceFn(ctx, deviceID, source)
	}
	return nil, nil
}

func (m *mockEarningStore) Totals(ctx context.Context, deviceID string, source domain.TaskSource) (domain.EarningInfo, error) {
	if m.totalsFn != nil {
		return m.totalsFn(ctx, deviceID, source)
	}
	return domain.EarningInfo{}, nil
}

func (m *mockEarningStore) History(ctx context.Context, deviceID string, source domain.TaskSource, days int) ([]domain.DailyEarning, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, deviceID, source, days)
	}
	return nil, nil
}

func (m *mockEarningStore) WithTx(tx *sql.Tx) store.EarningStore { return m }

// memTaskStore is a behavioral in-memory TaskStore used to verify
// pagination and stale-sweep semantics end to end.
type memTaskStore struct {
	mockTaskStore // aggregate reads fall back to empty successes

	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (m *memTaskStore) Create(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *memTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (m *memTaskStore) Update(ctx context.Context, id uuid.UUID, update domain.TaskUpdate) (*domain.Task, error) {
	if update.IsEmpty() {
		return nil, store.ErrEmptyUpdate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.TotalDuration != nil {
		task.TotalDuration = *update.TotalDuration
	}
	if update.EvalCount != nil {
		task.EvalCount = *update.EvalCount
	}
	task.UpdatedAt = time.Now().UTC()
	copied := *task
	return &copied, nil
}

func (m *memTaskStore) ListByDevice(ctx context.Context, deviceID string, source domain.TaskSource) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matching(deviceID, source), nil
}

func (m *memTaskStore) ListPaginated(ctx context.Context, deviceID string, source domain.TaskSource, page, limit int) (int64, []*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.matching(deviceID, source)
	total := int64(len(all))

	offset := (page - 1) * limit
	if offset >= len(all) {
		return total, nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return total, all[offset:end], nil
}

func (m *memTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return m }

// matching returns copies of the device's tasks, most recent first.
// Callers must hold m.mu.
func (m *memTaskStore) matching(deviceID string, source domain.TaskSource) []*domain.Task {
	var out []*domain.Task
	for _, task := range m.tasks {
		if task.DeviceID != deviceID || task.Source != source {
			continue
		}
		copied := *task
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
