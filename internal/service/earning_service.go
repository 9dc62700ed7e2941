package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sparkmesh/miner-agent/internal/config"
	"github.com/sparkmesh/miner-agent/internal/device"
	"github.com/sparkmesh/miner-agent/internal/domain"
	"github.com/sparkmesh/miner-agent/internal/platform/logger"
	"github.com/sparkmesh/miner-agent/internal/retry"
	"github.com/sparkmesh/miner-agent/internal/store"
)

// EarningsSummary is the rolled-up view of a device's ledger.
type EarningsSummary struct {
	TotalBlockRewards float64 `json:"total_block_rewards"`
	TotalJobRewards   float64 `json:"total_job_rewards"`
	TotalRewards      float64 `json:"total_rewards"`
	Count             int     `json:"count"`
	// GrowthRate compares today's earnings against yesterday's, in percent.
	GrowthRate float64 `json:"growth_rate"`
}

// EarningService owns the earnings ledger: validated creation of immutable
// earning rows and device-scoped reads. All monetary outputs are rounded to
// 2 decimal places.
type EarningService struct {
	txm      store.TxManager
	earnings store.EarningStore
	identity device.Identity
	policy   retry.Policy
	logger   *slog.Logger
}

// NewEarningService creates a new EarningService.
// It returns an error if any of the required dependencies are nil.
func NewEarningService(
	txm store.TxManager,
	earnings store.EarningStore,
	identity device.Identity,
	cfg config.MinerConfig,
	logger *slog.Logger,
) (*EarningService, error) {
	if txm == nil {
		return nil, errors.New("txm cannot be nil")
	}
	if earnings == nil {
		return nil, errors.New("earnings cannot be nil")
	}
	if identity == nil {
		return nil, errors.New("identity cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &EarningService{
		txm:      txm,
		earnings: earnings,
		identity: identity,
		policy:   retryPolicy(cfg),
		logger:   logger.With(slog.String("component", "earning_service")),
	}, nil
}

// source returns the record lineage for the current device.
func (s *EarningService) source() domain.TaskSource {
	return domain.SourceForRegistration(s.identity.Registered())
}

// CreateEarnings validates and records one earning row, then re-reads the
// device's running totals in the same transaction and returns them.
// Negative rewards or missing ids fail with EARNINGS_CREATION_ERROR before
// anything is written; a zero/zero record is accepted with a warning.
func (s *EarningService) CreateEarnings(ctx context.Context, blockRewards, jobRewards float64, taskID uuid.UUID, deviceID string) (domain.EarningInfo, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if deviceID == "" {
		deviceID = s.identity.DeviceID()
	}

	// Validation happens before any retry or transaction is opened.
	earning, err := domain.NewEarning(blockRewards, jobRewards, taskID, deviceID, s.source())
	if err != nil {
		log.Warn("earnings validation failed",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()),
			slog.String("device_id", deviceID))
		return domain.EarningInfo{}, NewEarningsCreationError("invalid earnings record",
			map[string]any{
				"block_rewards": blockRewards,
				"job_rewards":   jobRewards,
				"task_id":       taskID,
				"device_id":     deviceID,
			}, err)
	}

	if blockRewards == 0 && jobRewards == 0 {
		log.Warn("recording zero-value earning",
			slog.String("task_id", taskID.String()),
			slog.String("device_id", deviceID))
	}

	totals, err := retry.Do(ctx, s.policy, "create_earnings", func(ctx context.Context) (domain.EarningInfo, error) {
		var info domain.EarningInfo
		txErr := s.txm.WithinTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			txStore := s.earnings.WithTx(tx)

			if err := txStore.Create(ctx, earning); err != nil {
				return err
			}

			var innerErr error
			info, innerErr = txStore.Totals(ctx, deviceID, s.source())
			return innerErr
		})
		return info, txErr
	})
	if err != nil {
		log.Error("failed to create earnings",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()),
			slog.String("device_id", deviceID))
		return domain.EarningInfo{}, NewEarningsCreationError("failed to record earnings",
			map[string]any{"task_id": taskID, "device_id": deviceID}, err)
	}

	log.Info("earnings recorded",
		slog.String("task_id", taskID.String()),
		slog.String("device_id", deviceID),
		slog.Float64("block_rewards", blockRewards),
		slog.Float64("job_rewards", jobRewards))
	return roundInfo(totals), nil
}

// GetDeviceEarnings returns the device's earning rows, most recent first,
// truncated to limit when limit is positive.
func (s *EarningService) GetDeviceEarnings(ctx context.Context, deviceID string, limit int) ([]*domain.Earning, error) {
	if deviceID == "" {
		deviceID = s.identity.DeviceID()
	}

	earnings, err := retry.Do(ctx, s.policy, "device_earnings", func(ctx context.Context) ([]*domain.Earning, error) {
		return s.earnings.ListByDevice(ctx, deviceID, s.source())
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(earnings) > limit {
		earnings = earnings[:limit]
	}
	return earnings, nil
}

// GetEarningsHistory returns the per-day earnings series for the device
// over the last days calendar days (default 30), zero-filled.
func (s *EarningService) GetEarningsHistory(ctx context.Context, deviceID string, days int) ([]domain.DailyEarning, error) {
	if deviceID == "" {
		deviceID = s.identity.DeviceID()
	}
	if days <= 0 {
		days = 30
	}

	history, err := retry.Do(ctx, s.policy, "earnings_history", func(ctx context.Context) ([]domain.DailyEarning, error) {
		return s.earnings.History(ctx, deviceID, s.source(), days)
	})
	if err != nil {
		return nil, err
	}

	for i := range history {
		history[i].DailyEarning = round2(history[i].DailyEarning)
	}
	return history, nil
}

// GetEarningsSummary returns the device's ledger totals and row count.
func (s *EarningService) GetEarningsSummary(ctx context.Context, deviceID string) (*EarningsSummary, error) {
	if deviceID == "" {
		deviceID = s.identity.DeviceID()
	}

	earnings, err := retry.Do(ctx, s.policy, "earnings_summary", func(ctx context.Context) ([]*domain.Earning, error) {
		return s.earnings.ListByDevice(ctx, deviceID, s.source())
	})
	if err != nil {
		return nil, err
	}

	today := startOfDayUTC(time.Now().UTC())
	yesterday := today.AddDate(0, 0, -1)

	summary := &EarningsSummary{Count: len(earnings)}
	var todayTotal, yesterdayTotal float64
	for _, e := range earnings {
		summary.TotalBlockRewards += e.BlockRewards
		summary.TotalJobRewards += e.JobRewards

		switch day := startOfDayUTC(e.CreatedAt); {
		case day.Equal(today):
			todayTotal += e.Total()
		case day.Equal(yesterday):
			yesterdayTotal += e.Total()
		}
	}
	summary.GrowthRate = round2(growthRate(todayTotal, yesterdayTotal))
	summary.TotalBlockRewards = round2(summary.TotalBlockRewards)
	summary.TotalJobRewards = round2(summary.TotalJobRewards)
	summary.TotalRewards = round2(summary.TotalBlockRewards + summary.TotalJobRewards)
	return summary, nil
}

// GetEarningInfo returns the device's running totals, rounded.
func (s *EarningService) GetEarningInfo(ctx context.Context, deviceID string) (domain.EarningInfo, error) {
	if deviceID == "" {
		deviceID = s.identity.DeviceID()
	}

	info, err := retry.Do(ctx, s.policy, "earning_info", func(ctx context.Context) (domain.EarningInfo, error) {
		return s.earnings.Totals(ctx, deviceID, s.source())
	})
	if err != nil {
		return domain.EarningInfo{}, err
	}
	return roundInfo(info), nil
}

// round2 rounds a monetary amount to 2 decimal places.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func roundInfo(info domain.EarningInfo) domain.EarningInfo {
	info.TotalBlockRewards = round2(info.TotalBlockRewards)
	info.TotalJobRewards = round2(info.TotalJobRewards)
	return info
}

// startOfDayUTC truncates t to midnight UTC.
func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// growthRate reports the relative change from previous to current as a
// percentage. A zero previous value yields 100 when current is positive
// and 0 otherwise, avoiding division by zero.
func growthRate(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}
