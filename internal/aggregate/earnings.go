package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/sparkmesh/miner-agent/internal/device"
	"github.com/sparkmesh/miner-agent/internal/domain"
)

// EarningReader is the slice of the Earnings Manager the rollups depend on.
type EarningReader interface {
	GetDeviceEarnings(ctx context.Context, deviceID string, limit int) ([]*domain.Earning, error)
}

// EarningTotals is the rolled-up view of an earning collection.
type EarningTotals struct {
	BlockRewards float64 `json:"block_rewards"`
	JobRewards   float64 `json:"job_rewards"`
	TotalRewards float64 `json:"total_rewards"`
	Count        int     `json:"count"`
}

// EarningsAggregator computes read-side rollups over the current device's
// full earning collection.
type EarningsAggregator struct {
	earnings EarningReader
	identity device.Identity
	logger   *slog.Logger
}

// NewEarningsAggregator creates a new EarningsAggregator.
func NewEarningsAggregator(earnings EarningReader, identity device.Identity, logger *slog.Logger) (*EarningsAggregator, error) {
	if earnings == nil {
		return nil, errors.New("earnings cannot be nil")
	}
	if identity == nil {
		return nil, errors.New("identity cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EarningsAggregator{
		earnings: earnings,
		identity: identity,
		logger:   logger.With(slog.String("component", "earnings_aggregator")),
	}, nil
}

// EarningsAggregation returns block/job/total sums and the row count over
// the device's whole ledger.
func (a *EarningsAggregator) EarningsAggregation(ctx context.Context) (*EarningTotals, error) {
	earnings, err := a.earnings.GetDeviceEarnings(ctx, a.identity.DeviceID(), 0)
	if err != nil {
		return nil, err
	}
	return sumEarnings(earnings), nil
}

// EarningsByPeriod returns the sums over earnings created at or after the
// period's start.
func (a *EarningsAggregator) EarningsByPeriod(ctx context.Context, period RangePeriod) (*EarningTotals, error) {
	earnings, err := a.earnings.GetDeviceEarnings(ctx, a.identity.DeviceID(), 0)
	if err != nil {
		return nil, err
	}

	start := period.Start(time.Now())
	filtered := make([]*domain.Earning, 0, len(earnings))
	for _, e := range earnings {
		if !e.CreatedAt.Before(start) {
			filtered = append(filtered, e)
		}
	}
	return sumEarnings(filtered), nil
}

// TodayEarnings returns the sums over earnings created since midnight.
func (a *EarningsAggregator) TodayEarnings(ctx context.Context) (*EarningTotals, error) {
	return a.EarningsByPeriod(ctx, RangeToday)
}

// EarningsTrend classifies the direction of the device's daily earnings
// over the last days calendar days.
func (a *EarningsAggregator) EarningsTrend(ctx context.Context, days int) (domain.Trend, error) {
	if days <= 0 {
		days = 7
	}

	earnings, err := a.earnings.GetDeviceEarnings(ctx, a.identity.DeviceID(), 0)
	if err != nil {
		return domain.TrendStable, err
	}

	values := DailyAmountSeries(earnings, time.Now().UTC(), days)
	return HalvesTrend(values), nil
}

// DailyAmountSeries folds earning amounts into the last days calendar days
// ending today, zero-filling every bucket before accumulating rows.
func DailyAmountSeries(earnings []*domain.Earning, now time.Time, days int) []float64 {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -(days - 1))

	values := make([]float64, days)
	for _, e := range earnings {
		created := e.CreatedAt.UTC()
		day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
		idx := int(day.Sub(start) / (24 * time.Hour))
		if idx >= 0 && idx < days {
			values[idx] += e.Total()
		}
	}
	return values
}

// sumEarnings rolls an earning collection up into its sums, rounded to 2
// decimal places.
func sumEarnings(earnings []*domain.Earning) *EarningTotals {
	totals := &EarningTotals{Count: len(earnings)}
	for _, e := range earnings {
		totals.BlockRewards += e.BlockRewards
		totals.JobRewards += e.JobRewards
	}
	totals.BlockRewards = math.Round(totals.BlockRewards*100) / 100
	totals.JobRewards = math.Round(totals.JobRewards*100) / 100
	totals.TotalRewards = math.Round((totals.BlockRewards+totals.JobRewards)*100) / 100
	return totals
}
