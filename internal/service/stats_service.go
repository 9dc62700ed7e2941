package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sparkmesh/miner-agent/internal/aggregate"
	"github.com/sparkmesh/miner-agent/internal/config"
	"github.com/sparkmesh/miner-agent/internal/device"
	"github.com/sparkmesh/miner-agent/internal/domain"
	"github.com/sparkmesh/miner-agent/internal/platform/logger"
	"github.com/sparkmesh/miner-agent/internal/retry"
	"github.com/sparkmesh/miner-agent/internal/store"
)

// ActivityView selects whether task activity is reported per month of a
// year or per day of a month.
type ActivityView string

// Possible activity view values
const (
	ViewMonth ActivityView = "Month"
	ViewYear  ActivityView = "Year"
)

// SummaryOptions filters a dashboard summary. Zero values resolve to the
// defaults: daily request serials, the current year/month, Month view.
type SummaryOptions struct {
	Period domain.Period `json:"period"`
	Year   string        `json:"year"`
	Month  string        `json:"month"`
	View   ActivityView  `json:"view"`
}

// StatsService composes the task and earning reads into the single
// dashboard summary. Individual fetch failures degrade to empty or zero
// values instead of failing the whole summary.
type StatsService struct {
	tasks    store.TaskStore
	earnings store.EarningStore
	identity device.Identity
	policy   retry.Policy
	logger   *slog.Logger
}

// NewStatsService creates a new StatsService.
// It returns an error if any of the required dependencies are nil.
func NewStatsService(
	tasks store.TaskStore,
	earnings store.EarningStore,
	identity device.Identity,
	cfg config.MinerConfig,
	logger *slog.Logger,
) (*StatsService, error) {
	if tasks == nil {
		return nil, errors.New("tasks cannot be nil")
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

	return &StatsService{
		tasks:    tasks,
		earnings: earnings,
		identity: identity,
		policy:   retryPolicy(cfg),
		logger:   logger.With(slog.String("component", "stats_service")),
	}, nil
}

// GetSummary recomputes the dashboard summary from the latest committed
// task and earning rows. The independent reads fan out concurrently with
// no ordering guarantee among them; the caller only joins on completion.
func (s *StatsService) GetSummary(ctx context.Context, opts SummaryOptions) (*domain.Summary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	period := opts.Period
	if !period.IsValid() {
		period = domain.PeriodDaily
	}
	view := opts.View
	if view != ViewYear {
		view = ViewMonth
	}
	now := time.Now().UTC()
	year := parseYear(opts.Year, now.Year())
	month := parseMonth(opts.Month, now.Month())

	deviceID := s.identity.DeviceID()
	source := domain.SourceForRegistration(s.identity.Registered())

	summary := &domain.Summary{
		DeviceInfo: domain.DeviceInfo{
			DeviceID:   deviceID,
			Registered: s.identity.Registered(),
		},
	}

	// Each fetch records its failure and leaves its field zero-valued; the
	// group error stays nil so one bad read cannot sink the summary.
	degrade := func(field string, err error) {
		log.Warn("summary field degraded to zero value",
			slog.String("field", field),
			slog.String("error", err.Error()))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		info, err := retry.Do(gctx, s.policy, "summary_earning_info", func(ctx context.Context) (domain.EarningInfo, error) {
			return s.earnings.Totals(ctx, deviceID, source)
		})
		if err != nil {
			degrade("earning_info", err)
			return nil
		}
		summary.EarningInfo = roundInfo(info)
		return nil
	})

	g.Go(func() error {
		uptime, err := retry.Do(gctx, s.policy, "summary_uptime", func(ctx context.Context) (float64, error) {
			return s.tasks.UptimePercentage(ctx, deviceID, source)
		})
		if err != nil {
			degrade("uptime_percentage", err)
			return nil
		}
		summary.Statistics.UptimePercentage = uptime
		return nil
	})

	g.Go(func() error {
		history, err := retry.Do(gctx, s.policy, "summary_earning_serials", func(ctx context.Context) ([]domain.DailyEarning, error) {
			return s.earnings.History(ctx, deviceID, source, 30)
		})
		if err != nil {
			degrade("earning_serials", err)
			summary.Statistics.EarningSerials = []domain.DailyEarning{}
			return nil
		}
		summary.Statistics.EarningSerials = history
		summary.Statistics.EarningTrend = earningTrend(history)
		return nil
	})

	g.Go(func() error {
		serials, err := retry.Do(gctx, s.policy, "summary_request_serials", func(ctx context.Context) ([]domain.SeriesPoint, error) {
			return s.tasks.RequestSeries(ctx, deviceID, source, period)
		})
		if err != nil {
			degrade("request_serials", err)
			summary.Statistics.RequestSerials = []domain.SeriesPoint{}
			return nil
		}
		summary.Statistics.RequestSerials = serials
		return nil
	})

	g.Go(func() error {
		var activity []domain.ActivityPoint
		var err error
		if view == ViewYear {
			activity, err = retry.Do(gctx, s.policy, "summary_task_activity", func(ctx context.Context) ([]domain.ActivityPoint, error) {
				return s.tasks.MonthlyActivity(ctx, year, deviceID, source)
			})
		} else {
			activity, err = retry.Do(gctx, s.policy, "summary_task_activity", func(ctx context.Context) ([]domain.ActivityPoint, error) {
				return s.tasks.DailyActivity(ctx, month, deviceID, source)
			})
		}
		if err != nil {
			degrade("task_activity", err)
			summary.Statistics.TaskActivity = []domain.ActivityPoint{}
			return nil
		}
		summary.Statistics.TaskActivity = activity
		return nil
	})

	// Fan-out goroutines always return nil; Wait only joins.
	_ = g.Wait()

	return summary, nil
}

// earningTrend classifies the direction of an earnings history series
// using the recent-3-versus-previous-3 detector.
func earningTrend(history []domain.DailyEarning) domain.Trend {
	values := make([]float64, len(history))
	for i, h := range history {
		values[i] = h.DailyEarning
	}
	return aggregate.RecentTrend(values)
}

// parseYear resolves a numeric year string, falling back to the current
// year on unparseable input.
func parseYear(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	year, err := strconv.Atoi(s)
	if err != nil || year <= 0 {
		return fallback
	}
	return year
}

// parseMonth resolves either a 3-letter month name (Jan..Dec) or a numeric
// string (1..12), falling back to the current month on unparseable input.
func parseMonth(s string, fallback time.Month) time.Month {
	if s == "" {
		return fallback
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n)
		}
		return fallback
	}

	prefix := strings.ToLower(s)
	if len(prefix) >= 3 {
		prefix = prefix[:3]
		for m := time.January; m <= time.December; m++ {
			if strings.ToLower(m.String()[:3]) == prefix {
				return m
			}
		}
	}
	return fallback
}
