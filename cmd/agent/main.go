// Command agent runs the compute-node mining ledger: it owns the local
// task/earning store, serves the managers the API layer calls into, and
// keeps the stale-task reaper running.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/sparkmesh/miner-agent/internal/config"
	"github.com/sparkmesh/miner-agent/internal/device"
	"github.com/sparkmesh/miner-agent/internal/platform/logger"
	"github.com/sparkmesh/miner-agent/internal/platform/sqlstore"
	"github.com/sparkmesh/miner-agent/internal/reaper"
	"github.com/sparkmesh/miner-agent/internal/service"
	"github.com/sparkmesh/miner-agent/internal/store"
	"github.com/sparkmesh/miner-agent/migrations"
)

func main() {
	if err := run(); err != nil {
		slog.Error("agent exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Logging)

	db, err := openDatabase(cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", slog.String("error", err.Error()))
		}
	}()

	if err := runMigrations(db, cfg.Database.Driver, log); err != nil {
		return err
	}

	identity := device.StaticIdentity{
		ID:           cfg.Miner.DeviceID,
		IsRegistered: cfg.Miner.Registered,
	}

	txm := store.NewTxManager(db)
	taskStore := sqlstore.NewTaskStore(db, log)
	earningStore := sqlstore.NewEarningStore(db, log)

	taskService, err := service.NewTaskService(txm, taskStore, identity, cfg.Miner, log)
	if err != nil {
		return fmt.Errorf("failed to create task service: %w", err)
	}
	earningService, err := service.NewEarningService(txm, earningStore, identity, cfg.Miner, log)
	if err != nil {
		return fmt.Errorf("failed to create earning service: %w", err)
	}
	statsService, err := service.NewStatsService(taskStore, earningStore, identity, cfg.Miner, log)
	if err != nil {
		return fmt.Errorf("failed to create stats service: %w", err)
	}

	sweep := reaper.New(taskService, reaper.Config{Interval: cfg.Miner.ReapInterval}, log)
	sweep.Start()
	defer sweep.Stop()

	statusCtx, stopStatus := context.WithCancel(context.Background())
	defer stopStatus()
	go statusLoop(statusCtx, statsService, earningService, log)

	log.Info("miner agent started",
		slog.String("device_id", cfg.Miner.DeviceID),
		slog.Bool("registered", cfg.Miner.Registered),
		slog.String("database_driver", cfg.Database.Driver))

	// Block until asked to shut down.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info("shutting down", slog.String("signal", sig.String()))
	return nil
}

// statusLoop periodically logs a dashboard snapshot so operators can read
// the node's ledger state straight from the agent log.
func statusLoop(ctx context.Context, stats *service.StatsService, earnings *service.EarningService, log *slog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := stats.GetSummary(ctx, service.SummaryOptions{})
			if err != nil {
				log.Error("failed to compute status summary", slog.String("error", err.Error()))
				continue
			}
			ledger, err := earnings.GetEarningsSummary(ctx, "")
			if err != nil {
				log.Error("failed to compute earnings summary", slog.String("error", err.Error()))
				continue
			}

			log.Info("ledger status",
				slog.Float64("uptime_percentage", summary.Statistics.UptimePercentage),
				slog.Float64("total_block_rewards", summary.EarningInfo.TotalBlockRewards),
				slog.Float64("total_job_rewards", summary.EarningInfo.TotalJobRewards),
				slog.String("earning_trend", string(summary.Statistics.EarningTrend)),
				slog.Float64("earnings_growth_rate", ledger.GrowthRate),
				slog.Int("earning_count", ledger.Count))
		}
	}
}

// openDatabase opens and pings the configured backend: a PostgreSQL
// server via pgx or the embedded SQLite engine.
func openDatabase(cfg config.DatabaseConfig, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connection established", slog.String("driver", cfg.Driver))
	return db, nil
}

// runMigrations applies the embedded goose migrations for the configured
// backend dialect.
func runMigrations(db *sql.DB, driver string, log *slog.Logger) error {
	dialect := "postgres"
	if driver == "sqlite3" {
		dialect = "sqlite3"
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("database migrations applied")
	return nil
}
