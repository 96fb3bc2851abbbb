// Package main is the entry point for the trade offer reconciliation engine.
// The engine listens to trade offer notifications, prices and accepts or
// declines incoming offers, and reconciles offer outcomes against the ledger.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skinflow/tradebot/internal/config"
	"github.com/skinflow/tradebot/internal/di"
	"github.com/skinflow/tradebot/internal/queue"
	"github.com/skinflow/tradebot/internal/scheduler"
	"github.com/skinflow/tradebot/internal/server"
	"github.com/skinflow/tradebot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Bool("dev_mode", cfg.DevMode).
		Msg("Starting trade engine")

	// Wire all dependencies
	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.CloseDatabases()

	// Background job queue: restore persisted retries and react to events
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := container.QueueManager.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job queue")
	}
	queue.RegisterListeners(container.EventBus, container.QueueManager, log)

	// Cron scheduler for periodic maintenance
	sched := scheduler.New(log)
	cronJobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{"0 */30 * * * *", jobs.StalePendingSweep},   // every 30 minutes
		{"0 15 * * * *", jobs.ClientDataCleanup},     // hourly at :15
		{"0 45 3 * * *", jobs.PriceHistoryCleanup},   // daily at 03:45
		{"0 0 4 * * 0", jobs.CheckCoreDatabases},     // weekly, Sunday 04:00
		{"0 30 * * * *", jobs.CheckWALCheckpoints},   // hourly at :30
		{"0 0 3 * * *", jobs.NightlyBackup},          // daily at 03:00
	}
	if jobs.BackupRotation != nil {
		cronJobs = append(cronJobs, struct {
			schedule string
			job      scheduler.Job
		}{"0 30 4 * * *", jobs.BackupRotation}) // daily at 04:30
	}
	for _, cj := range cronJobs {
		if err := sched.AddJob(cj.schedule, cj.job); err != nil {
			log.Fatal().Err(err).Str("job", cj.job.Name()).Msg("Failed to schedule job")
		}
	}
	sched.Start()

	// HTTP server. Assigning a nil *NotificationStream directly would
	// produce a non-nil interface, so the field is only set when the
	// stream exists.
	srvCfg := server.Config{
		Log:       log,
		LedgerDB:  container.LedgerDB,
		CacheDB:   container.CacheDB,
		Config:    cfg,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Container: container,
	}
	if container.NotificationStream != nil {
		srvCfg.Transport = container.NotificationStream
	}
	srv := server.New(srvCfg)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Notification stream (optional in receive-only local setups)
	if container.NotificationStream != nil {
		if err := container.NotificationStream.Start(); err != nil {
			log.Error().Err(err).Msg("Notification stream failed to start, relying on reconnect loop")
		}
	} else {
		log.Warn().Msg("No transport WS URL configured, notification stream disabled")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	// Graceful shutdown: stop intake first, then drain, then the server.
	if container.NotificationStream != nil {
		if err := container.NotificationStream.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop notification stream")
		}
	}
	cancel()
	sched.Stop()
	container.QueueManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
