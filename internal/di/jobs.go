package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/clientdata"
	"github.com/skinflow/tradebot/internal/config"
	"github.com/skinflow/tradebot/internal/domain"
	"github.com/skinflow/tradebot/internal/queue"
	"github.com/skinflow/tradebot/internal/reliability"
	"github.com/skinflow/tradebot/internal/scheduler"
)

// JobInstances holds the background job instances so main can register
// them with the cron scheduler.
type JobInstances struct {
	StalePendingSweep   *scheduler.StalePendingSweepJob
	ClientDataCleanup   *clientdata.CleanupJob
	PriceHistoryCleanup *scheduler.PriceHistoryCleanupJob
	CheckCoreDatabases  *scheduler.CheckCoreDatabasesJob
	CheckWALCheckpoints *scheduler.CheckWALCheckpointsJob
	NightlyBackup       *reliability.NightlyBackupJob
	BackupRotation      *reliability.BackupRotationJob // nil without cloud backups
}

// RegisterJobs creates the background job instances and registers the
// queue handlers that execute them on demand.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{
		StalePendingSweep:   scheduler.NewStalePendingSweepJob(container.LedgerStore, container.EventManager, cfg.StalePendingAfter),
		ClientDataCleanup:   clientdata.NewCleanupJob(container.ClientDataRepo, log),
		PriceHistoryCleanup: scheduler.NewPriceHistoryCleanupJob(container.PriceHistory, container.PriceCache),
		CheckCoreDatabases:  scheduler.NewCheckCoreDatabasesJob(container.LedgerDB, container.CacheDB),
		CheckWALCheckpoints: scheduler.NewCheckWALCheckpointsJob(container.LedgerDB, container.CacheDB),
		NightlyBackup:       reliability.NewNightlyBackupJob(container.BackupService, container.CloudBackupService, container.EventManager, log),
	}
	if container.CloudBackupService != nil {
		jobs.BackupRotation = reliability.NewBackupRotationJob(container.CloudBackupService, cfg.BackupKeep, log)
	}

	m := container.QueueManager

	// Failed reconciliations re-enter through the queue with the offer id
	// and target state carried in the job payload.
	m.Register(queue.JobTypeReconcileRetry, func(ctx context.Context, job *queue.Job) error {
		tradeOfferID := payloadString(job.Payload, "trade_offer_id")
		newState := payloadString(job.Payload, "new_state")
		if tradeOfferID == "" || newState == "" {
			return fmt.Errorf("reconcile retry payload missing trade_offer_id or new_state")
		}
		return container.Reconciler.OnOfferStateChanged(ctx, tradeOfferID, domain.OfferState(newState))
	})

	// SetJob hands each run the queue job so progress lands on the event
	// bus (and the SSE stream) while the job executes.
	m.Register(queue.JobTypeStalePendingSweep, func(ctx context.Context, job *queue.Job) error {
		jobs.StalePendingSweep.SetJob(job)
		return jobs.StalePendingSweep.Run()
	})
	m.Register(queue.JobTypeClientDataCleanup, func(ctx context.Context, _ *queue.Job) error {
		return jobs.ClientDataCleanup.Run()
	})
	m.Register(queue.JobTypePriceHistoryCleanup, func(ctx context.Context, job *queue.Job) error {
		jobs.PriceHistoryCleanup.SetJob(job)
		return jobs.PriceHistoryCleanup.Run()
	})
	m.Register(queue.JobTypeWALCheckpoint, func(ctx context.Context, job *queue.Job) error {
		jobs.CheckWALCheckpoints.SetJob(job)
		return jobs.CheckWALCheckpoints.Run()
	})
	m.Register(queue.JobTypeNightlyBackup, func(ctx context.Context, job *queue.Job) error {
		jobs.NightlyBackup.SetJob(job)
		return jobs.NightlyBackup.Run()
	})
	if jobs.BackupRotation != nil {
		m.Register(queue.JobTypeBackupRotation, func(ctx context.Context, job *queue.Job) error {
			jobs.BackupRotation.SetJob(job)
			return jobs.BackupRotation.Run()
		})
	}

	return jobs, nil
}

// payloadString reads a string value from a job payload. Payloads that
// went through the msgpack persistence round-trip may carry []byte.
func payloadString(payload map[string]interface{}, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}
