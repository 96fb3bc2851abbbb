package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/events"
	"github.com/skinflow/tradebot/internal/scheduler/base"
)

// NightlyBackupJob snapshots the databases locally and, when a cloud
// client is configured, uploads an archive.
type NightlyBackupJob struct {
	base.JobBase
	backupService *BackupService
	cloudService  *R2BackupService // nil when cloud backups are disabled
	eventManager  *events.Manager
	log           zerolog.Logger
}

// NewNightlyBackupJob creates a new nightly backup job. cloudService and
// eventManager may be nil.
func NewNightlyBackupJob(
	backupService *BackupService,
	cloudService *R2BackupService,
	eventManager *events.Manager,
	log zerolog.Logger,
) *NightlyBackupJob {
	return &NightlyBackupJob{
		backupService: backupService,
		cloudService:  cloudService,
		eventManager:  eventManager,
		log:           log.With().Str("job", "nightly_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *NightlyBackupJob) Name() string {
	return "nightly_backup"
}

// progressSink is the slice of the queue's progress reporter jobs call
// into. Declared here so jobs do not import the queue package.
type progressSink interface {
	ReportMessage(message string)
}

// Run executes the nightly backup job
func (j *NightlyBackupJob) Run() error {
	startTime := time.Now()
	reporter, _ := j.GetProgressReporter().(progressSink)

	if err := j.backupService.NightlyBackup(); err != nil {
		return err
	}
	if reporter != nil {
		reporter.ReportMessage("local snapshots complete")
	}

	archiveKey := "local-only"
	var sizeBytes int64
	if j.cloudService != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		key, size, err := j.cloudService.CreateAndUploadBackup(ctx)
		if err != nil {
			// The local snapshot succeeded; surface the upload failure.
			return err
		}
		archiveKey = key
		sizeBytes = size
		if reporter != nil {
			reporter.ReportMessage("archive uploaded: " + key)
		}
	}

	if j.eventManager != nil {
		j.eventManager.EmitTyped("reliability", &events.BackupCompletedData{
			ArchiveKey: archiveKey,
			SizeBytes:  sizeBytes,
			Duration:   time.Since(startTime).Seconds(),
		})
	}

	return nil
}

// BackupRotationJob prunes old cloud backups.
type BackupRotationJob struct {
	base.JobBase
	cloudService  *R2BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewBackupRotationJob creates a new rotation job.
func NewBackupRotationJob(cloudService *R2BackupService, retentionDays int, log zerolog.Logger) *BackupRotationJob {
	return &BackupRotationJob{
		cloudService:  cloudService,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "backup_rotation").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupRotationJob) Name() string {
	return "backup_rotation"
}

// Run executes the rotation job
func (j *BackupRotationJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return j.cloudService.RotateOldBackups(ctx, j.retentionDays)
}
