// Package queue runs background jobs: reconciliation retries fed by bus
// events plus the maintenance jobs the cron scheduler enqueues. Retryable
// jobs are persisted to the cache database so they survive restarts.
package queue

import "time"

// JobType represents the type of job
type JobType string

const (
	JobTypeReconcileRetry      JobType = "reconcile_retry"
	JobTypeStalePendingSweep   JobType = "stale_pending_sweep"
	JobTypeClientDataCleanup   JobType = "client_data_cleanup"
	JobTypePriceHistoryCleanup JobType = "price_history_cleanup"
	JobTypeWALCheckpoint       JobType = "wal_checkpoint"
	JobTypeNightlyBackup       JobType = "nightly_backup"
	JobTypeBackupRotation      JobType = "backup_rotation"
)

// Priority represents job priority
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// Job represents a queued job
type Job struct {
	ID          string
	Type        JobType
	Priority    Priority
	Payload     map[string]interface{}
	CreatedAt   time.Time
	AvailableAt time.Time
	Retries     int
	MaxRetries  int

	// Progress reporting (injected by the manager before execution)
	progressReporter *ProgressReporter
}

// GetProgressReporter returns the progress reporter for this job.
// Returns interface{} to satisfy the scheduler/base.JobBase interface.
// Callers should type-assert to *ProgressReporter.
// Returns nil (not a nil-pointer interface) when no reporter is set.
func (j *Job) GetProgressReporter() interface{} {
	if j.progressReporter == nil {
		return nil
	}
	return j.progressReporter
}

// GetJobDescription returns a human-readable description for a job type
func GetJobDescription(jobType JobType) string {
	descriptions := map[JobType]string{
		JobTypeReconcileRetry:      "Retrying ledger reconciliation",
		JobTypeStalePendingSweep:   "Sweeping stale pending transactions",
		JobTypeClientDataCleanup:   "Cleaning up expired API cache",
		JobTypePriceHistoryCleanup: "Pruning old price history",
		JobTypeWALCheckpoint:       "Checkpointing database WAL",
		JobTypeNightlyBackup:       "Creating database backup",
		JobTypeBackupRotation:      "Rotating cloud backups",
	}

	if desc, exists := descriptions[jobType]; exists {
		return desc
	}

	// Fallback to job type string
	return string(jobType)
}
