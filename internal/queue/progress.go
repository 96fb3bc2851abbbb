package queue

import (
	"time"

	"github.com/skinflow/tradebot/internal/events"
)

// ProgressReporter allows jobs to report progress during execution.
type ProgressReporter struct {
	eventManager *events.Manager
	jobID        string
	jobType      JobType
	lastReport   time.Time
	minInterval  time.Duration // Minimum interval between progress reports
}

// NewProgressReporter creates a new progress reporter with throttling.
// Default throttle is 100ms (10 updates/sec max) for real-time feel.
func NewProgressReporter(em *events.Manager, jobID string, jobType JobType) *ProgressReporter {
	return &ProgressReporter{
		eventManager: em,
		jobID:        jobID,
		jobType:      jobType,
		minInterval:  100 * time.Millisecond,
	}
}

// Report emits a progress event (throttled to prevent flooding).
// 100% completion always bypasses the throttle.
func (pr *ProgressReporter) Report(current, total int, message string) {
	if pr.eventManager == nil {
		return
	}

	// Throttle: only report if enough time has passed OR if we're at 100%
	now := time.Now()
	if now.Sub(pr.lastReport) < pr.minInterval && current != total {
		return
	}
	pr.lastReport = now

	pr.emit(map[string]interface{}{
		"current": current,
		"total":   total,
		"message": message,
	}, now)
}

// ReportMessage emits a progress message without count (for indeterminate progress)
func (pr *ProgressReporter) ReportMessage(message string) {
	if pr.eventManager == nil {
		return
	}

	now := time.Now()
	if now.Sub(pr.lastReport) < pr.minInterval {
		return
	}
	pr.lastReport = now

	pr.emit(map[string]interface{}{"message": message}, now)
}

// ReportUnthrottled emits a progress event that always bypasses the throttle.
// Use this for critical milestones or important state changes.
func (pr *ProgressReporter) ReportUnthrottled(current, total int, message string) {
	if pr.eventManager == nil {
		return
	}

	now := time.Now()
	pr.lastReport = now // Update lastReport to maintain throttle state

	pr.emit(map[string]interface{}{
		"current": current,
		"total":   total,
		"message": message,
	}, now)
}

func (pr *ProgressReporter) emit(metadata map[string]interface{}, now time.Time) {
	pr.eventManager.EmitTyped("queue", &events.JobStatusData{
		JobID:       pr.jobID,
		JobType:     string(pr.jobType),
		Status:      "progress",
		Description: GetJobDescription(pr.jobType),
		Metadata:    metadata,
		Timestamp:   now,
	})
}
