package scheduler

import "github.com/skinflow/tradebot/internal/scheduler/base"

// JobBase re-exports base.JobBase so jobs in this package can embed it
// directly for progress reporting support.
type JobBase = base.JobBase

// progressSink is the slice of the queue's progress reporter jobs call
// into. Declared here so jobs do not import the queue package.
type progressSink interface {
	Report(current, total int, message string)
	ReportMessage(message string)
}
