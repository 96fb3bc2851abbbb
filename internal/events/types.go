// Package events provides the in-process event bus used to decouple the
// transport layer, the reconciliation engine and observers (SSE, job queue).
package events

import "time"

// EventType identifies a kind of event on the bus
type EventType string

const (
	// Offer lifecycle
	OfferReceived     EventType = "offer_received"
	VerdictIssued     EventType = "verdict_issued"
	OfferStateChanged EventType = "offer_state_changed"
	OfferSent         EventType = "offer_sent"
	OfferSendFailed   EventType = "offer_send_failed"

	// Ledger
	TransactionCompleted EventType = "transaction_completed"
	ReconciliationFailed EventType = "reconciliation_failed"
	StalePendingDetected EventType = "stale_pending_detected"

	// Pricing
	PriceUpdated EventType = "price_updated"

	// System
	TransportStatusChanged EventType = "transport_status_changed"
	SystemStatusChanged    EventType = "system_status_changed"
	BackupCompleted        EventType = "backup_completed"
	ErrorOccurred          EventType = "error_occurred"

	// Background jobs
	JobStarted   EventType = "job_started"
	JobProgress  EventType = "job_progress"
	JobCompleted EventType = "job_completed"
	JobFailed    EventType = "job_failed"
)

// AllEventTypes lists every event type, used by the SSE stream to
// subscribe without a filter.
func AllEventTypes() []EventType {
	return []EventType{
		OfferReceived,
		VerdictIssued,
		OfferStateChanged,
		OfferSent,
		OfferSendFailed,
		TransactionCompleted,
		ReconciliationFailed,
		StalePendingDetected,
		PriceUpdated,
		TransportStatusChanged,
		SystemStatusChanged,
		BackupCompleted,
		ErrorOccurred,
		JobStarted,
		JobProgress,
		JobCompleted,
		JobFailed,
	}
}

// Event is a single occurrence published on the bus
type Event struct {
	Type      EventType              `json:"type"`
	Module    string                 `json:"module"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
