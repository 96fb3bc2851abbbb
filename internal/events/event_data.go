package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all typed event payloads implement.
// It allows type-safe event data while keeping the bus itself generic.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// OfferReceivedData contains data for OfferReceived events
type OfferReceivedData struct {
	TradeOfferID  string `json:"trade_offer_id"`
	CounterpartID string `json:"counterpart_id"`
	ItemsGiven    int    `json:"items_given"`
	ItemsReceived int    `json:"items_received"`
}

// EventType returns the event type for OfferReceivedData
func (d *OfferReceivedData) EventType() EventType {
	return OfferReceived
}

// VerdictIssuedData contains data for VerdictIssued events
type VerdictIssuedData struct {
	TradeOfferID string `json:"trade_offer_id"`
	Intent       string `json:"intent"`
	Accepted     bool   `json:"accepted"`
	Reason       string `json:"reason,omitempty"`
}

// EventType returns the event type for VerdictIssuedData
func (d *VerdictIssuedData) EventType() EventType {
	return VerdictIssued
}

// OfferStateChangedData contains data for OfferStateChanged events
type OfferStateChangedData struct {
	TradeOfferID string `json:"trade_offer_id"`
	NewState     string `json:"new_state"`
}

// EventType returns the event type for OfferStateChangedData
func (d *OfferStateChangedData) EventType() EventType {
	return OfferStateChanged
}

// OfferSentData contains data for OfferSent events
type OfferSentData struct {
	TradeOfferID  string  `json:"trade_offer_id"`
	Kind          string  `json:"kind"`
	ItemName      string  `json:"item_name"`
	Price         float64 `json:"price"`
	TransactionID string  `json:"transaction_id"`
}

// EventType returns the event type for OfferSentData
func (d *OfferSentData) EventType() EventType {
	return OfferSent
}

// OfferSendFailedData contains data for OfferSendFailed events
type OfferSendFailedData struct {
	TransactionID string `json:"transaction_id"`
	ItemName      string `json:"item_name"`
	Error         string `json:"error"`
}

// EventType returns the event type for OfferSendFailedData
func (d *OfferSendFailedData) EventType() EventType {
	return OfferSendFailed
}

// TransactionCompletedData contains data for TransactionCompleted events
type TransactionCompletedData struct {
	TransactionID string  `json:"transaction_id"`
	TradeOfferID  string  `json:"trade_offer_id"`
	Kind          string  `json:"kind"`
	ItemName      string  `json:"item_name"`
	FinalAmount   float64 `json:"final_amount"`
}

// EventType returns the event type for TransactionCompletedData
func (d *TransactionCompletedData) EventType() EventType {
	return TransactionCompleted
}

// ReconciliationFailedData contains data for ReconciliationFailed events.
// A reconciliation failure leaves a pending transaction whose money or
// item state is ambiguous, so these events feed alerting and the retry queue.
type ReconciliationFailedData struct {
	TradeOfferID string `json:"trade_offer_id"`
	NewState     string `json:"new_state"`
	Error        string `json:"error"`
}

// EventType returns the event type for ReconciliationFailedData
func (d *ReconciliationFailedData) EventType() EventType {
	return ReconciliationFailed
}

// StalePendingDetectedData contains data for StalePendingDetected events
type StalePendingDetectedData struct {
	TransactionID string    `json:"transaction_id"`
	TradeOfferID  string    `json:"trade_offer_id"`
	Kind          string    `json:"kind"`
	CreatedAt     time.Time `json:"created_at"`
}

// EventType returns the event type for StalePendingDetectedData
func (d *StalePendingDetectedData) EventType() EventType {
	return StalePendingDetected
}

// PriceUpdatedData contains data for PriceUpdated events
type PriceUpdatedData struct {
	ItemKey string  `json:"item_key"`
	Price   float64 `json:"price"`
	Cached  bool    `json:"cached"`
}

// EventType returns the event type for PriceUpdatedData
func (d *PriceUpdatedData) EventType() EventType {
	return PriceUpdated
}

// TransportStatusChangedData contains data for TransportStatusChanged events
type TransportStatusChangedData struct {
	Connected bool   `json:"connected"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for TransportStatusChangedData
func (d *TransportStatusChangedData) EventType() EventType {
	return TransportStatusChanged
}

// SystemStatusChangedData contains data for SystemStatusChanged events
type SystemStatusChangedData struct {
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for SystemStatusChangedData
func (d *SystemStatusChangedData) EventType() EventType {
	return SystemStatusChanged
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	ArchiveKey string  `json:"archive_key"`
	SizeBytes  int64   `json:"size_bytes"`
	Duration   float64 `json:"duration_seconds"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// JobStatusData contains data for job lifecycle events
type JobStatusData struct {
	JobID       string                 `json:"job_id"`
	JobType     string                 `json:"job_type"`
	Status      string                 `json:"status"` // "started", "progress", "completed", "failed"
	Description string                 `json:"description"`
	Error       string                 `json:"error,omitempty"`
	Duration    float64                `json:"duration,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// EventType returns the event type for JobStatusData
// Note: The actual event type is determined by the Status field
func (d *JobStatusData) EventType() EventType {
	switch d.Status {
	case "started":
		return JobStarted
	case "progress":
		return JobProgress
	case "completed":
		return JobCompleted
	case "failed":
		return JobFailed
	default:
		return JobStarted
	}
}

// EventWithData represents an event with typed data
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for EventWithData
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for EventWithData
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) > 0 {
		var eventData EventData
		switch aux.Type {
		case OfferReceived:
			eventData = &OfferReceivedData{}
		case VerdictIssued:
			eventData = &VerdictIssuedData{}
		case OfferStateChanged:
			eventData = &OfferStateChangedData{}
		case OfferSent:
			eventData = &OfferSentData{}
		case OfferSendFailed:
			eventData = &OfferSendFailedData{}
		case TransactionCompleted:
			eventData = &TransactionCompletedData{}
		case ReconciliationFailed:
			eventData = &ReconciliationFailedData{}
		case StalePendingDetected:
			eventData = &StalePendingDetectedData{}
		case PriceUpdated:
			eventData = &PriceUpdatedData{}
		case TransportStatusChanged:
			eventData = &TransportStatusChangedData{}
		case SystemStatusChanged:
			eventData = &SystemStatusChangedData{}
		case BackupCompleted:
			eventData = &BackupCompletedData{}
		case ErrorOccurred:
			eventData = &ErrorEventData{}
		case JobStarted, JobProgress, JobCompleted, JobFailed:
			eventData = &JobStatusData{}
		default:
			// Unknown types fall back to a raw map
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			eventData = &GenericEventData{Type: aux.Type, Data: rawData}
		}

		if eventData != nil {
			if err := json.Unmarshal(aux.Data, eventData); err != nil {
				return err
			}
			e.Data = eventData
		}
	}

	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
