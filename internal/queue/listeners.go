package queue

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/events"
)

// RegisterListeners registers event listeners that enqueue jobs
func RegisterListeners(bus *events.Bus, manager *Manager, log zerolog.Logger) {
	log = log.With().Str("component", "event_listeners").Logger()

	// ReconciliationFailed -> reconcile_retry (HIGH priority)
	// The transaction stays pending until a retry succeeds, so these
	// jobs carry generous retry budgets.
	bus.Subscribe(events.ReconciliationFailed, func(event *events.Event) {
		data, ok := reconciliationFailure(event)
		if !ok {
			log.Warn().Msg("ReconciliationFailed event without payload, skipping retry")
			return
		}
		job := &Job{
			ID:          fmt.Sprintf("%s-%s", JobTypeReconcileRetry, data.TradeOfferID),
			Type:        JobTypeReconcileRetry,
			Priority:    PriorityHigh,
			// Flat payload so it survives the msgpack persistence round-trip.
			Payload: map[string]interface{}{
				"trade_offer_id": data.TradeOfferID,
				"new_state":      data.NewState,
			},
			CreatedAt:   event.Timestamp,
			AvailableAt: event.Timestamp,
			Retries:     0,
			MaxRetries:  8,
		}
		if err := manager.Enqueue(job); err != nil {
			log.Error().
				Err(err).
				Str("event_type", string(events.ReconciliationFailed)).
				Str("job_type", string(JobTypeReconcileRetry)).
				Str("job_id", job.ID).
				Msg("Failed to enqueue job from event")
		}
	})

	// TransportStatusChanged (reconnect) -> stale_pending_sweep (MEDIUM priority)
	// State-change notifications missed while disconnected are caught by
	// an immediate sweep rather than waiting for the next cron run.
	bus.Subscribe(events.TransportStatusChanged, func(event *events.Event) {
		if !transportConnected(event) {
			return
		}
		job := &Job{
			ID:          fmt.Sprintf("%s-%d", JobTypeStalePendingSweep, event.Timestamp.UnixNano()),
			Type:        JobTypeStalePendingSweep,
			Priority:    PriorityMedium,
			Payload:     event.Data,
			CreatedAt:   event.Timestamp,
			AvailableAt: event.Timestamp,
			Retries:     0,
			MaxRetries:  1,
		}
		if err := manager.Enqueue(job); err != nil {
			log.Error().
				Err(err).
				Str("event_type", string(events.TransportStatusChanged)).
				Str("job_type", string(JobTypeStalePendingSweep)).
				Str("job_id", job.ID).
				Msg("Failed to enqueue job from event")
		}
	})
}

// transportConnected extracts the connected flag from a
// TransportStatusChanged event payload.
func transportConnected(event *events.Event) bool {
	payload, ok := event.Data["payload"]
	if !ok {
		return false
	}
	data, ok := payload.(*events.TransportStatusChangedData)
	return ok && data.Connected
}

// reconciliationFailure extracts the typed payload from a
// ReconciliationFailed event.
func reconciliationFailure(event *events.Event) (*events.ReconciliationFailedData, bool) {
	payload, ok := event.Data["payload"]
	if !ok {
		return nil, false
	}
	data, ok := payload.(*events.ReconciliationFailedData)
	return data, ok
}
