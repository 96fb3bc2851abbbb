package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWithData_RoundTripTypedPayload(t *testing.T) {
	event := &EventWithData{
		Type:      VerdictIssued,
		Timestamp: time.Now().UTC(),
		Module:    "offers",
		Data: &VerdictIssuedData{
			TradeOfferID: "offer-42",
			Intent:       "buy",
			Accepted:     true,
		},
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded EventWithData
	require.NoError(t, json.Unmarshal(raw, &decoded))

	verdict, ok := decoded.Data.(*VerdictIssuedData)
	require.True(t, ok, "expected typed payload, got %T", decoded.Data)
	assert.Equal(t, "offer-42", verdict.TradeOfferID)
	assert.True(t, verdict.Accepted)
}

func TestEventWithData_UnknownTypeFallsBackToGeneric(t *testing.T) {
	raw := []byte(`{"type":"something_new","module":"x","timestamp":"2026-01-01T00:00:00Z","data":{"k":"v"}}`)

	var decoded EventWithData
	require.NoError(t, json.Unmarshal(raw, &decoded))

	generic, ok := decoded.Data.(*GenericEventData)
	require.True(t, ok)
	assert.Equal(t, "v", generic.Data["k"])
}

func TestJobStatusData_EventTypeFollowsStatus(t *testing.T) {
	testCases := []struct {
		status   string
		expected EventType
	}{
		{"started", JobStarted},
		{"progress", JobProgress},
		{"completed", JobCompleted},
		{"failed", JobFailed},
		{"bogus", JobStarted},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			data := &JobStatusData{Status: tc.status}
			assert.Equal(t, tc.expected, data.EventType())
		})
	}
}

func TestReconciliationFailedData_Type(t *testing.T) {
	data := &ReconciliationFailedData{TradeOfferID: "offer-9", Error: "db down"}
	assert.Equal(t, ReconciliationFailed, data.EventType())
}
