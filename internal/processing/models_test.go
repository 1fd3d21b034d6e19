package processing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthflow/pkg/models"
)

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusFailed, StatusCompleted, false},
		{StatusFailed, StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestNewProcessedEvent(t *testing.T) {
	ev := &models.PatientEvent{
		ID:        "ev-1",
		PatientID: "p-1",
		EventType: models.EventTypeVitalSignsUpdated,
		Timestamp: time.Now().UTC(),
	}
	payload := models.RawPayload("opaque")

	rec := NewProcessedEvent(ev, payload)

	require.NotEmpty(t, rec.ID)
	assert.NotEqual(t, ev.ID, rec.ID)
	assert.Equal(t, "ev-1", rec.OriginalEventID)
	assert.Equal(t, "p-1", rec.PatientID)
	assert.Equal(t, models.EventTypeVitalSignsUpdated, rec.EventType)
	assert.Equal(t, StatusProcessing, rec.Status)
	assert.Equal(t, payload, rec.Payload)
	assert.Nil(t, rec.ProcessedAt)
	assert.False(t, rec.ReceivedAt.IsZero())
}

func TestNewProcessedEventDistinctIDs(t *testing.T) {
	ev := &models.PatientEvent{ID: "ev-1", PatientID: "p-1", EventType: "X", Timestamp: time.Now()}
	a := NewProcessedEvent(ev, models.RawPayload("x"))
	b := NewProcessedEvent(ev, models.RawPayload("x"))
	assert.NotEqual(t, a.ID, b.ID)
}
