package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatientEventWireFormat(t *testing.T) {
	ev := PatientEvent{
		ID:            "ev-1",
		PatientID:     "p-1",
		EventType:     EventTypePatientCreated,
		Timestamp:     time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		Payload:       json.RawMessage(`{"firstName":"Ada"}`),
		CorrelationID: "corr-1",
		Version:       "1.0",
	}

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &wire))

	// Wire field names are lowerCamelCase.
	assert.Contains(t, wire, "patientId")
	assert.Contains(t, wire, "eventType")
	assert.Contains(t, wire, "correlationId")
	assert.NotContains(t, wire, "PatientID")
}

func TestPatientEventOptionalFieldsOmitted(t *testing.T) {
	ev := PatientEvent{
		ID:        "ev-1",
		PatientID: "p-1",
		EventType: EventTypePatientUpdated,
		Timestamp: time.Now().UTC(),
	}

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.NotContains(t, wire, "correlationId")
	assert.NotContains(t, wire, "version")
}

func TestValidatePatientEvent(t *testing.T) {
	valid := PatientEvent{
		ID:        "ev-1",
		PatientID: "p-1",
		EventType: EventTypePatientCreated,
		Timestamp: time.Now().UTC(),
	}
	assert.NoError(t, ValidatePatientEvent(&valid))

	tests := []struct {
		name   string
		mutate func(*PatientEvent)
		field  string
	}{
		{"nil event", nil, "event"},
		{"empty id", func(ev *PatientEvent) { ev.ID = "" }, "id"},
		{"empty patient id", func(ev *PatientEvent) { ev.PatientID = "" }, "patientId"},
		{"empty event type", func(ev *PatientEvent) { ev.EventType = "" }, "eventType"},
		{"zero timestamp", func(ev *PatientEvent) { ev.Timestamp = time.Time{} }, "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.mutate == nil {
				err = ValidatePatientEvent(nil)
			} else {
				ev := valid
				tt.mutate(&ev)
				err = ValidatePatientEvent(&ev)
			}
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestBuilderDefaults(t *testing.T) {
	ev, err := NewPatientEventBuilder().
		WithPatientID("p-1").
		WithEventType(EventTypePatientCritical).
		Build()
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "1.0", ev.Version)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestBuilderPayloadValue(t *testing.T) {
	rec := PatientRecord{ID: "p-1", FirstName: "Ada", LastName: "Lovelace"}
	ev, err := NewPatientEventBuilder().
		WithPatientID("p-1").
		WithEventType(EventTypePatientCreated).
		WithPayloadValue(rec).
		Build()
	require.NoError(t, err)

	var decoded PatientRecord
	require.NoError(t, json.Unmarshal(ev.Payload, &decoded))
	assert.Equal(t, rec, decoded)
}

func TestBuilderRejectsIncompleteEvent(t *testing.T) {
	_, err := NewPatientEventBuilder().WithEventType(EventTypePatientCreated).Build()
	assert.Error(t, err)
}

func TestNormalizedPayloadValue(t *testing.T) {
	rec := &PatientRecord{ID: "p-1"}
	assert.Equal(t, rec, PatientPayload(rec).Value())
	assert.Equal(t, "opaque", RawPayload("opaque").Value())
	assert.Equal(t, json.RawMessage(`[1]`), UnknownPayload(json.RawMessage(`[1]`)).Value())
}
