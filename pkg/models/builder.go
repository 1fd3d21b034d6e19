package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PatientEventBuilder struct {
	event *PatientEvent
}

func NewPatientEventBuilder() *PatientEventBuilder {
	return &PatientEventBuilder{
		event: &PatientEvent{
			ID:        uuid.NewString(),
			Timestamp: time.Now().UTC(),
			Version:   "1.0",
		},
	}
}

func (b *PatientEventBuilder) WithID(id string) *PatientEventBuilder {
	b.event.ID = id
	return b
}

func (b *PatientEventBuilder) WithPatientID(patientID string) *PatientEventBuilder {
	b.event.PatientID = patientID
	return b
}

func (b *PatientEventBuilder) WithEventType(eventType string) *PatientEventBuilder {
	b.event.EventType = eventType
	return b
}

func (b *PatientEventBuilder) WithTimestamp(timestamp time.Time) *PatientEventBuilder {
	b.event.Timestamp = timestamp
	return b
}

func (b *PatientEventBuilder) WithPayload(payload json.RawMessage) *PatientEventBuilder {
	b.event.Payload = payload
	return b
}

// WithPayloadValue marshals an arbitrary value into the payload field.
// Marshal errors leave the payload empty; Build validation does not require
// a payload, matching the wire contract where payload is opaque.
func (b *PatientEventBuilder) WithPayloadValue(v interface{}) *PatientEventBuilder {
	if raw, err := json.Marshal(v); err == nil {
		b.event.Payload = raw
	}
	return b
}

func (b *PatientEventBuilder) WithCorrelationID(correlationID string) *PatientEventBuilder {
	b.event.CorrelationID = correlationID
	return b
}

func (b *PatientEventBuilder) WithVersion(version string) *PatientEventBuilder {
	b.event.Version = version
	return b
}

func (b *PatientEventBuilder) Build() (*PatientEvent, error) {
	if err := ValidatePatientEvent(b.event); err != nil {
		return nil, err
	}
	return b.event, nil
}
