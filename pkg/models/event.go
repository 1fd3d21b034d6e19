package models

import (
	"encoding/json"
	"time"
)

// Event type tags carried in the "eventType" field of the wire envelope.
const (
	EventTypePatientCreated       = "PatientCreated"
	EventTypePatientUpdated       = "PatientUpdated"
	EventTypePatientStatusChanged = "PatientStatusChanged"
	EventTypePatientDeleted       = "PatientDeleted"
	EventTypeVitalSignsUpdated    = "VitalSignsUpdated"
	EventTypePatientCritical      = "PatientCritical"
)

// PatientEvent is the inbound wire envelope published by upstream services.
// Field names are lowerCamelCase on the wire. PatientID doubles as the
// routing and storage partition key and must be non-empty.
type PatientEvent struct {
	ID            string          `json:"id"`
	PatientID     string          `json:"patientId"`
	EventType     string          `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Version       string          `json:"version,omitempty"`
}

// ProcessedPatientEvent is the derived envelope republished downstream after
// a worker has handled the inbound event. It gets a fresh ID; the correlation
// lineage of the inbound event is preserved.
type ProcessedPatientEvent struct {
	ID            string            `json:"id"`
	PatientID     string            `json:"patientId"`
	EventType     string            `json:"eventType"`
	Timestamp     time.Time         `json:"timestamp"`
	Payload       NormalizedPayload `json:"payload"`
	Service       string            `json:"service"`
	CorrelationID string            `json:"correlationId,omitempty"`
}
