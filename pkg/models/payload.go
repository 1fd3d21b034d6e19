package models

import (
	"encoding/json"
	"time"
)

// PayloadKind discriminates the normalized payload union.
type PayloadKind string

const (
	PayloadKindPatient PayloadKind = "patient"
	PayloadKindRaw     PayloadKind = "raw"
	PayloadKindUnknown PayloadKind = "unknown"
)

// PatientRecord is the typed payload shape for patient lifecycle events.
type PatientRecord struct {
	ID                  string    `json:"id" bson:"id"`
	FirstName           string    `json:"firstName" bson:"firstName"`
	LastName            string    `json:"lastName" bson:"lastName"`
	MedicalRecordNumber string    `json:"medicalRecordNumber,omitempty" bson:"medicalRecordNumber,omitempty"`
	Status              string    `json:"status,omitempty" bson:"status,omitempty"`
	DateOfBirth         time.Time `json:"dateOfBirth,omitempty" bson:"dateOfBirth,omitempty"`
	Age                 int       `json:"age,omitempty" bson:"age,omitempty"`
	CreatedAt           time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
}

// NormalizedPayload is the result of coercing an opaque inbound payload into
// exactly one of three shapes: a typed patient record, an unparseable raw
// string, or pass-through JSON that is well formed but does not match the
// patient schema. Exactly one value field is set, per Kind.
type NormalizedPayload struct {
	Kind    PayloadKind     `json:"kind" bson:"kind"`
	Patient *PatientRecord  `json:"patient,omitempty" bson:"patient,omitempty"`
	Raw     string          `json:"raw,omitempty" bson:"raw,omitempty"`
	Unknown json.RawMessage `json:"unknown,omitempty" bson:"unknown,omitempty"`
}

func PatientPayload(rec *PatientRecord) NormalizedPayload {
	return NormalizedPayload{Kind: PayloadKindPatient, Patient: rec}
}

func RawPayload(s string) NormalizedPayload {
	return NormalizedPayload{Kind: PayloadKindRaw, Raw: s}
}

func UnknownPayload(raw json.RawMessage) NormalizedPayload {
	return NormalizedPayload{Kind: PayloadKindUnknown, Unknown: raw}
}

// Value returns the underlying payload value for logging and display.
func (p NormalizedPayload) Value() interface{} {
	switch p.Kind {
	case PayloadKindPatient:
		return p.Patient
	case PayloadKindRaw:
		return p.Raw
	default:
		return p.Unknown
	}
}
