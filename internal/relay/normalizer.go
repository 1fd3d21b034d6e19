package relay

import (
	"bytes"
	"encoding/json"

	"healthflow/pkg/models"
)

// Normalize coerces the opaque payload of an inbound event into exactly one
// arm of the NormalizedPayload union. It never fails: payloads that cannot
// be promoted to the typed patient shape degrade to an opaque string or
// pass-through classification instead of erroring the pipeline.
//
// Classification rules:
//   - a JSON object matching the patient record schema -> Patient
//   - a JSON string whose content is patient-record JSON -> Patient
//   - any other JSON string -> Raw (opaque string)
//   - any other well-formed JSON -> Unknown (pass-through)
//   - bytes that are not JSON at all -> Raw
func Normalize(raw json.RawMessage) models.NormalizedPayload {
	if len(raw) == 0 {
		return models.UnknownPayload(nil)
	}

	if rec, ok := decodePatientRecord(raw); ok {
		return models.PatientPayload(rec)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if rec, ok := decodePatientRecord([]byte(s)); ok {
			return models.PatientPayload(rec)
		}
		return models.RawPayload(s)
	}

	if json.Valid(raw) {
		return models.UnknownPayload(raw)
	}

	return models.RawPayload(string(raw))
}

// decodePatientRecord attempts a strict decode into the typed patient shape.
// Unknown fields disqualify the payload so arbitrary objects are not
// mistaken for patient records; a record without an ID is not a record.
func decodePatientRecord(raw []byte) (*models.PatientRecord, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var rec models.PatientRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, false
	}

	if rec.ID == "" {
		return nil, false
	}

	return &rec, true
}
