package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidatePatientEvent checks the invariants the pipeline depends on. The
// patient ID is the routing and partition key and must never be empty.
func ValidatePatientEvent(ev *PatientEvent) error {
	if ev == nil {
		return &ValidationError{
			Field:   "event",
			Message: "patient event cannot be nil",
		}
	}

	if ev.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "event ID is required",
		}
	}

	if ev.PatientID == "" {
		return &ValidationError{
			Field:   "patientId",
			Message: "patient ID is required",
		}
	}

	if ev.EventType == "" {
		return &ValidationError{
			Field:   "eventType",
			Message: "event type is required",
		}
	}

	if ev.Timestamp.IsZero() {
		return &ValidationError{
			Field:   "timestamp",
			Message: "event timestamp is required",
		}
	}

	return nil
}
