package processing

import (
	"time"

	"github.com/google/uuid"

	"healthflow/pkg/models"
)

// Status of a processing record. Transitions only move forward:
// Pending -> Processing -> Completed or Failed.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCompleted || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// ProcessedEvent is the per-event audit record. PatientID is the partition
// key and is immutable after creation; the worker pool is the only writer.
type ProcessedEvent struct {
	ID              string                   `bson:"_id" json:"id"`
	OriginalEventID string                   `bson:"originalEventId" json:"originalEventId"`
	PatientID       string                   `bson:"patientId" json:"patientId"`
	EventType       string                   `bson:"eventType" json:"eventType"`
	ReceivedAt      time.Time                `bson:"receivedAt" json:"receivedAt"`
	ProcessedAt     *time.Time               `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	Status          Status                   `bson:"status" json:"status"`
	Payload         models.NormalizedPayload `bson:"payload" json:"payload"`
	ErrorMessage    string                   `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	RetryCount      int                      `bson:"retryCount" json:"retryCount"`
}

// NewProcessedEvent builds the record a worker persists when it picks an
// event up. The record starts at Processing: creation marks the start of
// work, not enqueueing.
func NewProcessedEvent(ev *models.PatientEvent, payload models.NormalizedPayload) *ProcessedEvent {
	return &ProcessedEvent{
		ID:              uuid.NewString(),
		OriginalEventID: ev.ID,
		PatientID:       ev.PatientID,
		EventType:       ev.EventType,
		ReceivedAt:      time.Now().UTC(),
		Status:          StatusProcessing,
		Payload:         payload,
	}
}
