package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthflow/internal/broker"
	"healthflow/internal/logger"
	"healthflow/internal/processing"
	"healthflow/pkg/models"
)

// End-to-end pipeline walk: a raw delivery goes through the consumer bridge
// into the buffer, a worker drains it, records it, and republishes it.
func TestPipelineEndToEnd(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{}
	buf := NewBuffer(16)
	consumer := NewConsumer(nil, buf, nil, "patient-processing", 10, logger.NopLogger())
	pool := NewPool(buf, repo, pub, 3, logger.NopLogger())

	body := []byte(`{
		"id": "e1",
		"patientId": "p1",
		"eventType": "PatientCreated",
		"timestamp": "2024-06-01T10:30:00Z",
		"payload": {"firstName": "John"},
		"correlationId": "corr-e1"
	}`)

	ack := &fakeAck{}
	consumer.HandleDelivery(context.Background(), broker.Delivery{Body: body, Ack: ack})
	require.True(t, ack.acked, "hand-off to the buffer is the commit point")

	buf.Close()
	done := make(chan error, 1)
	go func() { done <- pool.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not drain")
	}

	require.Len(t, repo.added, 1)
	rec := repo.added[0]
	assert.Equal(t, "e1", rec.OriginalEventID)
	assert.Equal(t, "p1", rec.PatientID)
	assert.Equal(t, "PatientCreated", rec.EventType)
	require.Equal(t, []string{rec.ID}, repo.processed, "record ends Completed")

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "analytics.events", pub.sent[0].exchange)
	assert.Equal(t, "analytics.event.processed", pub.sent[0].routingKey)

	out := pub.sent[0].event.(*models.ProcessedPatientEvent)
	assert.Equal(t, "p1", out.PatientID)
	assert.Equal(t, "PatientCreated", out.EventType)
	assert.Equal(t, "BackgroundWorker", out.Service)
	assert.Equal(t, "corr-e1", out.CorrelationID)
	assert.NotEqual(t, "e1", out.ID)

	var found *processing.ProcessedEvent
	for i := range repo.added {
		if repo.added[i].OriginalEventID == "e1" {
			found = repo.added[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, models.PayloadKindUnknown, found.Payload.Kind, "a partial object is kept as pass-through JSON")
}
