package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthflow/internal/config"
	"healthflow/pkg/models"
)

type countingRepo struct {
	calls int
	err   error
}

func (r *countingRepo) Add(ctx context.Context, rec *ProcessedEvent) (*ProcessedEvent, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return rec, nil
}

func (r *countingRepo) MarkProcessed(ctx context.Context, id string) error {
	r.calls++
	return r.err
}

func (r *countingRepo) MarkFailed(ctx context.Context, id, errorMessage string) error {
	r.calls++
	return r.err
}

func (r *countingRepo) GetPendingEvents(ctx context.Context, limit int64) ([]ProcessedEvent, error) {
	r.calls++
	return nil, r.err
}

func (r *countingRepo) GetPendingCount(ctx context.Context) (int64, error) {
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	return 7, nil
}

func testRecord() *ProcessedEvent {
	return NewProcessedEvent(&models.PatientEvent{
		ID:        "ev-1",
		PatientID: "p-1",
		EventType: models.EventTypePatientCreated,
		Timestamp: time.Now().UTC(),
	}, models.RawPayload("x"))
}

func TestCircuitBreakerDisabledPassesThrough(t *testing.T) {
	inner := &countingRepo{}
	repo := NewCircuitBreakerRepository(inner, config.CircuitBreakerConfig{Enabled: false})
	ctx := context.Background()

	_, err := repo.Add(ctx, testRecord())
	require.NoError(t, err)
	require.NoError(t, repo.MarkProcessed(ctx, "r-1"))
	require.NoError(t, repo.MarkFailed(ctx, "r-1", "boom"))

	count, err := repo.GetPendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	assert.Equal(t, 4, inner.calls)
}

func TestCircuitBreakerEnabledDelegates(t *testing.T) {
	inner := &countingRepo{}
	repo := NewCircuitBreakerRepository(inner, config.CircuitBreakerConfig{Enabled: true})

	rec, err := repo.Add(context.Background(), testRecord())
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Equal(t, 1, inner.calls)
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	inner := &countingRepo{err: errors.New("mongo down")}
	repo := NewCircuitBreakerRepository(inner, config.CircuitBreakerConfig{
		Enabled:      true,
		FailureRatio: 0.5,
		MinRequests:  3,
		Timeout:      time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Add(ctx, testRecord())
		require.Error(t, err)
	}
	callsWhenOpened := inner.calls

	// The breaker is open now; calls fail fast without touching the store.
	_, err := repo.Add(ctx, testRecord())
	require.Error(t, err)
	assert.Equal(t, callsWhenOpened, inner.calls)
}

func TestCircuitBreakerRejectsCancelledContext(t *testing.T) {
	inner := &countingRepo{}
	repo := NewCircuitBreakerRepository(inner, config.CircuitBreakerConfig{Enabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.MarkProcessed(ctx, "r-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, inner.calls)
}
