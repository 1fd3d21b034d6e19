package relay

import (
	"context"
	"sync"

	"healthflow/internal/constants"
	"healthflow/pkg/metrics"
	"healthflow/pkg/models"
)

// Buffer is the bounded hand-off point between the broker consumer and the
// worker pool. A full buffer blocks writers, which withholds broker
// acknowledgements, which makes the broker's prefetch window stop further
// deliveries: backpressure reaches end to end without dropping anything.
//
// Multiple concurrent writers and readers are both legal. Each queued event
// is delivered to exactly one reader; FIFO holds per writer but not across
// writers.
type Buffer struct {
	ch        chan models.PatientEvent
	capacity  int
	closeOnce sync.Once
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = constants.DefaultBufferCapacity
	}
	metrics.SetBufferCapacity(capacity)
	return &Buffer{
		ch:       make(chan models.PatientEvent, capacity),
		capacity: capacity,
	}
}

// Write blocks until the event is queued or ctx is cancelled. It must not be
// called after Close; shutdown ordering is: stop writers, then Close.
func (b *Buffer) Write(ctx context.Context, ev models.PatientEvent) error {
	select {
	case b.ch <- ev:
		metrics.SetBufferDepth(len(b.ch))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events exposes the receive side. Readers range over it; the channel
// closes only on explicit shutdown via Close, after which readers drain
// whatever is still queued and stop.
func (b *Buffer) Events() <-chan models.PatientEvent {
	return b.ch
}

func (b *Buffer) Close() {
	b.closeOnce.Do(func() {
		close(b.ch)
	})
}

func (b *Buffer) Len() int {
	return len(b.ch)
}

func (b *Buffer) Cap() int {
	return b.capacity
}
