package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"healthflow/internal/broker"
	"healthflow/internal/constants"
	"healthflow/internal/logger"
	"healthflow/internal/processing"
	apperrors "healthflow/pkg/errors"
	"healthflow/pkg/logging"
	"healthflow/pkg/metrics"
	"healthflow/pkg/models"
)

// Pool drains the buffer with a fixed set of workers. Each event is
// normalized, recorded, republished, and marked processed. Failures are
// terminal for the event: the delivery was already acked at buffer
// hand-off, so the worker logs, records the failure, and moves on. One
// bad event never takes a worker down.
type Pool struct {
	buffer    *Buffer
	repo      processing.Repository
	publisher broker.Publisher
	logger    logger.Logger
	workers   int
}

func NewPool(buffer *Buffer, repo processing.Repository, publisher broker.Publisher, workers int, log logger.Logger) *Pool {
	if workers <= 0 {
		workers = constants.DefaultWorkerCount
	}
	return &Pool{
		buffer:    buffer,
		repo:      repo,
		publisher: publisher,
		logger:    log,
		workers:   workers,
	}
}

// Run starts the workers and blocks until the buffer is closed and
// drained, or ctx is cancelled. A closed buffer is the normal shutdown
// path: workers finish the events already buffered, then exit.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 1; i <= p.workers; i++ {
		id := i
		g.Go(func() error {
			return p.workerLoop(ctx, id)
		})
	}
	return g.Wait()
}

func (p *Pool) workerLoop(ctx context.Context, id int) error {
	ctx = logging.WithWorkerID(ctx, id)
	p.logger.InfowCtx(ctx, "Worker started")
	defer p.logger.InfowCtx(ctx, "Worker stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-p.buffer.Events():
			if !ok {
				return nil
			}
			metrics.SetBufferDepth(p.buffer.Len())
			p.handle(ctx, ev)
		}
	}
}

func (p *Pool) handle(ctx context.Context, ev models.PatientEvent) {
	ctx = logging.WithMessageID(ctx, ev.ID)
	ctx = logging.WithPatientID(ctx, ev.PatientID)
	if ev.CorrelationID != "" {
		ctx = logging.WithCorrelationID(ctx, ev.CorrelationID)
	}

	start := time.Now()
	if err := p.process(ctx, ev); err != nil {
		metrics.ObserveProcessing("failed", time.Since(start))
		p.logger.ErrorwCtx(ctx, "Event processing failed",
			"event_type", ev.EventType,
			"error", err,
		)
		return
	}
	metrics.ObserveProcessing("completed", time.Since(start))
	p.logger.InfowCtx(ctx, "Event processed",
		"event_type", ev.EventType,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (p *Pool) process(ctx context.Context, ev models.PatientEvent) (err error) {
	defer func() {
		if panicErr := apperrors.RecoverPanic(recover()); panicErr != nil {
			err = panicErr
		}
	}()

	payload := Normalize(ev.Payload)
	record := processing.NewProcessedEvent(&ev, payload)

	if _, err := p.repo.Add(ctx, record); err != nil {
		return err
	}

	outbound := p.buildOutbound(&ev, payload)
	if err := p.publisher.Publish(ctx, constants.AnalyticsEventsExchange, constants.ProcessedRoutingKey, outbound); err != nil {
		metrics.PublishFailuresTotal.Inc()
		p.markFailed(ctx, record.ID, err)
		return apperrors.Wrap(err, apperrors.ErrTransport).WithDetail("operation", "publish")
	}

	return p.repo.MarkProcessed(ctx, record.ID)
}

// buildOutbound derives the republished event. It carries a fresh
// identity but preserves correlation lineage so downstream consumers can
// tie it back to the inbound event.
func (p *Pool) buildOutbound(ev *models.PatientEvent, payload models.NormalizedPayload) *models.ProcessedPatientEvent {
	correlationID := ev.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	return &models.ProcessedPatientEvent{
		ID:            uuid.New().String(),
		PatientID:     ev.PatientID,
		EventType:     ev.EventType,
		Timestamp:     time.Now().UTC(),
		Payload:       payload,
		Service:       constants.ServiceName,
		CorrelationID: correlationID,
	}
}

// markFailed is best effort. The record stays in Processing if this
// fails too, which the pending endpoints surface for operators.
func (p *Pool) markFailed(ctx context.Context, id string, cause error) {
	if err := p.repo.MarkFailed(ctx, id, cause.Error()); err != nil {
		p.logger.WarnwCtx(ctx, "Failed to record processing failure",
			"record_id", id,
			"error", err,
		)
	}
}
