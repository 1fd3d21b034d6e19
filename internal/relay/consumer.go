package relay

import (
	"context"
	"encoding/json"

	"healthflow/internal/broker"
	"healthflow/internal/logger"
	"healthflow/pkg/logging"
	"healthflow/pkg/metrics"
	"healthflow/pkg/models"
	"healthflow/pkg/tracing"
)

// DuplicateGuard is the redelivery filter. A nil guard disables filtering,
// the default posture: duplicate processing records on broker redelivery are
// acceptable.
type DuplicateGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// Consumer bridges broker deliveries to the buffer and owns the
// acknowledgement decision per delivery:
//
//	malformed envelope      -> nack without requeue (a retry cannot fix it)
//	duplicate (guard hit)   -> ack and drop
//	buffer write succeeded  -> ack; this is the commit point
//	buffer write cancelled  -> nack with requeue for the next instance
//
// Acking at buffer hand-off rather than at processing completion trades
// delivery guarantees for throughput: failures past this point are logged
// and recorded, never redelivered.
type Consumer struct {
	subscriber broker.Subscriber
	buffer     *Buffer
	guard      DuplicateGuard
	logger     logger.Logger
	queue      string
	prefetch   int
}

func NewConsumer(subscriber broker.Subscriber, buffer *Buffer, guard DuplicateGuard, queue string, prefetch int, log logger.Logger) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		buffer:     buffer,
		guard:      guard,
		logger:     log,
		queue:      queue,
		prefetch:   prefetch,
	}
}

// Run blocks consuming the queue until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscriber.Subscribe(ctx, c.queue, c.prefetch, c.HandleDelivery)
}

func (c *Consumer) HandleDelivery(ctx context.Context, d broker.Delivery) {
	ctx, span := tracing.StartSpanFromDelivery(ctx, "relay.consume", d.Headers)
	defer span.End()

	var ev models.PatientEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		c.reject(ctx, d, "Failed to deserialize envelope", err)
		return
	}

	if err := models.ValidatePatientEvent(&ev); err != nil {
		c.reject(ctx, d, "Envelope failed validation", err)
		return
	}

	ctx = logging.WithMessageID(ctx, ev.ID)
	ctx = logging.WithPatientID(ctx, ev.PatientID)
	if ev.CorrelationID != "" {
		ctx = logging.WithCorrelationID(ctx, ev.CorrelationID)
	}

	if c.guard != nil {
		seen, err := c.guard.Seen(ctx, ev.ID)
		if err == nil && seen {
			metrics.EventsConsumedTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
			metrics.DuplicateEventsTotal.Inc()
			c.logger.InfowCtx(ctx, "Duplicate event dropped",
				"event_type", ev.EventType,
			)
			c.ack(ctx, d)
			return
		}
		// Guard errors fall open; the event proceeds.
	}

	if err := c.buffer.Write(ctx, ev); err != nil {
		// Cancelled mid hand-off, typically during shutdown. Requeue so
		// another instance picks it up after restart.
		metrics.EventsConsumedTotal.WithLabelValues(metrics.OutcomeRequeued).Inc()
		c.logger.WarnwCtx(ctx, "Buffer write cancelled, requeueing delivery",
			"error", err,
		)
		if nackErr := d.Ack.Nack(true); nackErr != nil {
			c.logger.ErrorwCtx(ctx, "Failed to nack delivery", "error", nackErr)
		}
		return
	}

	metrics.EventsConsumedTotal.WithLabelValues(metrics.OutcomeAcked).Inc()
	c.logger.DebugwCtx(ctx, "Event buffered",
		"event_type", ev.EventType,
		"buffer_depth", c.buffer.Len(),
	)
	c.ack(ctx, d)
}

func (c *Consumer) ack(ctx context.Context, d broker.Delivery) {
	if err := d.Ack.Ack(); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to ack delivery", "error", err)
	}
}

func (c *Consumer) reject(ctx context.Context, d broker.Delivery, msg string, err error) {
	metrics.EventsConsumedTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
	c.logger.WarnwCtx(ctx, msg,
		"error", err,
		"body_size", len(d.Body),
	)
	if nackErr := d.Ack.Nack(false); nackErr != nil {
		c.logger.ErrorwCtx(ctx, "Failed to nack delivery", "error", nackErr)
	}
}
