package broker

import (
	"context"
)

// Publisher publishes events to an exchange with a routing key. The body is
// marshalled to the lowerCamelCase JSON wire format and sent persistent.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, event interface{}) error
}

// Acknowledger is the manual-ack handle for one delivery. Acknowledgement is
// always caller-driven; the client never acks on the consumer's behalf.
type Acknowledger interface {
	Ack() error
	Nack(requeue bool) error
}

// Delivery is one inbound broker message.
type Delivery struct {
	Body    []byte
	Headers map[string]interface{}
	Ack     Acknowledger
}

// HandlerFunc receives deliveries from a subscription. The handler owns the
// acknowledgement decision for every delivery it is given.
type HandlerFunc func(ctx context.Context, d Delivery)

type Subscriber interface {
	Subscribe(ctx context.Context, queue string, prefetch int, handler HandlerFunc) error
}
