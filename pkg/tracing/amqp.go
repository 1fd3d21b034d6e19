package tracing

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// headerCarrier adapts an AMQP header table to the otel TextMapCarrier
// interface. Only string-valued headers participate in propagation.
type headerCarrier amqp.Table

func (c headerCarrier) Get(key string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	c[key] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// InjectTraceContext copies the active span context into AMQP headers so
// downstream consumers can continue the trace.
func InjectTraceContext(ctx context.Context, headers amqp.Table) amqp.Table {
	if headers == nil {
		headers = amqp.Table{}
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))
	return headers
}

// StartSpanFromDelivery extracts any propagated trace context from an inbound
// delivery's headers and starts a consumer span under it. The headers are the
// plain-map form of an AMQP header table.
func StartSpanFromDelivery(ctx context.Context, spanName string, headers map[string]interface{}) (context.Context, trace.Span) {
	if headers != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(headers))
	}
	return GetTracer("broker").Start(ctx, spanName)
}
