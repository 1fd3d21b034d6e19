package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_consumed_total",
			Help: "Inbound broker deliveries by acknowledgement outcome (count)",
		},
		[]string{"outcome"},
	)

	EventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_processed_total",
			Help: "Events drained from the buffer by worker outcome (count)",
		},
		[]string{"status"},
	)

	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_processing_duration_ms",
			Help:    "Per-event worker processing duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	BufferDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_buffer_depth",
			Help: "Events currently queued in the inbound buffer (count)",
		},
	)

	BufferCapacity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_buffer_capacity",
			Help: "Configured capacity of the inbound buffer (count)",
		},
	)

	PublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_publish_failures_total",
			Help: "Failed downstream publishes of derived events (count)",
		},
	)

	DuplicateEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_duplicate_events_total",
			Help: "Redelivered events dropped by the idempotency guard (count)",
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// Acknowledgement outcomes for EventsConsumedTotal.
const (
	OutcomeAcked     = "acked"
	OutcomeRejected  = "rejected"
	OutcomeRequeued  = "requeued"
	OutcomeDuplicate = "duplicate"
)

func RegisterRelayMetrics() {
	prometheus.MustRegister(
		EventsConsumedTotal,
		EventsProcessedTotal,
		ProcessingDuration,
		BufferDepth,
		BufferCapacity,
		PublishFailuresTotal,
		DuplicateEventsTotal,
	)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
}

func ObserveProcessing(status string, duration time.Duration) {
	EventsProcessedTotal.WithLabelValues(status).Inc()
	ProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func SetBufferDepth(depth int) {
	BufferDepth.Set(float64(depth))
}

func SetBufferCapacity(capacity int) {
	BufferCapacity.Set(float64(capacity))
}

func SetCircuitBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}
