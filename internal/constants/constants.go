package constants

import "time"

// Broker topology. Declared idempotently on every startup.
const (
	PatientEventsExchange   = "patient.events"
	AnalyticsEventsExchange = "analytics.events"

	PatientProcessingQueue   = "patient-processing"
	AnalyticsProcessingQueue = "analytics-processing"

	PatientBindingKey   = "patient.*"
	AnalyticsBindingKey = "analytics.*"

	ProcessedRoutingKey = "analytics.event.processed"
)

const (
	ServiceName = "BackgroundWorker"
)

const (
	DefaultPrefetchCount  = 10
	DefaultBufferCapacity = 1000
	DefaultWorkerCount    = 3
)

const (
	DefaultPendingLimit = 100
	MaxPendingLimit     = 1000
)

const (
	ProcessedEventsCollection = "processed_events"
	DefaultMongoDBName        = "healthflow"
)

const (
	IdempotencyKeyPrefix    = "idem:"
	DefaultIdempotencyTTL   = 24 * time.Hour
	DefaultReconnectInitial = 1 * time.Second
	DefaultReconnectMax     = 30 * time.Second
	DefaultPublishTimeout   = 10 * time.Second
	ShutdownTimeout         = 5 * time.Second
	DrainTimeout            = 30 * time.Second
)
