package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateRelay(cfg.Relay); err != nil {
		errors = append(errors, err)
	}

	if err := validateIdempotency(cfg.Idempotency, cfg.Database.Redis); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.RabbitMQ.Host == "" {
		return &ValidationError{
			Field:   "broker.rabbitmq.host",
			Message: "rabbitmq host is required",
		}
	}

	if cfg.RabbitMQ.Port < 1 || cfg.RabbitMQ.Port > 65535 {
		return &ValidationError{
			Field:   "broker.rabbitmq.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.RabbitMQ.Port),
		}
	}

	if cfg.RabbitMQ.PrefetchCount < 1 {
		return &ValidationError{
			Field:   "broker.rabbitmq.prefetch_count",
			Message: "prefetch count must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.MongoDB.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "mongodb uri is required",
		}
	}

	if cfg.MongoDB.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "mongodb database name is required",
		}
	}

	return nil
}

func validateRelay(cfg RelayConfig) error {
	if cfg.BufferCapacity < 1 {
		return &ValidationError{
			Field:   "relay.buffer_capacity",
			Message: "buffer capacity must be positive",
		}
	}

	if cfg.WorkerCount < 1 {
		return &ValidationError{
			Field:   "relay.worker_count",
			Message: "worker count must be positive",
		}
	}

	return nil
}

func validateIdempotency(cfg IdempotencyConfig, redisCfg RedisConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if redisCfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "redis host is required when idempotency is enabled",
		}
	}

	if cfg.TTLSeconds < 0 {
		return &ValidationError{
			Field:   "idempotency.ttl_seconds",
			Message: "ttl must not be negative",
		}
	}

	return nil
}
