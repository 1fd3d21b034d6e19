package bootstrap

import (
	"context"
	"fmt"

	"healthflow/internal/broker"
	"healthflow/internal/config"
	"healthflow/internal/logger"
)

type Base struct {
	Config *config.Config
	Logger logger.Logger
	Broker *broker.Client
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitBroker connects to RabbitMQ and declares the exchanges, queues, and
// bindings the relay depends on. Declaration is idempotent, so concurrent
// instances race safely.
func (b *Base) InitBroker(ctx context.Context) error {
	client := broker.NewClient(b.Config.Broker.RabbitMQ, b.Logger)

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect broker: %w", err)
	}

	if err := client.DeclareTopology(ctx); err != nil {
		client.Close()
		return fmt.Errorf("failed to declare topology: %w", err)
	}

	b.Broker = client
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Broker != nil {
		if err := b.Broker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("broker close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
