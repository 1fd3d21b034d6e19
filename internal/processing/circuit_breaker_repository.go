package processing

import (
	"context"

	"github.com/sony/gobreaker"

	"healthflow/internal/config"
	"healthflow/pkg/circuitbreaker"
)

// CircuitBreakerRepository shields the store from sustained failure: once the
// breaker opens, worker writes fail fast instead of piling up on a sick
// backend. Disabled config degrades to a transparent pass-through.
type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerRepository{repo: repo}
	}

	cbConfig := circuitbreaker.DefaultConfig("mongodb-processing")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewWrapper(cbConfig),
	}
}

func (r *CircuitBreakerRepository) Add(ctx context.Context, rec *ProcessedEvent) (*ProcessedEvent, error) {
	if r.cb == nil {
		return r.repo.Add(ctx, rec)
	}

	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return r.repo.Add(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return result.(*ProcessedEvent), nil
}

func (r *CircuitBreakerRepository) MarkProcessed(ctx context.Context, id string) error {
	if r.cb == nil {
		return r.repo.MarkProcessed(ctx, id)
	}

	_, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, r.repo.MarkProcessed(ctx, id)
	})
	return err
}

func (r *CircuitBreakerRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	if r.cb == nil {
		return r.repo.MarkFailed(ctx, id, errorMessage)
	}

	_, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, r.repo.MarkFailed(ctx, id, errorMessage)
	})
	return err
}

func (r *CircuitBreakerRepository) GetPendingEvents(ctx context.Context, limit int64) ([]ProcessedEvent, error) {
	if r.cb == nil {
		return r.repo.GetPendingEvents(ctx, limit)
	}

	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return r.repo.GetPendingEvents(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return result.([]ProcessedEvent), nil
}

func (r *CircuitBreakerRepository) GetPendingCount(ctx context.Context) (int64, error) {
	if r.cb == nil {
		return r.repo.GetPendingCount(ctx)
	}

	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return r.repo.GetPendingCount(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}
