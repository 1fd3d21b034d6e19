package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"healthflow/internal/constants"
	"healthflow/internal/logger"
)

// Guard drops redelivered events before they reach the buffer. The broker
// redelivers unacked messages after a reconnect, so the same event ID can
// arrive twice; first writer wins via SetNX. A Redis failure falls open: the
// duplicate is processed rather than lost, which matches the at-least-once
// contract of the pipeline.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewGuard(client *redis.Client, ttl time.Duration, log logger.Logger) *Guard {
	if ttl <= 0 {
		ttl = constants.DefaultIdempotencyTTL
	}
	return &Guard{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

// Seen reports whether the event ID has been observed within the TTL window,
// claiming it atomically if not.
func (g *Guard) Seen(ctx context.Context, eventID string) (bool, error) {
	key := constants.IdempotencyKeyPrefix + eventID

	claimed, err := g.client.SetNX(ctx, key, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		g.logger.WarnwCtx(ctx, "Idempotency check failed, processing anyway",
			"error", err,
			"event_id", eventID,
		)
		return false, err
	}

	return !claimed, nil
}
