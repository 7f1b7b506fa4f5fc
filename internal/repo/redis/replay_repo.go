package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayRepo remembers recently processed gateway deliveries so repeated
// webhooks for the same order and status can be acknowledged without
// touching business state. Best effort: the database order-reference guard
// remains the real idempotency barrier, this just short-circuits retries.
type ReplayRepo struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReplayRepo(client *redis.Client, ttl time.Duration) *ReplayRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReplayRepo{client: client, ttl: ttl}
}

// MarkProcessed records the delivery and reports whether it was seen for the
// first time. Callers set the marker only once the delivery is recorded, and
// Clear it again when applying the business effect failed, so the gateway's
// redelivery gets a fresh run. Returns first=true on any Redis failure so a
// degraded cache never blocks webhook processing.
func (r *ReplayRepo) MarkProcessed(ctx context.Context, orderReference, status string) (bool, error) {
	if r.client == nil {
		return true, nil
	}

	key := replayKey(orderReference, status)
	first, err := r.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return true, fmt.Errorf("mark webhook processed: %w", err)
	}

	return first, nil
}

// Clear drops the marker so the next delivery of the same order and status
// is processed again.
func (r *ReplayRepo) Clear(ctx context.Context, orderReference, status string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, replayKey(orderReference, status)).Err(); err != nil {
		return fmt.Errorf("clear webhook marker: %w", err)
	}
	return nil
}

func replayKey(orderReference, status string) string {
	return fmt.Sprintf("wfp:webhook:%s:%s", orderReference, status)
}
