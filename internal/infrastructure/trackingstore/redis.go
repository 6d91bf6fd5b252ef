package trackingstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/threadline/fulfillment/internal/domain/shipment"
)

const redisKeyPrefix = "tracking:"

// Redis backs the tracking cache with a shared Redis instance, using
// native key TTLs instead of read-time staleness checks.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (r *Redis) Get(ctx context.Context, trackingCode string) (*shipment.TrackingStatus, bool, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+trackingCode).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("tracking store: redis get: %w", err)
	}

	var status shipment.TrackingStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, false, fmt.Errorf("tracking store: decode: %w", err)
	}
	return &status, true, nil
}

func (r *Redis) Set(ctx context.Context, trackingCode string, status *shipment.TrackingStatus) error {
	if status == nil {
		return nil
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("tracking store: encode: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+trackingCode, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("tracking store: redis set: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
