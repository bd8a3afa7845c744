package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"live-auction-service/internal/idempotency"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idem:"

// IdempotencyStore keeps outbound call results in Redis so every instance
// replays the same result for a key
type IdempotencyStore struct {
	client *redis.Client
}

func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	return raw, true, nil
}

func (s *IdempotencyStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, idempotencyPrefix+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to write idempotency key: %w", err)
	}
	return ok, nil
}

var _ idempotency.Store = (*IdempotencyStore)(nil)
