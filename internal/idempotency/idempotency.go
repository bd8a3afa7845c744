// Package idempotency pairs side-effecting outbound calls with a deterministic
// key so that a retried operation replays the first result instead of
// repeating the call.
package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

const DefaultTTL = 72 * time.Hour

// Store keeps call results by key
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Caller runs outbound calls through a Store
type Caller struct {
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

type CallerParams struct {
	Store  Store
	TTL    time.Duration
	Logger zerolog.Logger
}

// NewCaller creates a caller; a zero TTL uses DefaultTTL
func NewCaller(params CallerParams) *Caller {
	ttl := params.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Caller{
		store:  params.Store,
		ttl:    ttl,
		logger: params.Logger.With().Str("component", "idempotent_caller").Logger(),
	}
}

// Do returns the stored result for key when there is one. Otherwise it calls
// fn with the same key, which fn must forward to the remote side, and stores
// the result. Errors are not stored so a failed call can be retried. The
// returned bool reports whether the result was replayed.
//
// The store is an optimisation on top of the remote side's own deduplication:
// when it is unavailable the call still goes out with its key.
func Do[T any](ctx context.Context, c *Caller, key string, fn func(ctx context.Context, key string) (T, error)) (T, bool, error) {
	if cached, ok := load[T](ctx, c, key); ok {
		c.logger.Debug().Str("idempotency_key", key).Msg("Replaying stored result")
		return cached, true, nil
	}

	result, err := fn(ctx, key)
	if err != nil {
		var zero T
		return zero, false, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn().Err(err).Str("idempotency_key", key).Msg("Failed to encode result for idempotency store")
		return result, false, nil
	}

	stored, err := c.store.SetNX(ctx, key, raw, c.ttl)
	if err != nil {
		c.logger.Warn().Err(err).Str("idempotency_key", key).Msg("Failed to store result, relying on remote deduplication")
		return result, false, nil
	}
	if !stored {
		// a concurrent call with the same key finished first; its result wins
		if cached, ok := load[T](ctx, c, key); ok {
			return cached, true, nil
		}
	}

	return result, false, nil
}

func load[T any](ctx context.Context, c *Caller, key string) (T, bool) {
	var cached T
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("idempotency_key", key).Msg("Idempotency store read failed")
		return cached, false
	}
	if !ok {
		return cached, false
	}
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.logger.Warn().Err(err).Str("idempotency_key", key).Msg("Discarding undecodable stored result")
		return cached, false
	}
	return cached, true
}
