package memory

import (
	"context"
	"time"
)

// IdempotencyStore returns the store's idempotency table
func (s *Store) IdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{s: s}
}

// IdempotencyStore keeps outbound call results in process memory
type IdempotencyStore struct {
	s   *Store
	now func() time.Time
}

func (i *IdempotencyStore) clock() time.Time {
	if i.now != nil {
		return i.now()
	}
	return time.Now()
}

func (i *IdempotencyStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	e, ok := i.s.idem[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !e.expiresAt.After(i.clock()) {
		delete(i.s.idem, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (i *IdempotencyStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if _, ok, _ := i.Get(ctx, key); ok {
		return false, nil
	}
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	if _, ok := i.s.idem[key]; ok {
		return false, nil
	}
	e := idemEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = i.clock().Add(ttl)
	}
	i.s.idem[key] = e
	return true, nil
}
