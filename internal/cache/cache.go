package cache

import (
	"context"
	"time"
)

// ViewCache holds serialized aggregate payloads keyed per owner and view.
// Aggregates are always recomputable from the record store, so a cache miss
// or failure is never fatal.
type ViewCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type NoopViewCache struct{}

func (NoopViewCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopViewCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopViewCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}
