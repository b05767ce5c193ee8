// Package cache defines the byte-level cache abstraction used for the
// current-shipment read path. Callers treat it as best-effort: a miss or a
// cache error always falls back to the store.
package cache

import (
	"context"
	"time"
)

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
