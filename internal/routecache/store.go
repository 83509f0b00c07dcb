package routecache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("route cache: key not found")

// Store is the backing key/value storage for the route cache. Values are
// opaque byte snapshots; a ttl of zero means the entry never expires.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Keys(ctx context.Context) ([]string, error)
	Flush(ctx context.Context) error
}
