package routecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
)

// FreeCacheStore keeps entries in process memory. Every worker of a process
// shares the same instance.
type FreeCacheStore struct {
	cache *freecache.Cache
}

func NewFreeCacheStore(sizeMB int) *FreeCacheStore {
	return &FreeCacheStore{cache: freecache.NewCache(sizeMB * 1024 * 1024)}
}

func (s *FreeCacheStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := s.cache.Get([]byte(key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return data, nil
}

func (s *FreeCacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.cache.Set([]byte(key), value, expireSeconds(ttl)); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (s *FreeCacheStore) Keys(_ context.Context) ([]string, error) {
	keys := make([]string, 0, s.cache.EntryCount())

	it := s.cache.NewIterator()
	for entry := it.Next(); entry != nil; entry = it.Next() {
		keys = append(keys, string(entry.Key))
	}

	return keys, nil
}

func (s *FreeCacheStore) Flush(_ context.Context) error {
	s.cache.Clear()
	return nil
}

// expireSeconds converts ttl to freecache's whole seconds, where 0 means no
// expiry. A positive ttl below one second rounds up so it still expires.
func expireSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	return int((ttl + time.Second - 1) / time.Second)
}
