package challenge

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// CachedStore keeps recently created challenges in an LRU so submitting a
// quiz right after creating it does not hit the backing store.
type CachedStore struct {
	Store
	cache *lru.Cache
}

// NewCachedStore wraps store with an LRU of size entries.
func NewCachedStore(store Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("challenge cache: %w", err)
	}
	return &CachedStore{Store: store, cache: cache}, nil
}

func (s *CachedStore) Create(ctx context.Context, c *Challenge) error {
	if err := s.Store.Create(ctx, c); err != nil {
		return err
	}
	s.cache.Add(c.ID, *c)
	return nil
}

// Get returns a copy so callers can grade it without touching the cache.
func (s *CachedStore) Get(ctx context.Context, id string) (*Challenge, error) {
	if v, ok := s.cache.Get(id); ok {
		c := v.(Challenge)
		c.Problems = append([]Problem(nil), c.Problems...)
		return &c, nil
	}
	c, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, *c)
	cp := *c
	cp.Problems = append([]Problem(nil), c.Problems...)
	return &cp, nil
}

func (s *CachedStore) Complete(ctx context.Context, c *Challenge) error {
	s.cache.Remove(c.ID)
	return s.Store.Complete(ctx, c)
}
