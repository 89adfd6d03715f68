package tracker

import (
	"context"
	"sync"
)

// MemStore keeps the household document in memory. It serves the in-memory
// backend and tests.
type MemStore struct {
	mu      sync.Mutex
	seed    int
	doc     []byte
	version int64
}

// NewMemStore creates an empty MemStore.
func NewMemStore(seed int) *MemStore {
	return &MemStore{seed: seed}
}

func (s *MemStore) EnsureTable(context.Context) error { return nil }

func (s *MemStore) Load(context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load(s.doc, s.version, s.seed)
}

func (s *MemStore) Update(_ context.Context, fn func(*State) error) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, doc, err := apply(s.doc, s.version, s.seed, fn)
	if err != nil {
		return nil, err
	}
	s.doc, s.version = doc, st.Version
	return st, nil
}
