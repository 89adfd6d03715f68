package challenge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"weekly-stars/pkg/ledger"
)

// MemStore keeps challenges in process memory.
type MemStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string][]byte)}
}

func (s *MemStore) EnsureTable(context.Context) error { return nil }

func (s *MemStore) Create(_ context.Context, c *Challenge) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[c.ID]; ok {
		return fmt.Errorf("challenge %s already exists", c.ID)
	}
	s.docs[c.ID] = doc
	return nil
}

func (s *MemStore) Get(_ context.Context, id string) (*Challenge, error) {
	s.mu.Lock()
	doc, ok := s.docs[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("challenge %s: %w", id, ledger.ErrNotFound)
	}
	return decode(doc)
}

func (s *MemStore) Complete(_ context.Context, c *Challenge) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.docs[c.ID]
	if !ok {
		return fmt.Errorf("challenge %s: %w", c.ID, ledger.ErrNotFound)
	}
	prev, err := decode(old)
	if err != nil {
		return err
	}
	if prev.Completed {
		return fmt.Errorf("challenge %s: %w", c.ID, ledger.ErrAlreadySubmitted)
	}
	s.docs[c.ID] = doc
	return nil
}

func (s *MemStore) Recent(_ context.Context, subject Subject, limit int) ([]Challenge, error) {
	s.mu.Lock()
	var out []Challenge
	for _, doc := range s.docs {
		c, err := decode(doc)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if subject == "" || c.Subject == subject {
			out = append(out, *c)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func decode(doc []byte) (*Challenge, error) {
	var c Challenge
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &c, nil
}
