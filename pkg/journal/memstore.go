package journal

import (
	"context"
	"sync"
)

// MemStore is an in-process EventStore used by the memory backend and tests.
type MemStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) EnsureTable(context.Context) error { return nil }

func (s *MemStore) Append(_ context.Context, eventType, source string, content map[string]any) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := ""
	if n := len(s.events); n > 0 {
		prev = s.events[n-1].Hash
	}
	e, _, err := newEvent(prev, eventType, source, content)
	if err != nil {
		return nil, err
	}
	s.events = append(s.events, *e)
	return e, nil
}

func (s *MemStore) Recent(_ context.Context, limit int) ([]Event, error) {
	return s.newest(limit, func(*Event) bool { return true }), nil
}

func (s *MemStore) ByType(_ context.Context, eventType string, limit int) ([]Event, error) {
	return s.newest(limit, func(e *Event) bool { return e.Type == eventType }), nil
}

func (s *MemStore) newest(limit int, keep func(*Event) bool) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for i := len(s.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if keep(&s.events[i]) {
			out = append(out, s.events[i])
		}
	}
	return out
}

func (s *MemStore) Since(_ context.Context, afterID string, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	found := false
	for _, e := range s.events {
		if found && (limit <= 0 || len(out) < limit) {
			out = append(out, e)
		}
		if e.ID == afterID {
			found = true
		}
	}
	return out, nil
}

func (s *MemStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

func (s *MemStore) VerifyChain(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var v chainVerifier
	for i := range s.events {
		if err := v.check(&s.events[i]); err != nil {
			return err
		}
	}
	return nil
}
