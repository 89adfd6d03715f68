package journal

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Bus wraps an EventStore and notifies in-process subscribers of every
// committed star movement.
type Bus struct {
	EventStore
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBus creates a Bus wrapping the given store.
func NewBus(store EventStore) *Bus {
	return &Bus{
		EventStore: store,
		subs:       make(map[*Subscription]struct{}),
	}
}

// Subscription receives the events a subscriber asked for on C.
type Subscription struct {
	C       <-chan *Event
	ch      chan *Event
	types   []string
	dropped atomic.Int64
}

// Matches reports whether eventType passes the subscription's filter. An
// empty filter matches everything; a filter ending in "." matches a family
// such as "safe." for safe.deposited and safe.withdrawn.
func (s *Subscription) Matches(eventType string) bool {
	if len(s.types) == 0 {
		return true
	}
	for _, t := range s.types {
		if t == eventType || (strings.HasSuffix(t, ".") && strings.HasPrefix(eventType, t)) {
			return true
		}
	}
	return false
}

// Dropped returns how many matching events were skipped because the
// subscriber fell behind, and resets the count. A non-zero value means the
// subscriber should reload balances from the store.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Swap(0)
}

// Append stores the event, then hands it to every matching subscriber.
// Slow subscribers lose events instead of blocking the ledger.
func (b *Bus) Append(ctx context.Context, eventType, source string, content map[string]any) (*Event, error) {
	e, err := b.EventStore.Append(ctx, eventType, source, content)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	for sub := range b.subs {
		if !sub.Matches(e.Type) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
		}
	}
	b.mu.RUnlock()

	return e, nil
}

// Subscribe registers a subscriber for the given event types or families.
// With no types it receives every event.
func (b *Bus) Subscribe(types ...string) *Subscription {
	ch := make(chan *Event, 64)
	sub := &Subscription{C: ch, ch: ch, types: types}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// Subscribers reports how many subscribers are attached.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
