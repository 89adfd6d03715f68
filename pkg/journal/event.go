// Package journal records every star movement in a hash-chained,
// append-only log.
package journal

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a single entry in the journal.
type Event struct {
	ID        string         `json:"id"`        // UUID v7 (time-ordered)
	Type      string         `json:"type"`      // e.g. "safe.deposited", "reward.claimed"
	Timestamp time.Time      `json:"timestamp"` // when the movement happened
	Source    string         `json:"source"`    // api, cli, rollover
	Content   map[string]any `json:"content"`   // amounts and resulting balances
	Hash      string         `json:"hash"`      // SHA-256 of canonical form
	PrevHash  string         `json:"prev_hash"` // hash chain link
}

// EventStore is the contract for journal persistence.
type EventStore interface {
	Append(ctx context.Context, eventType, source string, content map[string]any) (*Event, error)
	Recent(ctx context.Context, limit int) ([]Event, error)
	ByType(ctx context.Context, eventType string, limit int) ([]Event, error)
	Since(ctx context.Context, afterID string, limit int) ([]Event, error)
	Count(ctx context.Context) (int, error)
	VerifyChain(ctx context.Context) error
	EnsureTable(ctx context.Context) error
}

// canonical round-trips content through JSON so that the stored map and the
// hashed bytes agree no matter which backend reloads it.
func canonical(content map[string]any) (map[string]any, []byte, error) {
	if content == nil {
		content = map[string]any{}
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal content: %w", err)
	}
	var norm map[string]any
	if err := json.Unmarshal(raw, &norm); err != nil {
		return nil, nil, fmt.Errorf("normalize content: %w", err)
	}
	out, err := json.Marshal(norm)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal content: %w", err)
	}
	return norm, out, nil
}

// newEvent builds the next link of the chain after prevHash. Timestamps are
// kept at millisecond precision, the coarsest of the supported backends.
func newEvent(prevHash, eventType, source string, content map[string]any) (*Event, []byte, error) {
	norm, contentJSON, err := canonical(content)
	if err != nil {
		return nil, nil, err
	}
	e := &Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      eventType,
		Timestamp: time.Now().Truncate(time.Millisecond),
		Source:    source,
		Content:   norm,
		PrevHash:  prevHash,
	}
	e.Hash = computeHash(prevHash, e.ID, e.Type, e.Source, e.Timestamp, contentJSON)
	return e, contentJSON, nil
}

// computeHash computes a SHA-256 hash for chain integrity.
func computeHash(prevHash, id, eventType, source string, timestamp time.Time, contentJSON []byte) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, id, eventType, source, timestamp.UnixNano(), string(contentJSON))
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h)
}

// chainVerifier checks events one by one in chronological order.
type chainVerifier struct {
	prevHash string
	n        int
}

func (v *chainVerifier) check(e *Event) error {
	if e.PrevHash != v.prevHash {
		return fmt.Errorf("event %d (%s): prev_hash mismatch: got %s, want %s", v.n, e.ID, e.PrevHash, v.prevHash)
	}
	contentJSON, err := json.Marshal(e.Content)
	if err != nil {
		return fmt.Errorf("event %d (%s): marshal content: %w", v.n, e.ID, err)
	}
	if want := computeHash(v.prevHash, e.ID, e.Type, e.Source, e.Timestamp, contentJSON); e.Hash != want {
		return fmt.Errorf("event %d (%s): hash mismatch: got %s, want %s", v.n, e.ID, e.Hash, want)
	}
	v.prevHash = e.Hash
	v.n++
	return nil
}
