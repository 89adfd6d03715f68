package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weekly-stars/pkg/ledger"
)

// Store persists the household document.
//
// Update loads the current document, runs fn on it and persists the result
// atomically. If fn returns an error nothing is written and that error is
// returned unchanged. Storage failures wrap ledger.ErrUnavailable.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Update(ctx context.Context, fn func(*State) error) (*State, error)
	EnsureTable(ctx context.Context) error
}

// errConflict signals that a compare-and-swap lost against another writer.
var errConflict = errors.New("household changed concurrently")

// maxAttempts bounds compare-and-swap retries.
const maxAttempts = 5

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ledger.ErrUnavailable, op, err)
}

// apply decodes doc (starting fresh when it is empty), runs fn and returns
// the new state with its encoding.
func apply(doc []byte, version int64, seed int, fn func(*State) error) (*State, []byte, error) {
	var st *State
	if len(doc) == 0 {
		st = NewState(seed, time.Now())
	} else {
		var err error
		if st, err = DecodeState(doc, seed); err != nil {
			return nil, nil, err
		}
	}
	st.Version = version
	if err := fn(st); err != nil {
		return nil, nil, err
	}
	st.Version = version + 1
	st.UpdatedAt = time.Now().Truncate(time.Microsecond)
	out, err := st.Encode()
	if err != nil {
		return nil, nil, err
	}
	return st, out, nil
}

// load decodes doc for read-only use.
func load(doc []byte, version int64, seed int) (*State, error) {
	if len(doc) == 0 {
		st := NewState(seed, time.Now())
		st.Version = version
		return st, nil
	}
	st, err := DecodeState(doc, seed)
	if err != nil {
		return nil, err
	}
	st.Version = version
	return st, nil
}

// retry runs attempt until it stops reporting errConflict.
func retry(ctx context.Context, attempt func() (*State, error)) (*State, error) {
	for i := 0; i < maxAttempts; i++ {
		st, err := attempt()
		if !errors.Is(err, errConflict) {
			return st, err
		}
		if err := ctx.Err(); err != nil {
			return nil, unavailable("update household", err)
		}
		time.Sleep(time.Duration(i+1) * 5 * time.Millisecond)
	}
	return nil, unavailable("update household", errConflict)
}
