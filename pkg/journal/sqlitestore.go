package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SQLiteStore is a SQLite-backed EventStore. A unique prev_hash keeps the
// chain linear even if two processes append at once; the loser retries.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore creates a SQLiteStore on an open database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS journal (
			id        TEXT PRIMARY KEY,
			type      TEXT NOT NULL,
			ts        INTEGER NOT NULL,
			source    TEXT NOT NULL,
			content   TEXT NOT NULL DEFAULT '{}',
			hash      TEXT NOT NULL,
			prev_hash TEXT NOT NULL UNIQUE
		);
		CREATE INDEX IF NOT EXISTS idx_journal_type ON journal(type);
		CREATE INDEX IF NOT EXISTS idx_journal_ts_id ON journal(ts, id)`)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, eventType, source string, content map[string]any) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		var prevHash string
		err := s.db.QueryRowContext(ctx, `SELECT hash FROM journal ORDER BY ts DESC, id DESC LIMIT 1`).Scan(&prevHash)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chain head: %w", err)
		}
		e, contentJSON, err := newEvent(prevHash, eventType, source, content)
		if err != nil {
			return nil, err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO journal (id, type, ts, source, content, hash, prev_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Type, e.Timestamp.UnixNano(), e.Source, string(contentJSON), e.Hash, e.PrevHash)
		if err == nil {
			return e, nil
		}
		if !strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("insert event: chain head kept moving: %w", lastErr)
}

const sqliteColumns = `id, type, ts, source, content, hash, prev_hash`

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	return s.query(ctx, `SELECT `+sqliteColumns+` FROM journal ORDER BY ts DESC, id DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) ByType(ctx context.Context, eventType string, limit int) ([]Event, error) {
	return s.query(ctx, `SELECT `+sqliteColumns+` FROM journal WHERE type = ? ORDER BY ts DESC, id DESC LIMIT ?`, eventType, limit)
}

func (s *SQLiteStore) Since(ctx context.Context, afterID string, limit int) ([]Event, error) {
	return s.query(ctx, `
		SELECT `+sqliteColumns+` FROM journal
		WHERE (ts, id) > (SELECT ts, id FROM journal WHERE id = ?)
		ORDER BY ts ASC, id ASC LIMIT ?`, afterID, limit)
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) VerifyChain(ctx context.Context) error {
	events, err := s.query(ctx, `SELECT `+sqliteColumns+` FROM journal ORDER BY ts ASC, id ASC LIMIT -1`)
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	var v chainVerifier
	for i := range events {
		if err := v.check(&events[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		var contentJSON string
		if err := rows.Scan(&e.ID, &e.Type, &ts, &e.Source, &contentJSON, &e.Hash, &e.PrevHash); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts)
		if err := json.Unmarshal([]byte(contentJSON), &e.Content); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
