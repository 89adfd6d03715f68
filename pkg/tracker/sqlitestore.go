package tracker

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLiteStore keeps the household document in SQLite and guards updates with
// a compare-and-swap on the version column.
type SQLiteStore struct {
	db   *sql.DB
	seed int
}

// NewSQLiteStore creates a SQLiteStore on an open database.
func NewSQLiteStore(db *sql.DB, seed int) *SQLiteStore {
	return &SQLiteStore{db: db, seed: seed}
}

func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS household (
			id         TEXT PRIMARY KEY,
			version    INTEGER NOT NULL DEFAULT 0,
			state      TEXT,
			updated_at TEXT
		);
		INSERT OR IGNORE INTO household (id) VALUES ('`+HouseholdID+`')`)
	return err
}

func (s *SQLiteStore) read(ctx context.Context) ([]byte, int64, error) {
	var doc sql.NullString
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT version, state FROM household WHERE id = ?`, HouseholdID).Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, unavailable("load household", err)
	}
	return []byte(doc.String), version, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*State, error) {
	doc, version, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return load(doc, version, s.seed)
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(*State) error) (*State, error) {
	return retry(ctx, func() (*State, error) {
		doc, version, err := s.read(ctx)
		if err != nil {
			return nil, err
		}
		st, out, err := apply(doc, version, s.seed, fn)
		if err != nil {
			return nil, err
		}
		res, err := s.db.ExecContext(ctx, `
			UPDATE household SET version = ?, state = ?, updated_at = ?
			WHERE id = ? AND version = ?`,
			st.Version, string(out), time.Now().UTC().Format(time.RFC3339Nano), HouseholdID, version)
		if err != nil {
			return nil, unavailable("save household", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return nil, unavailable("save household", err)
		} else if n == 0 {
			return nil, errConflict
		}
		return st, nil
	})
}
