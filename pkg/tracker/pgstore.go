package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore keeps the household document in PostgreSQL. Update holds a row
// lock for the whole read-modify-write.
type PgStore struct {
	pool *pgxpool.Pool
	seed int
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool, seed int) *PgStore {
	return &PgStore{pool: pool, seed: seed}
}

// EnsureTable creates the household table and its single row.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS household (
			id         TEXT PRIMARY KEY,
			version    BIGINT NOT NULL DEFAULT 0,
			state      JSONB,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO household (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, HouseholdID)
	return err
}

func (s *PgStore) Load(ctx context.Context) (*State, error) {
	var doc []byte
	var version int64
	err := s.pool.QueryRow(ctx, `SELECT version, state FROM household WHERE id = $1`, HouseholdID).Scan(&version, &doc)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, unavailable("load household", err)
	}
	return load(doc, version, s.seed)
}

func (s *PgStore) Update(ctx context.Context, fn func(*State) error) (*State, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, unavailable("begin tx", err)
	}
	defer tx.Rollback(ctx)

	var doc []byte
	var version int64
	err = tx.QueryRow(ctx, `SELECT version, state FROM household WHERE id = $1 FOR UPDATE`, HouseholdID).Scan(&version, &doc)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, unavailable("lock household", err)
	}

	st, out, err := apply(doc, version, s.seed, fn)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO household (id, version, state, updated_at)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (id) DO UPDATE
		SET version = EXCLUDED.version, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		HouseholdID, st.Version, string(out), time.Now())
	if err != nil {
		return nil, unavailable("save household", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("commit household", err)
	}
	return st, nil
}
