package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"weekly-stars/pkg/ledger"
)

// PgStore is a PostgreSQL-backed challenge store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the challenges table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS challenges (
			id           TEXT PRIMARY KEY,
			subject      TEXT NOT NULL,
			grade        INTEGER NOT NULL,
			problems     JSONB NOT NULL DEFAULT '[]',
			completed    BOOLEAN NOT NULL DEFAULT FALSE,
			score        DOUBLE PRECISION NOT NULL DEFAULT 0,
			stars_earned INTEGER NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_challenges_subject ON challenges(subject, created_at DESC)`)
	return err
}

const challengeColumns = `id, subject, grade, problems, completed, score, stars_earned, created_at, completed_at`

// Create inserts a new challenge.
func (s *PgStore) Create(ctx context.Context, c *Challenge) error {
	problems, err := json.Marshal(c.Problems)
	if err != nil {
		return fmt.Errorf("marshal problems: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO challenges (id, subject, grade, problems, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)`,
		c.ID, c.Subject, c.Grade, string(problems), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

// Get retrieves a challenge by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Challenge, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get challenge %s: %w", id, err)
	}
	defer rows.Close()
	list, err := scanChallenges(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("challenge %s: %w", id, ledger.ErrNotFound)
	}
	return &list[0], nil
}

// Complete stores the graded challenge unless it was already completed.
func (s *PgStore) Complete(ctx context.Context, c *Challenge) error {
	problems, err := json.Marshal(c.Problems)
	if err != nil {
		return fmt.Errorf("marshal problems: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE challenges
		SET problems = $2::jsonb, completed = TRUE, score = $3, stars_earned = $4, completed_at = $5
		WHERE id = $1 AND NOT completed`,
		c.ID, string(problems), c.Score, c.StarsEarned, c.CompletedAt)
	if err != nil {
		return fmt.Errorf("complete challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var completed bool
		err := s.pool.QueryRow(ctx, `SELECT completed FROM challenges WHERE id = $1`, c.ID).Scan(&completed)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("challenge %s: %w", c.ID, ledger.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("complete challenge: %w", err)
		}
		return fmt.Errorf("challenge %s: %w", c.ID, ledger.ErrAlreadySubmitted)
	}
	return nil
}

// Recent returns the newest challenges, optionally for one subject.
func (s *PgStore) Recent(ctx context.Context, subject Subject, limit int) ([]Challenge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+challengeColumns+` FROM challenges
		WHERE $1 = '' OR subject = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`, string(subject), limit)
	if err != nil {
		return nil, fmt.Errorf("recent challenges: %w", err)
	}
	defer rows.Close()
	return scanChallenges(rows)
}

type scanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanChallenges(rows scanner) ([]Challenge, error) {
	var out []Challenge
	for rows.Next() {
		var c Challenge
		var problems []byte
		if err := rows.Scan(&c.ID, &c.Subject, &c.Grade, &problems, &c.Completed, &c.Score, &c.StarsEarned, &c.CreatedAt, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		if err := json.Unmarshal(problems, &c.Problems); err != nil {
			return nil, fmt.Errorf("decode problems of %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
