package challenge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"weekly-stars/pkg/ledger"
)

// SQLiteStore is a SQLite-backed challenge store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore on an open database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureTable creates the challenges table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS challenges (
			id           TEXT PRIMARY KEY,
			subject      TEXT NOT NULL,
			grade        INTEGER NOT NULL,
			problems     TEXT NOT NULL DEFAULT '[]',
			completed    INTEGER NOT NULL DEFAULT 0,
			score        REAL NOT NULL DEFAULT 0,
			stars_earned INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL,
			completed_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_challenges_subject ON challenges(subject, created_at)`)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, c *Challenge) error {
	problems, err := json.Marshal(c.Problems)
	if err != nil {
		return fmt.Errorf("marshal problems: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO challenges (id, subject, grade, problems, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, string(c.Subject), c.Grade, string(problems), c.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get challenge %s: %w", id, err)
	}
	defer rows.Close()
	list, err := scanSQLiteChallenges(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("challenge %s: %w", id, ledger.ErrNotFound)
	}
	return &list[0], nil
}

func (s *SQLiteStore) Complete(ctx context.Context, c *Challenge) error {
	problems, err := json.Marshal(c.Problems)
	if err != nil {
		return fmt.Errorf("marshal problems: %w", err)
	}
	var completedAt any
	if c.CompletedAt != nil {
		completedAt = c.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE challenges
		SET problems = ?, completed = 1, score = ?, stars_earned = ?, completed_at = ?
		WHERE id = ? AND completed = 0`,
		string(problems), c.Score, c.StarsEarned, completedAt, c.ID)
	if err != nil {
		return fmt.Errorf("complete challenge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var completed bool
		err := s.db.QueryRowContext(ctx, `SELECT completed FROM challenges WHERE id = ?`, c.ID).Scan(&completed)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("challenge %s: %w", c.ID, ledger.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("complete challenge: %w", err)
		}
		return fmt.Errorf("challenge %s: %w", c.ID, ledger.ErrAlreadySubmitted)
	}
	return nil
}

func (s *SQLiteStore) Recent(ctx context.Context, subject Subject, limit int) ([]Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+challengeColumns+` FROM challenges
		WHERE ? = '' OR subject = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, string(subject), string(subject), limit)
	if err != nil {
		return nil, fmt.Errorf("recent challenges: %w", err)
	}
	defer rows.Close()
	return scanSQLiteChallenges(rows)
}

func scanSQLiteChallenges(rows *sql.Rows) ([]Challenge, error) {
	var out []Challenge
	for rows.Next() {
		var (
			c           Challenge
			subject     string
			problems    string
			createdAt   string
			completedAt sql.NullString
		)
		if err := rows.Scan(&c.ID, &subject, &c.Grade, &problems, &c.Completed, &c.Score, &c.StarsEarned, &createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		c.Subject = Subject(subject)
		if err := json.Unmarshal([]byte(problems), &c.Problems); err != nil {
			return nil, fmt.Errorf("decode problems of %s: %w", c.ID, err)
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", c.ID, err)
		}
		c.CreatedAt = t
		if completedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, completedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse completed_at of %s: %w", c.ID, err)
			}
			c.CompletedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
