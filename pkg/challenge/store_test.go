package challenge

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"weekly-stars/pkg/ledger"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "challenges.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	if err := s.EnsureTable(ctx); err != nil {
		t.Fatalf("ensure table: %v", err)
	}

	c := New(Math, 2, problems(3))
	if err := s.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Subject != Math || len(got.Problems) != 3 || got.Completed {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, err := got.Mark(map[int]string{0: "0"}, DefaultTiers(), time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.Complete(ctx, got); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := s.Complete(ctx, got); !errors.Is(err, ledger.ErrAlreadySubmitted) {
		t.Errorf("second complete: %v", err)
	}

	done, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !done.Completed || done.CompletedAt == nil || done.Problems[0].IsCorrect == nil || !*done.Problems[0].IsCorrect {
		t.Errorf("completed challenge not persisted: %+v", done)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("get missing: %v", err)
	}
	if err := s.Complete(ctx, New(German, 2, nil)); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("complete missing: %v", err)
	}

	if err := s.Create(ctx, New(German, 3, problems(1))); err != nil {
		t.Fatal(err)
	}
	recent, err := s.Recent(ctx, Math, 10)
	if err != nil || len(recent) != 1 {
		t.Errorf("recent math: %v (%d)", err, len(recent))
	}
	all, err := s.Recent(ctx, "", 10)
	if err != nil || len(all) != 2 {
		t.Errorf("recent all: %v (%d)", err, len(all))
	}
}

func TestMemStore(t *testing.T) {
	testStore(t, NewMemStore())
}

func TestSQLiteStore(t *testing.T) {
	testStore(t, NewSQLiteStore(openSQLite(t)))
}

func TestCachedStore(t *testing.T) {
	s, err := NewCachedStore(NewMemStore(), 4)
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, s)
}

func TestCachedStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s, _ := NewCachedStore(NewMemStore(), 4)
	c := New(Math, 2, problems(2))
	if err := s.Create(ctx, c); err != nil {
		t.Fatal(err)
	}
	a, _ := s.Get(ctx, c.ID)
	if _, err := a.Mark(map[int]string{0: "0", 1: "1"}, DefaultTiers(), time.Now()); err != nil {
		t.Fatal(err)
	}
	b, _ := s.Get(ctx, c.ID)
	if b.Completed || b.Problems[0].UserAnswer != nil {
		t.Error("grading a fetched challenge leaked into the cache")
	}
}
