// Package backup copies the household document to and from a directory or
// an S3 bucket.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"weekly-stars/internal/config"
	"weekly-stars/pkg/ledger"
	"weekly-stars/pkg/tracker"
)

// Target stores named backup documents.
type Target interface {
	Put(ctx context.Context, name string, doc []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns backup names, oldest first.
	List(ctx context.Context) ([]string, error)
}

// Household is the part of tracker.Service a backup needs.
type Household interface {
	State(ctx context.Context) (*tracker.State, error)
	Restore(ctx context.Context, st *tracker.State) (ledger.Snapshot, error)
}

const suffix = ".json"

// Name returns the default backup name for t. Names sort chronologically.
func Name(t time.Time) string {
	return "household-" + t.UTC().Format("20060102T150405Z") + suffix
}

// New returns the S3 target when a bucket is configured, else the directory.
func New(ctx context.Context, cfg config.BackupConfig) (Target, error) {
	if cfg.S3.Bucket != "" {
		return NewS3Target(ctx, cfg.S3)
	}
	return &DirTarget{Dir: cfg.Dir}, nil
}

// Push writes the current household under name (Name(now) when empty) and
// returns the name used.
func Push(ctx context.Context, h Household, t Target, name string) (string, error) {
	st, err := h.State(ctx)
	if err != nil {
		return "", err
	}
	doc, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode household: %w", err)
	}
	if name == "" {
		name = Name(time.Now())
	}
	if err := t.Put(ctx, clean(name), doc); err != nil {
		return "", fmt.Errorf("put backup %s: %w", name, err)
	}
	return clean(name), nil
}

// Pull restores the backup called name, or the newest one when name is empty.
func Pull(ctx context.Context, h Household, t Target, name string) (string, ledger.Snapshot, error) {
	if name == "" {
		names, err := t.List(ctx)
		if err != nil {
			return "", ledger.Snapshot{}, fmt.Errorf("list backups: %w", err)
		}
		if len(names) == 0 {
			return "", ledger.Snapshot{}, fmt.Errorf("no backups: %w", ledger.ErrNotFound)
		}
		name = names[len(names)-1]
	}
	name = clean(name)
	doc, err := t.Get(ctx, name)
	if err != nil {
		return "", ledger.Snapshot{}, fmt.Errorf("get backup %s: %w", name, err)
	}
	st, err := tracker.DecodeState(doc, ledger.DefaultSeed)
	if err != nil {
		return "", ledger.Snapshot{}, fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	snap, err := h.Restore(ctx, st)
	return name, snap, err
}

func clean(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if !strings.HasSuffix(name, suffix) {
		name += suffix
	}
	return name
}

// DirTarget keeps backups as files in Dir.
type DirTarget struct {
	Dir string
}

func (d *DirTarget) Put(_ context.Context, name string, doc []byte) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(d.Dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, doc, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(d.Dir, name))
}

func (d *DirTarget) Get(_ context.Context, name string) ([]byte, error) {
	doc, err := os.ReadFile(filepath.Join(d.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("backup %s: %w", name, ledger.ErrNotFound)
	}
	return doc, err
}

func (d *DirTarget) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), suffix) && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
