package backup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"weekly-stars/internal/config"
	"weekly-stars/pkg/challenge"
	"weekly-stars/pkg/ledger"
	"weekly-stars/pkg/tracker"
)

func newService() *tracker.Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return tracker.NewService(tracker.NewMemStore(ledger.DefaultSeed), challenge.NewMemStore(),
		challenge.NewSimpleGenerator(1), nil, log, tracker.Options{})
}

func TestName(t *testing.T) {
	got := Name(time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC))
	if got != "household-20261017T083000Z.json" {
		t.Errorf("name = %q", got)
	}
}

func TestPushPullDir(t *testing.T) {
	ctx := context.Background()
	target := &DirTarget{Dir: filepath.Join(t.TempDir(), "backups")}

	src := newService()
	tk, _ := src.CreateTask(ctx, "Hausaufgaben")
	src.RecordTaskStars(ctx, tk.ID, "tue", 2)
	src.TransferTaskStarsToSafe(ctx, 1)

	name, err := Push(ctx, src, target, "")
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if !strings.HasPrefix(name, "household-") {
		t.Errorf("name = %q", name)
	}
	if _, err := Push(ctx, src, target, "manual"); err != nil {
		t.Fatal(err)
	}
	names, _ := target.List(ctx)
	if len(names) != 2 {
		t.Fatalf("names = %v", names)
	}

	dst := newService()
	_, snap, err := Pull(ctx, dst, target, "manual")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if snap.TotalStars != 1 || snap.StarsInSafe != 4 {
		t.Errorf("restored snapshot: %+v", snap)
	}
	tasks, _ := dst.ListTasks(ctx)
	if len(tasks) != 1 || tasks[0].ID != tk.ID {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestPullLatestAndMissing(t *testing.T) {
	ctx := context.Background()
	target := &DirTarget{Dir: t.TempDir()}
	if _, _, err := Pull(ctx, newService(), target, ""); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("empty dir: %v", err)
	}
	if _, _, err := Pull(ctx, newService(), target, "nope"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("missing name: %v", err)
	}

	src := newService()
	src.CreateReward(ctx, "Ausflug", 12)
	if _, err := Push(ctx, src, target, "a-old"); err != nil {
		t.Fatal(err)
	}
	src.CreateReward(ctx, "Pizza", 6)
	if _, err := Push(ctx, src, target, "b-new"); err != nil {
		t.Fatal(err)
	}
	dst := newService()
	name, _, err := Pull(ctx, dst, target, "")
	if err != nil || name != "b-new.json" {
		t.Fatalf("latest = %q, %v", name, err)
	}
	if rewards, _ := dst.ListRewards(ctx, ""); len(rewards) != 2 {
		t.Errorf("rewards = %d", len(rewards))
	}
}

func TestPullRejectsCorruptBackup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"ledger":{"safe":-2}}`), 0o600)
	os.WriteFile(filepath.Join(dir, "junk.json"), []byte(`not json`), 0o600)
	target := &DirTarget{Dir: dir}

	for _, name := range []string{"bad", "junk"} {
		if _, _, err := Pull(ctx, newService(), target, name); !errors.Is(err, ledger.ErrInvalidInput) {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestNewPicksDirWithoutBucket(t *testing.T) {
	target, err := New(context.Background(), config.BackupConfig{Dir: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if d, ok := target.(*DirTarget); !ok || d.Dir != "x" {
		t.Errorf("target = %#v", target)
	}
}
