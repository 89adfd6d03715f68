package backend

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"weekly-stars/internal/config"
	"weekly-stars/pkg/challenge"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "stars.db")
	cfg.Ledger.SafeSeed = 4

	b, err := Open(ctx, cfg, discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()

	snap, err := b.Service.Progress(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.StarsInSafe != 4 {
		t.Errorf("safe = %d, want configured seed 4", snap.StarsInSafe)
	}
	tk, err := b.Service.CreateTask(ctx, "Tisch decken")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Service.RecordTaskStars(ctx, tk.ID, "fri", 2); err != nil {
		t.Fatal(err)
	}
	if n, err := b.Journal.Count(ctx); err != nil || n != 2 {
		t.Errorf("journal count = %d, %v", n, err)
	}
	if err := b.Journal.VerifyChain(ctx); err != nil {
		t.Error(err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "redis"
	if _, err := Open(context.Background(), cfg, discard()); err == nil {
		t.Error("expected error")
	}
}

func TestNewGenerator(t *testing.T) {
	if _, ok := NewGenerator(config.ChallengeConfig{Generator: "simple"}, discard()).(*challenge.SimpleGenerator); !ok {
		t.Error("simple generator expected")
	}
	if _, ok := NewGenerator(config.ChallengeConfig{Generator: "anthropic"}, discard()).(*challenge.SimpleGenerator); !ok {
		t.Error("missing key should fall back to simple generator")
	}
	if _, ok := NewGenerator(config.ChallengeConfig{Generator: "anthropic", AnthropicAPIKey: "k"}, discard()).(*challenge.LLMGenerator); !ok {
		t.Error("llm generator expected")
	}
}
