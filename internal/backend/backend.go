// Package backend wires the storage backend and collaborators selected in
// the configuration into a tracker.Service.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"weekly-stars/internal/config"
	"weekly-stars/internal/db"
	"weekly-stars/pkg/challenge"
	"weekly-stars/pkg/journal"
	"weekly-stars/pkg/tracker"
)

// Backend bundles the stores of one storage backend.
type Backend struct {
	Household  tracker.Store
	Challenges challenge.Store
	Journal    *journal.Bus
	Generator  challenge.Generator
	Service    *tracker.Service

	closers []func()
}

// Close releases every connection the backend opened.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// ensurer is implemented by every store.
type ensurer interface {
	EnsureTable(ctx context.Context) error
}

// Open connects to cfg.Storage.Backend, creates missing tables and builds
// the service.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Backend, error) {
	b := &Backend{}
	seed := cfg.Ledger.SafeSeed
	var events journal.EventStore

	switch cfg.Storage.Backend {
	case "memory":
		b.Household = tracker.NewMemStore(seed)
		b.Challenges = challenge.NewMemStore()
		events = journal.NewMemStore()

	case "postgres":
		pool, err := db.Connect(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.Household = tracker.NewPgStore(pool, seed)
		b.Challenges = challenge.NewPgStore(pool)
		events = journal.NewPgStore(pool)

	case "sqlite":
		conn, err := db.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { conn.Close() })
		b.Household = tracker.NewSQLiteStore(conn, seed)
		b.Challenges = challenge.NewSQLiteStore(conn)
		events = journal.NewSQLiteStore(conn)

	case "mongo":
		database, err := db.ConnectMongo(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { database.Client().Disconnect(context.Background()) })
		b.Household = tracker.NewMongoStore(database, seed)
		b.Challenges = challenge.NewMongoStore(database)
		events = journal.NewMongoStore(database)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	for name, s := range map[string]ensurer{
		"household":  b.Household,
		"challenges": b.Challenges,
		"journal":    events,
	} {
		if err := s.EnsureTable(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("ensure %s table: %w", name, err)
		}
	}

	cached, err := challenge.NewCachedStore(b.Challenges, cfg.Challenge.CacheSize)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Challenges = cached
	b.Journal = journal.NewBus(events)
	b.Generator = NewGenerator(cfg.Challenge, log)

	policy, err := tracker.ParseRewardPolicy(cfg.Ledger.ResetAllRewards)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Service = tracker.NewService(b.Household, b.Challenges, b.Generator, b.Journal, log,
		tracker.Options{ResetAllRewards: policy})

	log.Info("storage ready", "backend", cfg.Storage.Backend, "safe_seed", seed, "generator", cfg.Challenge.Generator)
	return b, nil
}

// NewGenerator returns the problem generator named in cfg. The anthropic
// generator needs an API key and falls back to the simple one.
func NewGenerator(cfg config.ChallengeConfig, log *slog.Logger) challenge.Generator {
	simple := challenge.NewSimpleGenerator(0)
	if cfg.Generator != "anthropic" {
		return simple
	}
	if cfg.AnthropicAPIKey == "" {
		log.Warn("challenge.generator is anthropic but no API key is set, using simple generator")
		return simple
	}
	return challenge.NewLLMGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel, simple, log)
}
