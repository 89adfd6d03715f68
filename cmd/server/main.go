package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"weekly-stars/internal/api"
	"weekly-stars/internal/backend"
	"weekly-stars/internal/backup"
	"weekly-stars/internal/config"
	"weekly-stars/internal/logging"
	"weekly-stars/internal/rollover"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, loader, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	log, level, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		slog.Error("build logger", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	if err := run(cfg, loader, log, level); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, loader *config.Loader, log *slog.Logger, level *slog.LevelVar) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := backend.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	backups, err := backup.New(ctx, cfg.Backup)
	if err != nil {
		log.Warn("backups disabled", "err", err)
		backups = nil
	}

	loader.Watch(func(next *config.Config) {
		lvl, err := logging.ParseLevel(next.Log.Level)
		if err != nil {
			log.Warn("config reload", "err", err)
			return
		}
		if lvl != level.Level() {
			level.Set(lvl)
			log.Info("log level changed", "level", lvl.String())
		}
	}, func(err error) {
		log.Warn("config reload rejected", "err", err)
	})

	server := api.New(b.Service, b.Journal, backups, log, api.Options{
		CORSOrigin: cfg.Server.CORSOrigin,
		Backend:    cfg.Storage.Backend,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("weekly-stars listening", "addr", cfg.Server.Addr, "config", loader.File())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if cfg.Ledger.AutoWeeklyReset {
		g.Go(func() error {
			return rollover.Run(gctx, b.Service.WithSource("rollover"), rollover.DefaultInterval, nil, log)
		})
	}
	return g.Wait()
}
