// Command stars administers a weekly-stars household directly on the
// configured storage backend.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"weekly-stars/internal/backend"
	"weekly-stars/internal/config"
	"weekly-stars/internal/logging"
	"weekly-stars/pkg/tracker"
)

const version = "0.3.0"

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           "stars",
		Short:         "Weekly star tracker administration",
		Long:          "stars records chore stars, moves them between the task pool, the available pool and the safe, and manages rewards.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log storage activity to stderr")

	root.AddCommand(
		newProgressCmd(),
		newSafeCmd(),
		newAvailableCmd(),
		newResetCmd(),
		newAuditCmd(),
		newTaskCmd(),
		newRecordCmd(),
		newRewardCmd(),
		newQuizCmd(),
		newJournalCmd(),
		newBackupCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("✗"), err)
		if k := tracker.Kind(err); k == "unavailable" {
			fmt.Fprintln(os.Stderr, color.YellowString("storage unavailable, try again"))
		}
		os.Exit(1)
	}
}

// openBackend loads the configuration and opens the storage backend.
func openBackend(ctx context.Context) (*config.Config, *backend.Backend, error) {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	log, _, err := logging.New(w, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.Backend == "memory" {
		fmt.Fprintln(os.Stderr, color.YellowString("warning: memory backend, changes are lost when stars exits"))
	}
	b, err := backend.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, b, nil
}

// withService runs fn against the household service tagged as cli.
func withService(fn func(ctx context.Context, svc *tracker.Service) error) error {
	ctx := context.Background()
	_, b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b.Service.WithSource("cli"))
}
