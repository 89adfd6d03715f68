package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"weekly-stars/internal/backup"
	"weekly-stars/internal/config"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the household to or from the backup directory or S3",
	}

	run := func(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return fn(context.Background(), cmd, args)
		}
	}

	push := &cobra.Command{
		Use:   "push [name]",
		Short: "Write a backup",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			cfg, b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()
			target, err := backup.New(ctx, cfg.Backup)
			if err != nil {
				return err
			}
			name, err := backup.Push(ctx, b.Service.WithSource("cli"), target, first(args))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), good.Render("✓ saved "+name))
			return nil
		}),
	}

	pull := &cobra.Command{
		Use:   "pull [name]",
		Short: "Restore a backup (the newest when no name is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			cfg, b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()
			target, err := backup.New(ctx, cfg.Backup)
			if err != nil {
				return err
			}
			name, snap, err := backup.Pull(ctx, b.Service.WithSource("cli"), target, first(args))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), good.Render("✓ restored "+name))
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		}),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List backups",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(configPath)
			if err != nil {
				return err
			}
			target, err := backup.New(ctx, cfg.Backup)
			if err != nil {
				return err
			}
			names, err := target.List(ctx)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		}),
	}

	cmd.AddCommand(push, pull, list)
	return cmd
}

func first(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
