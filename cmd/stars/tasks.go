package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"weekly-stars/pkg/ledger"
	"weekly-stars/pkg/tracker"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Manage chores",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show chores with this week's stars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *tracker.Service) error {
				st, err := svc.State(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				header := []string{"ID", "CHORE"}
				for _, d := range ledger.Days {
					header = append(header, strings.ToUpper(string(d)[:3]))
				}
				fmt.Fprintln(tw, strings.Join(header, "\t"))
				for _, t := range st.Tasks {
					cells := []string{t.ID, t.Name}
					for _, d := range ledger.Days {
						cells = append(cells, strconv.Itoa(st.Ledger.Stars(t.ID, d)))
					}
					fmt.Fprintln(tw, strings.Join(cells, "\t"))
				}
				return tw.Flush()
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a chore",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *tracker.Service) error {
				t, err := svc.CreateTask(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", good.Render("✓ added"), t.Name, muted.Render(t.ID))
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a chore and its stars",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *tracker.Service) error {
				snap, err := svc.DeleteTask(ctx, args[0])
				if err != nil {
					return err
				}
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, rm)
	return cmd
}

func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record <task-id> <day> <0|1|2>",
		Short: "Set the stars a chore earned on a day",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("%w: %q is not a number", ledger.ErrInvalidInput, args[2])
			}
			return withService(func(ctx context.Context, svc *tracker.Service) error {
				snap, err := svc.RecordTaskStars(ctx, args[0], args[1], n)
				if err != nil {
					return err
				}
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}
}
