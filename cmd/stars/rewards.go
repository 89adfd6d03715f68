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

func newRewardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reward",
		Aliases: []string{"rewards"},
		Short:   "Manage rewards",
	}

	list := &cobra.Command{
		Use:   "list [query]",
		Short: "List rewards, fuzzy-filtered by query",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *tracker.Service) error {
				rewards, err := svc.ListRewards(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tREWARD\tSTARS\tCLAIMED")
				for _, r := range rewards {
					claimed := ""
					if r.IsClaimed {
						claimed = "✓"
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Name, r.RequiredStars, claimed)
				}
				return tw.Flush()
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <stars> <name>",
		Short: "Add a reward",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q is not a number", ledger.ErrInvalidInput, args[0])
			}
			return withService(func(ctx context.Context, svc *tracker.Service) error {
				r, err := svc.CreateReward(ctx, strings.Join(args[1:], " "), n)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s for %s %s\n", good.Render("✓ added"), r.Name, stars(r.RequiredStars), muted.Render(r.ID))
				return nil
			})
		},
	}

	claim := &cobra.Command{
		Use:   "claim <id>",
		Short: "Spend available stars on a reward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *tracker.Service) error {
				snap, err := svc.ClaimReward(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), good.Render("🎉 reward claimed"))
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id|all>",
		Short: "Delete one reward, or all of them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *tracker.Service) error {
				if args[0] == "all" {
					return svc.DeleteAllRewards(ctx)
				}
				return svc.DeleteReward(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(list, add, claim, rm)
	return cmd
}
