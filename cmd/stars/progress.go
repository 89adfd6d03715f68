package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"weekly-stars/pkg/ledger"
	"weekly-stars/pkg/tracker"
)

func newProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "progress",
		Aliases: []string{"status"},
		Short:   "Show the current balances",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *tracker.Service) error {
				snap, err := svc.Progress(ctx)
				if err != nil {
					return err
				}
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}
}

type amountOp func(*tracker.Service) func(context.Context, int) (ledger.Snapshot, error)

// amountCmd builds a subcommand taking one positive star amount.
func amountCmd(use, short string, op amountOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <stars>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: %q is not a number", ledger.ErrInvalidInput, args[0])
			}
			return withService(func(ctx context.Context, svc *tracker.Service) error {
				snap, err := op(svc)(ctx, n)
				if err != nil {
					return err
				}
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}
}

func newSafeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "safe",
		Short: "Move stars into or out of the safe",
	}
	cmd.AddCommand(
		amountCmd("deposit", "Move task stars into the safe", func(s *tracker.Service) func(context.Context, int) (ledger.Snapshot, error) {
			return s.TransferTaskStarsToSafe
		}),
		amountCmd("deposit-available", "Move available stars into the safe", func(s *tracker.Service) func(context.Context, int) (ledger.Snapshot, error) {
			return s.TransferAvailableToSafe
		}),
		amountCmd("withdraw", "Move stars from the safe to the available pool", func(s *tracker.Service) func(context.Context, int) (ledger.Snapshot, error) {
			return s.WithdrawFromSafe
		}),
	)
	return cmd
}

func newAvailableCmd() *cobra.Command {
	return amountCmd("spendable", "Make task stars available for rewards", func(s *tracker.Service) func(context.Context, int) (ledger.Snapshot, error) {
		return s.TransferTaskStarsToAvailable
	})
}

func newResetCmd() *cobra.Command {
	var safe, all bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Start a new week (--safe empties the safe, --all wipes everything)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if safe && all {
				return fmt.Errorf("%w: --safe and --all are exclusive", ledger.ErrInvalidInput)
			}
			return withService(func(ctx context.Context, svc *tracker.Service) error {
				op, what := svc.ResetWeek, "week reset"
				switch {
				case safe:
					op, what = svc.ResetSafe, "safe reset"
				case all:
					op, what = svc.ResetAll, "everything reset"
				}
				snap, err := op(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), good.Render("✓ "+what))
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&safe, "safe", false, "return safe stars above the seed to the task pool")
	cmd.Flags().BoolVar(&all, "all", false, "reset every pool and counter")
	return cmd
}

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check the ledger invariants and the journal chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			out := cmd.OutOrStdout()
			ledgerErr := b.Service.Audit(ctx)
			if ledgerErr != nil {
				fmt.Fprintf(out, "%s ledger: %v\n", color.RedString("✗"), ledgerErr)
			} else {
				fmt.Fprintf(out, "%s ledger balanced\n", color.GreenString("✓"))
			}
			chainErr := b.Journal.VerifyChain(ctx)
			if chainErr != nil {
				fmt.Fprintf(out, "%s journal: %v\n", color.RedString("✗"), chainErr)
			} else {
				n, _ := b.Journal.Count(ctx)
				fmt.Fprintf(out, "%s journal chain intact (%d events)\n", color.GreenString("✓"), n)
			}
			if ledgerErr != nil || chainErr != nil {
				return fmt.Errorf("audit failed")
			}
			return nil
		},
	}
}
