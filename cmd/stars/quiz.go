package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"weekly-stars/pkg/challenge"
	"weekly-stars/pkg/tracker"
)

func newQuizCmd() *cobra.Command {
	var grade int
	cmd := &cobra.Command{
		Use:       "quiz <math|german|english>",
		Short:     "Take a challenge in the terminal and earn available stars",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"math", "german", "english"},
		RunE: func(cmd *cobra.Command, args []string) error {
			subj, err := challenge.ParseSubject(args[0])
			if err != nil {
				return err
			}
			return withService(func(ctx context.Context, svc *tracker.Service) error {
				c, err := svc.CreateChallenge(ctx, subj, grade)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				in := bufio.NewScanner(cmd.InOrStdin())
				answers := map[int]string{}
				for i, p := range c.Problems {
					fmt.Fprintf(out, "%s %s\n", title.Render(fmt.Sprintf("%d/%d", i+1, len(c.Problems))), p.Question)
					if len(p.Options) > 0 {
						fmt.Fprintln(out, muted.Render("   "+strings.Join(p.Options, " · ")))
					}
					fmt.Fprint(out, "> ")
					if !in.Scan() {
						break
					}
					answers[i] = in.Text()
				}

				res, err := svc.SubmitChallenge(ctx, c.ID, answers)
				if err != nil {
					return err
				}
				for i, p := range res.Challenge.Problems {
					if p.IsCorrect == nil || !*p.IsCorrect {
						fmt.Fprintf(out, "%s %d: %s\n", color.RedString("✗"), i+1, p.CorrectAnswer)
					}
				}
				fmt.Fprintf(out, "%d/%d correct (%.0f%%), earned %s\n", res.Correct, res.Total, res.Percentage, stars(res.StarsEarned))
				printSnapshot(out, res.Progress)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&grade, "grade", "g", 2, "school grade (2 or 3)")
	return cmd
}
