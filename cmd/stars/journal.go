package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"weekly-stars/pkg/journal"
)

func newJournalCmd() *cobra.Command {
	var limit int
	var eventType string
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent star movements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			var events []journal.Event
			if eventType != "" {
				events, err = b.Journal.ByType(ctx, eventType, limit)
			} else {
				events, err = b.Journal.Recent(ctx, limit)
			}
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tTYPE\tSOURCE\tDETAILS")
			for _, e := range events {
				details := map[string]any{}
				for k, v := range e.Content {
					if k != "snapshot" {
						details[k] = v
					}
				}
				raw, _ := json.Marshal(details)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format("Mon 02.01. 15:04"), e.Type, e.Source, raw)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events")
	cmd.Flags().StringVarP(&eventType, "type", "t", "", "only events of this type")
	return cmd
}
