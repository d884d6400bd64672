package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded snapshot and check runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		snaps, err := FV.Catalog.ListSnapshots(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}
		checks, err := FV.Catalog.ListChecks(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list checks: %w", err)
		}

		if len(snaps) == 0 && len(checks) == 0 {
			fmt.Println("No recorded runs yet.")
			return nil
		}

		if len(snaps) > 0 {
			fmt.Println("Snapshots:")
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			for _, s := range snaps {
				label := s.Label
				if label == "" {
					label = "-"
				}
				fmt.Fprintf(tw, "  %s\t%s\t%d files\t%d bytes\t%s\t%s\n",
					s.Digest[:8], s.Root, s.Files, s.TotalBytes, label,
					s.CreatedAt.Format(time.RFC3339))
			}
			tw.Flush()
		}

		if len(checks) > 0 {
			fmt.Println("\nChecks:")
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			for _, c := range checks {
				fmt.Fprintf(tw, "  %s\tvs %s\tworst: %s\t(high %d, medium %d)\t%s\n",
					c.BaseDigest[:8], c.Target, c.WorstTier, c.High, c.Medium,
					c.CreatedAt.Format(time.RFC3339))
			}
			tw.Flush()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum rows per section")
}
