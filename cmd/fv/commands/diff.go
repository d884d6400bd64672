package commands

import (
	"github.com/spf13/cobra"

	"fsvault/pkg/diff"
)

var diffJSON bool

var diffCmd = &cobra.Command{
	Use:   "diff <ref|digest> <ref|digest>",
	Short: "Compare two stored databases",
	Long: `Structurally compare two stored databases (A old, B new) and classify
every change by corruption suspicion. Exits 1 if any finding is Medium
or higher, 2 on operational failure.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		hashA, err := resolveDigest(ctx, args[0])
		if err != nil {
			return err
		}
		hashB, err := resolveDigest(ctx, args[1])
		if err != nil {
			return err
		}

		snapA, err := loadSnapshot(ctx, hashA)
		if err != nil {
			return err
		}
		snapB, err := loadSnapshot(ctx, hashB)
		if err != nil {
			return err
		}

		result := diff.Compare(snapA, snapB)
		return reportAndRecord(ctx, hashA, hashB.String(), result, diffJSON)
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "emit machine-readable JSON instead of text")
}
