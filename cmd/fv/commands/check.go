package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fsvault/pkg/diff"
	"fsvault/pkg/report"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check <ref|digest> [path]",
	Short: "Compare a stored database against a live directory",
	Long: `Rebuild a snapshot of the given directory (default: current directory)
and compare the stored database (old side) against it (new side).
The live snapshot is not stored. Exits 1 on findings at Medium or
higher, 2 on operational failure.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		base, err := resolveDigest(ctx, args[0])
		if err != nil {
			return err
		}
		stored, err := loadSnapshot(ctx, base)
		if err != nil {
			return err
		}

		root := "."
		if len(args) > 1 {
			root = args[1]
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "🔍 Scanning %s ...\n", absRoot)
		live, err := FV.NewBuilder().Build(ctx, absRoot)
		if err != nil {
			return err
		}
		_ = report.WriteWarnings(os.Stderr, live.Warnings)

		result := diff.Compare(stored, live.Snapshot)
		return reportAndRecord(ctx, base, absRoot, result, checkJSON)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "emit machine-readable JSON instead of text")
}
