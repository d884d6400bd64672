package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fsvault/pkg/core"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <ref|digest>",
	Short: "Export a stored database as JSON",
	Long: `Render a stored database as indented JSON for inspection or external
tooling. The export is one-way: JSON carries no checksum and is never
accepted back as a database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		hash, err := resolveDigest(ctx, args[0])
		if err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx, hash)
		if err != nil {
			return err
		}

		out := os.Stdout
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			out = f
		}
		return core.ExportJSON(out, snap)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
}
