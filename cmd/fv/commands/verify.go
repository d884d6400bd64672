package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fsvault/pkg/core"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <ref|digest>",
	Short: "Verify a stored database's structure and checksum",
	Long: `Load a stored database, validate its schema, and recompute the
whole-database digest against the stored value. Verification does not
trust anything verbatim; it re-reads and re-hashes the entire tree.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		hash, err := resolveDigest(ctx, args[0])
		if err != nil {
			return err
		}

		reader, err := FV.Store.Get(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to retrieve database %s: %w", short(hash), err)
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			return err
		}

		snap, err := core.Decode(data)
		switch {
		case errors.Is(err, core.ErrChecksumMismatch):
			// 整库摘要对不上：数据库文件本体被篡改或损坏
			fmt.Printf("❌ %s: checksum mismatch — the database file itself is corrupted or tampered\n", short(hash))
			return err
		case errors.Is(err, core.ErrSchemaViolation):
			fmt.Printf("❌ %s: schema violation — the database file is malformed\n", short(hash))
			return err
		case err != nil:
			return err
		}

		stats := snap.Stats()
		fmt.Printf("✅ %s: database intact (%d files, %d dirs, %d bytes)\n",
			short(hash), stats.Files, stats.Dirs, stats.TotalBytes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
