package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"fsvault/pkg/core"
	"fsvault/pkg/refs"
	"fsvault/pkg/report"
)

var snapshotLabel string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [path]",
	Short: "Snapshot a directory tree into a checksummed database",
	Long: `Walk the given directory (default: current directory), hash every
regular file, and store the resulting metadata database. The LATEST
reference is updated on success; use --label to add a named reference.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		root := "."
		if len(args) > 0 {
			root = args[0]
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return err
		}

		// ---------------------------------------------------------
		// Phase 1: 遍历 + 扫描 (The Heavy Lifting)
		// ---------------------------------------------------------
		fmt.Printf("📦 Snapshotting %s ...\n", absRoot)
		start := time.Now()

		result, err := FV.NewBuilder().Build(ctx, absRoot)
		if err != nil {
			// 取消或根目录不可用：已有的警告照样给人看
			if result != nil {
				_ = report.WriteWarnings(os.Stderr, result.Warnings)
			}
			return err
		}
		duration := time.Since(start)

		// ---------------------------------------------------------
		// Phase 2: 编码 + 入库
		// ---------------------------------------------------------
		encoded, err := core.Encode(result.Snapshot)
		if err != nil {
			return fmt.Errorf("failed to encode database: %w", err)
		}
		if err := FV.Store.Put(ctx, encoded); err != nil {
			return fmt.Errorf("failed to store database: %w", err)
		}

		// ---------------------------------------------------------
		// Phase 3: 引用 + 目录
		// ---------------------------------------------------------
		if err := FV.Refs.Update(refs.Latest, encoded.ID()); err != nil {
			return fmt.Errorf("failed to update %s: %w", refs.Latest, err)
		}
		if snapshotLabel != "" {
			if err := FV.Refs.Update(snapshotLabel, encoded.ID()); err != nil {
				return fmt.Errorf("failed to set label %q: %w", snapshotLabel, err)
			}
		}

		stats := result.Snapshot.Stats()
		if err := FV.Catalog.RecordSnapshot(ctx, encoded.ID(), absRoot, stats, result.Warnings, snapshotLabel, duration); err != nil {
			// 目录是旁路索引：快照本体已经安全落库，只警告
			fmt.Fprintf(os.Stderr, "⚠️  Warning: failed to record snapshot in catalog: %v\n", err)
		}

		// ---------------------------------------------------------
		// Phase 4: 汇报
		// ---------------------------------------------------------
		_ = report.WriteWarnings(os.Stderr, result.Warnings)
		fmt.Printf("✅ [%s] %d files, %d dirs, %d bytes\n",
			short(encoded.ID()), stats.Files, stats.Dirs, stats.TotalBytes)
		if stats.Unreadable > 0 || stats.Unsupported > 0 {
			fmt.Printf("   Unreadable: %d | Unsupported: %d\n", stats.Unreadable, stats.Unsupported)
		}
		fmt.Printf("   Time: %s\n", duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	// 绑定 Flags
	snapshotCmd.Flags().StringVarP(&snapshotLabel, "label", "l", "", "also point a named reference at this database")
}
