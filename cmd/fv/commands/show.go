package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fsvault/pkg/core"
	"fsvault/pkg/types"
)

var showCmd = &cobra.Command{
	Use:   "show <ref|digest> [path]",
	Short: "Show a node inside a stored database",
	Long: `Resolve a path inside a stored database (default: the root directory)
and print its details: directory listings, file sizes, digests and
content flags, or the sentinel kind for unsupported/unreadable entries.`,
	Args: cobra.RangeArgs(1, 2),
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

		p := "."
		if len(args) > 1 {
			p = args[1]
		}
		node, ok := snap.Lookup(p)
		if !ok {
			return fmt.Errorf("path %q not found in database %s", p, short(hash))
		}

		printNode(p, node)
		return nil
	},
}

// printNode 按节点类型分发打印
func printNode(p string, node core.Node) {
	switch v := node.(type) {
	case *core.Dir:
		fmt.Printf("Type: Directory (%d entries)\n\n", v.Len())
		// 使用 tabwriter 对齐输出 (像 git ls-tree)
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		for _, name := range v.Names() {
			child, _ := v.Child(name)
			fmt.Fprintf(tw, "%s\t%s\t%s\n", child.Kind(), name, childSummary(child))
		}
		tw.Flush()

	case *core.File:
		fmt.Printf("Type:  File\n")
		fmt.Printf("Size:  %d bytes\n", v.Size())
		for _, algo := range v.Algos() {
			d, _ := v.Digest(algo)
			fmt.Printf("%s: %s\n", algo, d)
		}
		if nul, known := v.HasNul(); known {
			fmt.Printf("nul:      %v\n", nul)
		}
		if na, known := v.HasNonASCII(); known {
			fmt.Printf("nonascii: %v\n", na)
		}

	case *core.Unsupported:
		fmt.Printf("Type: Unsupported entry (%s)\n", v.Entry())

	case *core.Unreadable:
		fmt.Printf("Type: Unreadable entry (failed op: %s)\n", v.Op())
	}
}

// childSummary 目录列表里每行的紧凑说明
func childSummary(n core.Node) string {
	switch v := n.(type) {
	case *core.Dir:
		return fmt.Sprintf("%d entries", v.Len())
	case *core.File:
		if d, ok := v.Digest(types.AlgoSHA2); ok {
			return fmt.Sprintf("%d bytes  %s…", v.Size(), d[:8])
		}
		return fmt.Sprintf("%d bytes  (unhashed)", v.Size())
	case *core.Unsupported:
		return string(v.Entry())
	case *core.Unreadable:
		return string(v.Op())
	}
	return ""
}

func init() {
	rootCmd.AddCommand(showCmd)
}
