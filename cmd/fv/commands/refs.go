package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "List named references",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := FV.Refs.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No references yet. Run 'fv snapshot' to create LATEST.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		for _, ref := range list {
			fmt.Fprintf(tw, "%s\t%s\n", ref.Name, ref.Hash)
		}
		return tw.Flush()
	},
}

var refsSetCmd = &cobra.Command{
	Use:   "set <name> <ref|digest>",
	Short: "Point a named reference at a database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		hash, err := resolveDigest(ctx, args[1])
		if err != nil {
			return err
		}

		// 只允许指向真实存在的数据库：悬空引用比没有引用更糟
		ok, err := FV.Store.Has(ctx, hash)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("database %s not found in store", short(hash))
		}

		if err := FV.Refs.Update(args[0], hash); err != nil {
			return err
		}
		fmt.Printf("✅ %s -> %s\n", args[0], short(hash))
		return nil
	},
}

var refsRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a named reference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := FV.Refs.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("✅ Deleted reference %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refsCmd)
	refsCmd.AddCommand(refsSetCmd)
	refsCmd.AddCommand(refsRmCmd)
}
