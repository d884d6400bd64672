package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an fsvault repository",
	Long:  `Create an empty fsvault repository (.fv directory) or reinitialize an existing one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 获取当前路径
		wd, err := os.Getwd()
		if err != nil {
			return err
		}

		// 2. 定义仓库路径 (.fv)
		repoPath := filepath.Join(wd, ".fv")
		objectsPath := filepath.Join(repoPath, "objects")
		refsPath := filepath.Join(repoPath, "refs")

		// 3. 检查是否已存在
		if _, err := os.Stat(repoPath); err == nil {
			fmt.Printf("⚠️  fsvault repository already exists in %s\n", repoPath)
			return nil
		}

		// 4. 创建目录结构
		// .fv/objects 放数据库，.fv/refs 放命名引用
		for _, p := range []string{objectsPath, refsPath} {
			if err := os.MkdirAll(p, 0755); err != nil {
				return fmt.Errorf("failed to create repo directory: %w", err)
			}
		}

		fmt.Printf("✅ Initialized empty fsvault repository in %s\n", repoPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
