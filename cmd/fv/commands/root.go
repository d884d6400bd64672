package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fsvault/pkg/app"
	"fsvault/pkg/config"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	FV *app.App
)

// FindingsError 表示一次比较运行发现了 Medium 及以上级别的嫌疑
// 它不是程序故障：main 把它映射到退出码 1（故障是 2）。
type FindingsError struct {
	High   int
	Medium int
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("integrity findings: %d high, %d medium", e.High, e.Medium)
}

var rootCmd = &cobra.Command{
	Use:   "fv",
	Short: "fsvault: filesystem integrity snapshots and corruption detection",
	Long: `fsvault snapshots a directory tree into a checksum-protected metadata
database and compares snapshots to surface evidence of silent data
corruption (truncation, NUL bytes, encoding changes) with few false
positives. It never copies or repairs data.`,
	SilenceUsage: true,
	// 【关键】PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 跳过 init 命令的依赖检查 (因为它就是去创建环境的)
		if cmd.Name() == "init" || cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		// 统一初始化 App
		var err error
		FV, err = app.NewApp(cmd.Context())
		if err != nil {
			// 友好的错误提示
			return fmt.Errorf("failed to initialize fsvault: %w\n(Did you run 'fv init'?)", err)
		}
		return nil
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// 在初始化时，加载配置
	cobra.OnInitialize(initConfig)

	// 1. 定义全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fv/config.yaml)")

	// 2. 常用配置的命令行覆盖，绑定到 Viper
	// 这样用户既可以在 yaml 里写，也可以用 flag 覆盖
	rootCmd.PersistentFlags().String("storage-path", "", "directory to store databases")
	rootCmd.PersistentFlags().Int("workers", 0, "parallel file scanners (0 = number of CPUs)")
	for key, flag := range map[string]string{
		"storage.path":     "storage-path",
		"snapshot.workers": "workers",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Println("Failed to bind flag:", err)
			os.Exit(2)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(2)
	}
}
