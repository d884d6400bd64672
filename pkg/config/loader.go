package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		// 否则按优先级搜索
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .fv
		viper.AddConfigPath(".fv")
		// 3. 用户主目录下的 .fv
		viper.AddConfigPath(filepath.Join(home, ".fv"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (FV_STORAGE_TYPE 等)
	viper.SetEnvPrefix("FV")
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 配置文件不存在不算错（默认值 + 环境变量足够跑起来），
		// 但文件存在且格式坏了必须报出来。
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}

	return nil
}

func setDefaults() {
	// 存储默认值
	wd, _ := os.Getwd()
	repoPath := filepath.Join(wd, ".fv")
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", filepath.Join(repoPath, "objects"))

	// S3 后端 (storage.type = "s3" 时生效)
	viper.SetDefault("storage.s3.endpoint", "")
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.bucket", "")

	// Redis 读穿缓存（装饰任意后端，默认关）
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.url", "redis://localhost:6379/0")
	viper.SetDefault("cache.ttl", "24h")

	// 运行目录 (SQLite 默认，Postgres 按需)
	viper.SetDefault("meta.driver", "sqlite")
	viper.SetDefault("meta.dsn", filepath.Join(repoPath, "catalog.db"))
	viper.SetDefault("meta.host", "localhost")
	viper.SetDefault("meta.port", 5432)
	viper.SetDefault("meta.sslmode", "disable")

	// 快照构建
	viper.SetDefault("snapshot.workers", 0) // 0 = CPU 核数
	viper.SetDefault("snapshot.algorithms", []string{"sha2-512/256", "blake2b"})
}
