// pkg/app/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"fsvault/pkg/meta"
	"fsvault/pkg/refs"
	"fsvault/pkg/scan"
	"fsvault/pkg/snapshot"
	"fsvault/pkg/storage"
	"fsvault/pkg/storage/cache"
	"fsvault/pkg/storage/disk"
	"fsvault/pkg/storage/s3"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务
type App struct {
	Store   storage.Store
	Refs    *refs.Manager
	Catalog *meta.Repository
	Engine  *scan.Engine
	// 如果未来有 Logger, Config 对象，也放这里
	RepoPath string
	Workers  int
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	// 1. 仓库根路径 (Single Source of Truth)
	// storePath: .../.fv/objects
	// repoPath:  .../.fv
	storePath := viper.GetString("storage.path")
	if storePath == "" {
		return nil, fmt.Errorf("storage path not set")
	}
	repoPath := filepath.Dir(storePath)
	if _, err := os.Stat(repoPath); err != nil {
		return nil, fmt.Errorf("repository %s not found", repoPath)
	}

	// 2. 存储层：后端选择 + 可选缓存装饰
	store, err := initStore(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	store, err = wrapCache(store)
	if err != nil {
		return nil, err
	}

	// 3. 命名引用
	refMgr := refs.NewManager(repoPath)

	// 4. 运行目录 (SQLite 默认)
	catalog, err := initCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init catalog: %w", err)
	}

	// 5. 扫描引擎（算法集来自配置）
	algos, err := scan.ParseAlgos(viper.GetStringSlice("snapshot.algorithms"))
	if err != nil {
		return nil, err
	}
	engine, err := scan.New(algos)
	if err != nil {
		return nil, err
	}

	return &App{
		Store:    store,
		Refs:     refMgr,
		Catalog:  catalog,
		Engine:   engine,
		RepoPath: repoPath,
		Workers:  viper.GetInt("snapshot.workers"),
	}, nil
}

// NewBuilder 按容器配置创建快照构建器
func (a *App) NewBuilder() *snapshot.Builder {
	return snapshot.NewBuilder(a.Engine, a.Workers)
}

// initStore 按配置选择存储后端
func initStore(ctx context.Context, repoPath string) (storage.Store, error) {
	switch t := viper.GetString("storage.type"); t {
	case "disk", "":
		path := viper.GetString("storage.path")
		if path == "" {
			path = filepath.Join(repoPath, "objects")
		}
		return disk.NewAdapter(path)

	case "s3":
		bucket := viper.GetString("storage.s3.bucket")
		if bucket == "" {
			return nil, fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
		return s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          bucket,
			AccessKeyID:     viper.GetString("storage.s3.access_key_id"),
			SecretAccessKey: viper.GetString("storage.s3.secret_access_key"),
		})

	default:
		return nil, fmt.Errorf("unsupported storage type %q", t)
	}
}

// wrapCache 按配置给存储套上 Redis 读穿缓存
// 缓存永远是锦上添花：连不上 Redis 时报错退出由用户决定关掉它，
// 而不是默默降级让人以为缓存在工作。
func wrapCache(backend storage.Store) (storage.Store, error) {
	if !viper.GetBool("cache.enabled") {
		return backend, nil
	}

	ttl := viper.GetDuration("cache.ttl")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cached, err := cache.NewCachedStore(backend, cache.Config{
		RedisURL: viper.GetString("cache.url"),
		TTL:      ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init cache (set cache.enabled=false to disable): %w", err)
	}
	slog.Debug("redis cache enabled", "ttl", ttl)
	return cached, nil
}

// initCatalog 打开运行目录数据库
func initCatalog(ctx context.Context) (*meta.Repository, error) {
	db, err := meta.NewDB(ctx, meta.Config{
		Driver:   viper.GetString("meta.driver"),
		DSN:      viper.GetString("meta.dsn"),
		Host:     viper.GetString("meta.host"),
		Port:     viper.GetInt("meta.port"),
		User:     viper.GetString("meta.user"),
		Password: viper.GetString("meta.password"),
		DBName:   viper.GetString("meta.dbname"),
		SSLMode:  viper.GetString("meta.sslmode"),
	})
	if err != nil {
		return nil, err
	}
	return meta.NewRepository(db), nil
}
