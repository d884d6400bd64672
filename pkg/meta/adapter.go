package meta

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的目录驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config 目录数据库配置
// SQLite 只需要 DSN（文件路径或内存 DSN）；Postgres 用其余字段拼接。
type Config struct {
	Driver string

	// SQLite: 文件路径，或 "file:x?mode=memory&cache=shared"
	DSN string

	// Postgres
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable" for local
}

// DB 封装了 GORM 实例，作为目录层的入口
type DB struct {
	conn *gorm.DB
}

// NewDB 初始化目录数据库连接
// 默认 SQLite（单机 CLI 的常态），Postgres 给多机共享目录的场景。
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite, "":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite catalog requires a dsn")
		}
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q", cfg.Driver)
	}

	// CLI 场景下 SQL 日志是噪音，只报慢查询和错误
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	// 获取底层 sql.DB 以配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverPostgres {
		// 连接池配置 (生产环境必配)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// SQLite 单写者，多连接只会换来 database is locked
		sqlDB.SetMaxOpenConns(1)
	}

	// 验证连接是否存活
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("catalog ping failed: %w", err)
	}

	// 自动迁移表结构
	if err := db.AutoMigrate(&SnapshotRecord{}, &CheckRecord{}); err != nil {
		return nil, fmt.Errorf("auto migration failed: %w", err)
	}

	return &DB{conn: db}, nil
}

// NewWithConn 允许使用现有的 GORM 连接初始化 DB。
// 这对于依赖注入、复用连接池或单元测试非常有用。
func NewWithConn(conn *gorm.DB) *DB {
	return &DB{conn: conn}
}

// AutoMigrate 自动迁移表结构 (GORM 的黑魔法)
// 传入我们定义的 Model Structs
func (d *DB) AutoMigrate(models ...any) error {
	return d.conn.AutoMigrate(models...)
}

func (d *DB) GetConn() *gorm.DB {
	return d.conn
}
