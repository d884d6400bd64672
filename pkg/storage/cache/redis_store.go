package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"fsvault/pkg/storage"
	"fsvault/pkg/types"

	"github.com/redis/go-redis/v9"
)

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 缓存层
// 数据库对象是纯元数据（KB~MB 级）且内容寻址不可变，直接整体缓存字节：
// 同一个 Key 永远对应同一份内容，不存在失效问题，TTL 只管容量。
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 S3)
	client  *redis.Client // Redis 客户端
	ttl     time.Duration // 缓存过期时间 (例如 24h)
}

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	// 解析 URL
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
	}, nil
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey(hash types.Hash) string {
	return "fv:db:" + string(hash)
}

// Get 读穿缓存 (Read-Through)
// 架构决策：缓存故障降级 (Cache Failure Fallback)
// Redis 挂了绝不让读操作失败，退化为直查底层存储。
func (s *CachedStore) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	key := s.cacheKey(hash)

	// 1. 查 Redis
	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		// Cache Hit! 无需发起底层网络请求。
		return io.NopCloser(bytes.NewReader(data)), nil
	case !errors.Is(err, redis.Nil):
		// 真正的 Redis 故障：降级，不回填
		slog.Warn("redis get failed, falling back to backend", "err", err)
		return s.backend.Get(ctx, hash)
	}

	// 2. 缓存未命中 (Cache Miss)，查底层存储
	reader, err := s.backend.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err = io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	// 3. 缓存回填 (Cache Fill)
	// 关键点：异步写入 Redis，不要阻塞主流程
	// 使用 context.Background() 确保即使上层 ctx 取消，回填也能完成
	go func() {
		fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.client.Set(fillCtx, key, data, s.ttl)
	}()

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Has 优先查 Redis，实现毫秒级存在性检查
func (s *CachedStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	key := s.cacheKey(hash)

	// 1. 查 Redis
	// Exists 返回 1 表示存在，0 表示不存在
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		// 同样降级为无缓存模式，直接查底层
		slog.Warn("redis exists failed, falling back to backend", "err", err)
	} else if val > 0 {
		// Cache Hit!
		return true, nil
	}

	// 2. 缓存未命中，查底层存储
	// 这里只知道“存在”，拿不到字节，回填留给下一次 Get。
	return s.backend.Has(ctx, hash)
}

// Put 写穿缓存 (Write-Through)。利用 Has 的缓存能力进行预检。
func (s *CachedStore) Put(ctx context.Context, obj storage.Object) error {
	// 1. 利用上面的 Has 方法检查存在性
	// 如果 Redis 里有，这一步耗时 < 1ms，直接跳过上传
	exists, err := s.Has(ctx, obj.ID())
	if err != nil {
		return err
	}
	if exists {
		return nil // 幂等性：已存在
	}

	// 2. 穿透到底层存储
	if err := s.backend.Put(ctx, obj); err != nil {
		return err
	}

	// 3. 写入缓存
	// 只有底层写成功了，才写 Redis；Set 失败不影响主流程
	key := s.cacheKey(obj.ID())
	if err := s.client.Set(ctx, key, obj.Bytes(), s.ttl).Err(); err != nil {
		slog.Warn("redis set after put failed", "err", err)
	}

	return nil
}

// ExpandHash 透传
// 前缀查询需要枚举能力，Redis 这层没有全集，必须问底层。
func (s *CachedStore) ExpandHash(ctx context.Context, short types.HashPrefix) (types.Hash, error) {
	return s.backend.ExpandHash(ctx, short)
}
