package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "NewsCrew/internal/errors"
)

// RedisConfig 描述 Redis 缓存的连接参数。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// RedisCache 使用 Redis 字符串键存储缓存值。
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache 创建 Redis 缓存并检查连通性。
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "连接 Redis 失败")
	}
	return NewRedisCacheWithClient(client, cfg.Prefix), nil
}

// NewRedisCacheWithClient 复用已有的 Redis 客户端。
func NewRedisCacheWithClient(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "newscrew:cache:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

// Get 读取缓存。
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("读取缓存 %s 失败", key))
	}
	return value, nil
}

// Set 写入缓存。
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("写入缓存 %s 失败", key))
	}
	return nil
}

// Close 关闭 Redis 连接。
func (c *RedisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
