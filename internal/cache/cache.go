package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMiss 表示缓存中不存在指定的键或已过期。
var ErrMiss = errors.New("cache miss")

// Cache 是最小化的字节缓存接口。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache 是带过期时间的进程内缓存。
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	maxSize int
}

// NewMemoryCache 创建内存缓存，maxSize <= 0 时不限制条目数量。
func NewMemoryCache(maxSize int) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		maxSize: maxSize,
	}
}

// Get 返回缓存值的副本。
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, ErrMiss
	}
	return append([]byte(nil), entry.value...), nil
}

// Set 写入缓存，ttl <= 0 表示永不过期。
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		if _, exists := c.entries[key]; !exists {
			c.evictLocked()
		}
	}
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

// evictLocked 先清理过期条目，仍然超限时淘汰最早过期的一条。
func (c *MemoryCache) evictLocked() {
	now := c.now()
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			continue
		}
		if oldestKey == "" || (!entry.expiresAt.IsZero() && entry.expiresAt.Before(oldest)) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	if len(c.entries) >= c.maxSize && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

var _ Cache = (*MemoryCache)(nil)
