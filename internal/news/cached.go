package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsCrew/internal/cache"
	"NewsCrew/internal/observability/metrics"
	"NewsCrew/pkg/logger"
)

// Cached 为任意 Searcher 增加结果缓存。缓存读写失败不会影响检索本身。
type Cached struct {
	next  Searcher
	store cache.Cache
	ttl   time.Duration
}

// NewCached 包装一个检索器。
func NewCached(next Searcher, store cache.Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, store: store, ttl: ttl}
}

// Search 优先返回缓存结果。
func (c *Cached) Search(ctx context.Context, q Query) ([]Article, error) {
	key := cacheKey(q)
	if raw, err := c.store.Get(ctx, key); err == nil {
		var articles []Article
		if err := json.Unmarshal(raw, &articles); err == nil {
			metrics.IncCacheLookup(true)
			return articles, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.L().Warn("读取新闻缓存失败", slog.String("key", key), slog.Any("error", err))
	}
	metrics.IncCacheLookup(false)

	articles, err := c.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(articles); err == nil {
		if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
			logger.L().Warn("写入新闻缓存失败", slog.String("key", key), slog.Any("error", err))
		}
	}
	return articles, nil
}

// cacheKey 对查询文本做大小写与空白归一化，Since 精确到秒。
func cacheKey(q Query) string {
	text := strings.Join(strings.Fields(strings.ToLower(q.Text)), " ")
	since := ""
	if !q.Since.IsZero() {
		since = q.Since.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("news:%s|%s|%d|%s", text, since, q.Limit, strings.ToLower(q.Market))
}

var _ Searcher = (*Cached)(nil)
