package news

import (
	"context"
	"strings"
	"time"
)

// Article 是一条检索到的新闻。
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// Query 描述一次新闻检索。Since 为零值时不做日期过滤。
type Query struct {
	Text   string
	Since  time.Time
	Limit  int
	Market string
}

// Searcher 定义新闻检索的统一接口。
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Article, error)
}

// SearcherFunc 让普通函数满足 Searcher 接口。
type SearcherFunc func(ctx context.Context, q Query) ([]Article, error)

// Search 实现 Searcher。
func (f SearcherFunc) Search(ctx context.Context, q Query) ([]Article, error) {
	return f(ctx, q)
}

// Filter 丢弃没有链接或早于 Since 的文章，按 URL 去重并截断到 Limit。
// 没有发布时间的文章在日期过滤时保留。
func Filter(articles []Article, q Query) []Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		url := strings.TrimSpace(a.URL)
		if url == "" {
			continue
		}
		if !q.Since.IsZero() && !a.PublishedAt.IsZero() && a.PublishedAt.Before(q.Since) {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		a.URL = url
		a.Title = strings.TrimSpace(a.Title)
		a.Description = strings.TrimSpace(a.Description)
		out = append(out, a)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// parseTime 尝试几种常见的时间格式，失败时返回零值。
func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.0000000Z",
		"2006-01-02T15:04:05",
		"Jan 2, 2006",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseRelative 解析 Serper 返回的 "3 hours ago" 形式的时间。
func parseRelative(value string, now time.Time) time.Time {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(value)))
	if len(fields) != 3 || fields[2] != "ago" {
		return parseTime(value)
	}
	var n int
	for _, r := range fields[0] {
		if r < '0' || r > '9' {
			return time.Time{}
		}
		n = n*10 + int(r-'0')
	}
	unit := strings.TrimSuffix(fields[1], "s")
	var step time.Duration
	switch unit {
	case "minute", "min":
		step = time.Minute
	case "hour":
		step = time.Hour
	case "day":
		step = 24 * time.Hour
	case "week":
		step = 7 * 24 * time.Hour
	default:
		return time.Time{}
	}
	return now.Add(-time.Duration(n) * step)
}
