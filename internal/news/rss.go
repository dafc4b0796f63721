package news

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/observability/metrics"
	"NewsCrew/pkg/logger"
)

// RSSSearcher 并发拉取配置的订阅源，按关键词匹配标题与摘要。
type RSSSearcher struct {
	feeds   []string
	timeout time.Duration
}

// NewRSSSearcher 创建 RSS 检索器。
func NewRSSSearcher(feeds []string, timeout time.Duration) (*RSSSearcher, error) {
	if len(feeds) == 0 {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "至少需要一个 RSS 订阅源")
	}
	return &RSSSearcher{feeds: append([]string(nil), feeds...), timeout: timeout}, nil
}

// newParser 为每次拉取创建独立的解析器，gofeed.Parser 不能并发复用。
func (s *RSSSearcher) newParser() *gofeed.Parser {
	parser := gofeed.NewParser()
	if s.timeout > 0 {
		parser.Client = &http.Client{Timeout: s.timeout}
	}
	return parser
}

// Search 拉取全部订阅源；单个源失败只记录日志，全部失败时返回错误。
func (s *RSSSearcher) Search(ctx context.Context, q Query) ([]Article, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		articles []Article
		failures int
		lastErr  error
	)
	for _, feedURL := range s.feeds {
		wg.Add(1)
		go func(feedURL string) {
			defer wg.Done()
			started := time.Now()
			feed, err := s.newParser().ParseURLWithContext(feedURL, ctx)
			metrics.ObserveUpstream("rss", "fetch", started, err)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				lastErr = err
				logger.L().Warn("拉取 RSS 失败", slog.String("feed", feedURL), slog.Any("error", err))
				return
			}
			articles = append(articles, fromFeed(feed)...)
		}(feedURL)
	}
	wg.Wait()

	if failures == len(s.feeds) {
		return nil, xerrors.WrapUpstream("rss", lastErr)
	}

	terms := strings.Fields(strings.ToLower(q.Text))
	matched := articles[:0]
	for _, a := range articles {
		if matchesTerms(a, terms) {
			matched = append(matched, a)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].PublishedAt.After(matched[j].PublishedAt)
	})
	return Filter(matched, q), nil
}

func fromFeed(feed *gofeed.Feed) []Article {
	out := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := Article{
			Title:       item.Title,
			URL:         item.Link,
			Description: stripHTML(item.Description),
			Source:      feed.Title,
		}
		if a.Description == "" {
			a.Description = stripHTML(item.Content)
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			a.PublishedAt = *item.UpdatedParsed
		}
		if item.Image != nil {
			a.ImageURL = item.Image.URL
		}
		out = append(out, a)
	}
	return out
}

// matchesTerms 要求所有关键词都出现在标题或摘要中。
func matchesTerms(a Article, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(a.Title + " " + a.Description)
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// stripHTML 取出摘要 HTML 的纯文本，实体会被解码，空白折叠为单个空格。
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

var _ Searcher = (*RSSSearcher)(nil)
