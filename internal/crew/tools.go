package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/news"
	"NewsCrew/internal/scrape"
)

// State 在一次 Kickoff 的任务之间共享工具产出。
type State struct {
	Subject  string
	Articles []news.Article

	observations map[string]string
}

// Tool 是任务执行前运行的外部能力，返回值作为上下文交给模型。
type Tool interface {
	Name() string
	Run(ctx context.Context, state *State) (string, error)
}

// SearchTool 以主题检索新闻，并把文章写入 State。
type SearchTool struct {
	Searcher news.Searcher
	Limit    int
	// Window 大于零时只保留最近 Window 内发布的文章。
	Window time.Duration
	now    func() time.Time
}

// NewSearchTool 创建新闻检索工具。
func NewSearchTool(searcher news.Searcher, limit int) *SearchTool {
	return &SearchTool{Searcher: searcher, Limit: limit, now: time.Now}
}

// Name 实现 Tool。
func (t *SearchTool) Name() string { return ToolSearch }

// Run 实现 Tool。
func (t *SearchTool) Run(ctx context.Context, state *State) (string, error) {
	if t.Searcher == nil {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "未配置新闻检索")
	}
	q := news.Query{Text: state.Subject, Limit: t.Limit}
	if t.Window > 0 {
		now := time.Now
		if t.now != nil {
			now = t.now
		}
		q.Since = now().Add(-t.Window)
	}
	articles, err := t.Searcher.Search(ctx, q)
	if err != nil {
		return "", err
	}
	state.Articles = articles
	return FormatArticles(articles), nil
}

// FormatArticles 将文章列表渲染为编号文本。
func FormatArticles(articles []news.Article) string {
	if len(articles) == 0 {
		return "No articles found."
	}
	var b strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, a.Title)
		if a.Source != "" {
			fmt.Fprintf(&b, "   Source: %s\n", a.Source)
		}
		if !a.PublishedAt.IsZero() {
			fmt.Fprintf(&b, "   Published: %s\n", a.PublishedAt.UTC().Format(time.RFC3339))
		}
		fmt.Fprintf(&b, "   URL: %s\n", a.URL)
		if a.Description != "" {
			fmt.Fprintf(&b, "   %s\n", a.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ScrapeTool 抓取检索结果中排名靠前的文章正文。
type ScrapeTool struct {
	Fetcher scrape.Fetcher
	TopN    int
	// MaxChars 限制每篇正文进入提示词的字符数。
	MaxChars int
	// Concurrency 限制同时抓取的页面数。
	Concurrency int
}

// NewScrapeTool 创建网页抓取工具。
func NewScrapeTool(fetcher scrape.Fetcher, topN int) *ScrapeTool {
	return &ScrapeTool{Fetcher: fetcher, TopN: topN, MaxChars: 4000, Concurrency: 4}
}

// Name 实现 Tool。
func (t *ScrapeTool) Name() string { return ToolScrape }

// Run 实现 Tool。单篇抓取失败只记录在结果中。
func (t *ScrapeTool) Run(ctx context.Context, state *State) (string, error) {
	if t.Fetcher == nil {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "未配置网页抓取")
	}
	if len(state.Articles) == 0 {
		return "No articles to scrape.", nil
	}
	n := t.TopN
	if n <= 0 {
		n = 2
	}
	if n > len(state.Articles) {
		n = len(state.Articles)
	}

	sections := make([]string, n)
	limit := t.Concurrency
	if limit <= 0 {
		limit = 1
	}
	// 单篇失败写入 sections 而不返回错误，避免取消其余抓取。
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		article := state.Articles[i]
		g.Go(func() error {
			page, err := t.Fetcher.Fetch(gctx, article.URL)
			if err != nil {
				sections[i] = fmt.Sprintf("### %s\n(failed to fetch %s: %v)", article.Title, article.URL, err)
				return nil
			}
			sections[i] = fmt.Sprintf("### %s\n%s", firstNonEmpty(page.Title, article.Title), truncate(page.Text, t.MaxChars))
			return nil
		})
	}
	_ = g.Wait()
	return strings.Join(sections, "\n\n"), nil
}

func truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var (
	_ Tool = (*SearchTool)(nil)
	_ Tool = (*ScrapeTool)(nil)
)
