package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/observability/metrics"
)

const (
	defaultTimeout   = 20 * time.Second
	defaultMaxBytes  = 2 << 20
	defaultUserAgent = "NewsCrew/1.0 (+https://github.com/newscrew)"
)

// Page 是抓取后的网页正文。
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Fetcher 抽象网页抓取能力，便于在 crew 与 rag 中替换。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Option 用于配置 Scraper。
type Option func(*Scraper)

// WithTimeout 设置单次请求超时。
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.httpClient.Timeout = d
		}
	}
}

// WithMaxBytes 限制读取的正文大小。
func WithMaxBytes(n int64) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithUserAgent 覆盖默认 User-Agent。
func WithUserAgent(ua string) Option {
	return func(s *Scraper) {
		if strings.TrimSpace(ua) != "" {
			s.userAgent = ua
		}
	}
}

// WithHTTPClient 替换底层 HTTP 客户端。
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// Scraper 下载网页并提取所有 <p> 段落文本。
type Scraper struct {
	httpClient *http.Client
	maxBytes   int64
	userAgent  string
}

// New 创建 Scraper。
func New(opts ...Option) *Scraper {
	s := &Scraper{
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxBytes:   defaultMaxBytes,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Fetch 抓取页面，Text 为所有段落文本以空格拼接的结果。
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (page *Page, err error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("无效的网页地址 %q", rawURL))
	}

	started := time.Now()
	defer func() { metrics.ObserveUpstream("web", "scrape", started, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "构建抓取请求失败")
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.WrapUpstream(parsed.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, xerrors.FromHTTPStatus(parsed.Host, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, s.maxBytes))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "解析网页失败")
	}
	return Extract(parsed.String(), doc), nil
}

// Extract 从已解析的文档中提取标题和段落文本。
func Extract(pageURL string, doc *goquery.Document) *Page {
	paragraphs := make([]string, 0, 32)
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		title = strings.TrimSpace(og)
	}
	return &Page{
		URL:   pageURL,
		Title: title,
		Text:  strings.Join(paragraphs, " "),
	}
}

var _ Fetcher = (*Scraper)(nil)
