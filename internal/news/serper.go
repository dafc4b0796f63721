package news

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/observability/metrics"
)

const defaultSerperEndpoint = "https://google.serper.dev/news"

// SerperSearcher 调用 serper.dev 的 Google News 接口。
type SerperSearcher struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	now        func() time.Time
}

// NewSerperSearcher 创建 Serper 检索器。
func NewSerperSearcher(apiKey, endpoint string, timeout time.Duration) (*SerperSearcher, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "未提供 Serper API Key")
	}
	if endpoint == "" {
		endpoint = defaultSerperEndpoint
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &SerperSearcher{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}, nil
}

// Search 按关键词检索新闻。
func (s *SerperSearcher) Search(ctx context.Context, q Query) (articles []Article, err error) {
	started := time.Now()
	defer func() { metrics.ObserveUpstream("serper", "search", started, err) }()

	body := map[string]any{"q": q.Text}
	if q.Limit > 0 {
		body["num"] = q.Limit
	}
	if q.Market != "" {
		body["gl"] = strings.ToLower(marketCountry(q.Market))
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化 Serper 请求失败")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "构建 Serper 请求失败")
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.WrapUpstream("serper", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, xerrors.FromHTTPStatus("serper", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded struct {
		News []struct {
			Title    string `json:"title"`
			Link     string `json:"link"`
			Snippet  string `json:"snippet"`
			Date     string `json:"date"`
			Source   string `json:"source"`
			ImageURL string `json:"imageUrl"`
		} `json:"news"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "解析 Serper 响应失败")
	}

	now := s.now()
	articles = make([]Article, 0, len(decoded.News))
	for _, item := range decoded.News {
		articles = append(articles, Article{
			Title:       item.Title,
			URL:         item.Link,
			Description: item.Snippet,
			Source:      item.Source,
			PublishedAt: parseRelative(item.Date, now),
			ImageURL:    item.ImageURL,
		})
	}
	return Filter(articles, q), nil
}

// marketCountry 将 en-US 形式的市场代码转换为国家代码。
func marketCountry(market string) string {
	if idx := strings.LastIndex(market, "-"); idx >= 0 {
		return market[idx+1:]
	}
	return market
}

var _ Searcher = (*SerperSearcher)(nil)
