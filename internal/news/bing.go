package news

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/observability/metrics"
)

const defaultBingEndpoint = "https://api.bing.microsoft.com/v7.0/news/search"

// BingSearcher 调用 Bing News Search v7。
type BingSearcher struct {
	apiKey     string
	endpoint   string
	market     string
	httpClient *http.Client
}

// NewBingSearcher 创建 Bing 检索器。
func NewBingSearcher(apiKey, endpoint, market string, timeout time.Duration) (*BingSearcher, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "未提供 Bing News API Key")
	}
	if endpoint == "" {
		endpoint = defaultBingEndpoint
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &BingSearcher{
		apiKey:     apiKey,
		endpoint:   endpoint,
		market:     market,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Search 按关键词检索新闻。
func (s *BingSearcher) Search(ctx context.Context, q Query) (articles []Article, err error) {
	started := time.Now()
	defer func() { metrics.ObserveUpstream("bing", "search", started, err) }()

	params := url.Values{}
	params.Set("q", q.Text)
	if q.Limit > 0 {
		params.Set("count", strconv.Itoa(q.Limit))
	}
	market := q.Market
	if market == "" {
		market = s.market
	}
	if market != "" {
		params.Set("mkt", market)
	}
	if !q.Since.IsZero() {
		params.Set("sortBy", "Date")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "构建 Bing 请求失败")
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.WrapUpstream("bing", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, xerrors.FromHTTPStatus("bing", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded struct {
		Value []struct {
			Name          string `json:"name"`
			URL           string `json:"url"`
			Description   string `json:"description"`
			DatePublished string `json:"datePublished"`
			Provider      []struct {
				Name string `json:"name"`
			} `json:"provider"`
			Image struct {
				Thumbnail struct {
					ContentURL string `json:"contentUrl"`
				} `json:"thumbnail"`
			} `json:"image"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "解析 Bing 响应失败")
	}

	articles = make([]Article, 0, len(decoded.Value))
	for _, item := range decoded.Value {
		a := Article{
			Title:       item.Name,
			URL:         item.URL,
			Description: item.Description,
			PublishedAt: parseTime(item.DatePublished),
			ImageURL:    item.Image.Thumbnail.ContentURL,
		}
		if len(item.Provider) > 0 {
			a.Source = item.Provider[0].Name
		}
		articles = append(articles, a)
	}
	return Filter(articles, q), nil
}

var _ Searcher = (*BingSearcher)(nil)
