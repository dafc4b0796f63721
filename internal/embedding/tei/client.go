package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsCrew/internal/embedding"
	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/observability/metrics"
)

const (
	providerName   = "tei"
	defaultTimeout = 30 * time.Second
)

// Config 指向一个 text-embeddings-inference 服务。
type Config struct {
	URL       string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// Client 调用 TEI 的 /embed 接口。
type Client struct {
	url        string
	apiKey     string
	dimension  int
	httpClient *http.Client
}

// NewClient 创建 TEI 客户端。
func NewClient(cfg Config) (*Client, error) {
	url := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if url == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "未指定 TEI 服务地址")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:        url,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Dimension 返回向量维度。
func (c *Client) Dimension() int { return c.dimension }

// Embed 发送 {"inputs": [...]}，服务端返回二维数组。
func (c *Client) Embed(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	if len(texts) == 0 {
		return nil, nil
	}
	started := time.Now()
	defer func() { metrics.ObserveUpstream(providerName, "embed", started, err) }()

	payload, err := json.Marshal(map[string]any{"inputs": texts, "truncate": true})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化 TEI 请求失败")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "构建 TEI 请求失败")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.WrapUpstream(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, xerrors.FromHTTPStatus(providerName, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "解析 TEI 响应失败")
	}
	if err := embedding.CheckResult(providerName, len(texts), vectors, c.dimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

var _ embedding.Embedder = (*Client)(nil)
