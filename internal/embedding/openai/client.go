package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"NewsCrew/internal/embedding"
	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/observability/metrics"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-3-small"
	defaultTimeout = 60 * time.Second
)

// Config 描述 OpenAI embeddings 接口。
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// Client 调用 /embeddings 接口。
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewClient 创建 embeddings 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "未提供 OpenAI API Key")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Dimension 返回配置的向量维度。
func (c *Client) Dimension() int { return c.dimension }

// Embed 批量计算向量，返回顺序与输入一致。
func (c *Client) Embed(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	if len(texts) == 0 {
		return nil, nil
	}
	started := time.Now()
	defer func() { metrics.ObserveUpstream(providerName, "embed", started, err) }()

	body := map[string]any{"model": c.model, "input": texts}
	if c.dimension > 0 && strings.HasPrefix(c.model, "text-embedding-3") {
		body["dimensions"] = c.dimension
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化 embeddings 请求失败")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "构建 embeddings 请求失败")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.WrapUpstream(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, xerrors.FromHTTPStatus(providerName, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "解析 embeddings 响应失败")
	}
	sort.Slice(decoded.Data, func(i, j int) bool { return decoded.Data[i].Index < decoded.Data[j].Index })

	vectors = make([][]float32, 0, len(decoded.Data))
	for _, item := range decoded.Data {
		vectors = append(vectors, item.Embedding)
	}
	if err := embedding.CheckResult(providerName, len(texts), vectors, c.dimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

var _ embedding.Embedder = (*Client)(nil)
