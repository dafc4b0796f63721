package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/observability/metrics"
	"NewsCrew/internal/vectorstore"
)

const (
	providerName   = "pinecone"
	apiVersion     = "2024-07"
	defaultTimeout = 30 * time.Second
	fetchBatchSize = 100
)

// Config 描述 Pinecone 索引的 data-plane 访问参数。
type Config struct {
	APIKey    string
	IndexHost string
	Dimension int
	Timeout   time.Duration
}

// Client 通过 REST 接口读写 Pinecone 索引。
type Client struct {
	apiKey     string
	host       string
	dimension  int
	httpClient *http.Client
}

// NewClient 创建 Pinecone 客户端。IndexHost 可省略协议头。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "未提供 Pinecone API Key")
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.IndexHost), "/")
	if host == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "未提供 Pinecone 索引地址")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     apiKey,
		host:       host,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Upsert 调用 /vectors/upsert。
func (c *Client) Upsert(ctx context.Context, namespace string, vectors []vectorstore.Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := vectorstore.ValidateVectors(vectors, c.dimension); err != nil {
		return err
	}
	body := map[string]any{"vectors": vectors}
	if namespace != "" {
		body["namespace"] = namespace
	}
	return c.do(ctx, "upsert", http.MethodPost, "/vectors/upsert", nil, body, nil)
}

// Fetch 调用 /vectors/fetch，按批次拼接查询参数。
func (c *Client) Fetch(ctx context.Context, namespace string, ids []string) (map[string]vectorstore.Vector, error) {
	result := make(map[string]vectorstore.Vector, len(ids))
	for start := 0; start < len(ids); start += fetchBatchSize {
		end := start + fetchBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		query := url.Values{}
		for _, id := range ids[start:end] {
			query.Add("ids", id)
		}
		if namespace != "" {
			query.Set("namespace", namespace)
		}
		var decoded struct {
			Vectors map[string]vectorstore.Vector `json:"vectors"`
		}
		if err := c.do(ctx, "fetch", http.MethodGet, "/vectors/fetch", query, nil, &decoded); err != nil {
			return nil, err
		}
		for id, v := range decoded.Vectors {
			if v.ID == "" {
				v.ID = id
			}
			result[id] = v
		}
	}
	return result, nil
}

// Query 调用 /query。
func (c *Client) Query(ctx context.Context, vector []float32, q vectorstore.Query) ([]vectorstore.Match, error) {
	if err := vectorstore.ValidateDimension(vector, c.dimension); err != nil {
		return nil, err
	}
	topK := q.TopK
	if topK <= 0 {
		topK = 1
	}
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": q.IncludeMetadata,
		"includeValues":   false,
	}
	if q.Namespace != "" {
		body["namespace"] = q.Namespace
	}
	var decoded struct {
		Matches []vectorstore.Match `json:"matches"`
	}
	if err := c.do(ctx, "query", http.MethodPost, "/query", nil, body, &decoded); err != nil {
		return nil, err
	}
	return decoded.Matches, nil
}

// Delete 调用 /vectors/delete。
func (c *Client) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"ids": ids}
	if namespace != "" {
		body["namespace"] = namespace
	}
	return c.do(ctx, "delete", http.MethodPost, "/vectors/delete", nil, body, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, out any) (err error) {
	started := time.Now()
	defer func() { metrics.ObserveUpstream(providerName, op, started, err) }()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化 Pinecone 请求失败")
		}
		reader = bytes.NewReader(payload)
	}
	endpoint := c.host + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeUnknown, err, "构建 Pinecone 请求失败")
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("X-Pinecone-API-Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return xerrors.WrapUpstream(providerName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return xerrors.FromHTTPStatus(providerName, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "解析 Pinecone 响应失败")
	}
	return nil
}

var _ vectorstore.Store = (*Client)(nil)
