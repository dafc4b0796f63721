package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/llm"
	"NewsCrew/internal/observability/metrics"
)

const (
	providerName       = "openai"
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModelName   = "gpt-4o-mini"
	defaultTemperature = 0.7
	defaultTimeout     = 60 * time.Second
)

// Config 描述了调用 OpenAI Chat Completions API 所需的信息。
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client 通过 HTTP 调用 OpenAI 兼容的对话接口。
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewClient 根据配置创建 OpenAI 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "未提供 OpenAI API Key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}

	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatPayload struct {
	Model          string        `json:"model"`
	Messages       []llm.Message `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage llm.Usage `json:"usage"`
}

// Chat 调用 /chat/completions 并返回第一条候选的文本。
func (c *Client) Chat(ctx context.Context, req llm.Request) (resp *llm.Response, err error) {
	started := time.Now()
	defer func() { metrics.ObserveUpstream(providerName, "chat", started, err) }()

	if len(req.Messages) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "对话消息不能为空")
	}
	payload, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "构建 OpenAI 请求失败")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, xerrors.WrapUpstream(providerName, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 2048))
		return nil, xerrors.FromHTTPStatus(providerName, httpResp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "解析 OpenAI 响应失败")
	}
	if len(decoded.Choices) == 0 {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure, "OpenAI 响应中没有有效的 choices")
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure, "OpenAI 响应内容为空")
	}

	model := decoded.Model
	if model == "" {
		model = c.model
	}
	return &llm.Response{Content: content, Model: model, Usage: decoded.Usage}, nil
}

func (c *Client) buildPayload(req llm.Request) ([]byte, error) {
	body := chatPayload{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: c.temperature,
	}
	if model := strings.TrimSpace(req.Model); model != "" {
		body.Model = model
	}
	if req.Temperature != nil {
		body.Temperature = *req.Temperature
	}
	if req.JSON {
		body.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化 OpenAI 请求失败")
	}
	return encoded, nil
}

var _ llm.Client = (*Client)(nil)
