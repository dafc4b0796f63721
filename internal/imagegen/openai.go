package imagegen

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	xerrors "NewsCrew/internal/errors"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig 描述 OpenAI 图片接口。
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Defaults Defaults
}

// OpenAI 调用 OpenAI 的图片生成接口，返回图片 URL。
type OpenAI struct {
	apiKey     string
	baseURL    string
	defaults   Defaults
	httpClient *http.Client
}

// NewOpenAI 创建 OpenAI 图片生成器，默认尺寸为 1024x1024。
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "未提供 OpenAI API Key")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	defaults := cfg.Defaults
	if defaults.Width <= 0 {
		defaults.Width = 1024
	}
	if defaults.Height <= 0 {
		defaults.Height = 1024
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAI{
		apiKey:     apiKey,
		baseURL:    baseURL,
		defaults:   defaults,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Generate 请求 /images/generations，steps 参数会被忽略。
func (o *OpenAI) Generate(ctx context.Context, req Request) ([]Image, error) {
	if err := validatePrompt(req); err != nil {
		return nil, err
	}
	req = o.defaults.apply(req)
	body := map[string]any{
		"prompt": req.Prompt,
		"n":      req.N,
		"size":   fmt.Sprintf("%dx%d", req.Width, req.Height),
	}
	if o.defaults.Model != "" {
		body["model"] = o.defaults.Model
	}
	return postImages(ctx, o.httpClient, "openai", o.baseURL+"/images/generations", o.apiKey, body)
}

var _ Generator = (*OpenAI)(nil)
