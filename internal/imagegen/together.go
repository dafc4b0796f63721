package imagegen

import (
	"context"
	"net/http"
	"strings"
	"time"

	xerrors "NewsCrew/internal/errors"
)

const defaultTogetherBaseURL = "https://api.together.xyz/v1"

// TogetherConfig 描述 Together AI 图片接口。
type TogetherConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Defaults Defaults
}

// Together 调用 Together AI 的 FLUX 模型，返回 base64 图片。
type Together struct {
	apiKey     string
	baseURL    string
	defaults   Defaults
	httpClient *http.Client
}

// NewTogether 创建 Together 生成器。
func NewTogether(cfg TogetherConfig) (*Together, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeConfigInvalid, "未提供 Together API Key")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultTogetherBaseURL
	}
	defaults := cfg.Defaults
	if defaults.Model == "" {
		defaults.Model = "black-forest-labs/FLUX.1-schnell"
	}
	if defaults.Width <= 0 {
		defaults.Width = 1024
	}
	if defaults.Height <= 0 {
		defaults.Height = 768
	}
	if defaults.Steps <= 0 {
		defaults.Steps = 4
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Together{
		apiKey:     apiKey,
		baseURL:    baseURL,
		defaults:   defaults,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Generate 请求 /images/generations。
func (t *Together) Generate(ctx context.Context, req Request) ([]Image, error) {
	if err := validatePrompt(req); err != nil {
		return nil, err
	}
	req = t.defaults.apply(req)
	body := map[string]any{
		"model":           t.defaults.Model,
		"prompt":          req.Prompt,
		"width":           req.Width,
		"height":          req.Height,
		"steps":           req.Steps,
		"n":               req.N,
		"response_format": "b64_json",
	}
	return postImages(ctx, t.httpClient, "together", t.baseURL+"/images/generations", t.apiKey, body)
}

var _ Generator = (*Together)(nil)
