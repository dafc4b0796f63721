package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/observability/metrics"
)

// Request 描述一次图片生成。零值字段使用生成器的默认值。
type Request struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Steps  int    `json:"steps,omitempty"`
	N      int    `json:"n,omitempty"`
}

// Image 是生成结果，B64JSON 与 URL 二选一。
type Image struct {
	B64JSON string `json:"b64_json,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Generator 定义图片生成的统一接口。
type Generator interface {
	Generate(ctx context.Context, req Request) ([]Image, error)
}

// Defaults 是生成器在请求未指定时使用的参数。
type Defaults struct {
	Model  string
	Width  int
	Height int
	Steps  int
}

func (d Defaults) apply(req Request) Request {
	if req.Width <= 0 {
		req.Width = d.Width
	}
	if req.Height <= 0 {
		req.Height = d.Height
	}
	if req.Steps <= 0 {
		req.Steps = d.Steps
	}
	if req.N <= 0 {
		req.N = 1
	}
	return req
}

type imagesResponse struct {
	Data []Image `json:"data"`
}

// postImages 是 Together 与 OpenAI 共用的请求逻辑，两者接口形状一致。
func postImages(ctx context.Context, client *http.Client, provider, endpoint, apiKey string, body any) (images []Image, err error) {
	started := time.Now()
	defer func() { metrics.ObserveUpstream(provider, "image", started, err) }()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "序列化图片请求失败")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnknown, err, "构建图片请求失败")
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, xerrors.WrapUpstream(provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, xerrors.FromHTTPStatus(provider, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	var decoded imagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, fmt.Sprintf("解析 %s 图片响应失败", provider))
	}
	if len(decoded.Data) == 0 {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure, provider+" 未返回图片")
	}
	return decoded.Data, nil
}

func validatePrompt(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "图片描述不能为空")
	}
	return nil
}
