package studio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/imagegen"
	"NewsCrew/internal/llm"
)

// 支持的内容类型
const (
	ContentText  = "text"
	ContentImage = "image"
	ContentMeme  = "meme"
)

// PromptRequest 描述一次按提示词生成内容的请求。
type PromptRequest struct {
	Prompt      string `json:"prompt"`
	Tone        string `json:"tone,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Platform    string `json:"platform,omitempty"`
	// Template 是 base64 编码的梗图模板，为空时先按提示词生成底图。
	Template   string `json:"template,omitempty"`
	TopText    string `json:"top_text,omitempty"`
	BottomText string `json:"bottom_text,omitempty"`
}

// GenerateResult 是生成结果，按内容类型填充 Text、Images 或 Meme 之一。
type GenerateResult struct {
	Prompt      string           `json:"prompt"`
	Tone        string           `json:"tone"`
	ContentType string           `json:"content_type"`
	Platform    string           `json:"platform"`
	Text        string           `json:"text,omitempty"`
	Images      []imagegen.Image `json:"images,omitempty"`
	// Meme 是 base64 编码的 PNG。
	Meme string `json:"meme,omitempty"`
}

// Generate 按内容类型生成帖子、图片或梗图。
func (s *Studio) Generate(ctx context.Context, req PromptRequest) (*GenerateResult, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "prompt 不能为空")
	}
	result := &GenerateResult{
		Prompt:      req.Prompt,
		Tone:        orDefault(req.Tone, defaultTone),
		ContentType: strings.ToLower(orDefault(req.ContentType, ContentText)),
		Platform:    orDefault(req.Platform, defaultPlatform),
	}

	switch result.ContentType {
	case ContentText:
		text, err := s.GeneratePost(ctx, req.Prompt, result.Tone, result.Platform)
		if err != nil {
			return nil, err
		}
		result.Text = text
	case ContentImage:
		images, err := s.GenerateImage(ctx, imagegen.Request{Prompt: req.Prompt})
		if err != nil {
			return nil, err
		}
		result.Images = images
	case ContentMeme:
		png, err := s.generateMeme(ctx, req)
		if err != nil {
			return nil, err
		}
		result.Meme = base64.StdEncoding.EncodeToString(png)
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "不支持的内容类型: "+result.ContentType)
	}
	return result, nil
}

// GenerateImage 调用图片生成服务。
func (s *Studio) GenerateImage(ctx context.Context, req imagegen.Request) ([]imagegen.Image, error) {
	if s.images == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置图片生成服务")
	}
	return s.images.Generate(ctx, req)
}

// RenderMeme 在模板图片上绘制上下两行文字。
func (s *Studio) RenderMeme(template []byte, top, bottom string) ([]byte, error) {
	renderer := s.meme
	if renderer == nil {
		renderer = imagegen.NewMemeRenderer()
	}
	return renderer.Render(template, top, bottom)
}

func (s *Studio) generateMeme(ctx context.Context, req PromptRequest) ([]byte, error) {
	top, bottom := strings.TrimSpace(req.TopText), strings.TrimSpace(req.BottomText)
	if top == "" && bottom == "" {
		var err error
		top, bottom, err = s.memeCaptions(ctx, req.Prompt)
		if err != nil {
			return nil, err
		}
	}

	var template []byte
	if req.Template != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Template)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "模板图片不是合法的 base64")
		}
		template = decoded
	} else {
		images, err := s.GenerateImage(ctx, imagegen.Request{Prompt: req.Prompt})
		if err != nil {
			return nil, err
		}
		for _, img := range images {
			if img.B64JSON == "" {
				continue
			}
			decoded, err := base64.StdEncoding.DecodeString(img.B64JSON)
			if err != nil {
				return nil, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "图片服务返回的数据无法解码")
			}
			template = decoded
			break
		}
		if template == nil {
			return nil, xerrors.New(xerrors.CodeUpstreamRejected, "图片服务未返回可用于梗图的图片数据")
		}
	}
	return s.RenderMeme(template, top, bottom)
}

type memeCaption struct {
	Top    string `json:"top"`
	Bottom string `json:"bottom"`
}

func (s *Studio) memeCaptions(ctx context.Context, prompt string) (string, string, error) {
	callCtx := ctx
	if s.llmTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.llmTimeout)
		defer cancel()
	}
	resp, err := s.llmClient.Chat(callCtx, llm.Request{
		Messages: []llm.Message{
			llm.System(`Write a two-line meme caption. Reply with a JSON object {"top": "...", "bottom": "..."}; keep each line under 40 characters.`),
			llm.User(prompt),
		},
		JSON: true,
	})
	if err != nil {
		return "", "", err
	}
	var caption memeCaption
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &caption); err != nil || (caption.Top == "" && caption.Bottom == "") {
		// 模型未按格式返回时把整段回复放在底部。
		return "", strings.TrimSpace(resp.Content), nil
	}
	return caption.Top, caption.Bottom, nil
}
