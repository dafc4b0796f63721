package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	xerrors "NewsCrew/internal/errors"
)

func TestTogetherGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" || r.Header.Get("Authorization") != "Bearer tg" {
			t.Errorf("unexpected request %s %q", r.URL.Path, r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"aGVsbG8="}]}`))
	}))
	defer srv.Close()

	gen, err := NewTogether(TogetherConfig{APIKey: "tg", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new together: %v", err)
	}
	images, err := gen.Generate(context.Background(), Request{Prompt: "a newsroom at dawn"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(images) != 1 || images[0].B64JSON != "aGVsbG8=" {
		t.Fatalf("unexpected images %+v", images)
	}
	if body["model"] != "black-forest-labs/FLUX.1-schnell" || body["width"] != float64(1024) ||
		body["height"] != float64(768) || body["steps"] != float64(4) || body["response_format"] != "b64_json" {
		t.Fatalf("unexpected request body %v", body)
	}
}

func TestOpenAIGenerateUsesSize(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"data":[{"url":"https://img/1.png"}]}`))
	}))
	defer srv.Close()

	gen, _ := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	images, err := gen.Generate(context.Background(), Request{Prompt: "chart"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if images[0].URL != "https://img/1.png" || body["size"] != "1024x1024" {
		t.Fatalf("unexpected result %+v %v", images, body)
	}
}

func TestGenerateRequiresPrompt(t *testing.T) {
	gen, _ := NewTogether(TogetherConfig{APIKey: "k"})
	_, err := gen.Generate(context.Background(), Request{Prompt: "  "})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestGenerateEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	gen, _ := NewTogether(TogetherConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := gen.Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatalf("expected error when no image returned")
	}
}

func TestMemeRender(t *testing.T) {
	template := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			template.Set(x, y, color.RGBA{R: 40, G: 90, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, template); err != nil {
		t.Fatalf("encode template: %v", err)
	}

	out, err := NewMemeRenderer().Render(buf.Bytes(), "breaking news", "it's all agents now")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 300 {
		t.Fatalf("unexpected size %v", img.Bounds())
	}

	changedTop, changedBottom := false, false
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r>>8 == 40 && g>>8 == 90 && b>>8 == 160 {
				continue
			}
			if y < 150 {
				changedTop = true
			} else {
				changedBottom = true
			}
		}
	}
	if !changedTop || !changedBottom {
		t.Fatalf("captions not drawn: top=%v bottom=%v", changedTop, changedBottom)
	}
}

func TestMemeRenderRejectsGarbage(t *testing.T) {
	_, err := NewMemeRenderer().Render([]byte("not an image"), "a", "b")
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestMemeRenderRejectsOversizedTemplate(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, MaxTemplateSide+1, 1))); err != nil {
		t.Fatalf("encode template: %v", err)
	}
	_, err := NewMemeRenderer().Render(buf.Bytes(), "top", "bottom")
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument for oversized template, got %v", err)
	}
}
