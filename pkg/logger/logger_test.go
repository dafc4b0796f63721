package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNamedAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))

	Named("crew").Info("hello")

	if !strings.Contains(buf.String(), `"component":"crew"`) {
		t.Fatalf("component attribute missing: %s", buf.String())
	}
	if Audit() == nil {
		t.Fatalf("audit logger should fall back to default logger")
	}
}

func TestBuildHandlerTextFormat(t *testing.T) {
	handler, err := buildHandler("text", []string{"stderr"}, &slog.HandlerOptions{})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	if _, ok := handler.(*slog.TextHandler); !ok {
		t.Fatalf("expected text handler, got %T", handler)
	}
}
