package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/llm"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.httpClient = srv.Client()
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	if err == nil {
		t.Fatalf("expected error when api key is missing")
	}
	if xerrors.CodeOf(err) != xerrors.CodeConfigInvalid {
		t.Fatalf("unexpected code %s", xerrors.CodeOf(err))
	}
}

func TestChatSuccess(t *testing.T) {
	var captured struct {
		Authorization string
		Body          map[string]any
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		captured.Authorization = r.Header.Get("Authorization")
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&captured.Body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini-2024",
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  今日要闻  "}},
			},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	resp, err := client.Chat(context.Background(), llm.Request{
		Messages:    []llm.Message{llm.System("You are a news editor."), llm.User("AI")},
		Temperature: llm.Float(0.2),
		JSON:        true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Content != "今日要闻" || resp.Model != "gpt-4o-mini-2024" || resp.Usage.TotalTokens != 16 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !strings.HasPrefix(captured.Authorization, "Bearer ") {
		t.Fatalf("authorization header missing: %q", captured.Authorization)
	}
	if captured.Body["model"] != defaultModelName {
		t.Fatalf("model field = %v", captured.Body["model"])
	}
	if captured.Body["temperature"] != 0.2 {
		t.Fatalf("temperature override not applied: %v", captured.Body["temperature"])
	}
	format, _ := captured.Body["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("json response format missing: %v", captured.Body["response_format"])
	}
	messages, _ := captured.Body["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
}

func TestChatHTTPErrorCodes(t *testing.T) {
	cases := []struct {
		status int
		code   xerrors.Code
	}{
		{http.StatusBadRequest, xerrors.CodeUpstreamRejected},
		{http.StatusTooManyRequests, xerrors.CodeUpstreamRateLimited},
		{http.StatusServiceUnavailable, xerrors.CodeUpstreamFailure},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", tc.status)
		}))
		client := newTestClient(t, srv)
		_, err := client.Chat(context.Background(), llm.Request{Messages: []llm.Message{llm.User("test")}})
		srv.Close()
		if xerrors.CodeOf(err) != tc.code {
			t.Fatalf("status %d: expected %s, got %v", tc.status, tc.code, err)
		}
	}
}

func TestChatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	if _, err := client.Chat(context.Background(), llm.Request{Messages: []llm.Message{llm.User("x")}}); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestChatRequiresMessages(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.Chat(context.Background(), llm.Request{})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
