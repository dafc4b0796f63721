package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEmbedOrdersByIndex(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Dimension: 2, Timeout: time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	vectors, err := client.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("vectors not ordered by index: %v", vectors)
	}
	if body["dimensions"] != float64(2) {
		t.Fatalf("dimensions not forwarded: %v", body)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	client, err := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:0"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	vectors, err := client.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("expected nil result, got %v %v", vectors, err)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	if _, err := client.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}
