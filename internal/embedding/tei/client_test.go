package tei

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	xerrors "NewsCrew/internal/errors"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Inputs []string `json:"inputs"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		out := make([][]float32, len(body.Inputs))
		for i := range out {
			out[i] = []float32{float32(i), 1, 0}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL + "/", Dimension: 3})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	vectors, err := client.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 2 || vectors[1][0] != 1 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[1,2]]`))
	}))
	defer srv.Close()

	client, _ := NewClient(Config{URL: srv.URL, Dimension: 384})
	_, err := client.Embed(context.Background(), []string{"a"})
	if xerrors.CodeOf(err) != xerrors.CodeUpstreamFailure {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestEmbedUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, _ := NewClient(Config{URL: srv.URL})
	_, err := client.Embed(context.Background(), []string{"a"})
	if !xerrors.RetryableError(err) {
		t.Fatalf("503 should be retryable, got %v", err)
	}
}
