package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"NewsCrew/sdk/go/newscrew"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDigestPrintsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/news" || r.URL.Query().Get("topic") != "open source" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing token")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "results": "the digest"})
	}))
	defer srv.Close()

	out, err := execute(t, "--server", srv.URL, "--token", "tok", "digest", "open", "source")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if strings.TrimSpace(out) != "the digest" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestContentWaitsForTask(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(newscrew.Task{ID: "t-1", Status: "pending"})
		case http.MethodGet:
			polls++
			task := newscrew.Task{ID: "t-1", Status: "running"}
			if polls > 1 {
				task.Status = "succeeded"
				task.Result = &newscrew.TaskResult{
					Article: "The article",
					Posts:   []newscrew.Post{{Platform: "Twitter", Content: "short"}},
				}
			}
			_ = json.NewEncoder(w).Encode(task)
		}
	}))
	defer srv.Close()

	out, err := execute(t, "--server", srv.URL, "content", "Go")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if !strings.Contains(out, "The article") || !strings.Contains(out, "--- Twitter ---") {
		t.Fatalf("unexpected output %q", out)
	}
	if polls != 2 {
		t.Fatalf("expected two polls, got %d", polls)
	}
}

func TestTaskSubmitParsesInput(t *testing.T) {
	var got newscrew.TaskSubmission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(newscrew.Task{ID: "t-9", Kind: got.Kind, Status: "pending"})
	}))
	defer srv.Close()

	out, err := execute(t, "--server", srv.URL, "task", "submit", "--kind", "post", "--input", "platform=LinkedIn", "AI", "news")
	if err != nil {
		t.Fatalf("task submit: %v", err)
	}
	if got.Kind != "post" || got.Subject != "AI news" || got.Input["platform"] != "LinkedIn" {
		t.Fatalf("unexpected submission %+v", got)
	}
	if !strings.Contains(out, `"id": "t-9"`) {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := execute(t, "--server", srv.URL, "task", "submit", "--input", "broken", "x"); err == nil {
		t.Fatal("expected error for malformed --input")
	}
}

func TestAPIErrorsAreReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"No question provided","status":"error"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "--server", srv.URL, "ask", "?")
	if err == nil || !strings.Contains(err.Error(), "No question provided") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestRefineRequiresInstruction(t *testing.T) {
	if _, err := execute(t, "refine", "some text"); err == nil {
		t.Fatal("expected error without --instruction")
	}
}
