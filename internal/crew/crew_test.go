package crew

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/llm"
	"NewsCrew/internal/news"
	"NewsCrew/internal/scrape"
)

type recordingLLM struct {
	mu       sync.Mutex
	requests []llm.Request
	replies  []string
	err      error
	wait     time.Duration
}

func (r *recordingLLM) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if r.wait > 0 {
		select {
		case <-time.After(r.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	idx := len(r.requests)
	r.requests = append(r.requests, req)
	reply := "reply"
	if idx < len(r.replies) {
		reply = r.replies[idx]
	}
	return &llm.Response{Content: reply}, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*scrape.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if strings.Contains(url, "broken") {
		return nil, errors.New("boom")
	}
	return &scrape.Page{URL: url, Title: "Page " + url, Text: "body of " + url}, nil
}

func TestKickoffRunsTasksInOrderWithContext(t *testing.T) {
	client := &recordingLLM{replies: []string{"articles", "summaries", "final article"}}
	c, err := New(DefaultNewsDigest(), client)
	if err != nil {
		t.Fatalf("new crew: %v", err)
	}

	out, err := c.Kickoff(context.Background(), map[string]string{"topic": "quantum computing"})
	if err != nil {
		t.Fatalf("kickoff: %v", err)
	}
	if out.Final != "final article" || len(out.Tasks) != 3 {
		t.Fatalf("unexpected output %+v", out)
	}
	if out.Tasks[0].Key != TaskRetrieveNews || out.Tasks[2].Agent != "content_creator" {
		t.Fatalf("unexpected task order %+v", out.Tasks)
	}

	first := client.requests[0]
	if !strings.Contains(first.Messages[0].Content, "You are News Retriever") {
		t.Fatalf("unexpected persona %q", first.Messages[0].Content)
	}
	if !strings.Contains(first.Messages[1].Content, "latest news articles about quantum computing") {
		t.Fatalf("topic not interpolated: %q", first.Messages[1].Content)
	}
	last := client.requests[2].Messages[1].Content
	if !strings.Contains(last, "## retrieve_news\narticles") || !strings.Contains(last, "## summarize_news\nsummaries") {
		t.Fatalf("previous outputs missing from context: %q", last)
	}
}

func TestKickoffRequiresSubject(t *testing.T) {
	c, err := New(DefaultNewsDigest(), &recordingLLM{})
	if err != nil {
		t.Fatalf("new crew: %v", err)
	}
	_, err = c.Kickoff(context.Background(), map[string]string{"subject": "  "})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestKickoffRunsToolsOnce(t *testing.T) {
	var searches int
	searcher := news.SearcherFunc(func(_ context.Context, q news.Query) ([]news.Article, error) {
		searches++
		if q.Text != "AI" || q.Limit != 5 {
			t.Fatalf("unexpected query %+v", q)
		}
		return []news.Article{
			{Title: "One", URL: "https://a.example/1", Source: "A"},
			{Title: "Two", URL: "https://b.example/broken"},
			{Title: "Three", URL: "https://c.example/3"},
		}, nil
	})
	fetcher := &fakeFetcher{}
	client := &recordingLLM{}
	c, err := New(DefaultContentPack(), client,
		WithTool(NewSearchTool(searcher, 5)),
		WithTool(NewScrapeTool(fetcher, 2)))
	if err != nil {
		t.Fatalf("new crew: %v", err)
	}

	out, err := c.Kickoff(context.Background(), map[string]string{"subject": "AI"})
	if err != nil {
		t.Fatalf("kickoff: %v", err)
	}
	if searches != 1 {
		t.Fatalf("expected search to run once, ran %d times", searches)
	}
	if len(fetcher.calls) != 2 {
		t.Fatalf("expected two scraped pages, got %v", fetcher.calls)
	}
	if len(out.Articles) != 3 {
		t.Fatalf("expected articles on output, got %+v", out.Articles)
	}

	prompt := client.requests[0].Messages[1].Content
	for _, want := range []string{"# Tool results", "1. One", "Source: A", "body of https://a.example/1", "failed to fetch https://b.example/broken"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q: %q", want, prompt)
		}
	}
	if !client.requests[3].JSON {
		t.Fatalf("expected JSON mode for the posts task")
	}
}

func TestKickoffToolFailureDoesNotAbort(t *testing.T) {
	searcher := news.SearcherFunc(func(context.Context, news.Query) ([]news.Article, error) {
		return nil, xerrors.New(xerrors.CodeUpstreamFailure, "down")
	})
	client := &recordingLLM{}
	c, err := New(DefaultNewsDigest(), client, WithTool(NewSearchTool(searcher, 3)))
	if err != nil {
		t.Fatalf("new crew: %v", err)
	}
	if _, err := c.Kickoff(context.Background(), map[string]string{"topic": "x"}); err != nil {
		t.Fatalf("kickoff: %v", err)
	}
	if !strings.Contains(client.requests[0].Messages[1].Content, "search") {
		t.Fatalf("expected tool failure note in prompt")
	}
}

func TestKickoffMapsErrors(t *testing.T) {
	c, _ := New(DefaultNewsDigest(), &recordingLLM{err: errors.New("boom")})
	_, err := c.Kickoff(context.Background(), map[string]string{"topic": "x"})
	if xerrors.CodeOf(err) != xerrors.CodeExecutorFailure {
		t.Fatalf("expected executor failure, got %v", err)
	}

	c, _ = New(DefaultNewsDigest(), &recordingLLM{err: xerrors.New(xerrors.CodeUpstreamRateLimited, "slow down")})
	_, err = c.Kickoff(context.Background(), map[string]string{"topic": "x"})
	if xerrors.CodeOf(err) != xerrors.CodeUpstreamRateLimited {
		t.Fatalf("expected upstream code preserved, got %v", err)
	}

	c, _ = New(DefaultNewsDigest(), &recordingLLM{wait: 200 * time.Millisecond}, WithTaskTimeout(10*time.Millisecond))
	_, err = c.Kickoff(context.Background(), map[string]string{"topic": "x"})
	if xerrors.CodeOf(err) != xerrors.CodeTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestNewValidatesDefinition(t *testing.T) {
	if _, err := New(DefaultNewsDigest(), nil); xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("expected initialization failure, got %v", err)
	}
	def := DefaultNewsDigest()
	def.Tasks[1].Agent = "ghost"
	if _, err := New(def, &recordingLLM{}); xerrors.CodeOf(err) != xerrors.CodeConfigInvalid {
		t.Fatalf("expected config invalid, got %v", err)
	}
}

func TestParseTasksKeepsOrder(t *testing.T) {
	content := []byte(`
zeta_task:
  description: first
  expected_output: one
  agent: a
alpha_task:
  description: second
  agent: a
  output_json: true
`)
	tasks, err := ParseTasks(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Key != "zeta_task" || tasks[1].Key != "alpha_task" || !tasks[1].OutputJSON {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
	if _, err := ParseTasks([]byte("- a\n- b\n")); err == nil {
		t.Fatalf("expected error for sequence document")
	}
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()
	agents := filepath.Join(dir, "agents.yaml")
	tasks := filepath.Join(dir, "tasks.yaml")
	writeFile(t, agents, "writer:\n  role: Writer\n  goal: write about {subject}\n  backstory: prolific\n  llm: gpt-4o\n")
	writeFile(t, tasks, "write:\n  description: Write about {subject}\n  agent: writer\n")

	def := LoadOrDefault(agents, tasks, DefaultContentPack())
	if def.Name != ContentPack || len(def.Tasks) != 1 || def.Agents["writer"].Model != "gpt-4o" {
		t.Fatalf("unexpected definition %+v", def)
	}

	fallback := LoadOrDefault(filepath.Join(dir, "missing.yaml"), tasks, DefaultContentPack())
	if len(fallback.Tasks) != 4 {
		t.Fatalf("expected fallback definition, got %+v", fallback)
	}
	if got := LoadOrDefault("", "", DefaultNewsDigest()); got.Name != NewsDigest {
		t.Fatalf("expected default when paths are empty")
	}
}

func TestInterpolate(t *testing.T) {
	got := Interpolate("{subject} and {unknown}", map[string]string{"subject": "AI"})
	if got != "AI and {unknown}" {
		t.Fatalf("unexpected interpolation %q", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestSearchToolAppliesWindow(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	var got news.Query
	searcher := news.SearcherFunc(func(_ context.Context, q news.Query) ([]news.Article, error) {
		got = q
		return nil, nil
	})
	tool := NewSearchTool(searcher, 4)
	tool.Window = 72 * time.Hour
	tool.now = func() time.Time { return now }

	if _, err := tool.Run(context.Background(), &State{Subject: "robots"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !got.Since.Equal(now.Add(-72*time.Hour)) || got.Limit != 4 || got.Text != "robots" {
		t.Fatalf("unexpected query %+v", got)
	}

	tool.Window = 0
	if _, err := tool.Run(context.Background(), &State{Subject: "robots"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !got.Since.IsZero() {
		t.Fatalf("expected no cutoff without a window, got %v", got.Since)
	}
}

type gatedFetcher struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (f *gatedFetcher) Fetch(_ context.Context, url string) (*scrape.Page, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	return &scrape.Page{URL: url, Text: "body"}, nil
}

func TestScrapeToolLimitsConcurrency(t *testing.T) {
	state := &State{Subject: "x"}
	for i := 0; i < 6; i++ {
		state.Articles = append(state.Articles, news.Article{Title: "a", URL: "https://s.example/" + string(rune('a'+i))})
	}
	fetcher := &gatedFetcher{}
	tool := NewScrapeTool(fetcher, 6)
	tool.Concurrency = 2

	out, err := tool.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Count(out, "### ") != 6 {
		t.Fatalf("expected six sections, got %q", out)
	}
	if fetcher.maxSeen > 2 {
		t.Fatalf("expected at most 2 concurrent fetches, saw %d", fetcher.maxSeen)
	}
}
