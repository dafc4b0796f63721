package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesRecordedSeries(t *testing.T) {
	ObserveHTTPRequest("/api/news", http.MethodGet, http.StatusOK, 120*time.Millisecond)
	ObserveHTTPRequest("/api/news", http.MethodGet, http.StatusInternalServerError, time.Second)
	ObserveUpstream("serper", "search", time.Now(), errors.New("boom"))
	IncTaskOutcome("content_pack", "succeeded")
	IncCacheLookup(true)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`newscrew_http_requests_total{code="200",handler="/api/news",method="GET"}`,
		`newscrew_http_request_errors_total{handler="/api/news",method="GET"} 1`,
		`newscrew_upstream_calls_total{operation="search",outcome="error",provider="serper"} 1`,
		`newscrew_task_outcomes_total{kind="content_pack",outcome="succeeded"} 1`,
		`newscrew_cache_lookups_total{result="hit"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
