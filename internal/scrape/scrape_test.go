package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	xerrors "NewsCrew/internal/errors"
)

const samplePage = `<html><head><title>Fallback</title><meta property="og:title" content="Match report"></head>
<body><nav><p>  Home </p></nav>
<article><p>India won the second ODI
by five wickets.</p><div>ignored</div><p></p><p>Mandhana top scored.</p></article></body></html>`

func TestFetchJoinsParagraphs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.UserAgent(), "NewsCrew") {
			t.Errorf("unexpected user agent %q", r.UserAgent())
		}
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	page, err := New().Fetch(context.Background(), srv.URL+"/match")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := "Home India won the second ODI by five wickets. Mandhana top scored."
	if page.Text != want {
		t.Fatalf("text = %q, want %q", page.Text, want)
	}
	if page.Title != "Match report" {
		t.Fatalf("title = %q", page.Title)
	}
}

func TestFetchRejectsBadURL(t *testing.T) {
	_, err := New().Fetch(context.Background(), "ftp://example.com/file")
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestFetchNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New().Fetch(context.Background(), srv.URL)
	if xerrors.CodeOf(err) != xerrors.CodeUpstreamRejected {
		t.Fatalf("expected upstream rejected, got %v", err)
	}
}

func TestFetchRespectsMaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>first</p>" + strings.Repeat(" ", 64) + "<p>second</p>"))
	}))
	defer srv.Close()

	page, err := New(WithMaxBytes(40)).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if strings.Contains(page.Text, "second") {
		t.Fatalf("body beyond limit should be ignored: %q", page.Text)
	}
}
