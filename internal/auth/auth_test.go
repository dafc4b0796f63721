package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTokenService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Mode: ModeToken,
		Tokens: []Token{
			{Name: "writer", Secret: "w-secret", Permissions: []string{PermContentWrite, PermContentRead}},
			{Name: "reader", Secret: "r-secret", Permissions: []string{PermContentRead}},
			{Name: "admin", Secret: "a-secret", Permissions: []string{"*"}},
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestMiddlewareEnforcesTokensAndPermissions(t *testing.T) {
	svc := newTokenService(t)
	var seen string
	handler := svc.Middleware(MiddlewareConfig{
		RequiredPermissions: map[string][]string{
			http.MethodGet:  {PermContentRead},
			http.MethodPost: {PermContentWrite},
		},
		Public: map[string]bool{"/healthz": true},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubjectFromContext(r.Context()).Name
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		method string
		path   string
		header string
		status int
		user   string
	}{
		{"missing token", http.MethodGet, "/api/v1/tasks", "", http.StatusUnauthorized, ""},
		{"wrong scheme", http.MethodGet, "/api/v1/tasks", "Basic abc", http.StatusUnauthorized, ""},
		{"unknown token", http.MethodGet, "/api/v1/tasks", "Bearer nope", http.StatusUnauthorized, ""},
		{"reader can read", http.MethodGet, "/api/v1/tasks", "Bearer r-secret", http.StatusNoContent, "reader"},
		{"reader cannot write", http.MethodPost, "/api/v1/tasks", "Bearer r-secret", http.StatusForbidden, ""},
		{"writer can write", http.MethodPost, "/api/v1/tasks", "bearer w-secret", http.StatusNoContent, "writer"},
		{"wildcard", http.MethodPost, "/api/v1/tasks", "Bearer a-secret", http.StatusNoContent, "admin"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
			if seen != tc.user {
				t.Fatalf("expected subject %q, got %q", tc.user, seen)
			}
			if tc.status >= 400 && !strings.Contains(rec.Body.String(), `"status":"error"`) {
				t.Fatalf("expected JSON error body, got %s", rec.Body.String())
			}
		})
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("public path should bypass auth, got %d", rec.Code)
	}
}

func TestDisabledModePassesThrough(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Mode() != ModeDisabled {
		t.Fatalf("expected disabled mode, got %s", svc.Mode())
	}
	called := false
	handler := svc.Middleware(MiddlewareConfig{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatalf("expected handler to be invoked")
	}
}

func TestNewServiceValidatesTokens(t *testing.T) {
	if _, err := NewService(Config{Mode: ModeToken}); err == nil {
		t.Fatalf("expected error without tokens")
	}
	if _, err := NewService(Config{Mode: ModeToken, Tokens: []Token{{Name: "x"}}}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewService(Config{Mode: "jwt"}); err == nil {
		t.Fatalf("expected error for unsupported mode")
	}
}
