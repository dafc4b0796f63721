package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/imagegen"
	"NewsCrew/internal/studio"
	"NewsCrew/pkg/logger"
)

type newsResponse struct {
	Status  string `json:"status"`
	Topic   string `json:"topic"`
	Results string `json:"results"`
}

type refineRequest struct {
	Content    string `json:"content"`
	Refinement string `json:"refinement"`
}

type summarizeRequest struct {
	Query string `json:"query"`
	Tone  string `json:"tone"`
	// Since 接受 YYYY-MM-DD 或 RFC3339。
	Since string `json:"since"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.pages.renderIndex(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	s.pages.renderError(w, http.StatusNotFound, "Page not found")
}

func (s *Server) handleProcessNews(w http.ResponseWriter, r *http.Request) {
	s.respondDigest(w, r, r.FormValue("topic"), "Failed to process news")
}

func (s *Server) handleAPINews(w http.ResponseWriter, r *http.Request) {
	s.respondDigest(w, r, r.URL.Query().Get("topic"), "Failed to retrieve news")
}

func (s *Server) respondDigest(w http.ResponseWriter, r *http.Request, topic, action string) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		writeFailure(w, http.StatusBadRequest, "No topic provided", nil)
		return
	}
	if !s.requireContent(w) {
		return
	}
	digest, err := s.content.Digest(r.Context(), topic)
	if err != nil {
		writeError(w, r, action, err)
		return
	}
	writeJSON(w, http.StatusOK, newsResponse{Status: "success", Topic: topic, Results: digest.Text})
}

func (s *Server) handleCreateContent(w http.ResponseWriter, r *http.Request) {
	subject := strings.TrimSpace(r.FormValue("subject"))
	if subject == "" {
		s.pages.renderError(w, http.StatusBadRequest, "Subject is required")
		return
	}
	if s.content == nil {
		s.pages.renderError(w, http.StatusInternalServerError, "Failed to create content")
		return
	}
	pack, err := s.content.CreateContent(r.Context(), subject)
	if err != nil {
		logger.L().Error("Failed to create content", slog.String("subject", subject), slog.Any("error", err))
		s.pages.renderError(w, http.StatusInternalServerError, "Failed to create content")
		return
	}
	s.pages.renderResult(w, pack)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req studio.PromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeFailure(w, http.StatusBadRequest, "No prompt provided", nil)
		return
	}
	if !s.requireContent(w) {
		return
	}
	result, err := s.content.Generate(r.Context(), req)
	if err != nil {
		writeError(w, r, "Failed to generate content", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" || strings.TrimSpace(req.Refinement) == "" {
		writeFailure(w, http.StatusBadRequest, "content and refinement are required", nil)
		return
	}
	if !s.requireContent(w) {
		return
	}
	refined, err := s.content.Refine(r.Context(), req.Content, req.Refinement)
	if err != nil {
		writeError(w, r, "Failed to refine content", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"refined_content": refined})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeFailure(w, http.StatusBadRequest, "No query provided", nil)
		return
	}
	since, err := parseSince(req.Since)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "since must be YYYY-MM-DD or RFC3339", nil)
		return
	}
	if !s.requireContent(w) {
		return
	}
	summaries, err := s.content.SearchAndSummarize(r.Context(), req.Query, req.Tone, since)
	if err != nil {
		writeError(w, r, "Failed to summarize news", err)
		return
	}
	if summaries == nil {
		summaries = []studio.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	var req imagegen.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeFailure(w, http.StatusBadRequest, "No prompt provided", nil)
		return
	}
	if !s.requireContent(w) {
		return
	}
	images, err := s.content.GenerateImage(r.Context(), req)
	if err != nil {
		writeError(w, r, "Failed to generate image", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireContent(w) {
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	records, err := s.content.History(r.Context(), limit)
	if err != nil {
		writeError(w, r, "Failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) requireContent(w http.ResponseWriter) bool {
	if s.content == nil {
		writeFailure(w, http.StatusServiceUnavailable, "content service not configured", nil)
		return false
	}
	return true
}

func parseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "since 格式错误")
	}
	return t, nil
}
