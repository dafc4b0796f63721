package api

import (
	"net/http"
	"strings"

	"NewsCrew/internal/rag"
)

type documentRequest struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Metadata map[string]any `json:"metadata"`
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// handleCreateDocument 入库文本；只提供 url 时先抓取页面正文。
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.URL) == "" {
		writeFailure(w, http.StatusBadRequest, "text or url is required", nil)
		return
	}
	if !s.requireDocuments(w) {
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		doc, err := s.documents.IngestURL(r.Context(), req.ID, strings.TrimSpace(req.URL))
		if err != nil {
			writeError(w, r, "Failed to ingest document", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "id": doc.ID, "title": doc.Title})
		return
	}

	ids, err := s.documents.Ingest(r.Context(), rag.Document{
		ID:       req.ID,
		Text:     req.Text,
		URL:      req.URL,
		Title:    req.Title,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, r, "Failed to ingest document", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "id": ids[0]})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if !s.requireDocuments(w) {
		return
	}
	doc, err := s.documents.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, "Failed to fetch document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeFailure(w, http.StatusBadRequest, "No question provided", nil)
		return
	}
	if !s.requireDocuments(w) {
		return
	}
	answer, err := s.documents.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		writeError(w, r, "Failed to answer question", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) requireDocuments(w http.ResponseWriter) bool {
	if s.documents == nil {
		writeFailure(w, http.StatusServiceUnavailable, "document service not configured", nil)
		return false
	}
	return true
}
