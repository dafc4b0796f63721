package api

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"NewsCrew/internal/task"
)

// maxWait 是查询任务时允许的最长等待时间。
const maxWait = 60 * time.Second

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req task.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	if !s.requireTasks(w) {
		return
	}
	created, err := s.tasks.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, "Failed to submit task", err)
		return
	}
	writeJSON(w, http.StatusAccepted, created)
}

// handleGetTask 返回任务状态；wait 参数（秒）大于零时等待任务结束。
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if !s.requireTasks(w) {
		return
	}
	id := r.PathValue("id")
	wait, err := intParam(r, "wait")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	var found *task.Task
	if wait > 0 {
		timeout := time.Duration(wait) * time.Second
		if timeout > maxWait {
			timeout = maxWait
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		found, err = s.tasks.WaitUntilCompleted(ctx, id, 250*time.Millisecond)
		if stdErrors.Is(err, context.DeadlineExceeded) {
			// 超时仍返回当前状态。
			found, err = s.tasks.Get(r.Context(), id)
		}
	} else {
		found, err = s.tasks.Get(r.Context(), id)
	}
	if err != nil {
		writeError(w, r, "Failed to load task", err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if !s.requireTasks(w) {
		return
	}
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	tasks, err := s.tasks.List(r.Context(), opts...)
	if err != nil {
		writeError(w, r, "Failed to list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireTasks(w) {
		return
	}
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	stats, err := s.tasks.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, r, "Failed to load task stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) requireTasks(w http.ResponseWriter) bool {
	if s.tasks == nil {
		writeFailure(w, http.StatusServiceUnavailable, "task service not configured", nil)
		return false
	}
	return true
}

// listOptionsFromQuery 解析 status、kind、q、limit、offset、order、has_result、since、until。
func listOptionsFromQuery(r *http.Request) ([]task.ListOption, error) {
	query := r.URL.Query()
	var opts []task.ListOption

	if raw := query.Get("status"); raw != "" {
		var statuses []task.Status
		for _, v := range splitCSV(raw) {
			status := task.Status(strings.ToLower(v))
			if !task.IsValidStatus(status) {
				return nil, fmt.Errorf("unknown status %q", v)
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	if raw := query.Get("kind"); raw != "" {
		var kinds []task.Kind
		for _, v := range splitCSV(raw) {
			kind := task.Kind(strings.ToLower(v))
			if !task.IsValidKind(kind) {
				return nil, fmt.Errorf("unknown kind %q", v)
			}
			kinds = append(kinds, kind)
		}
		opts = append(opts, task.WithKinds(kinds...))
	}
	if q := query.Get("q"); q != "" {
		opts = append(opts, task.WithQuery(q))
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		opts = append(opts, task.WithLimit(limit))
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		opts = append(opts, task.WithOffset(offset))
	}
	switch strings.ToLower(query.Get("order")) {
	case "", "desc":
	case "asc":
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	default:
		return nil, fmt.Errorf("order must be asc or desc")
	}
	if raw := query.Get("has_result"); raw != "" {
		hasResult, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("has_result must be a boolean")
		}
		opts = append(opts, task.WithResultPresence(hasResult))
	}
	since, err := intParam(r, "since")
	if err != nil {
		return nil, err
	}
	if since > 0 {
		opts = append(opts, task.WithUpdatedSince(time.Unix(int64(since), 0)))
	}
	until, err := intParam(r, "until")
	if err != nil {
		return nil, err
	}
	if until > 0 {
		opts = append(opts, task.WithUpdatedUntil(time.Unix(int64(until), 0)))
	}
	return opts, nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
