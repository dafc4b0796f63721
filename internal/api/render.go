package api

import (
	"encoding/json"
	stdErrors "errors"
	"io"
	"log/slog"
	"net/http"

	"NewsCrew/internal/auth"
	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/task"
	"NewsCrew/pkg/logger"
)

// errorBody 是所有 JSON 错误响应的格式。
type errorBody struct {
	Error   string `json:"error"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeFailure 输出错误响应。cause 不为空时其内容放入 details。
func writeFailure(w http.ResponseWriter, status int, message string, cause error) {
	body := errorBody{Error: message, Status: "error"}
	if cause != nil {
		body.Details = cause.Error()
	}
	writeJSON(w, status, body)
}

// writeError 根据错误码选择状态码。客户端错误返回错误本身的描述，
// 上游限流返回固定提示，其余服务端错误返回 action 并把原因放入 details。
func writeError(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := statusFor(err)
	switch {
	case status == http.StatusTooManyRequests:
		logger.L().Warn(action,
			slog.String("path", r.URL.Path),
			slog.String("caller", auth.CallerName(r.Context())),
			slog.Any("error", err))
		writeFailure(w, status, "Upstream rate limited", nil)
		return
	case status < http.StatusInternalServerError:
		writeFailure(w, status, messageOf(err), nil)
		return
	}
	logger.L().Error(action,
		slog.String("path", r.URL.Path),
		slog.String("caller", auth.CallerName(r.Context())),
		slog.String("code", string(xerrors.CodeOf(err))),
		slog.Any("error", err))
	writeFailure(w, status, action, err)
}

// statusFor 将错误映射为 HTTP 状态码。限流以外的服务端失败统一返回 500。
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case task.IsTaskError(err, task.CodeTaskNotFound):
		return http.StatusNotFound
	case task.IsTaskError(err, task.CodeTaskConflict):
		return http.StatusConflict
	case xerrors.CodeOf(err) == task.CodeTaskValidation:
		return http.StatusBadRequest
	}
	status := xerrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		return http.StatusInternalServerError
	}
	return status
}

func messageOf(err error) string {
	if e, ok := xerrors.From(err); ok && e.Message() != "" {
		return e.Message()
	}
	return err.Error()
}

// decodeJSON 解析请求体，失败时直接写出 400。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stdErrors.As(err, &tooLarge):
			writeFailure(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
		case stdErrors.Is(err, io.EOF):
			writeFailure(w, http.StatusBadRequest, "Request body is empty", nil)
		default:
			writeFailure(w, http.StatusBadRequest, "Invalid JSON body", err)
		}
		return false
	}
	return true
}
