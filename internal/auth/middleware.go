package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	loggerpkg "NewsCrew/pkg/logger"
)

// MiddlewareConfig 配置身份认证中间件的行为。
type MiddlewareConfig struct {
	// RequiredPermissions 定义每个 HTTP 方法所需的权限列表。
	RequiredPermissions map[string][]string
	// AuditEvent 指定记录审计日志时使用的事件名称。
	AuditEvent string
	// Public 列出无需认证的路径，例如健康检查。
	Public map[string]bool
}

// Middleware 返回一个 HTTP 中间件，用于处理身份认证和授权。
func (s *Service) Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// 返回实际的中间件处理函数。
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s == nil || s.mode == ModeDisabled || cfg.Public[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			// 认证请求。
			subject, err := s.AuthenticateRequest(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				status := http.StatusUnauthorized
				w.Header().Set("WWW-Authenticate", `Bearer realm="newscrew"`)
				writeError(w, status, err)
				logger := s.audit
				if logger == nil {
					logger = loggerpkg.Audit()
				}
				logger.Warn("access_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"status", status,
					"error", err.Error(),
				)
				return
			}
			// 授权请求。
			perms := cfg.RequiredPermissions[r.Method]
			if len(perms) == 0 {
				perms = cfg.RequiredPermissions["*"]
			}
			if len(perms) > 0 {
				if err := subject.Authorize(perms...); err != nil {
					status := http.StatusForbidden
					writeError(w, status, err)
					logger := s.audit
					if logger == nil {
						logger = loggerpkg.Audit()
					}
					logger.Warn("permission_denied",
						"path", r.URL.Path,
						"method", r.Method,
						"status", status,
						"error", err.Error(),
						"user", subject.Name,
					)
					return
				}
			}
			// 记录审计日志。
			start := time.Now()
			aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
			ctx := WithSubject(r.Context(), subject)
			next.ServeHTTP(aw, r.WithContext(ctx))
			event := cfg.AuditEvent
			if event == "" {
				event = r.URL.Path
			}
			logger := s.audit
			if logger == nil {
				logger = loggerpkg.Audit()
			}
			logger.Info("api_request",
				"event", event,
				"method", r.Method,
				"path", r.URL.Path,
				"status", aw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user", subject.Name,
			)
		})
	}
}

// auditWriter 是一个包装了 http.ResponseWriter 的结构体，用于捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获响应状态码并调用底层的 WriteHeader 方法。
func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// writeError 以与 API 一致的 JSON 格式返回认证错误。
func writeError(w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if errors.Is(err, ErrPermissionDenied) {
		message = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": message})
}
