package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"NewsCrew/internal/observability/metrics"
	"NewsCrew/pkg/logger"
)

// statusRecorder 记录处理器写出的状态码。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument 采集请求计数与耗时，并把 panic 转为 500。
func instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				logger.L().Error("处理请求时发生 panic",
					slog.String("handler", name),
					slog.String("path", r.URL.Path),
					slog.Any("panic", p))
				writeFailure(rec, http.StatusInternalServerError, "Internal server error", fmt.Errorf("%v", p))
			}
			metrics.ObserveHTTPRequest(name, r.Method, rec.status, time.Since(started))
		}()
		next.ServeHTTP(rec, r)
	})
}

// withLimits 为请求设置超时与请求体大小上限。
func (s *Server) withLimits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.maxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
		}
		if s.requestTimeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
			defer cancel()
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeFailure(w, http.StatusServiceUnavailable, "服务已关闭", nil)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
