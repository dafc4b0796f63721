package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"NewsCrew/internal/auth"
	"NewsCrew/internal/imagegen"
	"NewsCrew/internal/observability/metrics"
	"NewsCrew/internal/rag"
	"NewsCrew/internal/storage"
	"NewsCrew/internal/studio"
	"NewsCrew/internal/task"
)

// ContentService 是内容生产相关接口依赖的能力，由 studio.Studio 实现。
type ContentService interface {
	Digest(ctx context.Context, topic string) (*studio.Digest, error)
	CreateContent(ctx context.Context, subject string) (*studio.ContentPack, error)
	Generate(ctx context.Context, req studio.PromptRequest) (*studio.GenerateResult, error)
	Refine(ctx context.Context, content, instruction string) (string, error)
	SearchAndSummarize(ctx context.Context, query, tone string, since time.Time) ([]studio.Summary, error)
	GenerateImage(ctx context.Context, req imagegen.Request) ([]imagegen.Image, error)
	History(ctx context.Context, limit int) ([]storage.Record, error)
}

// DocumentService 是文档入库与问答接口依赖的能力，由 rag.Service 实现。
type DocumentService interface {
	Ingest(ctx context.Context, docs ...rag.Document) ([]string, error)
	IngestURL(ctx context.Context, id, rawURL string) (*rag.Document, error)
	Fetch(ctx context.Context, id string) (*rag.Document, error)
	Ask(ctx context.Context, question string, topK int) (*rag.Answer, error)
}

// Server 负责暴露 HTTP 接口。
type Server struct {
	addr           string
	content        ContentService
	documents      DocumentService
	tasks          *task.Service
	auth           *auth.Service
	requestTimeout time.Duration
	maxBodyBytes   int64
	pages          *pages
}

// Option 定义可选的 Server 配置。
type Option func(*Server)

// WithDocuments 启用文档入库与问答接口。
func WithDocuments(documents DocumentService) Option {
	return func(s *Server) { s.documents = documents }
}

// WithTaskService 启用异步任务接口。
func WithTaskService(tasks *task.Service) Option {
	return func(s *Server) { s.tasks = tasks }
}

// WithAuth 为接口启用 Bearer Token 鉴权。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) { s.auth = svc }
}

// WithRequestTimeout 限制同步接口的处理时间。
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.requestTimeout = timeout }
}

// WithMaxBodyBytes 限制请求体大小。
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, content ContentService, opts ...Option) *Server {
	s := &Server{
		addr:         addr,
		content:      content,
		maxBodyBytes: 1 << 20,
		pages:        mustLoadPages(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回注册了全部路由的 http.Handler。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /{$}", "index", "", s.handleIndex)
	s.route(mux, "GET /healthz", "healthz", "", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	s.route(mux, "POST /process_news", "process_news", auth.PermContentWrite, s.handleProcessNews)
	// GET /api/news 会启动一次 crew 并写归档，按写操作鉴权。
	s.route(mux, "GET /api/news", "api_news", auth.PermContentWrite, s.handleAPINews)
	s.route(mux, "POST /create_content", "create_content", auth.PermContentWrite, s.handleCreateContent)
	s.route(mux, "POST /generate", "generate", auth.PermContentWrite, s.handleGenerate)
	s.route(mux, "POST /refine", "refine", auth.PermContentWrite, s.handleRefine)
	s.route(mux, "POST /summarize", "summarize", auth.PermContentWrite, s.handleSummarize)
	s.route(mux, "POST /images", "images", auth.PermContentWrite, s.handleImages)

	s.route(mux, "POST /api/v1/documents", "documents_create", auth.PermDocumentsWrite, s.handleCreateDocument)
	s.route(mux, "GET /api/v1/documents/{id}", "documents_get", auth.PermDocumentsRead, s.handleGetDocument)
	s.route(mux, "POST /api/v1/ask", "ask", auth.PermDocumentsRead, s.handleAsk)

	s.route(mux, "POST /api/v1/tasks", "tasks_create", auth.PermContentWrite, s.handleCreateTask)
	s.route(mux, "GET /api/v1/tasks", "tasks_list", auth.PermContentRead, s.handleListTasks)
	s.route(mux, "GET /api/v1/tasks/stats", "tasks_stats", auth.PermContentRead, s.handleTaskStats)
	s.route(mux, "GET /api/v1/tasks/{id}", "tasks_get", auth.PermContentRead, s.handleGetTask)
	s.route(mux, "GET /api/v1/history", "history", auth.PermContentRead, s.handleHistory)

	s.route(mux, "/", "not_found", "", s.handleNotFound)
	return mux
}

// route 为处理器依次套上鉴权、超时、请求体限制与指标采集。
func (s *Server) route(mux *http.ServeMux, pattern, name, permission string, handler http.HandlerFunc) {
	var h http.Handler = handler
	h = s.withLimits(h)
	if permission != "" {
		h = s.auth.Middleware(auth.MiddlewareConfig{
			RequiredPermissions: map[string][]string{"*": {permission}},
			AuditEvent:          name,
		})(h)
	}
	mux.Handle(pattern, instrument(name, h))
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	// 配置 HTTP 服务器。
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
