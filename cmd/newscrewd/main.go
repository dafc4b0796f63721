package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"NewsCrew/internal/api"
	"NewsCrew/internal/auth"
	"NewsCrew/internal/config"
	"NewsCrew/internal/crew"
	"NewsCrew/internal/observability/alerting"
	"NewsCrew/internal/observability/metrics"
	"NewsCrew/internal/rag"
	"NewsCrew/internal/studio"
	"NewsCrew/internal/task"
	"NewsCrew/pkg/logger"
)

// main 是 NewsCrew 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("newscrewd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	// .env 不存在时忽略。
	_ = godotenv.Load()

	configPath := os.Getenv("NEWSCREW_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "newscrew.yaml")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
			Compress:   cfg.Logging.Audit.Compress,
		},
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	appLog := logger.Named("newscrewd")

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
				appLog.Error("指标服务异常退出", slog.Any("error", err))
			}
		}()
	}

	// 初始化大模型客户端。
	llmClient, err := createLLMClient(cfg)
	if err != nil {
		return err
	}

	searcher, closeSearcher, err := createSearcher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSearcher()

	fetcher := createScraper(cfg)

	archive, closeArchive, err := createArchive(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeArchive()

	knowledgeProvider, err := createKnowledge(cfg)
	if err != nil {
		return err
	}

	studioOpts := []studio.Option{
		studio.WithFetcher(fetcher),
		studio.WithKnowledgeProvider(knowledgeProvider),
		studio.WithArchive(archive),
		studio.WithCrews(
			crew.LoadOrDefault(cfg.Crew.DigestAgentsFile, cfg.Crew.DigestTasksFile, crew.DefaultNewsDigest()),
			crew.LoadOrDefault(cfg.Crew.AgentsFile, cfg.Crew.TasksFile, crew.DefaultContentPack()),
		),
		studio.WithWrapWidth(cfg.Crew.WrapWidth),
		studio.WithSearchLimits(cfg.Crew.MaxArticles, cfg.Crew.ScrapeTopN),
		studio.WithSearchWindow(cfg.Crew.SearchWindow()),
		studio.WithLLMTimeout(cfg.LLM.OpenAI.Timeout()),
	}
	images, err := createImageGenerator(cfg)
	if err != nil {
		// 图片生成是可选能力，缺少密钥时仅关闭相关接口。
		appLog.Warn("图片生成未启用", slog.Any("error", err))
	} else {
		studioOpts = append(studioOpts, studio.WithImageGenerator(images))
	}
	meme, err := createMemeRenderer(cfg)
	if err != nil {
		return err
	}
	studioOpts = append(studioOpts, studio.WithMemeRenderer(meme))

	st, err := studio.New(llmClient, searcher, studioOpts...)
	if err != nil {
		return err
	}

	serverOpts := []api.Option{
		api.WithRequestTimeout(cfg.Server.RequestTimeout()),
		api.WithMaxBodyBytes(cfg.Server.MaxRequestBodyBytes),
	}

	documents, closeDocuments, err := createDocumentService(ctx, cfg, llmClient, fetcher)
	if err != nil {
		// 向量检索依赖外部服务，失败时其余接口照常提供。
		appLog.Warn("文档问答未启用", slog.Any("error", err))
	} else {
		defer closeDocuments()
		serverOpts = append(serverOpts, api.WithDocuments(documents))
	}

	authService, err := createAuth(cfg)
	if err != nil {
		return err
	}
	serverOpts = append(serverOpts, api.WithAuth(authService))

	taskStore, err := createTaskStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := taskStore.Close(); err != nil {
			appLog.Warn("关闭任务存储失败", slog.Any("error", err))
		}
	}()

	taskQueue, err := createTaskQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := taskQueue.Close(); err != nil {
			appLog.Warn("关闭任务队列失败", slog.Any("error", err))
		}
	}()

	taskService := task.NewService(taskStore, taskQueue, cfg.Storage.TaskStore.Retries)
	processor := task.NewProcessor(st, taskStore, taskQueue, taskQueue,
		task.WithWorkerCount(cfg.TaskQueue.Worker),
		task.WithProcessorLogger(logger.Named("task")),
		task.WithRecoveryHandler(st),
		task.WithAlertDispatcher(createAlerting(cfg)),
	)
	serverOpts = append(serverOpts, api.WithTaskService(taskService))

	processorCtx, processorCancel := context.WithCancel(ctx)
	processorDone := make(chan struct{})
	// 先停处理器并等待在途任务返回，再执行上面注册的队列与存储关闭。
	defer func() {
		processorCancel()
		<-processorDone
	}()

	go func() {
		defer close(processorDone)
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("任务处理器异常退出", slog.Any("error", err))
		}
	}()

	server := api.NewServer(cfg.Server.Address, st, serverOpts...)
	appLog.Info("NewsCrew 服务启动",
		slog.String("address", cfg.Server.Address),
		slog.String("news_provider", cfg.News.Provider),
		slog.String("task_queue", cfg.TaskQueue.Driver),
		slog.String("auth_mode", string(authService.Mode())),
	)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	appLog.Info("NewsCrew 服务已停止")
	return nil
}

// loadConfig 读取配置文件；文件不存在时使用默认配置。
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := config.Default(".")
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func createAuth(cfg *config.Config) (*auth.Service, error) {
	tokens := make([]auth.Token, 0, len(cfg.Auth.Tokens))
	for _, tc := range cfg.Auth.Tokens {
		secret := strings.TrimSpace(tc.Token)
		if secret == "" && tc.TokenEnv != "" {
			secret = strings.TrimSpace(os.Getenv(tc.TokenEnv))
		}
		tokens = append(tokens, auth.Token{Name: tc.Name, Secret: secret, Permissions: tc.Permissions})
	}
	return auth.NewService(auth.Config{Mode: auth.Mode(cfg.Auth.Mode), Tokens: tokens})
}

func createAlerting(cfg *config.Config) alerting.Dispatcher {
	var notifiers []alerting.Notifier
	if cfg.Alerting.SlackWebhookURL != "" {
		notifiers = append(notifiers, &alerting.SlackNotifier{WebhookURL: cfg.Alerting.SlackWebhookURL})
	}
	if cfg.Alerting.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{
			URL:     cfg.Alerting.WebhookURL,
			Headers: cfg.Alerting.WebhookHeaders,
		})
	}
	return alerting.NewFanout(notifiers...)
}

// 保证 Studio 同时满足任务执行与降级恢复两个接口。
var (
	_ task.Executor        = (*studio.Studio)(nil)
	_ task.RecoveryHandler = (*studio.Studio)(nil)
	_ api.ContentService   = (*studio.Studio)(nil)
	_ api.DocumentService  = (*rag.Service)(nil)
)
