package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	xerrors "NewsCrew/internal/errors"
)

// Config 描述了 NewsCrew 在启动阶段需要加载的全部配置。
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Alerting    AlertingConfig    `yaml:"alerting"`
	Storage     StorageConfig     `yaml:"storage"`
	TaskQueue   TaskQueueConfig   `yaml:"task_queue"`
	Cache       CacheConfig       `yaml:"cache"`
	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	News        NewsConfig        `yaml:"news"`
	Scrape      ScrapeConfig      `yaml:"scrape"`
	Images      ImagesConfig      `yaml:"images"`
	Crew        CrewConfig        `yaml:"crew"`
	Knowledge   KnowledgeConfig   `yaml:"knowledge"`
	Runtime     RuntimeConfig     `yaml:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address             string `yaml:"address"`
	RequestTimeoutSecs  int    `yaml:"request_timeout_seconds"`
	MaxRequestBodyBytes int64  `yaml:"max_request_body_bytes"`
}

// RequestTimeout 返回单个同步请求允许的最长处理时间。
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

// AuthConfig 描述 API 鉴权方式。
type AuthConfig struct {
	Mode   string        `yaml:"mode"`
	Tokens []TokenConfig `yaml:"tokens"`
}

// TokenConfig 是一条静态访问令牌。
type TokenConfig struct {
	Name        string   `yaml:"name"`
	Token       string   `yaml:"token"`
	TokenEnv    string   `yaml:"token_env"`
	Permissions []string `yaml:"permissions"`
}

// LoggingConfig 对应 pkg/logger 的初始化参数。
type LoggingConfig struct {
	Level       string         `yaml:"level"`
	Format      string         `yaml:"format"`
	OutputPaths []string       `yaml:"output_paths"`
	Audit       AuditLogConfig `yaml:"audit"`
}

// AuditLogConfig 控制审计日志输出。
type AuditLogConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig 控制独立的指标监听端口，API 端口上的 /metrics 始终可用。
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// AlertingConfig 描述任务失败时的通知渠道。
type AlertingConfig struct {
	SlackWebhookURL string            `yaml:"slack_webhook_url"`
	WebhookURL      string            `yaml:"webhook_url"`
	WebhookHeaders  map[string]string `yaml:"webhook_headers"`
}

// StorageConfig 统一描述任务状态与内容归档的存储后端。
type StorageConfig struct {
	TaskStore TaskStoreConfig `yaml:"task_store"`
	Archive   ArchiveConfig   `yaml:"archive"`
}

// TaskStoreConfig 支持 memory 与 mysql 两种驱动。
type TaskStoreConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	Retries int    `yaml:"retries"`
}

// ArchiveConfig 描述生成内容归档的位置。
type ArchiveConfig struct {
	Driver                 string `yaml:"driver"`
	Path                   string `yaml:"path"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `yaml:"conn_max_lifetime_seconds"`
}

// TaskQueueConfig 描述异步任务队列。
type TaskQueueConfig struct {
	Driver   string         `yaml:"driver"`
	Worker   int            `yaml:"worker"`
	Size     int            `yaml:"size"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

// RedisConfig 同时服务于队列与缓存。
type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Queue     string `yaml:"queue"`
	Prefix    string `yaml:"prefix"`
	BlockWait int    `yaml:"block_wait_seconds"`
}

// RabbitMQConfig 描述 RabbitMQ 连接参数。
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Queue      string `yaml:"queue"`
	Prefetch   int    `yaml:"prefetch"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// CacheConfig 控制新闻检索结果的缓存。
type CacheConfig struct {
	Driver     string      `yaml:"driver"`
	TTLSeconds int         `yaml:"ttl_seconds"`
	Redis      RedisConfig `yaml:"redis"`
}

// TTL 返回缓存有效期。
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Credential 描述访问外部服务的密钥，优先使用明文配置，其次读取环境变量。
type Credential struct {
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Resolve 返回最终生效的密钥。
func (c Credential) Resolve() string {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key
	}
	if c.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

// OpenAIConfig 描述 OpenAI 兼容接口。
type OpenAIConfig struct {
	Credential     `yaml:",inline"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout 返回 HTTP 超时时间。
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider string       `yaml:"provider"`
	OpenAI   OpenAIConfig `yaml:"openai"`
}

// EmbeddingConfig 描述句向量模型。
type EmbeddingConfig struct {
	Provider  string             `yaml:"provider"`
	Model     string             `yaml:"model"`
	Dimension int                `yaml:"dimension"`
	OpenAI    OpenAIConfig       `yaml:"openai"`
	TEI       TEIConfig          `yaml:"tei"`
	Python    PythonBridgeConfig `yaml:"python_bridge"`
}

// TEIConfig 指向 text-embeddings-inference 服务。
type TEIConfig struct {
	Credential     `yaml:",inline"`
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PythonBridgeConfig 描述通过 Python 脚本计算向量时所需的信息。
type PythonBridgeConfig struct {
	PythonExecutable string `yaml:"python_executable"`
	ScriptPath       string `yaml:"script_path"`
	WorkingDir       string `yaml:"working_dir"`
}

// VectorStoreConfig 描述向量数据库。
type VectorStoreConfig struct {
	Driver    string         `yaml:"driver"`
	Namespace string         `yaml:"namespace"`
	Pinecone  PineconeConfig `yaml:"pinecone"`
	PGVector  PGVectorConfig `yaml:"pgvector"`
}

// PineconeConfig 使用索引的 data-plane 地址。
type PineconeConfig struct {
	Credential     `yaml:",inline"`
	IndexHost      string `yaml:"index_host"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PGVectorConfig 描述 Postgres + pgvector 的连接信息。
type PGVectorConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// NewsConfig 描述新闻检索源。
type NewsConfig struct {
	Provider   string       `yaml:"provider"`
	MaxResults int          `yaml:"max_results"`
	Market     string       `yaml:"market"`
	Bing       BingConfig   `yaml:"bing"`
	Serper     SerperConfig `yaml:"serper"`
	RSS        RSSConfig    `yaml:"rss"`
}

// BingConfig 对应 Bing News Search v7。
type BingConfig struct {
	Credential `yaml:",inline"`
	Endpoint   string `yaml:"endpoint"`
}

// SerperConfig 对应 serper.dev 新闻接口。
type SerperConfig struct {
	Credential `yaml:",inline"`
	Endpoint   string `yaml:"endpoint"`
}

// RSSConfig 列出需要匹配的订阅源。
type RSSConfig struct {
	Feeds []string `yaml:"feeds"`
}

// ScrapeConfig 控制网页抓取。
type ScrapeConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
	UserAgent      string `yaml:"user_agent"`
}

// ImagesConfig 描述图片生成服务。
type ImagesConfig struct {
	Provider string         `yaml:"provider"`
	Model    string         `yaml:"model"`
	Width    int            `yaml:"width"`
	Height   int            `yaml:"height"`
	Steps    int            `yaml:"steps"`
	Together TogetherConfig `yaml:"together"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	MemeFont string         `yaml:"meme_font"`
}

// TogetherConfig 对应 Together AI 图片接口。
type TogetherConfig struct {
	Credential     `yaml:",inline"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CrewConfig 指向智能体与任务定义文件。
type CrewConfig struct {
	AgentsFile       string `yaml:"agents_file"`
	TasksFile        string `yaml:"tasks_file"`
	DigestAgentsFile string `yaml:"digest_agents_file"`
	DigestTasksFile  string `yaml:"digest_tasks_file"`
	ScrapeTopN       int    `yaml:"scrape_top_n"`
	MaxArticles      int    `yaml:"max_articles"`
	WrapWidth        int    `yaml:"wrap_width"`
	// SearchWindowHours 大于零时 crew 只检索最近若干小时发布的文章。
	SearchWindowHours int `yaml:"search_window_hours"`
}

// SearchWindow 返回 crew 检索的时间窗口，零表示不限。
func (c CrewConfig) SearchWindow() time.Duration {
	if c.SearchWindowHours <= 0 {
		return 0
	}
	return time.Duration(c.SearchWindowHours) * time.Hour
}

// KnowledgeConfig 指向平台写作规范等静态知识。
type KnowledgeConfig struct {
	Source     string `yaml:"source"`
	MaxResults int    `yaml:"max_results"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `yaml:"data_dir"`
}

// Load 负责解析指定路径的 YAML 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(filepath.Dir(path))
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse 仅做反序列化，不填充默认值。
func Parse(content []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &cfg, nil
}

// Default 返回一份填充了默认值的配置，用于缺少配置文件的本地运行。
func Default(baseDir string) *Config {
	cfg := &Config{}
	cfg.applyDefaults(baseDir)
	cfg.applyEnvOverrides()
	return cfg
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.RequestTimeoutSecs <= 0 {
		c.Server.RequestTimeoutSecs = 300
	}
	if c.Server.MaxRequestBodyBytes <= 0 {
		c.Server.MaxRequestBodyBytes = 1 << 20
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = "disabled"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = "logs/audit.log"
	}
	c.Logging.Audit.Path = resolvePath(baseDir, c.Logging.Audit.Path)

	if c.Storage.TaskStore.Driver == "" {
		c.Storage.TaskStore.Driver = "memory"
	}
	if c.Storage.TaskStore.Retries <= 0 {
		c.Storage.TaskStore.Retries = 3
	}
	if c.Storage.Archive.Driver == "" {
		c.Storage.Archive.Driver = "bolt"
	}

	if c.TaskQueue.Driver == "" {
		c.TaskQueue.Driver = "memory"
	}
	if c.TaskQueue.Worker <= 0 {
		c.TaskQueue.Worker = 2
	}
	if c.TaskQueue.Size <= 0 {
		c.TaskQueue.Size = 1024
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 900
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	defaultOpenAI(&c.LLM.OpenAI, "gpt-4o-mini")
	if c.LLM.OpenAI.Temperature == 0 {
		c.LLM.OpenAI.Temperature = 0.7
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "tei"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "all-MiniLM-L6-v2"
	}
	if c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = 384
	}
	defaultOpenAI(&c.Embedding.OpenAI, "text-embedding-3-small")
	if c.Embedding.TEI.URL == "" {
		c.Embedding.TEI.URL = "http://localhost:8081"
	}
	if c.Embedding.Python.PythonExecutable == "" {
		c.Embedding.Python.PythonExecutable = "python3"
	}
	if c.Embedding.Python.ScriptPath == "" {
		c.Embedding.Python.ScriptPath = filepath.Join("scripts", "embed.py")
	}
	if c.Embedding.Python.WorkingDir == "" {
		c.Embedding.Python.WorkingDir = baseDir
	} else {
		c.Embedding.Python.WorkingDir = resolvePath(baseDir, c.Embedding.Python.WorkingDir)
	}

	if c.VectorStore.Driver == "" {
		c.VectorStore.Driver = "memory"
	}
	if c.VectorStore.Pinecone.APIKeyEnv == "" {
		c.VectorStore.Pinecone.APIKeyEnv = "PINECONE_API_KEY"
	}
	if c.VectorStore.PGVector.Table == "" {
		c.VectorStore.PGVector.Table = "document_vectors"
	}

	if c.News.Provider == "" {
		c.News.Provider = "serper"
	}
	if c.News.MaxResults <= 0 {
		c.News.MaxResults = 10
	}
	if c.News.Bing.APIKeyEnv == "" {
		c.News.Bing.APIKeyEnv = "BING_NEWS_API_KEY"
	}
	if c.News.Serper.APIKeyEnv == "" {
		c.News.Serper.APIKeyEnv = "SERPER_API_KEY"
	}

	if c.Scrape.TimeoutSeconds <= 0 {
		c.Scrape.TimeoutSeconds = 20
	}
	if c.Scrape.MaxBodyBytes <= 0 {
		c.Scrape.MaxBodyBytes = 2 << 20
	}

	if c.Images.Provider == "" {
		c.Images.Provider = "together"
	}
	if c.Images.Model == "" {
		c.Images.Model = "black-forest-labs/FLUX.1-schnell"
	}
	if c.Images.Width <= 0 {
		c.Images.Width = 1024
	}
	if c.Images.Height <= 0 {
		c.Images.Height = 768
	}
	if c.Images.Steps <= 0 {
		c.Images.Steps = 4
	}
	if c.Images.Together.APIKeyEnv == "" {
		c.Images.Together.APIKeyEnv = "TOGETHER_API_KEY"
	}
	defaultOpenAI(&c.Images.OpenAI, "dall-e-3")
	c.Images.MemeFont = resolvePath(baseDir, c.Images.MemeFont)

	if c.Crew.ScrapeTopN <= 0 {
		c.Crew.ScrapeTopN = 2
	}
	if c.Crew.MaxArticles <= 0 {
		c.Crew.MaxArticles = 8
	}
	if c.Crew.WrapWidth <= 0 {
		c.Crew.WrapWidth = 50
	}
	c.Crew.AgentsFile = resolvePath(baseDir, c.Crew.AgentsFile)
	c.Crew.TasksFile = resolvePath(baseDir, c.Crew.TasksFile)
	c.Crew.DigestAgentsFile = resolvePath(baseDir, c.Crew.DigestAgentsFile)
	c.Crew.DigestTasksFile = resolvePath(baseDir, c.Crew.DigestTasksFile)

	if c.Knowledge.MaxResults <= 0 {
		c.Knowledge.MaxResults = 3
	}
	c.Knowledge.Source = resolvePath(baseDir, c.Knowledge.Source)

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else {
		c.Runtime.DataDir = resolvePath(baseDir, c.Runtime.DataDir)
	}
	if c.Storage.Archive.Path == "" {
		c.Storage.Archive.Path = filepath.Join(c.Runtime.DataDir, "archive.db")
	} else {
		c.Storage.Archive.Path = resolvePath(baseDir, c.Storage.Archive.Path)
	}
}

func defaultOpenAI(cfg *OpenAIConfig, model string) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Model == "" {
		cfg.Model = model
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 60
	}
}

// applyEnvOverrides 允许部署时通过环境变量覆盖少量常用字段。
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("NEWSCREW_ADDRESS")); v != "" {
		c.Server.Address = v
	}
	if v := strings.TrimSpace(os.Getenv("NEWSCREW_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("NEWSCREW_DATA_DIR")); v != "" {
		c.Runtime.DataDir = v
	}
}

// Validate 检查枚举类字段是否为支持的取值。
func (c *Config) Validate() error {
	checks := []struct {
		field string
		value string
		allow []string
	}{
		{"auth.mode", c.Auth.Mode, []string{"disabled", "token"}},
		{"storage.task_store.driver", c.Storage.TaskStore.Driver, []string{"memory", "mysql"}},
		{"storage.archive.driver", c.Storage.Archive.Driver, []string{"bolt", "mysql"}},
		{"task_queue.driver", c.TaskQueue.Driver, []string{"memory", "redis", "rabbitmq"}},
		{"cache.driver", c.Cache.Driver, []string{"memory", "redis", "none"}},
		{"llm.provider", c.LLM.Provider, []string{"openai"}},
		{"embedding.provider", c.Embedding.Provider, []string{"openai", "tei", "python_bridge"}},
		{"vector_store.driver", c.VectorStore.Driver, []string{"memory", "pinecone", "pgvector"}},
		{"news.provider", c.News.Provider, []string{"bing", "serper", "rss"}},
		{"images.provider", c.Images.Provider, []string{"together", "openai"}},
	}
	for _, check := range checks {
		if !contains(check.allow, check.value) {
			return xerrors.New(xerrors.CodeConfigInvalid,
				fmt.Sprintf("%s 不支持取值 %q（可选: %s）", check.field, check.value, strings.Join(check.allow, ", ")))
		}
	}
	if c.Storage.TaskStore.Driver == "mysql" && strings.TrimSpace(c.Storage.TaskStore.DSN) == "" {
		return xerrors.New(xerrors.CodeConfigInvalid, "storage.task_store.dsn 不能为空")
	}
	if c.Storage.Archive.Driver == "mysql" && strings.TrimSpace(c.Storage.Archive.DSN) == "" {
		return xerrors.New(xerrors.CodeConfigInvalid, "storage.archive.dsn 不能为空")
	}
	if c.VectorStore.Driver == "pinecone" && strings.TrimSpace(c.VectorStore.Pinecone.IndexHost) == "" {
		return xerrors.New(xerrors.CodeConfigInvalid, "vector_store.pinecone.index_host 不能为空")
	}
	if c.VectorStore.Driver == "pgvector" && strings.TrimSpace(c.VectorStore.PGVector.DSN) == "" {
		return xerrors.New(xerrors.CodeConfigInvalid, "vector_store.pgvector.dsn 不能为空")
	}
	if c.News.Provider == "rss" && len(c.News.RSS.Feeds) == 0 {
		return xerrors.New(xerrors.CodeConfigInvalid, "news.rss.feeds 至少需要一个订阅源")
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
