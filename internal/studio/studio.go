package studio

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsCrew/internal/crew"
	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/imagegen"
	"NewsCrew/internal/knowledge"
	"NewsCrew/internal/llm"
	"NewsCrew/internal/news"
	"NewsCrew/internal/scrape"
	"NewsCrew/internal/storage"
	"NewsCrew/pkg/logger"
	"NewsCrew/pkg/textwrap"
)

// Post 是一条面向社交平台的帖子。
type Post struct {
	Platform string `json:"platform"`
	Content  string `json:"content"`
}

// ContentPack 是 content_pack crew 的产出。
type ContentPack struct {
	ID       string         `json:"id,omitempty"`
	Subject  string         `json:"subject"`
	Article  string         `json:"article"`
	Posts    []Post         `json:"social_media_posts"`
	Articles []news.Article `json:"articles,omitempty"`
}

// Digest 是 news_digest crew 的产出。
type Digest struct {
	ID       string         `json:"id,omitempty"`
	Topic    string         `json:"topic"`
	Text     string         `json:"results"`
	Articles []news.Article `json:"articles,omitempty"`
}

// Summary 是单篇文章的摘要。
type Summary struct {
	Summary string `json:"summary"`
	Source  string `json:"source"`
}

// Studio 把检索、crew、图片生成与归档组合成面向用户的内容操作。
type Studio struct {
	llmClient   llm.Client
	searcher    news.Searcher
	fetcher     scrape.Fetcher
	knowledge   knowledge.Provider
	images      imagegen.Generator
	meme        *imagegen.MemeRenderer
	archive     storage.Repository
	digestDef   crew.Definition
	contentDef  crew.Definition
	wrapWidth   int
	maxArticles int
	scrapeTopN  int
	searchSince time.Duration
	llmTimeout  time.Duration
	log         *slog.Logger
	now         func() time.Time
}

// Option 定义可选的 Studio 配置。
type Option func(*Studio)

// 默认参数
const (
	defaultWrapWidth   = 50
	defaultMaxArticles = 8
	defaultScrapeTopN  = 2
	defaultTone        = "formal"
	defaultPlatform    = "LinkedIn"
)

// WithFetcher 配置网页抓取，content_pack 的 scrape 工具依赖它。
func WithFetcher(fetcher scrape.Fetcher) Option {
	return func(s *Studio) { s.fetcher = fetcher }
}

// WithKnowledgeProvider 配置平台写作规范。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(s *Studio) { s.knowledge = provider }
}

// WithImageGenerator 配置图片生成服务。
func WithImageGenerator(generator imagegen.Generator) Option {
	return func(s *Studio) { s.images = generator }
}

// WithMemeRenderer 配置梗图渲染器。
func WithMemeRenderer(renderer *imagegen.MemeRenderer) Option {
	return func(s *Studio) { s.meme = renderer }
}

// WithArchive 配置内容归档。
func WithArchive(repo storage.Repository) Option {
	return func(s *Studio) { s.archive = repo }
}

// WithCrews 替换内置的 crew 定义。
func WithCrews(digest, content crew.Definition) Option {
	return func(s *Studio) {
		s.digestDef = digest
		s.contentDef = content
	}
}

// WithWrapWidth 设置帖子正文的折行宽度。
func WithWrapWidth(width int) Option {
	return func(s *Studio) { s.wrapWidth = width }
}

// WithSearchLimits 设置检索文章数量与抓取正文的文章数量。
func WithSearchLimits(maxArticles, scrapeTopN int) Option {
	return func(s *Studio) {
		s.maxArticles = maxArticles
		s.scrapeTopN = scrapeTopN
	}
}

// WithSearchWindow 只保留最近 window 内发布的文章。
func WithSearchWindow(window time.Duration) Option {
	return func(s *Studio) { s.searchSince = window }
}

// WithLLMTimeout 限制单次大模型调用的时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(s *Studio) {
		if timeout < 0 {
			timeout = 0
		}
		s.llmTimeout = timeout
	}
}

// New 创建 Studio。
func New(client llm.Client, searcher news.Searcher, opts ...Option) (*Studio, error) {
	if client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	s := &Studio{
		llmClient:   client,
		searcher:    searcher,
		digestDef:   crew.DefaultNewsDigest(),
		contentDef:  crew.DefaultContentPack(),
		wrapWidth:   defaultWrapWidth,
		maxArticles: defaultMaxArticles,
		scrapeTopN:  defaultScrapeTopN,
		log:         logger.Named("studio"),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.wrapWidth <= 0 {
		s.wrapWidth = defaultWrapWidth
	}
	if s.maxArticles <= 0 {
		s.maxArticles = defaultMaxArticles
	}
	if s.scrapeTopN <= 0 {
		s.scrapeTopN = defaultScrapeTopN
	}
	// 验证 crew 定义，避免在请求路径上才暴露配置错误。
	if err := s.digestDef.Validate(); err != nil {
		return nil, err
	}
	if err := s.contentDef.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Digest 运行 news_digest crew，返回最终的文字摘要。
func (s *Studio) Digest(ctx context.Context, topic string) (*Digest, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "No topic provided")
	}
	out, err := s.kickoff(ctx, s.digestDef, topic)
	if err != nil {
		return nil, err
	}
	digest := &Digest{Topic: topic, Text: out.Final, Articles: out.Articles}
	digest.ID = s.archiveRecord(ctx, &storage.Record{
		Kind:    crew.NewsDigest,
		Subject: topic,
		Digest:  digest.Text,
	})
	return digest, nil
}

// CreateContent 运行 content_pack crew，返回文章与折行后的社交帖子。
func (s *Studio) CreateContent(ctx context.Context, subject string) (*ContentPack, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Subject is required")
	}
	out, err := s.kickoff(ctx, s.contentDef, subject)
	if err != nil {
		return nil, err
	}
	parsed := crew.ParseContentOutput(out)
	pack := &ContentPack{
		Subject:  subject,
		Article:  parsed.Article,
		Posts:    make([]Post, 0, len(parsed.Posts)),
		Articles: out.Articles,
	}
	for _, p := range parsed.Posts {
		pack.Posts = append(pack.Posts, Post{Platform: p.Platform, Content: textwrap.Fill(p.Content, s.wrapWidth)})
	}
	posts, _ := json.Marshal(pack.Posts)
	pack.ID = s.archiveRecord(ctx, &storage.Record{
		Kind:    crew.ContentPack,
		Subject: subject,
		Article: pack.Article,
		Posts:   posts,
	})
	return pack, nil
}

// GeneratePost 生成一条指定语气与平台的帖子，平台规范会追加到系统提示词。
func (s *Studio) GeneratePost(ctx context.Context, summary, tone, platform string) (string, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "内容不能为空")
	}
	tone = orDefault(tone, defaultTone)
	platform = orDefault(platform, defaultPlatform)

	system := ""
	if s.knowledge != nil {
		if guide := knowledge.Render(s.knowledge.Query(platform, summary)); guide != "" {
			system = "Follow these platform guidelines:\n" + guide
		}
	}
	prompt := fmt.Sprintf("Create a %s %s-friendly post: %s", tone, platform, summary)
	return s.ask(ctx, system, prompt)
}

// Summarize 逐篇摘要文章并调整语气。
func (s *Studio) Summarize(ctx context.Context, articles []news.Article, tone string) ([]Summary, error) {
	tone = orDefault(tone, defaultTone)
	summaries := make([]Summary, 0, len(articles))
	for _, article := range articles {
		text := firstNonEmpty(article.Description, article.Title)
		if text == "" {
			continue
		}
		reply, err := s.ask(ctx, "", fmt.Sprintf("Summarize the following in a %s tone:\n%s", tone, text))
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, Summary{Summary: reply, Source: article.URL})
	}
	return summaries, nil
}

// SearchAndSummarize 检索 query 相关的新闻后逐篇摘要。
func (s *Studio) SearchAndSummarize(ctx context.Context, query, tone string, since time.Time) ([]Summary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "query 不能为空")
	}
	if s.searcher == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置新闻检索")
	}
	articles, err := s.searcher.Search(ctx, news.Query{Text: query, Since: since, Limit: s.maxArticles})
	if err != nil {
		return nil, err
	}
	return s.Summarize(ctx, articles, tone)
}

// Refine 按指令改写内容。
func (s *Studio) Refine(ctx context.Context, content, instruction string) (string, error) {
	if strings.TrimSpace(content) == "" || strings.TrimSpace(instruction) == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "content 与 refinement 均不能为空")
	}
	prompt := fmt.Sprintf("Refine the following content with this instruction: %s\n\n%s", instruction, content)
	return s.ask(ctx, "", prompt)
}

// History 返回最近归档的内容。
func (s *Studio) History(ctx context.Context, limit int) ([]storage.Record, error) {
	if s.archive == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置内容归档")
	}
	records, err := s.archive.ListLatest(ctx, storage.NormalizeLimit(limit))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询归档记录失败")
	}
	return records, nil
}

func (s *Studio) kickoff(ctx context.Context, def crew.Definition, subject string) (*crew.Output, error) {
	search := crew.NewSearchTool(s.searcher, s.maxArticles)
	search.Window = s.searchSince
	opts := []crew.Option{crew.WithTaskTimeout(s.llmTimeout)}
	if s.searcher != nil {
		opts = append(opts, crew.WithTool(search))
	}
	if s.fetcher != nil {
		opts = append(opts, crew.WithTool(crew.NewScrapeTool(s.fetcher, s.scrapeTopN)))
	}
	c, err := crew.New(def, s.llmClient, opts...)
	if err != nil {
		return nil, err
	}
	started := s.now()
	out, err := c.Kickoff(ctx, map[string]string{"subject": subject, "topic": subject})
	if err != nil {
		return nil, err
	}
	s.log.Info("crew 执行完成",
		slog.String("crew", def.Name),
		slog.String("subject", subject),
		slog.Int("articles", len(out.Articles)),
		slog.Duration("elapsed", s.now().Sub(started)))
	return out, nil
}

func (s *Studio) ask(ctx context.Context, system, prompt string) (string, error) {
	callCtx := ctx
	if s.llmTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.llmTimeout)
		defer cancel()
	}
	reply, err := llm.Ask(callCtx, s.llmClient, system, prompt)
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return "", xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		if _, ok := xerrors.From(err); ok {
			return "", err
		}
		return "", xerrors.Wrap(xerrors.CodeExecutorFailure, err, "大模型推理失败")
	}
	return strings.TrimSpace(reply), nil
}

// archiveRecord 写入归档并返回记录 ID。归档失败只记录日志，不影响已生成的内容。
func (s *Studio) archiveRecord(ctx context.Context, record *storage.Record) string {
	if s.archive == nil {
		return ""
	}
	record.ID = uuid.NewString()
	record.CreatedAt = s.now().Unix()
	if err := s.archive.Save(ctx, record); err != nil {
		s.log.Error("保存归档记录失败",
			slog.String("kind", record.Kind),
			slog.String("subject", record.Subject),
			slog.Any("error", err))
		return ""
	}
	return record.ID
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
