package rag

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsCrew/internal/embedding"
	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/llm"
	"NewsCrew/internal/scrape"
	"NewsCrew/internal/vectorstore"
	"NewsCrew/pkg/logger"
)

// 元数据字段
const (
	MetaText      = "text"
	MetaURL       = "url"
	MetaTitle     = "title"
	MetaCreatedAt = "created_at"
)

// DefaultTopK 是检索上下文时默认使用的文档数量。
const DefaultTopK = 1

// Document 是写入知识库的一段文本。
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	URL      string         `json:"url,omitempty"`
	Title    string         `json:"title,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Source 是回答引用的一条文档。
type Source struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Title string  `json:"title,omitempty"`
	URL   string  `json:"url,omitempty"`
}

// Answer 是检索增强问答的结果。
type Answer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
}

// Service 负责文档入库与基于向量检索的问答。
type Service struct {
	embedder   embedding.Embedder
	store      vectorstore.Store
	llmClient  llm.Client
	fetcher    scrape.Fetcher
	namespace  string
	maxChars   int
	llmTimeout time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// Option 定义可选配置。
type Option func(*Service)

// WithNamespace 指定向量库命名空间。
func WithNamespace(namespace string) Option {
	return func(s *Service) { s.namespace = namespace }
}

// WithFetcher 启用按 URL 入库。
func WithFetcher(fetcher scrape.Fetcher) Option {
	return func(s *Service) { s.fetcher = fetcher }
}

// WithMaxChars 限制单个文档参与向量计算的字符数，超出部分仍保存在元数据中。
func WithMaxChars(n int) Option {
	return func(s *Service) { s.maxChars = n }
}

// WithLLMTimeout 限制问答时大模型调用的时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(s *Service) { s.llmTimeout = timeout }
}

// New 创建 Service。
func New(embedder embedding.Embedder, store vectorstore.Store, client llm.Client, opts ...Option) (*Service, error) {
	if embedder == nil || store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置向量模型或向量库")
	}
	s := &Service{
		embedder:  embedder,
		store:     store,
		llmClient: client,
		log:       logger.Named("rag"),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Ingest 计算文档向量并写入向量库，返回写入的 ID。缺少 ID 的文档会分配 UUID。
func (s *Service) Ingest(ctx context.Context, docs ...Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "没有需要入库的文档")
	}
	texts := make([]string, 0, len(docs))
	for idx := range docs {
		docs[idx].Text = strings.TrimSpace(docs[idx].Text)
		if docs[idx].Text == "" {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("第 %d 个文档内容为空", idx))
		}
		if strings.TrimSpace(docs[idx].ID) == "" {
			docs[idx].ID = uuid.NewString()
		}
		texts = append(texts, s.clip(docs[idx].Text))
	}

	values, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if err := embedding.CheckResult("embedder", len(texts), values, s.embedder.Dimension()); err != nil {
		return nil, err
	}

	created := s.now().Unix()
	vectors := make([]vectorstore.Vector, 0, len(docs))
	ids := make([]string, 0, len(docs))
	for idx, doc := range docs {
		vectors = append(vectors, vectorstore.Vector{
			ID:       doc.ID,
			Values:   values[idx],
			Metadata: documentMetadata(doc, created),
		})
		ids = append(ids, doc.ID)
	}
	if err := s.store.Upsert(ctx, s.namespace, vectors); err != nil {
		return nil, err
	}
	s.log.Info("文档已入库", slog.Int("count", len(ids)), slog.String("namespace", s.namespace))
	return ids, nil
}

// IngestURL 抓取页面正文后入库。
func (s *Service) IngestURL(ctx context.Context, id, rawURL string) (*Document, error) {
	if s.fetcher == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置网页抓取")
	}
	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(page.Text) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "页面中没有可提取的段落文本: "+rawURL)
	}
	doc := Document{ID: id, Text: page.Text, URL: page.URL, Title: page.Title}
	ids, err := s.Ingest(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc.ID = ids[0]
	return &doc, nil
}

// Fetch 按 ID 读取文档。
func (s *Service) Fetch(ctx context.Context, id string) (*Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "文档 ID 不能为空")
	}
	found, err := s.store.Fetch(ctx, s.namespace, []string{id})
	if err != nil {
		return nil, err
	}
	vec, ok := found[id]
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, "document not found: "+id)
	}
	return documentFromMetadata(vec.ID, vec.Metadata), nil
}

// Ask 检索最相关的 topK 篇文档作为系统消息，再向大模型提问。
// 没有匹配文档时直接提问，Sources 为空。
func (s *Service) Ask(ctx context.Context, question string, topK int) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "question 不能为空")
	}
	if s.llmClient == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	query, err := embedding.One(ctx, s.embedder, question)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.Query(ctx, query, vectorstore.Query{TopK: topK, IncludeMetadata: true, Namespace: s.namespace})
	if err != nil {
		return nil, err
	}

	answer := &Answer{Question: question, Sources: make([]Source, 0, len(matches))}
	contexts := make([]string, 0, len(matches))
	for _, m := range matches {
		text := vectorstore.MetadataString(m.Metadata, MetaText)
		if text == "" {
			continue
		}
		contexts = append(contexts, text)
		answer.Sources = append(answer.Sources, Source{
			ID:    m.ID,
			Score: m.Score,
			Title: vectorstore.MetadataString(m.Metadata, MetaTitle),
			URL:   vectorstore.MetadataString(m.Metadata, MetaURL),
		})
	}

	messages := make([]llm.Message, 0, 2)
	if len(contexts) > 0 {
		messages = append(messages, llm.System(strings.Join(contexts, "\n\n")))
	}
	messages = append(messages, llm.User(question))

	callCtx := ctx
	if s.llmTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.llmTimeout)
		defer cancel()
	}
	resp, err := s.llmClient.Chat(callCtx, llm.Request{Messages: messages})
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		return nil, err
	}
	answer.Answer = strings.TrimSpace(resp.Content)
	return answer, nil
}

// Delete 删除文档。
func (s *Service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.store.Delete(ctx, s.namespace, ids)
}

func (s *Service) clip(text string) string {
	if s.maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= s.maxChars {
		return text
	}
	return string(runes[:s.maxChars])
}

func documentMetadata(doc Document, created int64) map[string]any {
	meta := make(map[string]any, len(doc.Metadata)+4)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta[MetaText] = doc.Text
	if doc.URL != "" {
		meta[MetaURL] = doc.URL
	}
	if doc.Title != "" {
		meta[MetaTitle] = doc.Title
	}
	meta[MetaCreatedAt] = created
	return meta
}

func documentFromMetadata(id string, meta map[string]any) *Document {
	doc := &Document{
		ID:    id,
		Text:  vectorstore.MetadataString(meta, MetaText),
		URL:   vectorstore.MetadataString(meta, MetaURL),
		Title: vectorstore.MetadataString(meta, MetaTitle),
	}
	extra := make(map[string]any)
	for k, v := range meta {
		switch k {
		case MetaText, MetaURL, MetaTitle:
			continue
		}
		extra[k] = v
	}
	if len(extra) > 0 {
		doc.Metadata = extra
	}
	return doc
}
