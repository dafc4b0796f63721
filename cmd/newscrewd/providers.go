package main

import (
	"context"
	"fmt"
	"time"

	"NewsCrew/internal/cache"
	"NewsCrew/internal/config"
	"NewsCrew/internal/embedding"
	embedopenai "NewsCrew/internal/embedding/openai"
	"NewsCrew/internal/embedding/pythonbridge"
	"NewsCrew/internal/embedding/tei"
	xerrors "NewsCrew/internal/errors"
	"NewsCrew/internal/imagegen"
	"NewsCrew/internal/knowledge"
	"NewsCrew/internal/llm"
	"NewsCrew/internal/llm/openai"
	"NewsCrew/internal/news"
	"NewsCrew/internal/rag"
	"NewsCrew/internal/scrape"
	"NewsCrew/internal/storage"
	"NewsCrew/internal/storage/bolt"
	"NewsCrew/internal/storage/mysql"
	"NewsCrew/internal/task"
	"NewsCrew/internal/vectorstore"
	"NewsCrew/internal/vectorstore/pgvector"
	"NewsCrew/internal/vectorstore/pinecone"
)

// newsTimeout 是单次新闻检索请求的超时时间。
const newsTimeout = 20 * time.Second

// memoryCacheEntries 限制进程内缓存的条目数。
const memoryCacheEntries = 512

func createLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "openai":
		apiKey := cfg.LLM.OpenAI.Resolve()
		if apiKey == "" {
			return nil, xerrors.New(xerrors.CodeConfigInvalid, "OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:      apiKey,
			BaseURL:     cfg.LLM.OpenAI.BaseURL,
			Model:       cfg.LLM.OpenAI.Model,
			Temperature: cfg.LLM.OpenAI.Temperature,
			Timeout:     cfg.LLM.OpenAI.Timeout(),
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}

// createSearcher 构造新闻检索源，并按配置套上结果缓存。
func createSearcher(ctx context.Context, cfg *config.Config) (news.Searcher, func(), error) {
	var (
		searcher news.Searcher
		err      error
	)
	switch cfg.News.Provider {
	case "bing":
		searcher, err = news.NewBingSearcher(cfg.News.Bing.Resolve(), cfg.News.Bing.Endpoint, cfg.News.Market, newsTimeout)
	case "serper":
		searcher, err = news.NewSerperSearcher(cfg.News.Serper.Resolve(), cfg.News.Serper.Endpoint, newsTimeout)
	case "rss":
		searcher, err = news.NewRSSSearcher(cfg.News.RSS.Feeds, newsTimeout)
	default:
		err = fmt.Errorf("未知的新闻源: %s", cfg.News.Provider)
	}
	if err != nil {
		return nil, nil, err
	}

	noop := func() {}
	switch cfg.Cache.Driver {
	case "none":
		return searcher, noop, nil
	case "redis":
		store, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Address:  cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return news.NewCached(searcher, store, cfg.Cache.TTL()), func() { _ = store.Close() }, nil
	default:
		return news.NewCached(searcher, cache.NewMemoryCache(memoryCacheEntries), cfg.Cache.TTL()), noop, nil
	}
}

func createScraper(cfg *config.Config) *scrape.Scraper {
	return scrape.New(
		scrape.WithTimeout(time.Duration(cfg.Scrape.TimeoutSeconds)*time.Second),
		scrape.WithMaxBytes(cfg.Scrape.MaxBodyBytes),
		scrape.WithUserAgent(cfg.Scrape.UserAgent),
	)
}

func createArchive(ctx context.Context, cfg *config.Config) (storage.Repository, func(), error) {
	switch cfg.Storage.Archive.Driver {
	case "mysql":
		repo, err := mysql.NewArchiveRepository(ctx, mysql.Config{
			DSN:             cfg.Storage.Archive.DSN,
			MaxOpenConns:    cfg.Storage.Archive.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Archive.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Storage.Archive.ConnMaxLifetimeSeconds) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		store, err := bolt.Open(cfg.Storage.Archive.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}

func createKnowledge(cfg *config.Config) (knowledge.Provider, error) {
	if cfg.Knowledge.Source == "" {
		return knowledge.DefaultProvider(), nil
	}
	return knowledge.LoadStaticProvider(cfg.Knowledge.Source, cfg.Knowledge.MaxResults)
}

func createImageGenerator(cfg *config.Config) (imagegen.Generator, error) {
	defaults := imagegen.Defaults{
		Model:  cfg.Images.Model,
		Width:  cfg.Images.Width,
		Height: cfg.Images.Height,
		Steps:  cfg.Images.Steps,
	}
	switch cfg.Images.Provider {
	case "openai":
		return imagegen.NewOpenAI(imagegen.OpenAIConfig{
			APIKey:   cfg.Images.OpenAI.Resolve(),
			BaseURL:  cfg.Images.OpenAI.BaseURL,
			Timeout:  cfg.Images.OpenAI.Timeout(),
			Defaults: defaults,
		})
	default:
		return imagegen.NewTogether(imagegen.TogetherConfig{
			APIKey:   cfg.Images.Together.Resolve(),
			BaseURL:  cfg.Images.Together.BaseURL,
			Timeout:  time.Duration(cfg.Images.Together.TimeoutSeconds) * time.Second,
			Defaults: defaults,
		})
	}
}

func createMemeRenderer(cfg *config.Config) (*imagegen.MemeRenderer, error) {
	if cfg.Images.MemeFont == "" {
		return imagegen.NewMemeRenderer(), nil
	}
	return imagegen.LoadMemeRenderer(cfg.Images.MemeFont)
}

func createEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	ec := cfg.Embedding
	switch ec.Provider {
	case "openai":
		return embedopenai.NewClient(embedopenai.Config{
			APIKey:    ec.OpenAI.Resolve(),
			BaseURL:   ec.OpenAI.BaseURL,
			Model:     ec.OpenAI.Model,
			Dimension: ec.Dimension,
			Timeout:   ec.OpenAI.Timeout(),
		})
	case "python_bridge":
		script := pythonbridge.ResolveScriptPath(ec.Python.WorkingDir, ec.Python.ScriptPath)
		return pythonbridge.NewClient(ec.Python.PythonExecutable, script, ec.Python.WorkingDir, ec.Model, ec.Dimension)
	default:
		return tei.NewClient(tei.Config{
			URL:       ec.TEI.URL,
			APIKey:    ec.TEI.Resolve(),
			Dimension: ec.Dimension,
			Timeout:   time.Duration(ec.TEI.TimeoutSeconds) * time.Second,
		})
	}
}

func createVectorStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, func(), error) {
	vc := cfg.VectorStore
	dim := cfg.Embedding.Dimension
	noop := func() {}
	switch vc.Driver {
	case "pinecone":
		client, err := pinecone.NewClient(pinecone.Config{
			APIKey:    vc.Pinecone.Resolve(),
			IndexHost: vc.Pinecone.IndexHost,
			Dimension: dim,
			Timeout:   time.Duration(vc.Pinecone.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, noop, nil
	case "pgvector":
		store, err := pgvector.Open(ctx, vc.PGVector.DSN, vc.PGVector.Table, dim)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return vectorstore.NewMemoryStore(dim), noop, nil
	}
}

func createDocumentService(ctx context.Context, cfg *config.Config, client llm.Client, fetcher scrape.Fetcher) (*rag.Service, func(), error) {
	embedder, err := createEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := createVectorStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := rag.New(embedder, store, client,
		rag.WithNamespace(cfg.VectorStore.Namespace),
		rag.WithFetcher(fetcher),
		rag.WithLLMTimeout(cfg.LLM.OpenAI.Timeout()),
	)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return svc, closeStore, nil
}

func createTaskStore(ctx context.Context, cfg *config.Config) (task.Store, error) {
	switch cfg.Storage.TaskStore.Driver {
	case "mysql":
		return task.NewMySQLStore(ctx, cfg.Storage.TaskStore.DSN)
	default:
		return task.NewMemoryStore(), nil
	}
}

func createTaskQueue(ctx context.Context, cfg *config.Config) (task.Queue, error) {
	switch cfg.TaskQueue.Driver {
	case "redis":
		return task.NewRedisQueue(ctx, task.RedisQueueConfig{
			Address:   cfg.TaskQueue.Redis.Address,
			Password:  cfg.TaskQueue.Redis.Password,
			DB:        cfg.TaskQueue.Redis.DB,
			Queue:     cfg.TaskQueue.Redis.Queue,
			BlockWait: time.Duration(cfg.TaskQueue.Redis.BlockWait) * time.Second,
		})
	case "rabbitmq":
		return task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:        cfg.TaskQueue.RabbitMQ.URL,
			Queue:      cfg.TaskQueue.RabbitMQ.Queue,
			Prefetch:   cfg.TaskQueue.RabbitMQ.Prefetch,
			Durable:    cfg.TaskQueue.RabbitMQ.Durable,
			AutoDelete: cfg.TaskQueue.RabbitMQ.AutoDelete,
		})
	default:
		return task.NewMemoryQueue(cfg.TaskQueue.Size), nil
	}
}
