// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package app wires the VANA components together from a [config.Config].
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	adkmodel "google.golang.org/adk/model"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/NickB03/vana/agents"
	"github.com/NickB03/vana/cache"
	"github.com/NickB03/vana/config"
	"github.com/NickB03/vana/docstore"
	"github.com/NickB03/vana/embedding"
	"github.com/NickB03/vana/fallback"
	"github.com/NickB03/vana/mcp"
	"github.com/NickB03/vana/model"
	"github.com/NickB03/vana/monitoring"
	"github.com/NickB03/vana/pkg/logging"
	"github.com/NickB03/vana/planner"
	"github.com/NickB03/vana/rag"
	"github.com/NickB03/vana/sandbox"
	"github.com/NickB03/vana/vector"
)

// App holds every runtime component built from a configuration.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Caches   *cache.Registry
	Metrics  *monitoring.Metrics
	Health   *monitoring.HealthChecker
	Fallback *fallback.Manager
	LLM      adkmodel.LLM
	Index    *vector.Index
	Docs     *docstore.Store
	RAG      *rag.Service
	Executor sandbox.Executor
	Planner  *planner.TaskPlanner
	System   *agents.System
	Runner   *agents.Runner

	closers []io.Closer
}

// NewCaches builds the cache registry from cfg.
func NewCaches(cfg *config.Config, logger *slog.Logger) *cache.Registry {
	return cache.NewRegistry(cache.RegistryConfig{
		SearchSize:   cfg.Cache.Search.MaxSize,
		SearchTTL:    cfg.Cache.Search.TTL,
		DocumentSize: cfg.Cache.Document.MaxSize,
		DocumentTTL:  cfg.Cache.Document.TTL,
		AnalysisSize: cfg.Cache.Analysis.MaxSize,
		AnalysisTTL:  cfg.Cache.Analysis.TTL,
	},
		cache.WithCleanupInterval(cfg.Cache.CleanupInterval),
		cache.WithCopyValues(true),
		cache.WithLogger(logger),
	)
}

// NewFallbackManager builds the retry manager of model and proxy calls.
func NewFallbackManager(cfg *config.Config, logger *slog.Logger, onFallback func(string, int)) *fallback.Manager {
	opts := []fallback.Option{fallback.WithLogger(logger)}
	if onFallback != nil {
		opts = append(opts, fallback.WithOnFallback(onFallback))
	}
	return fallback.NewManager(fallback.Policy{
		MaxRetries:   cfg.Model.MaxRetries,
		InitialDelay: cfg.Model.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		Jitter:       0.1,
	}, opts...)
}

// NewEmbedder returns a Gemini embedder when Google credentials are configured and a local
// hashing embedder otherwise.
func NewEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (embedding.Embedder, error) {
	if cfg.Project == "" && cfg.Model.GoogleAPIKey == "" {
		logger.WarnContext(ctx, "no Google project or API key configured, using local hash embeddings")
		return embedding.NewHash(cfg.Vector.Dimensions), nil
	}
	client, err := genai.NewClient(ctx, model.GeminiClientConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return embedding.NewGenAI(client,
		embedding.WithModel(cfg.Vector.EmbeddingModel),
		embedding.WithDimensions(cfg.Vector.Dimensions),
		embedding.WithLogger(logger),
	), nil
}

// NewVectorStore opens the configured vector store. The Vertex backend also returns the
// document store holding chunk contents; the caller closes both.
func NewVectorStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (vector.Store, *docstore.Store, error) {
	switch cfg.Vector.Backend {
	case config.BackendVertex:
		docs, err := docstore.New(ctx, cfg.Docs.Bucket, logger)
		if err != nil {
			return nil, nil, err
		}
		store, err := vector.NewVertexSearch(ctx, vector.VertexSearchConfig{
			Project:         cfg.Project,
			Location:        cfg.Location,
			Index:           cfg.Vector.Index,
			IndexEndpoint:   cfg.Vector.IndexEndpoint,
			DeployedIndexID: cfg.Vector.DeployedIndexID,
			PublicDomain:    cfg.Vector.PublicDomain,
			DistanceMeasure: cfg.Vector.DistanceMeasure,
			ContentPrefix:   cfg.Docs.Prefix,
		}, docs, logger)
		if err != nil {
			docs.Close()
			return nil, nil, err
		}
		return store, docs, nil
	default:
		store, err := vector.NewChromem(cfg.Vector.ChromaPath, logger)
		return store, nil, err
	}
}

// NewExecutor returns the configured code executor.
func NewExecutor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sandbox.Executor, error) {
	opts := []sandbox.Option{
		sandbox.WithLimits(sandbox.Limits{
			MaxMemoryBytes: uint64(cfg.Sandbox.MaxMemoryMB) << 20,
			MaxCPUPercent:  cfg.Sandbox.MaxCPUPercent,
			MaxProcesses:   cfg.Sandbox.MaxProcesses,
			MaxOpenFiles:   cfg.Sandbox.MaxOpenFiles,
			MaxDuration:    cfg.Sandbox.Timeout,
		}),
		sandbox.WithSampleInterval(cfg.Sandbox.SampleInterval),
		sandbox.WithAllowUnsafe(cfg.Sandbox.AllowUnsafe),
		sandbox.WithLogger(logger),
	}
	if cfg.Sandbox.Backend == config.SandboxLocal {
		return sandbox.NewLocalExecutor(opts...)
	}
	return sandbox.NewContainerExecutor(ctx, opts...)
}

// LoadMCPTools connects to the MCP servers configured at path. A missing file yields no tools.
func LoadMCPTools(ctx context.Context, path string, logger *slog.Logger) ([]tool.Tool, io.Closer, error) {
	if path == "" {
		return nil, nil, nil
	}
	cfgs, err := mcp.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return mcp.Toolset(ctx, cfgs, logger)
}

// New builds the full agent stack. Optional backends that fail to initialise are logged and
// left out; their tools then report that they are unavailable.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: monitoring.NewMetrics(),
		Health:  monitoring.NewHealthChecker(5*time.Second, logger),
		Planner: planner.New(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Caches = NewCaches(cfg, logger)
	a.Caches.StartJanitors(ctx)
	if err := a.Metrics.WatchCaches(a.Caches); err != nil {
		return nil, err
	}
	a.Fallback = NewFallbackManager(cfg, logger, a.Metrics.OnFallback())

	if a.LLM, err = model.New(ctx, cfg, a.Fallback); err != nil {
		return nil, err
	}

	search, _ := a.Caches.Get(cache.Search)
	if err := a.initIndex(ctx, search); err != nil {
		return nil, err
	}
	a.initRAG(ctx)
	a.initExecutor(ctx)

	extra, mcpCloser, err := LoadMCPTools(ctx, cfg.MCP.ConfigPath, logger)
	if err != nil {
		logger.WarnContext(ctx, "MCP tools unavailable", slog.String("error", err.Error()))
	}
	if mcpCloser != nil {
		a.closers = append(a.closers, mcpCloser)
	}

	tb := &agents.Toolbox{
		Index:      a.Index,
		Collection: cfg.Vector.Collection,
		Corpora:    corpora(cfg),
		Planner:    a.Planner,
		Executor:   a.Executor,
		Caches:     a.Caches,
		Health:     func(ctx context.Context) any { return a.Health.Run(ctx) },
		Extra:      extra,
		Logger:     logger,
	}
	if a.RAG != nil {
		tb.RAG = a.RAG
		tb.RAGThreshold = cfg.RAG.Threshold
	}

	if a.System, err = agents.Build(ctx, a.LLM, tb, agents.DefaultSpecs()); err != nil {
		return nil, err
	}
	if a.Runner, err = agents.NewRunner(agents.DefaultAppName, a.System.Root()); err != nil {
		return nil, err
	}
	return a, nil
}

func corpora(cfg *config.Config) []string {
	if cfg.RAG.Corpus == "" {
		return nil
	}
	return []string{cfg.RAG.Corpus}
}

func (a *App) initIndex(ctx context.Context, search *cache.Cache[string, any]) error {
	embedder, err := NewEmbedder(ctx, a.Config, a.Logger)
	if err != nil {
		return err
	}
	store, docs, err := NewVectorStore(ctx, a.Config, a.Logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, store)
	if docs != nil {
		a.Docs = docs
		a.closers = append(a.closers, docs)
	}
	a.Index = vector.NewIndex(store, embedder,
		vector.WithSearchCache(search),
		vector.WithChunking(a.Config.Vector.ChunkSize, a.Config.Vector.ChunkOverlap),
		vector.WithIndexLogger(a.Logger),
	)

	collection := a.Config.Vector.Collection
	a.Health.Register("vector_store", false, func(ctx context.Context) error {
		_, err := store.Count(ctx, collection)
		if errors.Is(err, vector.ErrUnsupported) || errors.Is(err, vector.ErrCollectionNotFound) {
			return nil
		}
		return err
	})
	return nil
}

func (a *App) initRAG(ctx context.Context) {
	if a.Config.RAG.Corpus == "" || a.Config.Project == "" {
		return
	}
	svc, err := rag.NewService(ctx, a.Config.Project, a.Config.Location, rag.WithLogger(a.Logger))
	if err != nil {
		a.Logger.WarnContext(ctx, "RAG retrieval unavailable", slog.String("error", err.Error()))
		return
	}
	a.RAG = svc
	a.closers = append(a.closers, svc)

	corpus := a.Config.RAG.Corpus
	a.Health.Register("rag_corpus", false, func(ctx context.Context) error {
		_, err := svc.GetCorpus(ctx, corpus)
		return err
	})
}

func (a *App) initExecutor(ctx context.Context) {
	exec, err := NewExecutor(ctx, a.Config, a.Logger)
	if err != nil {
		a.Logger.WarnContext(ctx, "code execution unavailable", slog.String("error", err.Error()))
		return
	}
	a.Executor = exec
	a.closers = append(a.closers, exec)
}

// Close releases every component in reverse order of creation.
func (a *App) Close() error {
	if a.Caches != nil {
		a.Caches.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Logger builds the process logger from CLI flags and stores it in ctx.
func Logger(ctx context.Context, level, format string) (context.Context, *slog.Logger, error) {
	logger, err := logging.New(level, format, os.Stderr)
	if err != nil {
		return ctx, nil, err
	}
	slog.SetDefault(logger)
	return logging.NewContext(ctx, logger), logger, nil
}
