// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package embedding turns text into dense vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

// Task types understood by Vertex AI text embedding models.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

const (
	// DefaultModel is the default Vertex AI text embedding model.
	DefaultModel = "text-embedding-005"

	// DefaultDimensions is the output size of [DefaultModel].
	DefaultDimensions = 768

	// MaxBatchSize is the number of texts sent per request.
	MaxBatchSize = 250

	defaultConcurrency = 4
)

// Embedder turns texts into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// QueryEmbedder is implemented by embedders that embed search queries differently from documents.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbedQuery embeds a search query with e, preferring [QueryEmbedder] when implemented.
func EmbedQuery(ctx context.Context, e Embedder, text string) ([]float32, error) {
	if q, ok := e.(QueryEmbedder); ok {
		return q.EmbedQuery(ctx, text)
	}
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// embedContenter is the subset of [genai.Models] used by [GenAI].
type embedContenter interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GenAI embeds text with a Gemini or Vertex AI embedding model.
type GenAI struct {
	models      embedContenter
	model       string
	dimensions  int
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

var (
	_ Embedder      = (*GenAI)(nil)
	_ QueryEmbedder = (*GenAI)(nil)
)

// Option configures a [GenAI] embedder.
type Option func(*GenAI)

// WithModel sets the embedding model.
func WithModel(model string) Option {
	return func(g *GenAI) {
		if model != "" {
			g.model = model
		}
	}
}

// WithDimensions requests output vectors of n dimensions.
func WithDimensions(n int) Option {
	return func(g *GenAI) {
		if n > 0 {
			g.dimensions = n
		}
	}
}

// WithBatchSize sets the number of texts per request, capped at [MaxBatchSize].
func WithBatchSize(n int) Option {
	return func(g *GenAI) {
		if n > 0 {
			g.batchSize = min(n, MaxBatchSize)
		}
	}
}

// WithConcurrency bounds the number of concurrent requests.
func WithConcurrency(n int) Option {
	return func(g *GenAI) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *GenAI) {
		g.logger = logger
	}
}

// NewGenAI returns a [GenAI] embedder using client.
func NewGenAI(client *genai.Client, opts ...Option) *GenAI {
	return newGenAI(client.Models, opts...)
}

func newGenAI(models embedContenter, opts ...Option) *GenAI {
	g := &GenAI{
		models:      models,
		model:       DefaultModel,
		dimensions:  DefaultDimensions,
		batchSize:   MaxBatchSize,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dimensions implements [Embedder].
func (g *GenAI) Dimensions() int {
	return g.dimensions
}

// Embed implements [Embedder]. Texts are embedded as retrieval documents in concurrent batches.
func (g *GenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return g.embed(ctx, texts, TaskRetrievalDocument)
}

// EmbedQuery implements [QueryEmbedder].
func (g *GenAI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.embed(ctx, []string{text}, TaskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (g *GenAI) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))
		eg.Go(func() error {
			return g.embedBatch(ctx, texts[start:end], task, out[start:end])
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	g.logger.DebugContext(ctx, "embedded texts",
		slog.String("model", g.model),
		slog.Int("count", len(texts)),
		slog.String("task_type", task),
	)
	return out, nil
}

func (g *GenAI) embedBatch(ctx context.Context, texts []string, task string, dst [][]float32) error {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	dims := int32(g.dimensions)
	resp, err := g.models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		TaskType:             task,
		OutputDimensionality: &dims,
	})
	if err != nil {
		return fmt.Errorf("failed to embed %d texts with %s: %w", len(texts), g.model, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return fmt.Errorf("embedding model returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return errors.New("embedding model returned an empty vector")
		}
		dst[i] = e.Values
	}
	return nil
}
