// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/NickB03/vana/cache"
	"github.com/NickB03/vana/embedding"
)

// Metadata keys set on every indexed chunk.
const (
	MetaSource = "source"
	MetaChunk  = "chunk"
	// MetaChunks is the number of chunks the source had when the chunk was written.
	MetaChunks = "chunks"
)

// Index chunks, embeds and stores documents and answers text queries.
type Index struct {
	store    Store
	embedder embedding.Embedder
	search   *cache.Cache[string, any]
	size     int
	overlap  int
	logger   *slog.Logger
}

// IndexOption configures an [Index].
type IndexOption func(*Index)

// WithSearchCache memoises query results in c.
func WithSearchCache(c *cache.Cache[string, any]) IndexOption {
	return func(ix *Index) {
		ix.search = c
	}
}

// WithChunking sets the chunk size and overlap in runes.
func WithChunking(size, overlap int) IndexOption {
	return func(ix *Index) {
		ix.size = size
		ix.overlap = overlap
	}
}

// WithIndexLogger sets the logger.
func WithIndexLogger(logger *slog.Logger) IndexOption {
	return func(ix *Index) {
		ix.logger = logger
	}
}

// NewIndex returns an Index writing to store.
func NewIndex(store Store, embedder embedding.Embedder, opts ...IndexOption) *Index {
	ix := &Index{
		store:    store,
		embedder: embedder,
		size:     1000,
		overlap:  200,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Store returns the underlying store.
func (ix *Index) Store() Store {
	return ix.store
}

// ChunkID returns the document ID of chunk i of source.
func ChunkID(source string, i int) string {
	return cache.Key(source)[:16] + "-" + strconv.Itoa(i)
}

// Add chunks text from source, embeds the chunks and upserts them into collection. Extra
// metadata is copied onto every chunk. It returns the number of chunks written.
//
// Re-adding a source replaces its chunks; chunks left over from a longer previous version are
// deleted. Empty text leaves the source untouched.
func (ix *Index) Add(ctx context.Context, collection, source, text string, metadata map[string]string) (int, error) {
	chunks := Chunk(text, ix.size, ix.overlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	vecs, err := ix.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed %s: %w", source, err)
	}
	previous := ix.indexedChunks(ctx, collection, source, vecs[0])

	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		md := make(map[string]string, len(metadata)+2)
		for k, v := range metadata {
			md[k] = v
		}
		md[MetaSource] = source
		md[MetaChunk] = strconv.Itoa(i)
		md[MetaChunks] = strconv.Itoa(len(chunks))
		docs[i] = Document{
			ID:        ChunkID(source, i),
			Content:   c,
			Metadata:  md,
			Embedding: vecs[i],
		}
	}
	if err := ix.store.Upsert(ctx, collection, docs); err != nil {
		return 0, err
	}
	if previous > len(docs) {
		stale := make([]string, 0, previous-len(docs))
		for i := len(docs); i < previous; i++ {
			stale = append(stale, ChunkID(source, i))
		}
		if err := ix.store.Delete(ctx, collection, stale...); err != nil {
			return 0, fmt.Errorf("failed to delete stale chunks of %s: %w", source, err)
		}
	}

	// cached results may now be stale
	if ix.search != nil {
		ix.search.Clear()
	}

	ix.logger.InfoContext(ctx, "indexed document",
		slog.String("collection", collection),
		slog.String("source", source),
		slog.Int("chunks", len(docs)),
		slog.Int("stale", max(previous-len(docs), 0)),
	)
	return len(docs), nil
}

// indexedChunks returns the chunk count recorded on an existing chunk of source, or 0 when
// the source is not indexed yet.
func (ix *Index) indexedChunks(ctx context.Context, collection, source string, vec []float32) int {
	matches, err := ix.store.Query(ctx, collection, vec, 1, map[string]string{MetaSource: source})
	if err != nil {
		if !errors.Is(err, ErrCollectionNotFound) {
			ix.logger.WarnContext(ctx, "failed to look up previous chunks",
				slog.String("source", source),
				slog.String("error", err.Error()),
			)
		}
		return 0
	}
	if len(matches) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(matches[0].Metadata[MetaChunks])
	return n
}

// Search embeds query and returns the topK closest chunks in collection.
func (ix *Index) Search(ctx context.Context, collection, query string, topK int) ([]Match, error) {
	load := func(ctx context.Context) (any, error) {
		vec, err := embedding.EmbedQuery(ctx, ix.embedder, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		return ix.store.Query(ctx, collection, vec, topK, nil)
	}

	if ix.search == nil {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return v.([]Match), nil
	}

	v, err := ix.search.GetOrLoad(ctx, cache.Key("vector", collection, query, topK), load)
	if err != nil {
		return nil, err
	}
	return v.([]Match), nil
}
