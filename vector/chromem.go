// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// Chromem is an embedded [Store] backed by chromem-go, optionally persisted to a directory.
type Chromem struct {
	db     *chromem.DB
	logger *slog.Logger

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

var _ Store = (*Chromem)(nil)

// precomputed is the chromem embedding function. Documents always carry their vectors so it
// is never expected to run.
func precomputed(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem: documents must be embedded before upsert")
}

// NewChromem opens a chromem store. An empty path keeps everything in memory; otherwise the
// directory is created if needed and existing collections are loaded from it.
func NewChromem(path string, logger *slog.Logger) (*Chromem, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
		logger.Debug("opened in-memory vector store")
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create vector store directory: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store at %s: %w", path, err)
		}
		logger.Info("opened persistent vector store", slog.String("path", path))
	}

	return &Chromem{
		db:          db,
		logger:      logger,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// collection returns the named collection. With create set a missing collection is created,
// otherwise [ErrCollectionNotFound] is returned.
func (c *Chromem) collection(name string, create bool) (*chromem.Collection, error) {
	c.mu.RLock()
	col, ok := c.collections[name]
	c.mu.RUnlock()
	if ok {
		return col, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collections[name]; ok {
		return col, nil
	}

	if col = c.db.GetCollection(name, precomputed); col == nil {
		if !create {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
		}
		var err error
		col, err = c.db.CreateCollection(name, nil, precomputed)
		if err != nil {
			return nil, fmt.Errorf("failed to create collection %q: %w", name, err)
		}
	}
	c.collections[name] = col
	return col, nil
}

// Upsert implements [Store].
func (c *Chromem) Upsert(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := validateDocs(docs); err != nil {
		return err
	}

	col, err := c.collection(collection, true)
	if err != nil {
		return err
	}

	cdocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		cdocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Metadata:  d.Metadata,
			Embedding: d.Embedding,
		}
	}
	if err := col.AddDocuments(ctx, cdocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert into %q: %w", collection, err)
	}

	c.logger.DebugContext(ctx, "upserted documents",
		slog.String("collection", collection),
		slog.Int("count", len(docs)),
	)
	return nil
}

// Query implements [Store]. topK is clamped to the collection size.
func (c *Chromem) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]Match, error) {
	col, err := c.collection(collection, false)
	if err != nil {
		return nil, err
	}

	n := min(topK, col.Count())
	if n <= 0 {
		return []Match{}, nil
	}

	var where map[string]string
	if len(filter) > 0 {
		where = filter
	}
	results, err := col.QueryEmbedding(ctx, vector, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", collection, err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: r.Metadata,
			Score:    r.Similarity,
		}
	}
	return matches, nil
}

// Delete implements [Store].
func (c *Chromem) Delete(ctx context.Context, collection string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	col, err := c.collection(collection, false)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete from %q: %w", collection, err)
	}
	return nil
}

// Count implements [Store].
func (c *Chromem) Count(_ context.Context, collection string) (int, error) {
	col, err := c.collection(collection, false)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Collections returns the names of all collections.
func (c *Chromem) Collections() []string {
	cols := c.db.ListCollections()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	return names
}

// Close implements [Store]. Persistent databases write through on every change.
func (c *Chromem) Close() error {
	return nil
}
