// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCollectionNotFound is returned when querying a collection that was never written to.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrUnsupported is returned for operations a backend cannot perform.
	ErrUnsupported = errors.New("operation not supported by vector backend")
)

// Document is a chunk of text with its embedding.
type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"-"`
}

// Match is a query result.
//
// Score is a similarity where higher is closer, on every backend: cosine similarity for
// [Chromem], and for [VertexSearch] the similarity derived from the index distance measure.
type Match struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float32           `json:"score"`
}

// Store is a collection-partitioned vector store.
type Store interface {
	// Upsert inserts or replaces documents. Every document must carry an embedding.
	Upsert(ctx context.Context, collection string, docs []Document) error

	// Query returns at most topK documents closest to vector whose metadata matches every
	// key in filter, ordered by descending score.
	Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]Match, error)

	// Delete removes documents by ID.
	Delete(ctx context.Context, collection string, ids ...string) error

	// Count returns the number of documents in a collection.
	Count(ctx context.Context, collection string) (int, error)

	Close() error
}

func validateDocs(docs []Document) error {
	var errs []error
	for i, d := range docs {
		if d.ID == "" {
			errs = append(errs, fmt.Errorf("document %d has no id", i))
		}
		if len(d.Embedding) == 0 {
			errs = append(errs, fmt.Errorf("document %q has no embedding", d.ID))
		}
	}
	return errors.Join(errs...)
}
