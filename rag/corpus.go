// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
	"google.golang.org/api/iterator"
)

// CreateCorpus creates a corpus backed by the RAG managed database and waits for the
// long-running operation to finish.
func (s *Service) CreateCorpus(ctx context.Context, displayName, description string) (*Corpus, error) {
	s.logger.InfoContext(ctx, "Creating RAG corpus",
		slog.String("parent", s.Parent()),
		slog.String("display_name", displayName),
	)

	op, err := s.dataClient.CreateRagCorpus(ctx, &aiplatformpb.CreateRagCorpusRequest{
		Parent: s.Parent(),
		RagCorpus: &aiplatformpb.RagCorpus{
			DisplayName: displayName,
			Description: description,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create RAG corpus: %w", err)
	}

	pb, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for RAG corpus creation: %w", err)
	}

	corpus := corpusFromPb(pb)
	s.logger.InfoContext(ctx, "RAG corpus created", slog.String("name", corpus.Name))

	return corpus, nil
}

// ListCorpora returns every corpus in the service's project and location.
func (s *Service) ListCorpora(ctx context.Context) ([]*Corpus, error) {
	it := s.dataClient.ListRagCorpora(ctx, &aiplatformpb.ListRagCorporaRequest{
		Parent: s.Parent(),
	})

	var corpora []*Corpus
	for {
		pb, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list RAG corpora: %w", err)
		}
		corpora = append(corpora, corpusFromPb(pb))
	}

	s.logger.DebugContext(ctx, "Listed RAG corpora", slog.Int("count", len(corpora)))

	return corpora, nil
}

// GetCorpus returns a corpus by ID or full resource name.
func (s *Service) GetCorpus(ctx context.Context, corpus string) (*Corpus, error) {
	pb, err := s.dataClient.GetRagCorpus(ctx, &aiplatformpb.GetRagCorpusRequest{
		Name: s.CorpusName(corpus),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get RAG corpus: %w", err)
	}
	return corpusFromPb(pb), nil
}

// DeleteCorpus deletes a corpus. When force is set the corpus is deleted together with its files.
func (s *Service) DeleteCorpus(ctx context.Context, corpus string, force bool) error {
	name := s.CorpusName(corpus)
	s.logger.InfoContext(ctx, "Deleting RAG corpus",
		slog.String("name", name),
		slog.Bool("force", force),
	)

	op, err := s.dataClient.DeleteRagCorpus(ctx, &aiplatformpb.DeleteRagCorpusRequest{
		Name:  name,
		Force: force,
	})
	if err != nil {
		return fmt.Errorf("failed to delete RAG corpus: %w", err)
	}
	if err := op.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait for RAG corpus deletion: %w", err)
	}

	return nil
}

func corpusFromPb(pb *aiplatformpb.RagCorpus) *Corpus {
	c := &Corpus{
		Name:        pb.GetName(),
		DisplayName: pb.GetDisplayName(),
		Description: pb.GetDescription(),
		State:       StateUnspecified,
	}
	if ts := pb.GetCreateTime(); ts != nil {
		c.CreateTime = ts.AsTime()
	}
	if ts := pb.GetUpdateTime(); ts != nil {
		c.UpdateTime = ts.AsTime()
	}
	switch pb.GetCorpusStatus().GetState() {
	case aiplatformpb.CorpusStatus_INITIALIZED:
		c.State = StateActive
	case aiplatformpb.CorpusStatus_ERROR:
		c.State = StateError
	}
	return c
}
