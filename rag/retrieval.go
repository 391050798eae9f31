// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
)

const defaultTopK = 10

// RetrieveContexts returns the chunks of the given corpora most relevant to query.
func (s *Service) RetrieveContexts(ctx context.Context, query string, corpora []string, opts RetrieveOptions) ([]Context, error) {
	names := make([]string, len(corpora))
	for i, c := range corpora {
		names[i] = s.CorpusName(c)
	}
	req, err := retrieveRequest(s.Parent(), query, names, opts)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Retrieving RAG contexts",
		slog.Int("corpora", len(names)),
		slog.Int("top_k", int(req.GetQuery().GetSimilarityTopK())),
		slog.Float64("threshold", opts.Threshold),
	)

	resp, err := s.ragClient.RetrieveContexts(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve contexts: %w", err)
	}

	out := contextsFromPb(resp.GetContexts())
	s.logger.DebugContext(ctx, "Retrieved RAG contexts", slog.Int("count", len(out)))

	return out, nil
}

func retrieveRequest(parent, query string, corpora []string, opts RetrieveOptions) (*aiplatformpb.RetrieveContextsRequest, error) {
	if query == "" {
		return nil, errors.New("rag: empty query")
	}
	if len(corpora) == 0 {
		return nil, errors.New("rag: no corpora to retrieve from")
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	resources := make([]*aiplatformpb.RetrieveContextsRequest_VertexRagStore_RagResource, len(corpora))
	for i, c := range corpora {
		resources[i] = &aiplatformpb.RetrieveContextsRequest_VertexRagStore_RagResource{RagCorpus: c}
	}

	store := &aiplatformpb.RetrieveContextsRequest_VertexRagStore{RagResources: resources}
	if opts.Threshold > 0 {
		th := opts.Threshold
		store.VectorDistanceThreshold = &th
	}

	return &aiplatformpb.RetrieveContextsRequest{
		Parent: parent,
		Query: &aiplatformpb.RagQuery{
			Query:          &aiplatformpb.RagQuery_Text{Text: query},
			SimilarityTopK: topK,
		},
		DataSource: &aiplatformpb.RetrieveContextsRequest_VertexRagStore_{VertexRagStore: store},
	}, nil
}

func contextsFromPb(pb *aiplatformpb.RagContexts) []Context {
	out := make([]Context, 0, len(pb.GetContexts()))
	for _, c := range pb.GetContexts() {
		out = append(out, Context{
			Text:       c.GetText(),
			SourceURI:  c.GetSourceUri(),
			SourceName: c.GetSourceDisplayName(),
			Distance:   c.GetDistance(),
		})
	}
	return out
}
