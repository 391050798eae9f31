// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	aiplatform "cloud.google.com/go/aiplatform/apiv1beta1"
	"cloud.google.com/go/auth/credentials"
	"google.golang.org/api/option"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Service provides the Vertex AI RAG Engine operations used by VANA.
type Service struct {
	dataClient *aiplatform.VertexRagDataClient
	ragClient  *aiplatform.VertexRagClient
	projectID  string
	location   string
	logger     *slog.Logger
}

// ServiceOption configures a [Service].
type ServiceOption func(*Service)

// WithLogger sets the logger for the Service.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a RAG service for the given project and location using Application
// Default Credentials.
func NewService(ctx context.Context, projectID, location string, opts ...ServiceOption) (*Service, error) {
	if projectID == "" || location == "" {
		return nil, errors.New("rag: project and location are required")
	}

	s := &Service{
		projectID: projectID,
		location:  location,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes: []string{cloudPlatformScope},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect default credentials: %w", err)
	}

	clientOpts := []option.ClientOption{
		option.WithAuthCredentials(creds),
		option.WithEndpoint(regionalEndpoint(location)),
	}

	s.ragClient, err = aiplatform.NewVertexRagClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex RAG client: %w", err)
	}
	s.dataClient, err = aiplatform.NewVertexRagDataClient(ctx, clientOpts...)
	if err != nil {
		s.ragClient.Close()
		return nil, fmt.Errorf("failed to create Vertex RAG data client: %w", err)
	}

	s.logger.InfoContext(ctx, "Vertex AI RAG service initialized",
		slog.String("project_id", projectID),
		slog.String("location", location),
	)

	return s, nil
}

// Close releases the underlying gRPC connections.
func (s *Service) Close() error {
	return errors.Join(s.ragClient.Close(), s.dataClient.Close())
}

// Parent returns the "projects/{project}/locations/{location}" resource name.
func (s *Service) Parent() string {
	return parentName(s.projectID, s.location)
}

// CorpusName expands a bare corpus ID to a full resource name in the service's project.
// Full resource names are returned unchanged.
func (s *Service) CorpusName(corpus string) string {
	if _, err := ParseCorpusName(corpus); err == nil {
		return corpus
	}
	return CorpusName(s.projectID, s.location, corpus)
}

func regionalEndpoint(location string) string {
	return location + "-aiplatform.googleapis.com:443"
}
