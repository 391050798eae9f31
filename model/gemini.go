// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	adkmodel "google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/NickB03/vana/config"
	"github.com/NickB03/vana/fallback"
	"github.com/NickB03/vana/pkg/logging"
)

// GeminiClientConfig returns the genai client configuration for cfg: Vertex AI when a project
// is set, the Gemini API with an API key otherwise.
func GeminiClientConfig(cfg *config.Config) *genai.ClientConfig {
	if cfg.Project != "" {
		return &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  cfg.Project,
			Location: cfg.Location,
		}
	}
	return &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.Model.GoogleAPIKey,
	}
}

// NewGemini returns the ADK Gemini model named name.
func NewGemini(ctx context.Context, cfg *config.Config, name string) (adkmodel.LLM, error) {
	llm, err := gemini.NewModel(ctx, name, GeminiClientConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini model %s: %w", name, err)
	}
	return llm, nil
}

// IsClaude reports whether name is a Claude model name.
func IsClaude(name string) bool {
	return strings.HasPrefix(name, "claude")
}

// NewClaudeFromConfig returns the Claude model named name, using the Anthropic API when a key
// is configured and Vertex AI otherwise.
func NewClaudeFromConfig(ctx context.Context, cfg *config.Config, name string) (*Claude, error) {
	cc := ClaudeConfig{
		Model:    name,
		APIKey:   cfg.Model.AnthropicAPIKey,
		Project:  cfg.Project,
		Location: cfg.Location,
	}
	if cc.APIKey == "" {
		cc.Mode = ClaudeModeVertexAI
	}
	return NewClaude(ctx, cc)
}

func newByName(ctx context.Context, cfg *config.Config, name string) (adkmodel.LLM, error) {
	if IsClaude(name) {
		return NewClaudeFromConfig(ctx, cfg, name)
	}
	return NewGemini(ctx, cfg, name)
}

// New returns the configured primary model. When a fallback model is configured and can be
// constructed, the result is a [fallback.LLM] trying the primary first.
func New(ctx context.Context, cfg *config.Config, m *fallback.Manager) (adkmodel.LLM, error) {
	primary, err := newByName(ctx, cfg, cfg.Model.Name)
	if err != nil {
		return nil, err
	}
	if cfg.Model.Fallback == "" || cfg.Model.Fallback == cfg.Model.Name {
		return primary, nil
	}

	secondary, err := newByName(ctx, cfg, cfg.Model.Fallback)
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "fallback model unavailable",
			slog.String("model", cfg.Model.Fallback),
			slog.String("error", err.Error()),
		)
		return primary, nil
	}

	if m == nil {
		m = fallback.NewManager(fallback.Policy{
			MaxRetries:   cfg.Model.MaxRetries,
			InitialDelay: cfg.Model.RetryDelay,
			MaxDelay:     30 * cfg.Model.RetryDelay,
			Multiplier:   2,
		})
	}
	return fallback.NewLLM(m, primary, secondary), nil
}
