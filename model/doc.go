// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package model constructs the language models used by the VANA agents.
//
// Gemini models come from the ADK Gemini adapter, backed by Vertex AI when a Google Cloud
// project is configured and by the Gemini API otherwise. [Claude] adapts the Anthropic
// Messages API to the ADK [adkmodel.LLM] interface, either directly or through Vertex AI.
//
// [New] composes the configured primary model with a Claude fallback:
//
//	llm, err := model.New(ctx, cfg, fallback.NewManager(fallback.DefaultPolicy()))
package model

import adkmodel "google.golang.org/adk/model"

var _ adkmodel.LLM = (*Claude)(nil)
