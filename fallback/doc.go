// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package fallback retries operations with exponential backoff and falls back to
// alternative implementations once the retries are exhausted.
//
//	m := fallback.NewManager(fallback.DefaultPolicy())
//	resp, err := fallback.Do(ctx, m, "chat", callPrimary, callSecondary)
//
// [LLM] applies the same policy to language models, so an agent can fall back from one
// model provider to another.
package fallback
