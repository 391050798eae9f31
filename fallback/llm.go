// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package fallback

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"google.golang.org/adk/model"

	"github.com/NickB03/vana/internal/xiter"
)

// LLM is a [model.LLM] that calls a primary model and falls back to the next model when the
// primary keeps failing.
//
// Responses of an attempt are buffered and only yielded once the attempt succeeded, so a
// failed stream never leaks partial output into the session.
type LLM struct {
	manager *Manager
	models  []model.LLM
}

var _ model.LLM = (*LLM)(nil)

// NewLLM returns an [LLM] trying primary first, then fallbacks in order.
func NewLLM(m *Manager, primary model.LLM, fallbacks ...model.LLM) *LLM {
	return &LLM{
		manager: m,
		models:  append([]model.LLM{primary}, fallbacks...),
	}
}

// Name implements [model.LLM]. It reports the primary model.
func (l *LLM) Name() string {
	return l.models[0].Name()
}

// Models returns the names of the primary and fallback models.
func (l *LLM) Models() []string {
	names := make([]string, len(l.models))
	for i, m := range l.models {
		names[i] = m.Name()
	}
	return names
}

// GenerateContent implements [model.LLM].
func (l *LLM) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return xiter.Lazy(func() ([]*model.LLMResponse, error) {
		fns := make([]Func[[]*model.LLMResponse], len(l.models))
		for i, m := range l.models {
			fns[i] = func(ctx context.Context) ([]*model.LLMResponse, error) {
				return collect(ctx, m, req, stream)
			}
		}
		return Do(ctx, l.manager, "llm:"+l.Name(), fns[0], fns[1:]...)
	})
}

// ErrEmptyResponse is returned when a model finished without producing a response.
var ErrEmptyResponse = errors.New("model returned no response")

func collect(ctx context.Context, m model.LLM, req *model.LLMRequest, stream bool) ([]*model.LLMResponse, error) {
	var out []*model.LLMResponse
	for resp, err := range m.GenerateContent(ctx, req, stream) {
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Name(), err)
		}
		if resp != nil && resp.ErrorCode != "" {
			return nil, fmt.Errorf("%s: %s: %s", m.Name(), resp.ErrorCode, resp.ErrorMessage)
		}
		out = append(out, resp)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", m.Name(), ErrEmptyResponse)
	}
	return out, nil
}
