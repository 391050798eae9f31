// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package fallback

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestPolicyDelay(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: 2 * time.Second},
		{attempt: 2, want: 4 * time.Second},
		{attempt: 4, want: 16 * time.Second},
		{attempt: 5, want: 30 * time.Second},
		{attempt: 20, want: 30 * time.Second},
		{attempt: -1, want: 0},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPolicyDelayJitter(t *testing.T) {
	p := Policy{InitialDelay: time.Second, Multiplier: 2, MaxDelay: time.Minute, Jitter: 0.5}
	for range 100 {
		d := p.Delay(1)
		if d < time.Second || d > 3*time.Second {
			t.Fatalf("Delay(1) = %v outside [1s, 3s]", d)
		}
	}
}

// recordSleep records requested delays without waiting.
func recordSleep(delays *[]time.Duration) Option {
	return withSleep(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	})
}

func failing(n int, err error, v string) (Func[string], *int) {
	calls := 0
	return func(context.Context) (string, error) {
		calls++
		if calls <= n {
			return "", err
		}
		return v, nil
	}, &calls
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	var delays []time.Duration
	m := NewManager(DefaultPolicy(), recordSleep(&delays))

	fn, calls := failing(2, errors.New("transient"), "ok")
	got, err := Do(t.Context(), m, "op", fn)
	if err != nil || got != "ok" {
		t.Fatalf("Do() = %q, %v; want ok, nil", got, err)
	}
	if *calls != 3 {
		t.Errorf("calls = %d, want 3", *calls)
	}
	if diff := cmp.Diff([]time.Duration{time.Second, 2 * time.Second}, delays); diff != "" {
		t.Errorf("delays mismatch (-want +got):\n%s", diff)
	}
	want := OpStats{Calls: 1, Attempts: 3, Successes: 1}
	if diff := cmp.Diff(want, m.Stats()["op"]); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
}

func TestDoFallsBack(t *testing.T) {
	var delays []time.Duration
	var fallbacks []int
	m := NewManager(Policy{MaxRetries: 1, InitialDelay: time.Millisecond}, recordSleep(&delays),
		WithOnFallback(func(_ string, i int) { fallbacks = append(fallbacks, i) }))

	primary, primaryCalls := failing(10, errors.New("primary down"), "")
	first, _ := failing(10, errors.New("first down"), "")
	second, _ := failing(0, nil, "second")

	got, err := Do(t.Context(), m, "chat", primary, first, second)
	if err != nil || got != "second" {
		t.Fatalf("Do() = %q, %v; want second, nil", got, err)
	}
	if *primaryCalls != 2 {
		t.Errorf("primary calls = %d, want 2", *primaryCalls)
	}
	if diff := cmp.Diff([]int{0, 1}, fallbacks); diff != "" {
		t.Errorf("fallbacks mismatch (-want +got):\n%s", diff)
	}
	if got := m.Stats()["chat"].FallbacksUsed; got != 2 {
		t.Errorf("FallbacksUsed = %d, want 2", got)
	}
}

func TestDoExhausted(t *testing.T) {
	var delays []time.Duration
	m := NewManager(Policy{MaxRetries: 2}, recordSleep(&delays))

	last := errors.New("fallback down")
	primary, _ := failing(10, errors.New("primary down"), "")
	fb, _ := failing(10, last, "")

	_, err := Do(t.Context(), m, "op", primary, fb)
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("Do() error = %v, want ErrExhausted", err)
	}
	if !errors.Is(err, last) {
		t.Errorf("Do() error = %v, want to wrap last error", err)
	}
	if got := m.Stats()["op"]; got.Failures != 1 || got.Attempts != 4 {
		t.Errorf("Stats() = %+v, want 1 failure and 4 attempts", got)
	}
}

func TestDoPermanentSkipsRetries(t *testing.T) {
	var delays []time.Duration
	m := NewManager(DefaultPolicy(), recordSleep(&delays))

	fn, calls := failing(10, Permanent(errors.New("bad request")), "")
	fb, _ := failing(0, nil, "fallback")

	got, err := Do(t.Context(), m, "op", fn, fb)
	if err != nil || got != "fallback" {
		t.Fatalf("Do() = %q, %v", got, err)
	}
	if *calls != 1 {
		t.Errorf("permanent error was retried: calls = %d", *calls)
	}
	if len(delays) != 0 {
		t.Errorf("delays = %v, want none", delays)
	}
}

func TestDoRetryableClassifier(t *testing.T) {
	var delays []time.Duration
	m := NewManager(DefaultPolicy(), recordSleep(&delays), WithRetryable(func(error) bool { return false }))

	fn, calls := failing(10, errors.New("nope"), "")
	if _, err := Do(t.Context(), m, "op", fn); err == nil {
		t.Fatal("Do() error = nil")
	}
	if *calls != 1 {
		t.Errorf("calls = %d, want 1", *calls)
	}
}

func TestDoContextCancelled(t *testing.T) {
	m := NewManager(Policy{MaxRetries: 5, InitialDelay: time.Hour})

	ctx, cancel := context.WithCancel(t.Context())
	fn := func(context.Context) (int, error) {
		cancel()
		return 0, errors.New("boom")
	}
	fbCalled := false
	fb := func(context.Context) (int, error) {
		fbCalled = true
		return 1, nil
	}

	_, err := Do(ctx, m, "op", fn, fb)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if fbCalled {
		t.Error("fallback called after cancellation")
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) != nil")
	}
	base := errors.New("x")
	err := Permanent(base)
	if !errors.Is(err, base) || !IsPermanent(err) {
		t.Errorf("Permanent() = %v", err)
	}
	if IsPermanent(base) {
		t.Error("IsPermanent(plain error) = true")
	}
}

type fakeLLM struct {
	name  string
	err   error
	text  string
	calls int
}

func (f *fakeLLM) Name() string { return f.name }

func (f *fakeLLM) GenerateContent(context.Context, *model.LLMRequest, bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		f.calls++
		if f.err != nil {
			yield(nil, f.err)
			return
		}
		yield(&model.LLMResponse{Content: genai.NewContentFromText(f.text, genai.RoleModel), TurnComplete: true}, nil)
	}
}

func TestLLMFallsBack(t *testing.T) {
	var delays []time.Duration
	m := NewManager(Policy{MaxRetries: 1}, recordSleep(&delays))
	primary := &fakeLLM{name: "gemini", err: errors.New("503")}
	secondary := &fakeLLM{name: "claude", text: "hello from claude"}

	llm := NewLLM(m, primary, secondary)
	if llm.Name() != "gemini" {
		t.Errorf("Name() = %q", llm.Name())
	}
	if diff := cmp.Diff([]string{"gemini", "claude"}, llm.Models()); diff != "" {
		t.Errorf("Models() mismatch (-want +got):\n%s", diff)
	}

	var texts []string
	for resp, err := range llm.GenerateContent(t.Context(), &model.LLMRequest{}, false) {
		if err != nil {
			t.Fatalf("GenerateContent() error = %v", err)
		}
		texts = append(texts, resp.Content.Parts[0].Text)
	}
	if diff := cmp.Diff([]string{"hello from claude"}, texts); diff != "" {
		t.Errorf("responses mismatch (-want +got):\n%s", diff)
	}
	if primary.calls != 2 || secondary.calls != 1 {
		t.Errorf("calls = %d, %d; want 2, 1", primary.calls, secondary.calls)
	}
}

func TestLLMAllFail(t *testing.T) {
	m := NewManager(Policy{})
	llm := NewLLM(m, &fakeLLM{name: "a", err: errors.New("x")}, &fakeLLM{name: "b", err: errors.New("y")})

	var gotErr error
	for _, err := range llm.GenerateContent(t.Context(), &model.LLMRequest{}, false) {
		gotErr = err
	}
	if !errors.Is(gotErr, ErrExhausted) {
		t.Errorf("GenerateContent() error = %v, want ErrExhausted", gotErr)
	}
}
