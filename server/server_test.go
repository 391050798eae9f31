// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"iter"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/NickB03/vana/agents"
	"github.com/NickB03/vana/cache"
	"github.com/NickB03/vana/fallback"
	"github.com/NickB03/vana/monitoring"
)

type fakeBackend struct {
	mode    string
	chatErr error
	pingErr error
	chats   atomic.Int32
}

func (f *fakeBackend) Mode() string { return f.mode }

func (f *fakeBackend) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	f.chats.Add(1)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	sid := req.SessionID
	if sid == "" {
		sid = "s-1"
	}
	return &ChatResponse{Response: f.mode + ": " + req.Message, SessionID: sid, Agent: "vana", Status: "success"}, nil
}

func (f *fakeBackend) Agents(context.Context) ([]agents.AgentInfo, error) {
	return []agents.AgentInfo{{Name: "vana", Description: "orchestrator"}}, nil
}

func (f *fakeBackend) Ping(context.Context) error { return f.pingErr }

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var out map[string]any
	if err := sonic.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: invalid JSON %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	tests := map[string]struct {
		pingErr    error
		wantCode   int
		wantStatus string
	}{
		"healthy":   {nil, http.StatusOK, monitoring.StatusHealthy},
		"unhealthy": {errors.New("down"), http.StatusServiceUnavailable, monitoring.StatusUnhealthy},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := New(&fakeBackend{mode: "local", pingErr: tt.pingErr}, WithVersion("1.2.3"))
			rec, body := do(t, s, http.MethodGet, "/health", "")
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if body["status"] != tt.wantStatus || body["service"] != "vana" || body["version"] != "1.2.3" || body["mode"] != "local" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestChat(t *testing.T) {
	s := New(&fakeBackend{mode: "local"})

	rec, body := do(t, s, http.MethodPost, "/api/chat", `{"message":"hello","session_id":"abc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	want := map[string]any{"response": "local: hello", "session_id": "abc", "agent": "vana", "status": "success"}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}

	for name, payload := range map[string]string{
		"empty message": `{"message":"   "}`,
		"no message":    `{}`,
		"invalid json":  `{"message":`,
	} {
		t.Run(name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, "/api/chat", payload)
			if rec.Code != http.StatusBadRequest || body["status"] != "error" {
				t.Errorf("code = %d body = %v", rec.Code, body)
			}
		})
	}
}

func TestChatBackendError(t *testing.T) {
	m := monitoring.NewMetrics()
	s := New(&fakeBackend{mode: "local", chatErr: errors.New("model offline")}, WithMetrics(m))
	rec, body := do(t, s, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	if rec.Code != http.StatusBadGateway || body["error"] != "model offline" {
		t.Errorf("code = %d body = %v", rec.Code, body)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `vana_http_requests_total{method="POST",route="/api/chat",status="502"} 1`) {
		t.Errorf("metrics missing chat request:\n%s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `vana_agent_invocations_total{agent="unknown",status="error"} 1`) {
		t.Error("metrics missing agent error")
	}
}

func TestAgentsAndCacheStats(t *testing.T) {
	s := New(&fakeBackend{mode: "local"})
	rec, body := do(t, s, http.MethodGet, "/api/agents", "")
	if rec.Code != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("code = %d body = %v", rec.Code, body)
	}

	rec, _ = do(t, s, http.MethodGet, "/api/cache/stats", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("cache stats without caches = %d", rec.Code)
	}

	s = New(&fakeBackend{mode: "local"}, WithCaches(cache.NewRegistry(cache.DefaultRegistryConfig())))
	rec, body = do(t, s, http.MethodGet, "/api/cache/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	caches, _ := body["caches"].(map[string]any)
	if len(caches) != 3 {
		t.Errorf("caches = %v", caches)
	}
}

// flakyUpstream fails the first n chat requests with status code.
func flakyUpstream(t *testing.T, n int32, code int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	inner := New(&fakeBackend{mode: "remote"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/chat" && calls.Add(1) <= n {
			writeError(w, code, "busy")
			return
		}
		inner.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func noDelay() *fallback.Manager {
	return fallback.NewManager(fallback.Policy{MaxRetries: 2})
}

func TestProxyBackend(t *testing.T) {
	up, calls := flakyUpstream(t, 2, http.StatusServiceUnavailable)
	p, err := NewProxyBackend(up.URL, WithRetry(noDelay()))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := p.Chat(t.Context(), ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Response != "remote: hi" || calls.Load() != 3 {
		t.Errorf("Chat() = %+v after %d calls", resp, calls.Load())
	}

	list, err := p.Agents(t.Context())
	if err != nil || len(list) != 1 || list[0].Name != "vana" {
		t.Errorf("Agents() = %v, %v", list, err)
	}
	if err := p.Ping(t.Context()); err != nil {
		t.Errorf("Ping() = %v", err)
	}
}

func TestProxyBackendClientErrorNotRetried(t *testing.T) {
	up, calls := flakyUpstream(t, 10, http.StatusBadRequest)
	p, err := NewProxyBackend(up.URL, WithRetry(noDelay()))
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Chat(t.Context(), ChatRequest{Message: "hi"})
	var uerr *UpstreamError
	if !errors.As(err, &uerr) || uerr.StatusCode != http.StatusBadRequest {
		t.Fatalf("Chat() error = %v, want UpstreamError 400", err)
	}
	if !errors.Is(err, fallback.ErrExhausted) {
		t.Errorf("Chat() error = %v, want ErrExhausted", err)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream called %d times, want 1", calls.Load())
	}
}

func TestProxyBackendFallsBackToLocal(t *testing.T) {
	up, _ := flakyUpstream(t, 10, http.StatusBadGateway)
	local := &fakeBackend{mode: "local"}
	p, err := NewProxyBackend(up.URL, WithRetry(noDelay()), WithFallback(local))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := p.Chat(t.Context(), ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Response != "local: hi" || local.chats.Load() != 1 {
		t.Errorf("Chat() = %+v", resp)
	}
}

func TestNewProxyBackendInvalidURL(t *testing.T) {
	if _, err := NewProxyBackend("not a url"); err == nil {
		t.Error("NewProxyBackend() error = nil")
	}
}

type echoLLM struct{}

func (echoLLM) Name() string { return "echo-llm" }

func (echoLLM) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		last := req.Contents[len(req.Contents)-1]
		yield(&model.LLMResponse{
			Content:      genai.NewContentFromText("you said "+last.Parts[0].Text, genai.RoleModel),
			TurnComplete: true,
		}, nil)
	}
}

func TestLocalBackend(t *testing.T) {
	sys, err := agents.Build(t.Context(), echoLLM{}, nil, agents.DefaultSpecs())
	if err != nil {
		t.Fatal(err)
	}
	runner, err := agents.NewRunner("", sys.Root())
	if err != nil {
		t.Fatal(err)
	}
	s := New(NewLocalBackend(runner, sys))

	rec, body := do(t, s, http.MethodPost, "/api/chat", `{"message":"ping","user_id":"u"}`)
	if rec.Code != http.StatusOK || body["response"] != "you said ping" || body["agent"] != "vana" {
		t.Errorf("code = %d body = %v", rec.Code, body)
	}
	if sid, _ := body["session_id"].(string); sid == "" {
		t.Error("no session id")
	}

	_, body = do(t, s, http.MethodGet, "/api/agents", "")
	if body["count"] != float64(6) {
		t.Errorf("agents count = %v", body["count"])
	}
}

func TestServeShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	s := New(&fakeBackend{mode: "local"})

	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, ln)
	}()

	client := &http.Client{Timeout: 5 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	var resp *http.Response
	for range 50 {
		resp, err = client.Get("http://" + ln.Addr().String() + "/health")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
