// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package server implements the VANA HTTP API: health, chat, agent listing, cache
// statistics and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/NickB03/vana/agents"
	"github.com/NickB03/vana/cache"
	"github.com/NickB03/vana/internal/pool"
	"github.com/NickB03/vana/monitoring"
)

const serviceName = "vana"

// HealthResponse is the answer of GET /health.
type HealthResponse struct {
	Status    string                            `json:"status"`
	Service   string                            `json:"service"`
	Version   string                            `json:"version"`
	Mode      string                            `json:"mode"`
	Checks    map[string]monitoring.CheckResult `json:"checks"`
	Timestamp time.Time                         `json:"timestamp"`
}

// AgentsResponse is the answer of GET /api/agents.
type AgentsResponse struct {
	Agents []agents.AgentInfo `json:"agents"`
	Count  int                `json:"count"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

// Server serves the VANA HTTP API.
type Server struct {
	backend Backend
	health  *monitoring.HealthChecker
	metrics *monitoring.Metrics
	caches  *cache.Registry
	version string
	timeout time.Duration
	logger  *slog.Logger
	router  chi.Router
}

// Option configures a [Server].
type Option func(*Server)

// WithHealthChecker sets the checks reported by /health. The backend is always checked.
func WithHealthChecker(h *monitoring.HealthChecker) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithCaches exposes cache statistics on /api/cache/stats.
func WithCaches(r *cache.Registry) Option {
	return func(s *Server) {
		s.caches = r
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithRequestTimeout bounds every request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New returns a Server answering through backend.
func New(backend Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		version: "dev",
		timeout: 60 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = monitoring.NewHealthChecker(5*time.Second, s.logger)
	}
	s.health.Register("backend", true, backend.Ping)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))
		r.Post("/chat", s.handleChat)
		r.Get("/agents", s.handleAgents)
		r.Get("/cache/stats", s.handleCacheStats)
	})
	return r
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	s.logger.InfoContext(ctx, "server listening",
		slog.String("addr", ln.Addr().String()),
		slog.String("mode", s.backend.Mode()),
	)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.InfoContext(ctx, "server stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	buf := pool.Buffer.Get()
	defer pool.Buffer.Put(buf)
	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response","status":"error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Status: "error"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Run(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{
		Status:    report.Status,
		Service:   serviceName,
		Version:   s.version,
		Mode:      s.backend.Mode(),
		Checks:    report.Checks,
		Timestamp: report.Timestamp,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := sonic.ConfigDefault.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := s.backend.Chat(r.Context(), req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordAgent("", "error")
		}
		s.logger.ErrorContext(r.Context(), "chat failed",
			slog.String("mode", s.backend.Mode()),
			slog.String("error", err.Error()),
		)
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.RecordAgent(resp.Agent, "success")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	list, err := s.backend.Agents(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if list == nil {
		list = []agents.AgentInfo{}
	}
	writeJSON(w, http.StatusOK, AgentsResponse{Agents: list, Count: len(list)})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.caches == nil {
		writeError(w, http.StatusNotFound, "caches are not enabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"caches": s.caches.Stats(),
		"status": "success",
	})
}
