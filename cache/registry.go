// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// Names of the caches every [Registry] carries.
const (
	Search   = "search"
	Document = "document"
	Analysis = "analysis"
)

// Registry owns the named caches shared by tools and servers.
//
// Caches are constructed once and passed to their users instead of living in package globals.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]*Cache[string, any]
}

// RegistryConfig sizes the default caches.
type RegistryConfig struct {
	SearchSize   int
	SearchTTL    time.Duration
	DocumentSize int
	DocumentTTL  time.Duration
	AnalysisSize int
	AnalysisTTL  time.Duration
}

// DefaultRegistryConfig returns the sizes used when nothing is configured.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		SearchSize:   500,
		SearchTTL:    30 * time.Minute,
		DocumentSize: 200,
		DocumentTTL:  2 * time.Hour,
		AnalysisSize: 100,
		AnalysisTTL:  time.Hour,
	}
}

// NewRegistry creates the search, document and analysis caches.
func NewRegistry(cfg RegistryConfig, opts ...Option) *Registry {
	r := &Registry{caches: make(map[string]*Cache[string, any])}
	r.Register(Search, New[string, any](append(opts, WithMaxSize(cfg.SearchSize), WithTTL(cfg.SearchTTL))...))
	r.Register(Document, New[string, any](append(opts, WithMaxSize(cfg.DocumentSize), WithTTL(cfg.DocumentTTL))...))
	r.Register(Analysis, New[string, any](append(opts, WithMaxSize(cfg.AnalysisSize), WithTTL(cfg.AnalysisTTL))...))
	return r
}

// Register adds or replaces the cache stored under name.
func (r *Registry) Register(name string, c *Cache[string, any]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches[name] = c
}

// Get returns the cache registered under name.
func (r *Registry) Get(name string) (*Cache[string, any], bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caches[name]
	return c, ok
}

// Names returns the registered cache names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.caches))
}

// Stats returns the statistics of every registered cache.
func (r *Registry) Stats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.caches))
	for name, c := range r.caches {
		out[name] = c.Stats()
	}
	return out
}

// Clear empties the named cache, or every cache when name is empty.
func (r *Registry) Clear(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		for _, c := range r.caches {
			c.Clear()
		}
		return nil
	}
	c, ok := r.caches[name]
	if !ok {
		return fmt.Errorf("unknown cache %q", name)
	}
	c.Clear()
	return nil
}

// StartJanitors starts the cleanup goroutine of every registered cache.
func (r *Registry) StartJanitors(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.caches {
		c.StartJanitor(ctx)
	}
}

// Close stops every janitor goroutine.
func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.caches {
		c.Close()
	}
}
