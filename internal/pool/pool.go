// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package pool provides typed [sync.Pool] wrappers and shared pools for [*bytes.Buffer] and
// [*strings.Builder].
package pool

import (
	"bytes"
	"strings"
	"sync"
)

// maxPooledSize caps the capacity of buffers returned to the shared pools; larger ones are dropped.
const maxPooledSize = 64 << 10

// Pool is a strongly-typed [sync.Pool].
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T) bool
}

// New returns a [Pool] constructing values with fn. reset, when non-nil, prepares a value for
// reuse on Put and reports whether it should be kept.
func New[T any](fn func() T, reset func(T) bool) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return fn()
			},
		},
		reset: reset,
	}
}

// Get returns a value from the pool, or a new one if the pool is empty.
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put returns x to the pool.
func (p *Pool[T]) Put(x T) {
	if p.reset != nil && !p.reset(x) {
		return
	}
	p.pool.Put(x)
}

// Buffer pools [*bytes.Buffer] values. Buffers are reset on Put.
var Buffer = New(
	func() *bytes.Buffer { return new(bytes.Buffer) },
	func(b *bytes.Buffer) bool {
		b.Reset()
		return b.Cap() <= maxPooledSize
	},
)

// String pools [*strings.Builder] values. Builders are reset on Put.
var String = New(
	func() *strings.Builder { return new(strings.Builder) },
	func(b *strings.Builder) bool {
		keep := b.Cap() <= maxPooledSize
		b.Reset()
		return keep
	},
)
