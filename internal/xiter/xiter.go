// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package xiter

import (
	"iter"
)

// Error returns an iterator that yields only err.
func Error[T any](err error) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		yield(nil, err)
	}
}

// Once returns an iterator that calls fn when iterated and yields its single result.
func Once[T any](fn func() (*T, error)) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		v, err := fn()
		if err != nil {
			yield(nil, err)
			return
		}
		yield(v, nil)
	}
}

// Lazy returns an iterator that calls fn when iterated and yields each element of the result.
// An error from fn is yielded alone.
func Lazy[T any](fn func() ([]*T, error)) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		vs, err := fn()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, v := range vs {
			if !yield(v, nil) {
				return
			}
		}
	}
}
