// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Hash is a deterministic bag-of-words embedder. Each lower-cased token is hashed into one
// of the vector's buckets with a hash-derived sign and the vector is L2 normalised.
//
// It needs no network access and is meant for development and tests.
type Hash struct {
	dims int
}

var _ Embedder = (*Hash)(nil)

// NewHash returns a [Hash] embedder producing dims-dimensional vectors.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Hash{dims: dims}
}

// Dimensions implements [Embedder].
func (h *Hash) Dimensions() int {
	return h.dims
}

// Embed implements [Embedder].
func (h *Hash) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *Hash) vector(text string) []float32 {
	vec := make([]float32, h.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		f := fnv.New64a()
		f.Write([]byte(tok))
		sum := f.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(h.dims)] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
