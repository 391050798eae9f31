// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package vector stores embedded document chunks and answers similarity queries.
//
// Two stores are provided: [Chromem], an embedded store for local development, and
// [VertexSearch], backed by a deployed Vertex AI Vector Search index. [Index] ties a store
// to an embedder and the search cache.
package vector
