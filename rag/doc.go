// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package rag manages Vertex AI RAG Engine corpora: creating and listing corpora, importing
// documents from Cloud Storage and retrieving ranked contexts for a query.
package rag
