// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package rag

import "time"

// State is the lifecycle state of a corpus or file.
type State string

const (
	StateUnspecified State = "unspecified"
	StateActive      State = "active"
	StateError       State = "error"
)

// Corpus is a RAG corpus.
type Corpus struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	State       State     `json:"state"`
	CreateTime  time.Time `json:"create_time,omitzero"`
	UpdateTime  time.Time `json:"update_time,omitzero"`
}

// File is a document imported into a corpus.
type File struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	SourceURIs  []string  `json:"source_uris,omitempty"`
	State       State     `json:"state"`
	Error       string    `json:"error,omitempty"`
	CreateTime  time.Time `json:"create_time,omitzero"`
}

// ImportResult summarises an import operation.
type ImportResult struct {
	Imported int64 `json:"imported"`
	Failed   int64 `json:"failed"`
}

// Context is a chunk of text retrieved for a query.
type Context struct {
	Text       string  `json:"text"`
	SourceURI  string  `json:"source_uri,omitempty"`
	SourceName string  `json:"source_name,omitempty"`
	Distance   float64 `json:"distance"`
}

// RetrieveOptions tunes [Service.RetrieveContexts].
type RetrieveOptions struct {
	// TopK is the maximum number of contexts returned. Zero means 10.
	TopK int32
	// Threshold drops contexts whose vector distance is above it. Zero disables the filter.
	Threshold float64
}
