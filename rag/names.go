// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package rag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidName is returned when a resource name does not have the expected shape.
var ErrInvalidName = errors.New("invalid resource name")

// CorpusRef identifies a RAG corpus.
type CorpusRef struct {
	Project  string
	Location string
	ID       string
}

// String returns the full resource name.
func (r CorpusRef) String() string {
	return CorpusName(r.Project, r.Location, r.ID)
}

func parentName(project, location string) string {
	return "projects/" + project + "/locations/" + location
}

// CorpusName returns "projects/{project}/locations/{location}/ragCorpora/{id}".
func CorpusName(project, location, id string) string {
	return parentName(project, location) + "/ragCorpora/" + id
}

// ParseCorpusName splits a corpus resource name into its parts.
func ParseCorpusName(name string) (CorpusRef, error) {
	parts := strings.Split(name, "/")
	if len(parts) != 6 || parts[0] != "projects" || parts[2] != "locations" || parts[4] != "ragCorpora" {
		return CorpusRef{}, fmt.Errorf("%w: %q is not projects/*/locations/*/ragCorpora/*", ErrInvalidName, name)
	}
	for _, p := range []string{parts[1], parts[3], parts[5]} {
		if p == "" {
			return CorpusRef{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidName, name)
		}
	}
	return CorpusRef{Project: parts[1], Location: parts[3], ID: parts[5]}, nil
}

// FileName returns the resource name of a file inside a corpus.
func FileName(corpusName, fileID string) string {
	return corpusName + "/ragFiles/" + fileID
}

// ParseFileName splits a RAG file resource name into its corpus name and file ID.
func ParseFileName(name string) (corpus, fileID string, err error) {
	corpus, fileID, ok := strings.Cut(name, "/ragFiles/")
	if !ok || fileID == "" || strings.Contains(fileID, "/") {
		return "", "", fmt.Errorf("%w: %q is not a RAG file name", ErrInvalidName, name)
	}
	if _, err := ParseCorpusName(corpus); err != nil {
		return "", "", err
	}
	return corpus, fileID, nil
}
