// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package rag

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestParseCorpusName(t *testing.T) {
	tests := map[string]struct {
		name    string
		want    CorpusRef
		wantErr bool
	}{
		"valid": {
			name: "projects/vana-dev/locations/us-central1/ragCorpora/123",
			want: CorpusRef{Project: "vana-dev", Location: "us-central1", ID: "123"},
		},
		"bare id": {
			name:    "123",
			wantErr: true,
		},
		"wrong collection": {
			name:    "projects/p/locations/l/indexes/1",
			wantErr: true,
		},
		"empty segment": {
			name:    "projects//locations/l/ragCorpora/1",
			wantErr: true,
		},
		"file name": {
			name:    "projects/p/locations/l/ragCorpora/1/ragFiles/2",
			wantErr: true,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseCorpusName(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidName) {
					t.Fatalf("ParseCorpusName(%q) error = %v, want ErrInvalidName", tt.name, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseCorpusName() mismatch (-want +got):\n%s", diff)
			}
			if got.String() != tt.name {
				t.Errorf("String() = %q, want %q", got.String(), tt.name)
			}
		})
	}
}

func TestParseFileName(t *testing.T) {
	corpus := CorpusName("p", "l", "c")
	gotCorpus, id, err := ParseFileName(FileName(corpus, "f1"))
	if err != nil || gotCorpus != corpus || id != "f1" {
		t.Errorf("ParseFileName() = %q, %q, %v", gotCorpus, id, err)
	}
	for _, bad := range []string{corpus, corpus + "/ragFiles/", "x/ragFiles/f1", corpus + "/ragFiles/a/b"} {
		if _, _, err := ParseFileName(bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ParseFileName(%q) error = %v, want ErrInvalidName", bad, err)
		}
	}
}

func TestServiceCorpusName(t *testing.T) {
	s := &Service{projectID: "p", location: "us-central1"}
	if got, want := s.CorpusName("abc"), "projects/p/locations/us-central1/ragCorpora/abc"; got != want {
		t.Errorf("CorpusName(id) = %q, want %q", got, want)
	}
	full := CorpusName("other", "europe-west4", "x")
	if got := s.CorpusName(full); got != full {
		t.Errorf("CorpusName(full) = %q, want unchanged", got)
	}
}

func TestImportRequest(t *testing.T) {
	corpus := CorpusName("p", "l", "c")
	req, err := importRequest(corpus, []string{"gs://b/knowledge/"}, 512, 100)
	if err != nil {
		t.Fatal(err)
	}
	want := &aiplatformpb.ImportRagFilesRequest{
		Parent: corpus,
		ImportRagFilesConfig: &aiplatformpb.ImportRagFilesConfig{
			ImportSource: &aiplatformpb.ImportRagFilesConfig_GcsSource{
				GcsSource: &aiplatformpb.GcsSource{Uris: []string{"gs://b/knowledge/"}},
			},
			RagFileChunkingConfig: &aiplatformpb.RagFileChunkingConfig{ChunkSize: 512, ChunkOverlap: 100},
		},
	}
	if diff := cmp.Diff(want, req, protocmp.Transform()); diff != "" {
		t.Errorf("importRequest() mismatch (-want +got):\n%s", diff)
	}

	tests := map[string]struct {
		uris          []string
		size, overlap int32
	}{
		"no uris":         {nil, 512, 100},
		"not gcs":         {[]string{"/tmp/doc.md"}, 512, 100},
		"overlap too big": {[]string{"gs://b/x"}, 100, 100},
		"zero size":       {[]string{"gs://b/x"}, 0, 0},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := importRequest(corpus, tt.uris, tt.size, tt.overlap); err == nil {
				t.Error("importRequest() error = nil")
			}
		})
	}
}

func TestRetrieveRequest(t *testing.T) {
	corpora := []string{CorpusName("p", "l", "a"), CorpusName("p", "l", "b")}

	req, err := retrieveRequest("projects/p/locations/l", "what is vana", corpora, RetrieveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got := req.GetQuery().GetSimilarityTopK(); got != defaultTopK {
		t.Errorf("top k = %d, want %d", got, defaultTopK)
	}
	store := req.GetVertexRagStore()
	if store.VectorDistanceThreshold != nil {
		t.Errorf("threshold = %v, want unset", *store.VectorDistanceThreshold)
	}
	if got := len(store.GetRagResources()); got != 2 {
		t.Errorf("resources = %d, want 2", got)
	}

	req, err = retrieveRequest("projects/p/locations/l", "q", corpora[:1], RetrieveOptions{TopK: 3, Threshold: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if req.GetQuery().GetSimilarityTopK() != 3 || req.GetVertexRagStore().GetVectorDistanceThreshold() != 0.5 {
		t.Errorf("request = %v", req)
	}

	if _, err := retrieveRequest("p", "", corpora, RetrieveOptions{}); err == nil {
		t.Error("empty query accepted")
	}
	if _, err := retrieveRequest("p", "q", nil, RetrieveOptions{}); err == nil {
		t.Error("no corpora accepted")
	}
}

func TestFromPb(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	corpus := corpusFromPb(&aiplatformpb.RagCorpus{
		Name:         "projects/p/locations/l/ragCorpora/1",
		DisplayName:  "vana-knowledge",
		CreateTime:   timestamppb.New(created),
		CorpusStatus: &aiplatformpb.CorpusStatus{State: aiplatformpb.CorpusStatus_ERROR},
	})
	want := &Corpus{
		Name:        "projects/p/locations/l/ragCorpora/1",
		DisplayName: "vana-knowledge",
		State:       StateError,
		CreateTime:  created,
	}
	if diff := cmp.Diff(want, corpus); diff != "" {
		t.Errorf("corpusFromPb() mismatch (-want +got):\n%s", diff)
	}

	file := fileFromPb(&aiplatformpb.RagFile{
		Name:        "projects/p/locations/l/ragCorpora/1/ragFiles/9",
		DisplayName: "adk.md",
		FileStatus:  &aiplatformpb.FileStatus{State: aiplatformpb.FileStatus_ACTIVE},
	})
	if file.State != StateActive || file.DisplayName != "adk.md" {
		t.Errorf("fileFromPb() = %+v", file)
	}

	ctxs := contextsFromPb(&aiplatformpb.RagContexts{
		Contexts: []*aiplatformpb.RagContexts_Context{
			{SourceUri: "gs://b/adk.md", Text: "ADK agents", Distance: 0.2},
		},
	})
	if diff := cmp.Diff([]Context{{Text: "ADK agents", SourceURI: "gs://b/adk.md", Distance: 0.2}}, ctxs); diff != "" {
		t.Errorf("contextsFromPb() mismatch (-want +got):\n%s", diff)
	}
	if got := contextsFromPb(nil); len(got) != 0 {
		t.Errorf("contextsFromPb(nil) = %v", got)
	}
}
