// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package docstore keeps knowledge-base documents in a Google Cloud Storage bucket.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"cloud.google.com/go/auth/credentials"
	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("document not found")

// uploadConcurrency bounds parallel uploads in [Store.UploadDir].
const uploadConcurrency = 8

// DefaultExtensions are the file types uploaded when none are given.
var DefaultExtensions = []string{".md", ".txt", ".pdf", ".html", ".json"}

// Object describes a stored document.
type Object struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	URI         string `json:"uri"`
}

// Store is a bucket of documents.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	logger *slog.Logger
}

// New opens bucketName using Application Default Credentials.
func New(ctx context.Context, bucketName string, logger *slog.Logger) (*Store, error) {
	if bucketName == "" {
		return nil, errors.New("docstore: bucket name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes: []string{storage.ScopeReadWrite},
	})
	if err != nil {
		return nil, fmt.Errorf("get credentials for storage: %w", err)
	}

	client, err := storage.NewGRPCClient(ctx, option.WithAuthCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Store{
		client: client,
		bucket: client.Bucket(bucketName),
		name:   bucketName,
		logger: logger,
	}, nil
}

// Close closes the storage client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.name
}

// URI returns the gs:// URI of an object.
func (s *Store) URI(name string) string {
	return uri(s.name, name)
}

func uri(bucket, name string) string {
	return "gs://" + bucket + "/" + strings.TrimPrefix(name, "/")
}

// Put writes data to name.
func (s *Store) Put(ctx context.Context, name string, data []byte, contentType string) error {
	w := s.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", s.URI(name), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("write %s: %w", s.URI(name), err)
	}
	return nil
}

// Get reads the object name.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	r, err := s.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return nil, s.wrap(name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.URI(name), err)
	}
	return data, nil
}

// Delete removes the object name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.bucket.Object(name).Delete(ctx); err != nil {
		return s.wrap(name, err)
	}
	return nil
}

// List returns the objects under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]Object, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	var objs []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", s.name, prefix, err)
		}
		objs = append(objs, Object{
			Name:        attrs.Name,
			Size:        attrs.Size,
			ContentType: attrs.ContentType,
			URI:         s.URI(attrs.Name),
		})
	}
	return objs, nil
}

func (s *Store) wrap(name string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, s.URI(name))
	}
	return fmt.Errorf("%s: %w", s.URI(name), err)
}

// UploadDir uploads every file under dir whose extension is in exts to prefix, preserving
// relative paths. It returns the gs:// URIs of the uploaded objects in lexical order.
func (s *Store) UploadDir(ctx context.Context, dir, prefix string, exts []string) ([]string, error) {
	files, err := CollectFiles(dir, exts)
	if err != nil {
		return nil, err
	}

	uris := make([]string, len(files))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(uploadConcurrency)
	for i, rel := range files {
		eg.Go(func() error {
			data, err := os.ReadFile(filepath.Join(dir, rel))
			if err != nil {
				return err
			}
			name := objectName(prefix, rel)
			if err := s.Put(ctx, name, data, contentType(rel)); err != nil {
				return err
			}
			uris[i] = s.URI(name)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "uploaded documents",
		slog.String("bucket", s.name),
		slog.String("prefix", prefix),
		slog.Int("count", len(uris)),
	)
	return uris, nil
}

// CollectFiles returns the slash-separated paths, relative to dir, of regular files with one
// of exts, sorted. Hidden directories are skipped.
func CollectFiles(dir string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !slices.Contains(exts, strings.ToLower(filepath.Ext(p))) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

func objectName(prefix, rel string) string {
	return path.Join(prefix, rel)
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
