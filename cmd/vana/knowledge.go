// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/sync/errgroup"

	"github.com/NickB03/vana/config"
	"github.com/NickB03/vana/docstore"
	"github.com/NickB03/vana/internal/app"
	"github.com/NickB03/vana/pkg/logging"
	"github.com/NickB03/vana/vector"
)

func openIndex(ctx context.Context, cfg *config.Config) (*vector.Index, func(), error) {
	logger := logging.FromContext(ctx)
	embedder, err := app.NewEmbedder(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	store, docs, err := app.NewVectorStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closeAll := func() {
		store.Close()
		if docs != nil {
			docs.Close()
		}
	}
	ix := vector.NewIndex(store, embedder,
		vector.WithChunking(cfg.Vector.ChunkSize, cfg.Vector.ChunkOverlap),
		vector.WithIndexLogger(logger),
	)
	return ix, closeAll, nil
}

// IndexCmd indexes a directory of documents.
type IndexCmd struct {
	Dir         string   `arg:"" help:"Directory of documents." type:"existingdir"`
	Collection  string   `help:"Collection to write to; defaults to the configured collection."`
	Extensions  []string `name:"ext" help:"File extensions to index." default:".md,.txt"`
	Concurrency int      `help:"Documents embedded in parallel." default:"4"`
}

func (c *IndexCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	collection := cmp.Or(c.Collection, cfg.Vector.Collection)

	files, err := docstore.CollectFiles(c.Dir, c.Extensions)
	if err != nil {
		return err
	}
	ix, closeIndex, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeIndex()

	var chunks atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.Concurrency, 1))
	for _, rel := range files {
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(c.Dir, filepath.FromSlash(rel)))
			if err != nil {
				return err
			}
			n, err := ix.Add(ctx, collection, rel, string(data), map[string]string{"path": rel})
			if err != nil {
				return err
			}
			chunks.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logging.FromContext(ctx).InfoContext(ctx, "index complete",
		slog.String("collection", collection),
		slog.Int("documents", len(files)),
		slog.Int64("chunks", chunks.Load()),
	)
	fmt.Printf("indexed %d documents as %d chunks into %s\n", len(files), chunks.Load(), collection)
	return nil
}

// SearchCmd searches the vector store.
type SearchCmd struct {
	Query      []string `arg:"" help:"Search query."`
	Collection string   `help:"Collection to search; defaults to the configured collection."`
	TopK       int      `name:"top-k" help:"Number of results." default:"5"`
}

func (c *SearchCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	ix, closeIndex, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeIndex()

	matches, err := ix.Search(ctx, cmp.Or(c.Collection, cfg.Vector.Collection), strings.Join(c.Query, " "), c.TopK)
	if err != nil {
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SCORE", "SOURCE", "TEXT")
	for _, m := range matches {
		t.Row(fmt.Sprintf("%.3f", m.Score), m.Metadata[vector.MetaSource], truncate(m.Content, 80))
	}
	fmt.Println(t.Render())
	return nil
}

// UploadCmd uploads documents to GCS.
type UploadCmd struct {
	Dir        string   `arg:"" help:"Directory of documents." type:"existingdir"`
	Bucket     string   `help:"Bucket name; defaults to the configured bucket." env:"VANA_DOCS_BUCKET"`
	Prefix     string   `help:"Object name prefix; defaults to the configured prefix."`
	Extensions []string `name:"ext" help:"File extensions to upload; defaults to common document types."`
}

func (c *UploadCmd) upload(ctx context.Context, cfg *config.Config) (*docstore.Store, string, []string, error) {
	bucket := cmp.Or(c.Bucket, cfg.Docs.Bucket)
	if bucket == "" {
		return nil, "", nil, fmt.Errorf("%w: a bucket is required", config.ErrInvalid)
	}
	store, err := docstore.New(ctx, bucket, logging.FromContext(ctx))
	if err != nil {
		return nil, "", nil, err
	}
	prefix := cmp.Or(c.Prefix, cfg.Docs.Prefix)
	uris, err := store.UploadDir(ctx, c.Dir, prefix, c.Extensions)
	if err != nil {
		store.Close()
		return nil, "", nil, err
	}
	return store, prefix, uris, nil
}

func (c *UploadCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	store, _, uris, err := c.upload(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	for _, u := range uris {
		fmt.Println(u)
	}
	fmt.Printf("uploaded %d files\n", len(uris))
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
