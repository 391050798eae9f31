// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"cmp"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/NickB03/vana/config"
	"github.com/NickB03/vana/pkg/logging"
	"github.com/NickB03/vana/rag"
)

// RAGCmd groups the corpus management commands.
type RAGCmd struct {
	Create RAGCreateCmd `cmd:"" help:"Create a corpus."`
	List   RAGListCmd   `cmd:"" help:"List corpora."`
	Files  RAGFilesCmd  `cmd:"" help:"List the files of a corpus."`
	Import RAGImportCmd `cmd:"" help:"Upload a directory to GCS and import it into a corpus."`
	Query  RAGQueryCmd  `cmd:"" help:"Retrieve passages for a query."`
	Delete RAGDeleteCmd `cmd:"" help:"Delete a corpus."`
}

func ragService(ctx context.Context, cli *CLI) (*rag.Service, *config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Project == "" {
		return nil, nil, fmt.Errorf("%w: project is required for RAG commands", config.ErrInvalid)
	}
	svc, err := rag.NewService(ctx, cfg.Project, cfg.Location, rag.WithLogger(logging.FromContext(ctx)))
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

// RAGCreateCmd creates a corpus.
type RAGCreateCmd struct {
	Name        string `arg:"" help:"Display name."`
	Description string `help:"Corpus description."`
}

func (c *RAGCreateCmd) Run(ctx context.Context, cli *CLI) error {
	svc, _, err := ragService(ctx, cli)
	if err != nil {
		return err
	}
	defer svc.Close()

	corpus, err := svc.CreateCorpus(ctx, c.Name, c.Description)
	if err != nil {
		return err
	}
	fmt.Println(corpus.Name)
	return nil
}

// RAGListCmd lists corpora.
type RAGListCmd struct{}

func (c *RAGListCmd) Run(ctx context.Context, cli *CLI) error {
	svc, _, err := ragService(ctx, cli)
	if err != nil {
		return err
	}
	defer svc.Close()

	corpora, err := svc.ListCorpora(ctx)
	if err != nil {
		return err
	}
	t := table.New().Border(lipgloss.NormalBorder()).Headers("NAME", "DISPLAY NAME", "STATE", "CREATED")
	for _, c := range corpora {
		t.Row(c.Name, c.DisplayName, string(c.State), c.CreateTime.Format("2006-01-02 15:04"))
	}
	fmt.Println(t.Render())
	return nil
}

// RAGFilesCmd lists the files of a corpus.
type RAGFilesCmd struct {
	Corpus string `help:"Corpus ID or resource name; defaults to the configured corpus."`
}

func (c *RAGFilesCmd) Run(ctx context.Context, cli *CLI) error {
	svc, cfg, err := ragService(ctx, cli)
	if err != nil {
		return err
	}
	defer svc.Close()

	files, err := svc.ListFiles(ctx, cmp.Or(c.Corpus, cfg.RAG.Corpus))
	if err != nil {
		return err
	}
	t := table.New().Border(lipgloss.NormalBorder()).Headers("FILE", "SOURCE", "STATE")
	for _, f := range files {
		t.Row(f.DisplayName, strings.Join(f.SourceURIs, "\n"), string(f.State))
	}
	fmt.Println(t.Render())
	return nil
}

// RAGImportCmd uploads and imports documents.
type RAGImportCmd struct {
	UploadCmd
	Corpus       string `help:"Corpus ID or resource name; defaults to the configured corpus."`
	ChunkSize    int32  `name:"chunk-size" help:"Chunk size in tokens; defaults to the configured size."`
	ChunkOverlap int32  `name:"chunk-overlap" help:"Chunk overlap in tokens; defaults to the configured overlap."`
}

func (c *RAGImportCmd) Run(ctx context.Context, cli *CLI) error {
	svc, cfg, err := ragService(ctx, cli)
	if err != nil {
		return err
	}
	defer svc.Close()

	store, prefix, uris, err := c.upload(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if len(uris) == 0 {
		fmt.Println("no documents to import")
		return nil
	}

	res, err := svc.ImportFilesFromGCS(ctx,
		cmp.Or(c.Corpus, cfg.RAG.Corpus),
		[]string{store.URI(prefix)},
		cmp.Or(c.ChunkSize, int32(cfg.RAG.ChunkSize)),
		cmp.Or(c.ChunkOverlap, int32(cfg.RAG.ChunkOverlap)),
	)
	if err != nil {
		return err
	}
	fmt.Printf("uploaded %d files, imported %d, failed %d\n", len(uris), res.Imported, res.Failed)
	return nil
}

// RAGQueryCmd retrieves passages.
type RAGQueryCmd struct {
	Query     []string `arg:"" help:"Query text."`
	Corpus    string   `help:"Corpus ID or resource name; defaults to the configured corpus."`
	TopK      int32    `name:"top-k" help:"Number of passages." default:"5"`
	Threshold float64  `help:"Maximum vector distance; defaults to the configured threshold."`
}

func (c *RAGQueryCmd) Run(ctx context.Context, cli *CLI) error {
	svc, cfg, err := ragService(ctx, cli)
	if err != nil {
		return err
	}
	defer svc.Close()

	contexts, err := svc.RetrieveContexts(ctx, strings.Join(c.Query, " "), []string{cmp.Or(c.Corpus, cfg.RAG.Corpus)}, rag.RetrieveOptions{
		TopK:      c.TopK,
		Threshold: cmp.Or(c.Threshold, cfg.RAG.Threshold),
	})
	if err != nil {
		return err
	}
	for i, rc := range contexts {
		fmt.Printf("%d. %s (distance %.3f)\n%s\n\n", i+1, cmp.Or(rc.SourceName, rc.SourceURI), rc.Distance, rc.Text)
	}
	return nil
}

// RAGDeleteCmd deletes a corpus.
type RAGDeleteCmd struct {
	Corpus string `arg:"" help:"Corpus ID or resource name."`
	Force  bool   `help:"Delete even when the corpus still holds files."`
}

func (c *RAGDeleteCmd) Run(ctx context.Context, cli *CLI) error {
	svc, _, err := ragService(ctx, cli)
	if err != nil {
		return err
	}
	defer svc.Close()
	return svc.DeleteCorpus(ctx, c.Corpus, c.Force)
}
