// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1beta1"
	"cloud.google.com/go/aiplatform/apiv1beta1/aiplatformpb"
	"cloud.google.com/go/auth/credentials"
	"github.com/bytedance/sonic"
	gax "github.com/googleapis/gax-go/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

// collectionNamespace is the restrict namespace that partitions one index into collections.
const collectionNamespace = "collection"

// ContentStore keeps the text and metadata that Vector Search does not store.
type ContentStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

type indexAPI interface {
	UpsertDatapoints(ctx context.Context, req *aiplatformpb.UpsertDatapointsRequest, opts ...gax.CallOption) (*aiplatformpb.UpsertDatapointsResponse, error)
	RemoveDatapoints(ctx context.Context, req *aiplatformpb.RemoveDatapointsRequest, opts ...gax.CallOption) (*aiplatformpb.RemoveDatapointsResponse, error)
	Close() error
}

type matchAPI interface {
	FindNeighbors(ctx context.Context, req *aiplatformpb.FindNeighborsRequest, opts ...gax.CallOption) (*aiplatformpb.FindNeighborsResponse, error)
	Close() error
}

// VertexSearchConfig locates a Vector Search index and its deployment.
type VertexSearchConfig struct {
	Project  string
	Location string

	// Index is the index resource name or ID used for streaming updates.
	Index string
	// IndexEndpoint is the index endpoint resource name or ID used for queries.
	IndexEndpoint   string
	DeployedIndexID string
	// PublicDomain is the endpoint's public domain name. When empty queries use the
	// regional API endpoint.
	PublicDomain string

	// DistanceMeasure is the distance measure the index was created with. Empty means
	// DOT_PRODUCT_DISTANCE.
	DistanceMeasure string

	// ContentPrefix is prepended to content object names.
	ContentPrefix string
}

// Distance measures of Vector Search indexes.
const (
	DotProductDistance = "DOT_PRODUCT_DISTANCE"
	CosineDistance     = "COSINE_DISTANCE"
	SquaredL2Distance  = "SQUARED_L2_DISTANCE"
	L1Distance         = "L1_DISTANCE"
)

// score converts a neighbor distance into a similarity where higher is closer. Vector Search
// reports dot product and cosine neighbors as similarities already; L1 and squared L2 are
// true distances.
func (c VertexSearchConfig) score(distance float64) float32 {
	switch strings.ToUpper(c.DistanceMeasure) {
	case SquaredL2Distance, L1Distance:
		return float32(1 / (1 + max(distance, 0)))
	default:
		return float32(distance)
	}
}

func (c VertexSearchConfig) indexName() string {
	return qualify(c.Project, c.Location, "indexes", c.Index)
}

func (c VertexSearchConfig) endpointName() string {
	return qualify(c.Project, c.Location, "indexEndpoints", c.IndexEndpoint)
}

func qualify(project, location, kind, id string) string {
	if strings.HasPrefix(id, "projects/") {
		return id
	}
	return "projects/" + project + "/locations/" + location + "/" + kind + "/" + id
}

// VertexSearch is a [Store] backed by Vertex AI Vector Search. Each collection is a restrict
// on a single streaming-update index; document text lives in a [ContentStore].
type VertexSearch struct {
	cfg     VertexSearchConfig
	index   indexAPI
	match   matchAPI
	content ContentStore
	logger  *slog.Logger
}

var _ Store = (*VertexSearch)(nil)

// NewVertexSearch connects to the index and index endpoint described by cfg.
func NewVertexSearch(ctx context.Context, cfg VertexSearchConfig, content ContentStore, logger *slog.Logger) (*VertexSearch, error) {
	if cfg.Project == "" || cfg.Location == "" || cfg.Index == "" || cfg.IndexEndpoint == "" || cfg.DeployedIndexID == "" {
		return nil, errors.New("vector search: project, location, index, index endpoint and deployed index id are required")
	}
	switch strings.ToUpper(cfg.DistanceMeasure) {
	case "", DotProductDistance, CosineDistance, SquaredL2Distance, L1Distance:
	default:
		return nil, fmt.Errorf("vector search: unknown distance measure %q", cfg.DistanceMeasure)
	}
	if content == nil {
		return nil, errors.New("vector search: content store is required")
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes: []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect default credentials: %w", err)
	}

	regional := cfg.Location + "-aiplatform.googleapis.com:443"
	index, err := aiplatform.NewIndexClient(ctx, option.WithAuthCredentials(creds), option.WithEndpoint(regional))
	if err != nil {
		return nil, fmt.Errorf("failed to create index client: %w", err)
	}

	matchEndpoint := regional
	if cfg.PublicDomain != "" {
		matchEndpoint = cfg.PublicDomain + ":443"
	}
	match, err := aiplatform.NewMatchClient(ctx, option.WithAuthCredentials(creds), option.WithEndpoint(matchEndpoint))
	if err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to create match client: %w", err)
	}

	return newVertexSearch(cfg, index, match, content, logger), nil
}

func newVertexSearch(cfg VertexSearchConfig, index indexAPI, match matchAPI, content ContentStore, logger *slog.Logger) *VertexSearch {
	if logger == nil {
		logger = slog.Default()
	}
	return &VertexSearch{
		cfg:     cfg,
		index:   index,
		match:   match,
		content: content,
		logger:  logger,
	}
}

// datapointID namespaces document IDs by collection so collections never collide.
func datapointID(collection, id string) string {
	return collection + "/" + id
}

func (v *VertexSearch) contentName(collection, id string) string {
	return path.Join(v.cfg.ContentPrefix, "vectors", collection, id+".json")
}

func restricts(collection string, metadata map[string]string) []*aiplatformpb.IndexDatapoint_Restriction {
	out := []*aiplatformpb.IndexDatapoint_Restriction{
		{Namespace: collectionNamespace, AllowList: []string{collection}},
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		if k != collectionNamespace {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = append(out, &aiplatformpb.IndexDatapoint_Restriction{Namespace: k, AllowList: []string{metadata[k]}})
	}
	return out
}

type storedContent struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Upsert implements [Store]. Content is written before the datapoints so a visible
// datapoint always has its text.
func (v *VertexSearch) Upsert(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := validateDocs(docs); err != nil {
		return err
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(8)
	for _, d := range docs {
		eg.Go(func() error {
			data, err := sonic.Marshal(storedContent{Content: d.Content, Metadata: d.Metadata})
			if err != nil {
				return err
			}
			return v.content.Put(egctx, v.contentName(collection, d.ID), data, "application/json")
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("failed to store content: %w", err)
	}

	points := make([]*aiplatformpb.IndexDatapoint, len(docs))
	for i, d := range docs {
		points[i] = &aiplatformpb.IndexDatapoint{
			DatapointId:   datapointID(collection, d.ID),
			FeatureVector: d.Embedding,
			Restricts:     restricts(collection, d.Metadata),
		}
	}
	if _, err := v.index.UpsertDatapoints(ctx, &aiplatformpb.UpsertDatapointsRequest{
		Index:      v.cfg.indexName(),
		Datapoints: points,
	}); err != nil {
		return fmt.Errorf("failed to upsert datapoints: %w", err)
	}

	v.logger.InfoContext(ctx, "upserted datapoints",
		slog.String("collection", collection),
		slog.Int("count", len(points)),
	)
	return nil
}

// Query implements [Store]. Results whose content object is missing are skipped. Matches are
// ordered by descending [Match.Score].
func (v *VertexSearch) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}

	resp, err := v.match.FindNeighbors(ctx, &aiplatformpb.FindNeighborsRequest{
		IndexEndpoint:   v.cfg.endpointName(),
		DeployedIndexId: v.cfg.DeployedIndexID,
		Queries: []*aiplatformpb.FindNeighborsRequest_Query{{
			Datapoint: &aiplatformpb.IndexDatapoint{
				FeatureVector: vector,
				Restricts:     restricts(collection, filter),
			},
			NeighborCount: int32(topK),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find neighbors: %w", err)
	}

	var neighbors []*aiplatformpb.FindNeighborsResponse_Neighbor
	if nn := resp.GetNearestNeighbors(); len(nn) > 0 {
		neighbors = nn[0].GetNeighbors()
	}

	prefix := collection + "/"
	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		dpID := n.GetDatapoint().GetDatapointId()
		id, ok := strings.CutPrefix(dpID, prefix)
		if !ok || id == "" {
			continue
		}

		data, err := v.content.Get(ctx, v.contentName(collection, id))
		if err != nil {
			v.logger.WarnContext(ctx, "missing content for datapoint",
				slog.String("datapoint_id", dpID),
				slog.String("error", err.Error()),
			)
			continue
		}
		var sc storedContent
		if err := sonic.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("failed to decode content of %s: %w", dpID, err)
		}
		matches = append(matches, Match{
			ID:       id,
			Content:  sc.Content,
			Metadata: sc.Metadata,
			Score:    v.cfg.score(n.GetDistance()),
		})
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return matches, nil
}

// Delete implements [Store].
func (v *VertexSearch) Delete(ctx context.Context, collection string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	dpIDs := make([]string, len(ids))
	for i, id := range ids {
		dpIDs[i] = datapointID(collection, id)
	}
	if _, err := v.index.RemoveDatapoints(ctx, &aiplatformpb.RemoveDatapointsRequest{
		Index:        v.cfg.indexName(),
		DatapointIds: dpIDs,
	}); err != nil {
		return fmt.Errorf("failed to remove datapoints: %w", err)
	}

	var errs []error
	for _, id := range ids {
		if err := v.content.Delete(ctx, v.contentName(collection, id)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Count implements [Store]. Vector Search exposes no per-restrict count.
func (v *VertexSearch) Count(context.Context, string) (int, error) {
	return 0, fmt.Errorf("vertex vector search count: %w", ErrUnsupported)
}

// Close implements [Store].
func (v *VertexSearch) Close() error {
	return errors.Join(v.index.Close(), v.match.Close())
}
