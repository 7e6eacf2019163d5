// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package emulator

import (
	"context"
	"maps"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/sigil-dev/chroma-go/internal/store"
	"github.com/sigil-dev/chroma-go/pkg/chroma"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

// metricKey is the collection metadata key holding the distance function.
const metricKey = "hnsw:space"

// ScopeParams selects the tenant and database a request addresses.
type ScopeParams struct {
	Tenant   string `query:"tenant" default:"default_tenant" doc:"Tenant name"`
	Database string `query:"database" default:"default_database" doc:"Database name"`
}

func (p ScopeParams) scope() store.Scope {
	return store.Scope{Tenant: p.Tenant, Database: p.Database}
}

// CollectionBody is the wire form of a collection.
type CollectionBody struct {
	ID        string         `json:"id" doc:"Collection UUID"`
	Name      string         `json:"name" doc:"Collection name"`
	Metadata  map[string]any `json:"metadata" doc:"Collection metadata including hnsw:space"`
	Dimension *int           `json:"dimension" doc:"Embedding dimension, null until known"`
	Tenant    string         `json:"tenant"`
	Database  string         `json:"database"`
}

type collectionOutput struct {
	Body CollectionBody
}

func toCollectionBody(c *store.Collection) CollectionBody {
	md := make(map[string]any, len(c.Metadata)+1)
	maps.Copy(md, c.Metadata)
	md[metricKey] = c.Metric

	body := CollectionBody{
		ID:       c.ID,
		Name:     c.Name,
		Metadata: md,
		Tenant:   c.Scope.Tenant,
		Database: c.Scope.Database,
	}
	if c.Dimension > 0 {
		dim := c.Dimension
		body.Dimension = &dim
	}
	return body
}

// splitMetric separates hnsw:space from user metadata.
func splitMetric(md map[string]any) (chroma.Metric, map[string]any, error) {
	rest := maps.Clone(md)
	raw, ok := rest[metricKey]
	if !ok {
		return chroma.MetricL2, rest, nil
	}
	delete(rest, metricKey)
	name, isString := raw.(string)
	if !isString {
		return "", nil, badRequest("%s must be a string", metricKey)
	}
	metric, err := chroma.ParseMetric(name)
	if err != nil {
		return "", nil, badRequest("%v", err)
	}
	return metric, rest, nil
}

type heartbeatOutput struct {
	Body struct {
		NanosecondHeartbeat int64 `json:"nanosecond heartbeat"`
	}
}

func (s *Server) heartbeat(context.Context, *struct{}) (*heartbeatOutput, error) {
	out := &heartbeatOutput{}
	out.Body.NanosecondHeartbeat = time.Now().UnixNano()
	return out, nil
}

type versionOutput struct {
	Body string
}

func (s *Server) version(context.Context, *struct{}) (*versionOutput, error) {
	return &versionOutput{Body: Version}, nil
}

type boolOutput struct {
	Body bool
}

func (s *Server) reset(ctx context.Context, _ *struct{}) (*boolOutput, error) {
	if !s.cfg.AllowReset {
		return nil, huma.Error403Forbidden("Resetting is not allowed by this configuration")
	}
	if err := s.store.Reset(ctx); err != nil {
		return nil, s.fail(ctx, err)
	}
	s.logger.InfoContext(ctx, "store reset")
	return &boolOutput{Body: true}, nil
}

type listCollectionsInput struct {
	ScopeParams
	Limit  int `query:"limit" minimum:"0" doc:"Maximum collections to return"`
	Offset int `query:"offset" minimum:"0" doc:"Collections to skip"`
}

type listCollectionsOutput struct {
	Body []CollectionBody
}

func (s *Server) listCollections(ctx context.Context, in *listCollectionsInput) (*listCollectionsOutput, error) {
	cols, err := s.store.ListCollections(ctx, in.scope(), store.ListOpts{Limit: in.Limit, Offset: in.Offset})
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	out := &listCollectionsOutput{Body: make([]CollectionBody, len(cols))}
	for i, c := range cols {
		out.Body[i] = toCollectionBody(c)
	}
	return out, nil
}

type createCollectionInput struct {
	ScopeParams
	Body struct {
		Name        string         `json:"name" doc:"Collection name"`
		Metadata    map[string]any `json:"metadata,omitempty" doc:"Collection metadata; hnsw:space selects the metric"`
		Dimension   int            `json:"dimension,omitempty" doc:"Embedding dimension; fixed by the first write when omitted"`
		GetOrCreate bool           `json:"get_or_create,omitempty" doc:"Return the existing collection instead of failing"`
	}
}

func (s *Server) createCollection(ctx context.Context, in *createCollectionInput) (*collectionOutput, error) {
	body := in.Body
	if err := chroma.ValidateCollectionName(body.Name); err != nil {
		return nil, s.fail(ctx, err)
	}
	if body.Dimension < 0 {
		return nil, badRequest("dimension must not be negative, got %d", body.Dimension)
	}
	metric, metadata, err := splitMetric(body.Metadata)
	if err != nil {
		return nil, err
	}
	scope := in.scope()

	if body.GetOrCreate {
		existing, err := s.store.GetCollection(ctx, scope, body.Name)
		if err == nil {
			return &collectionOutput{Body: toCollectionBody(existing)}, nil
		}
		if !chromaerr.IsNotFound(err) {
			return nil, s.fail(ctx, err)
		}
	}

	c := &store.Collection{
		ID:        uuid.NewString(),
		Name:      body.Name,
		Dimension: body.Dimension,
		Metric:    string(metric),
		Metadata:  metadata,
		Scope:     scope,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateCollection(ctx, c); err != nil {
		if body.GetOrCreate && chromaerr.IsConflict(err) {
			// Lost a race with a concurrent create of the same name.
			if existing, getErr := s.store.GetCollection(ctx, scope, body.Name); getErr == nil {
				return &collectionOutput{Body: toCollectionBody(existing)}, nil
			}
		}
		return nil, s.fail(ctx, err)
	}

	s.logger.InfoContext(ctx, "collection created",
		"collection", c.Name, "id", c.ID, "metric", c.Metric, "dimension", c.Dimension)
	return &collectionOutput{Body: toCollectionBody(c)}, nil
}

type countOutput struct {
	Body int
}

func (s *Server) countCollections(ctx context.Context, in *ScopeParams) (*countOutput, error) {
	n, err := s.store.CountCollections(ctx, in.scope())
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return &countOutput{Body: n}, nil
}

type collectionNameInput struct {
	ScopeParams
	Collection string `path:"collection" doc:"Collection name"`
}

func (s *Server) getCollection(ctx context.Context, in *collectionNameInput) (*collectionOutput, error) {
	c, err := s.store.GetCollection(ctx, in.scope(), in.Collection)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return &collectionOutput{Body: toCollectionBody(c)}, nil
}

func (s *Server) deleteCollection(ctx context.Context, in *collectionNameInput) (*struct{}, error) {
	if err := s.store.DeleteCollection(ctx, in.scope(), in.Collection); err != nil {
		return nil, s.fail(ctx, err)
	}
	s.logger.InfoContext(ctx, "collection deleted", "collection", in.Collection)
	return &struct{}{}, nil
}

type modifyCollectionInput struct {
	Collection string `path:"collection" doc:"Collection ID"`
	Body       struct {
		NewName     string         `json:"new_name,omitempty" doc:"New collection name"`
		NewMetadata map[string]any `json:"new_metadata,omitempty" doc:"Replacement metadata"`
	}
}

func (s *Server) modifyCollection(ctx context.Context, in *modifyCollectionInput) (*struct{}, error) {
	current, err := s.store.GetCollectionByID(ctx, in.Collection)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	if in.Body.NewName != "" {
		if err := chroma.ValidateCollectionName(in.Body.NewName); err != nil {
			return nil, s.fail(ctx, err)
		}
	}

	var metadata map[string]any
	if in.Body.NewMetadata != nil {
		_, hasMetric := in.Body.NewMetadata[metricKey]
		metric, rest, err := splitMetric(in.Body.NewMetadata)
		if err != nil {
			return nil, err
		}
		if hasMetric && string(metric) != current.Metric {
			return nil, badRequest("changing the distance function of a collection once it is created is not supported")
		}
		metadata = rest
	}

	if err := s.store.UpdateCollection(ctx, current.ID, in.Body.NewName, metadata); err != nil {
		return nil, s.fail(ctx, err)
	}
	return &struct{}{}, nil
}
