// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"context"
	"maps"
	"net/http"
	"strconv"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

// Collection is a handle to a server-side collection. Handles are values
// snapshotted at lookup time; Modify returns a fresh handle rather than
// updating this one.
type Collection struct {
	ID        string
	Name      string
	Dimension int // 0 when the server did not report one
	Metric    Metric
	Metadata  map[string]any
	Tenant    string
	Database  string

	client   *Client
	embedder EmbeddingFunction
}

var collectionCodes = errorCodes{
	notFound: chromaerr.CodeCollectionNotFound,
	conflict: chromaerr.CodeCollectionCreateConflict,
}

// CreateCollection creates a collection and fails with a ConflictError when
// the name is taken.
func (c *Client) CreateCollection(ctx context.Context, name string, dimension int, metric Metric, opts ...CollectionOption) (*Collection, error) {
	return c.createCollection(ctx, name, dimension, metric, false, opts)
}

// GetOrCreateCollection returns the named collection, creating it when absent.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string, dimension int, metric Metric, opts ...CollectionOption) (*Collection, error) {
	return c.createCollection(ctx, name, dimension, metric, true, opts)
}

func (c *Client) createCollection(ctx context.Context, name string, dimension int, metric Metric, getOrCreate bool, opts []CollectionOption) (*Collection, error) {
	var co collectionOptions
	for _, opt := range opts {
		opt(&co)
	}

	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if dimension < 1 {
		return nil, chromaerr.New(chromaerr.CodeCollectionValidateInvalid,
			"dimension must be at least 1, got "+strconv.Itoa(dimension),
			chromaerr.FieldCollection(name))
	}
	if metric == "" {
		metric = MetricL2
	}
	if !metric.Valid() {
		return nil, chromaerr.New(chromaerr.CodeCollectionValidateInvalid,
			"unknown distance metric "+strconv.Quote(string(metric)),
			chromaerr.FieldCollection(name))
	}
	for k, v := range co.metadata {
		if !isScalar(v) {
			return nil, chromaerr.New(chromaerr.CodeCollectionValidateInvalid,
				"collection metadata "+strconv.Quote(k)+" must be a scalar",
				chromaerr.FieldCollection(name))
		}
	}

	metadata := make(map[string]any, len(co.metadata)+1)
	maps.Copy(metadata, co.metadata)
	metadata[metricMetadataKey] = string(metric)

	var wire collectionWire
	err := c.transport.do(ctx, &request{
		method: http.MethodPost,
		path:   collectionPath(),
		route:  "collections.create",
		query:  c.scope(),
		body: createCollectionRequest{
			Name:        name,
			Metadata:    metadata,
			Dimension:   dimension,
			GetOrCreate: getOrCreate,
		},
		out:   &wire,
		codes: collectionCodes,
	})
	if err != nil {
		return nil, chromaerr.With(err, chromaerr.FieldCollection(name))
	}
	return c.collectionFromWire(wire, dimension, co.embedder), nil
}

// GetCollection looks up a collection by name; absent yields a NotFoundError.
func (c *Client) GetCollection(ctx context.Context, name string, opts ...CollectionOption) (*Collection, error) {
	var co collectionOptions
	for _, opt := range opts {
		opt(&co)
	}
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}

	var wire collectionWire
	err := c.transport.do(ctx, &request{
		method: http.MethodGet,
		path:   collectionPath(name),
		route:  "collections.get",
		query:  c.scope(),
		out:    &wire,
		codes:  collectionCodes,
	})
	if err != nil {
		return nil, chromaerr.With(err, chromaerr.FieldCollection(name))
	}
	return c.collectionFromWire(wire, 0, co.embedder), nil
}

// ListCollections returns collections in server order. Non-positive limit
// and offset are not sent.
func (c *Client) ListCollections(ctx context.Context, limit, offset int) ([]*Collection, error) {
	q := c.scope()
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var wire []collectionWire
	err := c.transport.do(ctx, &request{
		method: http.MethodGet,
		path:   collectionPath(),
		route:  "collections.list",
		query:  q,
		out:    &wire,
		codes:  collectionCodes,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Collection, len(wire))
	for i, w := range wire {
		out[i] = c.collectionFromWire(w, 0, nil)
	}
	return out, nil
}

// CountCollections returns the number of collections in the database.
func (c *Client) CountCollections(ctx context.Context) (int, error) {
	var n int
	err := c.transport.do(ctx, &request{
		method: http.MethodGet,
		path:   apiPrefix + "/count_collections",
		route:  "collections.count",
		query:  c.scope(),
		out:    &n,
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteCollection removes a collection. A missing collection is a no-op in
// idempotent mode (the default) and a NotFoundError otherwise.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	err := c.transport.do(ctx, &request{
		method: http.MethodDelete,
		path:   collectionPath(name),
		route:  "collections.delete",
		query:  c.scope(),
		codes:  collectionCodes,
	})
	if err == nil {
		return nil
	}
	if chromaerr.IsNotFound(err) && c.opts.idempotentDelete {
		c.transport.logger.DebugContext(ctx, "collection already absent", "collection", name)
		return nil
	}
	return chromaerr.With(err, chromaerr.FieldCollection(name))
}

// Modify renames the collection and/or replaces its metadata, returning an
// updated handle. An empty newName keeps the name; nil metadata keeps it.
func (col *Collection) Modify(ctx context.Context, newName string, metadata map[string]any) (*Collection, error) {
	if newName != "" {
		if err := ValidateCollectionName(newName); err != nil {
			return nil, err
		}
	}
	for k, v := range metadata {
		if !isScalar(v) {
			return nil, chromaerr.New(chromaerr.CodeCollectionValidateInvalid,
				"collection metadata "+strconv.Quote(k)+" must be a scalar",
				chromaerr.FieldCollection(col.Name))
		}
	}

	var newMetadata map[string]any
	if metadata != nil {
		newMetadata = make(map[string]any, len(metadata)+1)
		maps.Copy(newMetadata, metadata)
		newMetadata[metricMetadataKey] = string(col.Metric)
	}

	err := col.client.transport.do(ctx, &request{
		method: http.MethodPut,
		path:   collectionPath(col.ID),
		route:  "collections.modify",
		body:   modifyCollectionRequest{NewName: newName, NewMetadata: newMetadata},
		codes:  collectionCodes,
	})
	if err != nil {
		return nil, chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}

	updated := *col
	if newName != "" {
		updated.Name = newName
	}
	if metadata != nil {
		updated.Metadata = maps.Clone(metadata)
	}
	return &updated, nil
}

// WithEmbedder returns a copy of the handle that embeds documents and query
// texts with fn.
func (col *Collection) WithEmbedder(fn EmbeddingFunction) *Collection {
	cp := *col
	cp.embedder = fn
	return &cp
}

func (c *Client) collectionFromWire(w collectionWire, requestedDim int, embedder EmbeddingFunction) *Collection {
	col := &Collection{
		ID:       w.ID,
		Name:     w.Name,
		Metric:   MetricL2,
		Tenant:   w.Tenant,
		Database: w.Database,
		client:   c,
		embedder: embedder,
	}
	if col.Tenant == "" {
		col.Tenant = c.opts.tenant
	}
	if col.Database == "" {
		col.Database = c.opts.database
	}

	switch {
	case w.Dimension != nil:
		col.Dimension = *w.Dimension
	default:
		col.Dimension = requestedDim
	}

	if len(w.Metadata) > 0 {
		col.Metadata = make(map[string]any, len(w.Metadata))
		for k, v := range w.Metadata {
			if k == metricMetadataKey {
				if s, ok := v.(string); ok {
					if m, err := ParseMetric(s); err == nil {
						col.Metric = m
					}
				}
				continue
			}
			col.Metadata[k] = v
		}
	}
	return col
}
