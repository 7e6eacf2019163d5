// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package emulator

import (
	"context"
	"slices"

	"github.com/sigil-dev/chroma-go/internal/store"
	"github.com/sigil-dev/chroma-go/pkg/chroma"
)

const (
	includeEmbeddings = "embeddings"
	includeMetadatas  = "metadatas"
	includeDocuments  = "documents"
	includeDistances  = "distances"
)

var (
	defaultGetInclude   = []string{includeMetadatas, includeDocuments}
	defaultQueryInclude = []string{includeMetadatas, includeDocuments, includeDistances}
)

// CollectionIDParam addresses a collection by its UUID.
type CollectionIDParam struct {
	Collection string `path:"collection" doc:"Collection ID"`
}

type writeRecordsInput struct {
	CollectionIDParam
	Body struct {
		IDs        []string         `json:"ids" doc:"Record IDs"`
		Embeddings [][]float32      `json:"embeddings" doc:"One embedding per ID"`
		Metadatas  []map[string]any `json:"metadatas,omitempty" doc:"Optional metadata per ID"`
		Documents  []*string        `json:"documents,omitempty" doc:"Optional document per ID"`
	}
}

func (in *writeRecordsInput) records() ([]store.Record, error) {
	b := in.Body
	n := len(b.IDs)
	if n == 0 {
		return nil, badRequest("no ids given")
	}
	if len(b.Embeddings) != n {
		return nil, badRequest("got %d embeddings for %d ids; this server does not compute embeddings", len(b.Embeddings), n)
	}
	if b.Metadatas != nil && len(b.Metadatas) != n {
		return nil, badRequest("got %d metadatas for %d ids", len(b.Metadatas), n)
	}
	if b.Documents != nil && len(b.Documents) != n {
		return nil, badRequest("got %d documents for %d ids", len(b.Documents), n)
	}

	records := make([]store.Record, n)
	for i, id := range b.IDs {
		r := store.Record{ID: id, Embedding: b.Embeddings[i]}
		if b.Metadatas != nil {
			r.Metadata = b.Metadatas[i]
		}
		if b.Documents != nil {
			r.Document = b.Documents[i]
		}
		records[i] = r
	}
	return records, nil
}

func (s *Server) addRecords(ctx context.Context, in *writeRecordsInput) (*boolOutput, error) {
	records, err := in.records()
	if err != nil {
		return nil, err
	}
	if err := s.store.Add(ctx, in.Collection, records); err != nil {
		return nil, s.fail(ctx, err)
	}
	return &boolOutput{Body: true}, nil
}

func (s *Server) upsertRecords(ctx context.Context, in *writeRecordsInput) (*boolOutput, error) {
	records, err := in.records()
	if err != nil {
		return nil, err
	}
	if err := s.store.Upsert(ctx, in.Collection, records); err != nil {
		return nil, s.fail(ctx, err)
	}
	return &boolOutput{Body: true}, nil
}

func parseFilter(where, whereDocument map[string]any) (store.Filter, error) {
	if err := chroma.Where(where).Validate(); err != nil {
		return store.Filter{}, badRequest("%v", err)
	}
	if err := chroma.WhereDocument(whereDocument).Validate(); err != nil {
		return store.Filter{}, badRequest("%v", err)
	}
	return store.Filter{Where: where, WhereDocument: whereDocument}, nil
}

func parseInclude(include, defaults []string, allowDistances bool) ([]string, error) {
	if include == nil {
		return defaults, nil
	}
	for _, f := range include {
		switch f {
		case includeEmbeddings, includeMetadatas, includeDocuments:
		case includeDistances:
			if !allowDistances {
				return nil, badRequest("include %q is only valid for queries", f)
			}
		default:
			return nil, badRequest("unknown include field %q", f)
		}
	}
	return include, nil
}

type getRecordsInput struct {
	CollectionIDParam
	Body struct {
		IDs           []string       `json:"ids,omitempty"`
		Where         map[string]any `json:"where,omitempty"`
		WhereDocument map[string]any `json:"where_document,omitempty"`
		Limit         int            `json:"limit,omitempty"`
		Offset        int            `json:"offset,omitempty"`
		Include       []string       `json:"include,omitempty"`
	}
}

// GetRecordsBody is the columnar get response. Columns not included are null.
type GetRecordsBody struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas"`
	Documents  []*string        `json:"documents"`
}

type getRecordsOutput struct {
	Body GetRecordsBody
}

func (s *Server) getRecords(ctx context.Context, in *getRecordsInput) (*getRecordsOutput, error) {
	b := in.Body
	if b.Limit < 0 || b.Offset < 0 {
		return nil, badRequest("limit and offset must not be negative")
	}
	filter, err := parseFilter(b.Where, b.WhereDocument)
	if err != nil {
		return nil, err
	}
	include, err := parseInclude(b.Include, defaultGetInclude, false)
	if err != nil {
		return nil, err
	}

	recs, err := s.store.Get(ctx, in.Collection, store.GetQuery{
		IDs:    b.IDs,
		Filter: filter,
		Limit:  b.Limit,
		Offset: b.Offset,
	})
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	body := GetRecordsBody{IDs: make([]string, len(recs))}
	if slices.Contains(include, includeEmbeddings) {
		body.Embeddings = make([][]float32, len(recs))
	}
	if slices.Contains(include, includeMetadatas) {
		body.Metadatas = make([]map[string]any, len(recs))
	}
	if slices.Contains(include, includeDocuments) {
		body.Documents = make([]*string, len(recs))
	}
	for i, r := range recs {
		body.IDs[i] = r.ID
		if body.Embeddings != nil {
			body.Embeddings[i] = r.Embedding
		}
		if body.Metadatas != nil {
			body.Metadatas[i] = r.Metadata
		}
		if body.Documents != nil {
			body.Documents[i] = r.Document
		}
	}
	return &getRecordsOutput{Body: body}, nil
}

type deleteRecordsInput struct {
	CollectionIDParam
	Body struct {
		IDs           []string       `json:"ids,omitempty"`
		Where         map[string]any `json:"where,omitempty"`
		WhereDocument map[string]any `json:"where_document,omitempty"`
	}
}

func (s *Server) deleteRecords(ctx context.Context, in *deleteRecordsInput) (*struct{}, error) {
	b := in.Body
	filter, err := parseFilter(b.Where, b.WhereDocument)
	if err != nil {
		return nil, err
	}
	if len(b.IDs) == 0 && filter.Empty() {
		return nil, badRequest("delete needs ids, where or where_document")
	}
	n, err := s.store.Delete(ctx, in.Collection, b.IDs, filter)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	s.logger.DebugContext(ctx, "records deleted", "collection_id", in.Collection, "count", n)
	return &struct{}{}, nil
}

func (s *Server) countRecords(ctx context.Context, in *CollectionIDParam) (*countOutput, error) {
	n, err := s.store.Count(ctx, in.Collection)
	if err != nil {
		return nil, s.fail(ctx, err)
	}
	return &countOutput{Body: n}, nil
}

type queryRecordsInput struct {
	CollectionIDParam
	Body struct {
		QueryEmbeddings [][]float32    `json:"query_embeddings"`
		NResults        int            `json:"n_results,omitempty"`
		Where           map[string]any `json:"where,omitempty"`
		WhereDocument   map[string]any `json:"where_document,omitempty"`
		Include         []string       `json:"include,omitempty"`
	}
}

// QueryRecordsBody is the columnar query response, one row per query vector.
type QueryRecordsBody struct {
	IDs        [][]string         `json:"ids"`
	Distances  [][]float64        `json:"distances"`
	Metadatas  [][]map[string]any `json:"metadatas"`
	Documents  [][]*string        `json:"documents"`
	Embeddings [][][]float32      `json:"embeddings"`
}

type queryRecordsOutput struct {
	Body QueryRecordsBody
}

func (s *Server) queryRecords(ctx context.Context, in *queryRecordsInput) (*queryRecordsOutput, error) {
	b := in.Body
	if len(b.QueryEmbeddings) == 0 {
		return nil, badRequest("query_embeddings must not be empty")
	}
	k := b.NResults
	if k == 0 {
		k = 10
	}
	if k < 0 {
		return nil, badRequest("n_results must be positive, got %d", k)
	}
	filter, err := parseFilter(b.Where, b.WhereDocument)
	if err != nil {
		return nil, err
	}
	include, err := parseInclude(b.Include, defaultQueryInclude, true)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.Query(ctx, in.Collection, b.QueryEmbeddings, k, filter)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	n := len(rows)
	body := QueryRecordsBody{IDs: make([][]string, n)}
	if slices.Contains(include, includeDistances) {
		body.Distances = make([][]float64, n)
	}
	if slices.Contains(include, includeMetadatas) {
		body.Metadatas = make([][]map[string]any, n)
	}
	if slices.Contains(include, includeDocuments) {
		body.Documents = make([][]*string, n)
	}
	if slices.Contains(include, includeEmbeddings) {
		body.Embeddings = make([][][]float32, n)
	}
	for q, matches := range rows {
		body.IDs[q] = make([]string, len(matches))
		if body.Distances != nil {
			body.Distances[q] = make([]float64, len(matches))
		}
		if body.Metadatas != nil {
			body.Metadatas[q] = make([]map[string]any, len(matches))
		}
		if body.Documents != nil {
			body.Documents[q] = make([]*string, len(matches))
		}
		if body.Embeddings != nil {
			body.Embeddings[q] = make([][]float32, len(matches))
		}
		for i, m := range matches {
			body.IDs[q][i] = m.ID
			if body.Distances != nil {
				body.Distances[q][i] = m.Distance
			}
			if body.Metadatas != nil {
				body.Metadatas[q][i] = m.Metadata
			}
			if body.Documents != nil {
				body.Documents[q][i] = m.Document
			}
			if body.Embeddings != nil {
				body.Embeddings[q][i] = m.Embedding
			}
		}
	}
	return &queryRecordsOutput{Body: body}, nil
}
