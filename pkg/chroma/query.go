// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"context"
	"net/http"
	"slices"
	"strconv"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Query returns the topK nearest records for each vector, one QueryResult
// per input vector in input order. filter may be nil.
//
// Vectors are validated up front; a dimension mismatch yields a
// ValidationError listing every offending vector index. Large queries are
// split into batches that run concurrently over the client's pool.
func (col *Collection) Query(ctx context.Context, vectors [][]float32, topK int, filter Where, opts ...QueryOption) ([]QueryResult, error) {
	var qo queryOptions
	for _, opt := range opts {
		opt(&qo)
	}

	if topK <= 0 {
		return nil, chromaerr.New(chromaerr.CodeQueryValidateInvalid,
			"topK must be positive, got "+strconv.Itoa(topK), chromaerr.FieldCollection(col.Name))
	}
	if err := validateVectors(vectors, col.Dimension, col.Name); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}
	if err := qo.whereDocument.Validate(); err != nil {
		return nil, chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}

	include := queryInclude(qo.include)
	batchSize := col.client.opts.queryBatchSize
	results := make([]QueryResult, len(vectors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(col.client.opts.maxConcurrency)
	for start := 0; start < len(vectors); start += batchSize {
		end := min(start+batchSize, len(vectors))
		g.Go(func() error {
			batch, err := col.queryBatch(gctx, vectors[start:end], topK, filter, qo.whereDocument, include)
			if err != nil {
				return err
			}
			copy(results[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil && !chromaerr.IsCancelled(err) {
			return nil, cancelled(ctx, err)
		}
		return nil, chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}
	return results, nil
}

// QueryTexts embeds texts with the collection's embedding function and
// queries with the resulting vectors.
func (col *Collection) QueryTexts(ctx context.Context, texts []string, topK int, filter Where, opts ...QueryOption) ([]QueryResult, error) {
	if len(texts) == 0 {
		return nil, chromaerr.New(chromaerr.CodeQueryValidateInvalid, "no query texts",
			chromaerr.FieldCollection(col.Name))
	}
	vectors, err := embedTexts(ctx, col.embedder, texts)
	if err != nil {
		return nil, chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}
	return col.Query(ctx, vectors, topK, filter, opts...)
}

func (col *Collection) queryBatch(ctx context.Context, vectors [][]float32, topK int, where Where, whereDoc WhereDocument, include []Include) ([]QueryResult, error) {
	var resp queryResponse
	err := col.client.transport.do(ctx, &request{
		method: http.MethodPost,
		path:   collectionPath(col.ID, "query"),
		route:  "records.query",
		body: queryRequest{
			QueryEmbeddings: vectors,
			NResults:        topK,
			Where:           where,
			WhereDocument:   whereDoc,
			Include:         include,
		},
		out:   &resp,
		codes: recordCodes,
	})
	if err != nil {
		return nil, err
	}
	return mapQueryResponse(resp, len(vectors))
}

// queryInclude always requests distances so matches can be ordered.
func queryInclude(requested []Include) []Include {
	if len(requested) == 0 {
		return defaultQueryInclude
	}
	if slices.Contains(requested, IncludeDistances) {
		return requested
	}
	return append(slices.Clone(requested), IncludeDistances)
}
