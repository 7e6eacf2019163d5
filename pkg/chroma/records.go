// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"context"
	"net/http"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

var recordCodes = errorCodes{
	notFound: chromaerr.CodeCollectionNotFound,
	conflict: chromaerr.CodeRecordAddConflict,
}

// GetOptions selects records for Collection.Get. With no IDs and no filters
// every record is returned, subject to Limit and Offset.
type GetOptions struct {
	IDs           []string
	Where         Where
	WhereDocument WhereDocument
	Limit         int
	Offset        int
	Include       []Include
}

// Upsert inserts records or overwrites those whose IDs already exist.
//
// The whole batch is validated before anything is sent; on failure the
// returned ValidationError lists every offending index (see errors.Indices)
// and the server is not contacted.
func (col *Collection) Upsert(ctx context.Context, records []Record) error {
	return col.write(ctx, "upsert", records)
}

// Add inserts records. IDs that already exist fail with a ConflictError.
func (col *Collection) Add(ctx context.Context, records []Record) error {
	return col.write(ctx, "add", records)
}

func (col *Collection) write(ctx context.Context, op string, records []Record) error {
	prepared, err := embedMissing(ctx, col.embedder, records)
	if err != nil {
		return chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}
	if err := validateRecords(prepared, col.Dimension, col.Name); err != nil {
		return err
	}

	// A lost add response cannot be replayed: the retry would report the
	// committed ids as duplicates.
	err = col.client.transport.do(ctx, &request{
		method:   http.MethodPost,
		path:     collectionPath(col.ID, op),
		route:    "records." + op,
		body:     encodeRecords(prepared),
		codes:    recordCodes,
		noReplay: op == "add",
	})
	if err != nil {
		return chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}
	return nil
}

// Get fetches records by ID and/or filter.
func (col *Collection) Get(ctx context.Context, opts GetOptions) (GetResult, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return GetResult{}, chromaerr.New(chromaerr.CodeQueryValidateInvalid,
			"limit and offset must not be negative", chromaerr.FieldCollection(col.Name))
	}
	if err := opts.Where.Validate(); err != nil {
		return GetResult{}, chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}
	if err := opts.WhereDocument.Validate(); err != nil {
		return GetResult{}, chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}
	include := opts.Include
	if len(include) == 0 {
		include = defaultGetInclude
	}

	var resp getResponse
	err := col.client.transport.do(ctx, &request{
		method: http.MethodPost,
		path:   collectionPath(col.ID, "get"),
		route:  "records.get",
		body: getRequest{
			IDs:           opts.IDs,
			Where:         opts.Where,
			WhereDocument: opts.WhereDocument,
			Limit:         opts.Limit,
			Offset:        opts.Offset,
			Include:       include,
		},
		out:   &resp,
		codes: recordCodes,
	})
	if err != nil {
		return GetResult{}, chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}
	return mapGetResponse(resp)
}

// Delete removes records by ID and/or metadata filter. Passing neither is a
// ValidationError rather than a request to empty the collection.
func (col *Collection) Delete(ctx context.Context, ids []string, where Where) error {
	if len(ids) == 0 && len(where) == 0 {
		return chromaerr.New(chromaerr.CodeRecordValidateInvalid,
			"delete needs ids or a where filter", chromaerr.FieldCollection(col.Name))
	}
	if err := where.Validate(); err != nil {
		return chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}

	err := col.client.transport.do(ctx, &request{
		method: http.MethodPost,
		path:   collectionPath(col.ID, "delete"),
		route:  "records.delete",
		body:   deleteRequest{IDs: ids, Where: where},
		codes:  recordCodes,
	})
	if err != nil {
		return chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}
	return nil
}

// Count returns the number of records in the collection.
func (col *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := col.client.transport.do(ctx, &request{
		method: http.MethodGet,
		path:   collectionPath(col.ID, "count"),
		route:  "records.count",
		out:    &n,
		codes:  recordCodes,
	})
	if err != nil {
		return 0, chromaerr.With(err, chromaerr.FieldCollection(col.Name))
	}
	return n, nil
}
