// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/sigil-dev/chroma-go/internal/store"
)

// nativeDistance maps metrics to sqlite-vec scalar functions. ip has no
// sqlite-vec equivalent and is ranked in Go.
var nativeDistance = map[string]string{
	"l2":     "vec_distance_l2",
	"cosine": "vec_distance_cosine",
}

func (s *Store) Add(ctx context.Context, collectionID string, records []store.Record) error {
	return s.write(ctx, collectionID, records, false)
}

func (s *Store) Upsert(ctx context.Context, collectionID string, records []store.Record) error {
	return s.write(ctx, collectionID, records, true)
}

func (s *Store) write(ctx context.Context, collectionID string, records []store.Record, upsert bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.ErrDatabase(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	col, err := getCollectionByID(ctx, tx, collectionID)
	if err != nil {
		return err
	}
	dim, err := store.CheckBatch(col, records)
	if err != nil {
		return err
	}

	if !upsert {
		existing, err := existingIDs(ctx, tx, collectionID, records)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return store.ErrRecordsExist(col.Name, existing)
		}
	}

	if col.Dimension == 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimension = ? WHERE id = ?`, dim, collectionID); err != nil {
			return store.ErrDatabase(err, "fixing collection dimension")
		}
	}

	// Upserts keep the original seq so Get stays in first-insertion order.
	const q = `INSERT INTO records(collection_id, id, embedding, metadata, document) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(collection_id, id) DO UPDATE SET
	embedding = excluded.embedding,
	metadata = excluded.metadata,
	document = excluded.document`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return store.ErrDatabase(err, "preparing record insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		blob, err := sqlite_vec.SerializeFloat32(r.Embedding)
		if err != nil {
			return store.ErrDatabase(err, "serializing embedding")
		}
		var meta sql.NullString
		if r.Metadata != nil {
			m, err := marshalMap(r.Metadata)
			if err != nil {
				return err
			}
			meta = sql.NullString{String: m, Valid: true}
		}
		var doc sql.NullString
		if r.Document != nil {
			doc = sql.NullString{String: *r.Document, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, collectionID, r.ID, blob, meta, doc); err != nil {
			return store.ErrDatabase(err, "writing record "+r.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.ErrDatabase(err, "committing records")
	}
	return nil
}

func existingIDs(ctx context.Context, tx *sql.Tx, collectionID string, records []store.Record) ([]string, error) {
	args := make([]any, 0, len(records)+1)
	args = append(args, collectionID)
	for _, r := range records {
		args = append(args, r.ID)
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM records WHERE collection_id = ? AND id IN (`+placeholders(len(records))+`) ORDER BY seq`, args...)
	if err != nil {
		return nil, store.ErrDatabase(err, "checking existing records")
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, store.ErrDatabase(err, "scanning record id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Get(ctx context.Context, collectionID string, q store.GetQuery) ([]store.Record, error) {
	if _, err := s.GetCollectionByID(ctx, collectionID); err != nil {
		return nil, err
	}
	matched, err := selectRecords(ctx, s.db, collectionID, q.IDs, q.Filter)
	if err != nil {
		return nil, err
	}
	if q.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (s *Store) Delete(ctx context.Context, collectionID string, ids []string, filter store.Filter) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, store.ErrDatabase(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := getCollectionByID(ctx, tx, collectionID); err != nil {
		return 0, err
	}
	matched, err := selectRecords(ctx, tx, collectionID, ids, filter)
	if err != nil || len(matched) == 0 {
		return 0, err
	}

	args := make([]any, 0, len(matched)+1)
	args = append(args, collectionID)
	for _, r := range matched {
		args = append(args, r.ID)
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM records WHERE collection_id = ? AND id IN (`+placeholders(len(matched))+`)`, args...)
	if err != nil {
		return 0, store.ErrDatabase(err, "deleting records")
	}
	if err := tx.Commit(); err != nil {
		return 0, store.ErrDatabase(err, "committing delete")
	}
	return len(matched), nil
}

func (s *Store) Count(ctx context.Context, collectionID string) (int, error) {
	if _, err := s.GetCollectionByID(ctx, collectionID); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection_id = ?`, collectionID).Scan(&n); err != nil {
		return 0, store.ErrDatabase(err, "counting records")
	}
	return n, nil
}

// Query ranks with sqlite-vec when the metric has a native function and no
// filter applies; otherwise it loads candidates and ranks in Go.
func (s *Store) Query(ctx context.Context, collectionID string, vectors [][]float32, k int, filter store.Filter) ([][]store.Match, error) {
	col, err := s.GetCollectionByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	fn, native := nativeDistance[col.Metric]
	if !native || !filter.Empty() || col.Dimension == 0 {
		candidates, err := selectRecords(ctx, s.db, collectionID, nil, store.Filter{})
		if err != nil {
			return nil, err
		}
		return store.Rank(col, candidates, vectors, k, filter)
	}

	out := make([][]store.Match, len(vectors))
	for i, v := range vectors {
		if err := store.CheckVector(v, col.Dimension); err != nil {
			return nil, store.ErrInvalid("query vector %d: %v", i, err)
		}
		matches, err := s.nativeSearch(ctx, fn, col, v, k)
		if err != nil {
			return nil, err
		}
		out[i] = matches
	}
	return out, nil
}

func (s *Store) nativeSearch(ctx context.Context, fn string, col *store.Collection, v []float32, k int) ([]store.Match, error) {
	blob, err := sqlite_vec.SerializeFloat32(v)
	if err != nil {
		return nil, store.ErrDatabase(err, "serializing query vector")
	}

	// vec_distance_cosine is NULL for a zero-norm vector; Go ranking puts
	// such records at distance 1.
	q := `SELECT id, embedding, metadata, document, COALESCE(` + fn + `(embedding, ?), 1.0) AS distance
FROM records
WHERE collection_id = ?
ORDER BY distance, id
LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, blob, col.ID, k)
	if err != nil {
		return nil, store.ErrDatabase(err, "searching records")
	}
	defer func() { _ = rows.Close() }()

	var matches []store.Match
	for rows.Next() {
		var m store.Match
		var d float64
		if err := scanRecord(rows, &m.Record, &d); err != nil {
			return nil, err
		}
		m.Distance = d
		if col.Metric == "l2" {
			// vec_distance_l2 is Euclidean; collections rank by its square.
			m.Distance = d * d
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ErrDatabase(err, "iterating search results")
	}
	return matches, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func selectRecords(ctx context.Context, db queryer, collectionID string, ids []string, filter store.Filter) ([]store.Record, error) {
	q := `SELECT id, embedding, metadata, document FROM records WHERE collection_id = ?`
	args := []any{collectionID}
	if len(ids) > 0 {
		q += ` AND id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	q += ` ORDER BY seq`

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, store.ErrDatabase(err, "selecting records")
	}
	defer func() { _ = rows.Close() }()

	var out []store.Record
	for rows.Next() {
		var r store.Record
		if err := scanRecord(rows, &r); err != nil {
			return nil, err
		}
		ok, err := filter.Matches(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, store.ErrDatabase(err, "iterating records")
	}
	return out, nil
}

func scanRecord(rows *sql.Rows, r *store.Record, extra ...any) error {
	var (
		blob []byte
		meta sql.NullString
		doc  sql.NullString
	)
	dest := append([]any{&r.ID, &blob, &meta, &doc}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return store.ErrDatabase(err, "scanning record")
	}
	r.Embedding = deserializeFloat32(blob)
	if meta.Valid {
		m, err := unmarshalMap(meta.String)
		if err != nil {
			return err
		}
		if m == nil {
			m = map[string]any{}
		}
		r.Metadata = m
	}
	if doc.Valid {
		d := doc.String
		r.Document = &d
	}
	return nil
}

// deserializeFloat32 reverses sqlite_vec.SerializeFloat32 (little-endian
// float32s).
func deserializeFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
