// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package sqlite is a persistent store backend on SQLite with the sqlite-vec
// extension providing distance functions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/chroma-go/internal/store"
)

func init() {
	sqlite_vec.Auto()
}

// timeLayout is fixed-width so created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and migrates its schema.
// ":memory:" yields a private in-memory database.
func Open(dbPath string) (*Store, error) {
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	if dbPath == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, store.ErrDatabase(err, "opening sqlite db")
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, store.ErrDatabase(err, "pinging sqlite db")
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, store.ErrDatabase(err, "migrating schema")
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS collections (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	tenant     TEXT NOT NULL,
	database   TEXT NOT NULL,
	dimension  INTEGER NOT NULL DEFAULT 0,
	metric     TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL,
	UNIQUE (tenant, database, name)
);
CREATE TABLE IF NOT EXISTS records (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	id            TEXT NOT NULL,
	embedding     BLOB NOT NULL,
	metadata      TEXT,
	document      TEXT,
	UNIQUE (collection_id, id)
);`
	_, err := db.Exec(ddl)
	return err
}

func (s *Store) CreateCollection(ctx context.Context, c *store.Collection) error {
	if err := c.Validate(); err != nil {
		return err
	}
	meta, err := marshalMap(c.Metadata)
	if err != nil {
		return err
	}
	const q = `INSERT INTO collections(id, name, tenant, database, dimension, metric, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q, c.ID, c.Name, c.Scope.Tenant, c.Scope.Database,
		c.Dimension, c.Metric, meta, c.CreatedAt.UTC().Format(timeLayout))
	if isUniqueViolation(err) {
		return store.ErrCollectionExists(c.Name)
	}
	if err != nil {
		return store.ErrDatabase(err, "inserting collection")
	}
	return nil
}

const collectionColumns = `id, name, tenant, database, dimension, metric, metadata, created_at`

func (s *Store) GetCollection(ctx context.Context, scope store.Scope, name string) (*store.Collection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE tenant = ? AND database = ? AND name = ?`,
		scope.Tenant, scope.Database, name)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCollectionNotFound(name)
	}
	return c, err
}

func (s *Store) GetCollectionByID(ctx context.Context, id string) (*store.Collection, error) {
	return getCollectionByID(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getCollectionByID(ctx context.Context, q queryRower, id string) (*store.Collection, error) {
	row := q.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCollectionNotFound(id)
	}
	return c, err
}

func (s *Store) ListCollections(ctx context.Context, scope store.Scope, opts store.ListOpts) ([]*store.Collection, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE tenant = ? AND database = ?
ORDER BY created_at, name LIMIT ? OFFSET ?`,
		scope.Tenant, scope.Database, limit, max(opts.Offset, 0))
	if err != nil {
		return nil, store.ErrDatabase(err, "listing collections")
	}
	defer func() { _ = rows.Close() }()

	var out []*store.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ErrDatabase(err, "iterating collections")
	}
	return out, nil
}

func (s *Store) CountCollections(ctx context.Context, scope store.Scope) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE tenant = ? AND database = ?`,
		scope.Tenant, scope.Database).Scan(&n)
	if err != nil {
		return 0, store.ErrDatabase(err, "counting collections")
	}
	return n, nil
}

func (s *Store) UpdateCollection(ctx context.Context, id, newName string, metadata map[string]any) error {
	if _, err := s.GetCollectionByID(ctx, id); err != nil {
		return err
	}
	if newName != "" {
		_, err := s.db.ExecContext(ctx, `UPDATE collections SET name = ? WHERE id = ?`, newName, id)
		if isUniqueViolation(err) {
			return store.ErrCollectionExists(newName)
		}
		if err != nil {
			return store.ErrDatabase(err, "renaming collection")
		}
	}
	if metadata != nil {
		meta, err := marshalMap(metadata)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE collections SET metadata = ? WHERE id = ?`, meta, id); err != nil {
			return store.ErrDatabase(err, "updating collection metadata")
		}
	}
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, scope store.Scope, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE tenant = ? AND database = ? AND name = ?`,
		scope.Tenant, scope.Database, name)
	if err != nil {
		return store.ErrDatabase(err, "deleting collection")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrCollectionNotFound(name)
	}
	return nil
}

func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections`); err != nil {
		return store.ErrDatabase(err, "resetting")
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(row scanner) (*store.Collection, error) {
	var (
		c       store.Collection
		meta    string
		created string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Scope.Tenant, &c.Scope.Database, &c.Dimension, &c.Metric, &meta, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, store.ErrDatabase(err, "scanning collection")
	}
	if c.Metadata, err = unmarshalMap(meta); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, store.ErrDatabase(err, "parsing created_at")
	}
	return &c, nil
}

func marshalMap(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", store.ErrInvalid("marshalling metadata: %v", err)
	}
	return string(b), nil
}

func unmarshalMap(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, store.ErrDatabase(err, "unmarshalling metadata")
	}
	return m, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
