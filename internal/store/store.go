// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "context"

// Store persists collections and their records for the emulator.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateCollection inserts c, assigning nothing. Fails with a conflict
	// when a collection with the same name exists in c's scope.
	CreateCollection(ctx context.Context, c *Collection) error
	GetCollection(ctx context.Context, scope Scope, name string) (*Collection, error)
	GetCollectionByID(ctx context.Context, id string) (*Collection, error)
	ListCollections(ctx context.Context, scope Scope, opts ListOpts) ([]*Collection, error)
	CountCollections(ctx context.Context, scope Scope) (int, error)
	// UpdateCollection renames and/or replaces metadata. Empty newName and
	// nil metadata leave the respective field unchanged.
	UpdateCollection(ctx context.Context, id, newName string, metadata map[string]any) error
	DeleteCollection(ctx context.Context, scope Scope, name string) error

	// Add inserts records, failing with a conflict if any ID exists.
	Add(ctx context.Context, collectionID string, records []Record) error
	// Upsert inserts records or replaces existing ones.
	Upsert(ctx context.Context, collectionID string, records []Record) error
	Get(ctx context.Context, collectionID string, q GetQuery) ([]Record, error)
	// Delete removes records matching ids and filter, returning the count.
	Delete(ctx context.Context, collectionID string, ids []string, filter Filter) (int, error)
	Count(ctx context.Context, collectionID string) (int, error)
	// Query returns up to k matches per vector, nearest first.
	Query(ctx context.Context, collectionID string, vectors [][]float32, k int, filter Filter) ([][]Match, error)

	// Reset drops every collection in every scope.
	Reset(ctx context.Context) error
	Close() error
}
