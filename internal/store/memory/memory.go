// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package memory is an in-process store backend. Nothing survives Close.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/sigil-dev/chroma-go/internal/store"
)

func init() {
	store.RegisterBackend("memory", func(store.Config) (store.Store, error) {
		return New(), nil
	})
}

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type collection struct {
	meta    store.Collection
	records map[string]store.Record
	// order keeps insertion order for Get.
	order []string
}

// Store implements store.Store in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection // by ID
}

// New returns an empty store.
func New() *Store {
	return &Store{collections: map[string]*collection{}}
}

func (s *Store) byName(scope store.Scope, name string) *collection {
	for _, c := range s.collections {
		if c.meta.Scope == scope && c.meta.Name == name {
			return c
		}
	}
	return nil
}

func (s *Store) byID(id string) (*collection, error) {
	c, ok := s.collections[id]
	if !ok {
		return nil, store.ErrCollectionNotFound(id)
	}
	return c, nil
}

func (s *Store) CreateCollection(_ context.Context, c *store.Collection) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byName(c.Scope, c.Name) != nil {
		return store.ErrCollectionExists(c.Name)
	}
	meta := *c
	meta.Metadata = maps.Clone(c.Metadata)
	s.collections[c.ID] = &collection{meta: meta, records: map[string]store.Record{}}
	return nil
}

func (s *Store) GetCollection(_ context.Context, scope store.Scope, name string) (*store.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.byName(scope, name)
	if c == nil {
		return nil, store.ErrCollectionNotFound(name)
	}
	return cloneMeta(c.meta), nil
}

func (s *Store) GetCollectionByID(_ context.Context, id string) (*store.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.byID(id)
	if err != nil {
		return nil, err
	}
	return cloneMeta(c.meta), nil
}

func (s *Store) ListCollections(_ context.Context, scope store.Scope, opts store.ListOpts) ([]*store.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Collection
	for _, c := range s.collections {
		if c.meta.Scope == scope {
			out = append(out, cloneMeta(c.meta))
		}
	}
	slices.SortFunc(out, func(a, b *store.Collection) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return page(out, opts.Offset, opts.Limit), nil
}

func (s *Store) CountCollections(_ context.Context, scope store.Scope) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.collections {
		if c.meta.Scope == scope {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateCollection(_ context.Context, id, newName string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.byID(id)
	if err != nil {
		return err
	}
	if newName != "" && newName != c.meta.Name {
		if s.byName(c.meta.Scope, newName) != nil {
			return store.ErrCollectionExists(newName)
		}
		c.meta.Name = newName
	}
	if metadata != nil {
		c.meta.Metadata = maps.Clone(metadata)
	}
	return nil
}

func (s *Store) DeleteCollection(_ context.Context, scope store.Scope, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byName(scope, name)
	if c == nil {
		return store.ErrCollectionNotFound(name)
	}
	delete(s.collections, c.meta.ID)
	return nil
}

func (s *Store) Add(_ context.Context, collectionID string, records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.byID(collectionID)
	if err != nil {
		return err
	}
	dim, err := store.CheckBatch(&c.meta, records)
	if err != nil {
		return err
	}
	var existing []string
	for _, r := range records {
		if _, ok := c.records[r.ID]; ok {
			existing = append(existing, r.ID)
		}
	}
	if len(existing) > 0 {
		return store.ErrRecordsExist(c.meta.Name, existing)
	}
	c.write(dim, records)
	return nil
}

func (s *Store) Upsert(_ context.Context, collectionID string, records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.byID(collectionID)
	if err != nil {
		return err
	}
	dim, err := store.CheckBatch(&c.meta, records)
	if err != nil {
		return err
	}
	c.write(dim, records)
	return nil
}

func (c *collection) write(dim int, records []store.Record) {
	c.meta.Dimension = dim
	for _, r := range records {
		if _, ok := c.records[r.ID]; !ok {
			c.order = append(c.order, r.ID)
		}
		c.records[r.ID] = cloneRecord(r)
	}
}

func (s *Store) Get(_ context.Context, collectionID string, q store.GetQuery) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.byID(collectionID)
	if err != nil {
		return nil, err
	}
	matched, err := c.selectRecords(q.IDs, q.Filter)
	if err != nil {
		return nil, err
	}
	return page(matched, q.Offset, q.Limit), nil
}

func (s *Store) Delete(_ context.Context, collectionID string, ids []string, filter store.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.byID(collectionID)
	if err != nil {
		return 0, err
	}
	matched, err := c.selectRecords(ids, filter)
	if err != nil {
		return 0, err
	}
	for _, r := range matched {
		delete(c.records, r.ID)
	}
	c.order = slices.DeleteFunc(c.order, func(id string) bool {
		_, ok := c.records[id]
		return !ok
	})
	return len(matched), nil
}

func (s *Store) Count(_ context.Context, collectionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.byID(collectionID)
	if err != nil {
		return 0, err
	}
	return len(c.records), nil
}

func (s *Store) Query(_ context.Context, collectionID string, vectors [][]float32, k int, filter store.Filter) ([][]store.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.byID(collectionID)
	if err != nil {
		return nil, err
	}
	candidates := make([]store.Record, 0, len(c.order))
	for _, id := range c.order {
		candidates = append(candidates, c.records[id])
	}
	return store.Rank(&c.meta, candidates, vectors, k, filter)
}

func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = map[string]*collection{}
	return nil
}

func (s *Store) Close() error { return nil }

// selectRecords returns records in insertion order restricted to ids (when
// given) and filter.
func (c *collection) selectRecords(ids []string, filter store.Filter) ([]store.Record, error) {
	var want map[string]struct{}
	if len(ids) > 0 {
		want = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			want[id] = struct{}{}
		}
	}

	var out []store.Record
	for _, id := range c.order {
		if want != nil {
			if _, ok := want[id]; !ok {
				continue
			}
		}
		r := c.records[id]
		ok, err := filter.Matches(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

func cloneMeta(c store.Collection) *store.Collection {
	c.Metadata = maps.Clone(c.Metadata)
	return &c
}

func cloneRecord(r store.Record) store.Record {
	r.Embedding = slices.Clone(r.Embedding)
	r.Metadata = maps.Clone(r.Metadata)
	if r.Document != nil {
		d := *r.Document
		r.Document = &d
	}
	return r
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
