// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import "time"

// Scope is the tenant/database pair collections live in.
type Scope struct {
	Tenant   string
	Database string
}

// Collection is a stored collection's descriptor.
type Collection struct {
	ID   string
	Name string
	// Dimension is 0 until fixed by creation or the first write.
	Dimension int
	Metric    string
	Metadata  map[string]any
	Scope     Scope
	CreatedAt time.Time
}

// Record is one stored embedding.
type Record struct {
	ID        string
	Embedding []float32
	Metadata  map[string]any
	Document  *string
}

// Match is a record ranked against a query vector.
type Match struct {
	Record
	Distance float64
}

// Filter restricts records by metadata (Where) and document (WhereDocument)
// using Chroma's operator syntax. Empty filters match everything.
type Filter struct {
	Where         map[string]any
	WhereDocument map[string]any
}

// Empty reports whether the filter matches every record.
func (f Filter) Empty() bool {
	return len(f.Where) == 0 && len(f.WhereDocument) == 0
}

// GetQuery selects records for Store.Get. Records come back in insertion order.
type GetQuery struct {
	IDs    []string
	Filter Filter
	Limit  int
	Offset int
}

// ListOpts pages collection listings.
type ListOpts struct {
	Limit  int
	Offset int
}
