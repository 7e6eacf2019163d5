// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"math"
	"slices"
)

// Validate checks that the Collection has all required fields set correctly.
func (c Collection) Validate() error {
	if c.ID == "" {
		return ErrInvalid("collection: ID is required")
	}
	if c.Name == "" {
		return ErrInvalid("collection: Name is required")
	}
	if c.Dimension < 0 {
		return ErrInvalid("collection: Dimension must be >= 0, got %d", c.Dimension)
	}
	if !slices.Contains([]string{"l2", "cosine", "ip"}, c.Metric) {
		return ErrInvalid("collection: invalid metric %q", c.Metric)
	}
	if c.Scope.Tenant == "" || c.Scope.Database == "" {
		return ErrInvalid("collection: tenant and database are required")
	}
	return nil
}

// CheckBatch validates records against the collection and returns the
// dimension the batch establishes. A collection without a dimension adopts
// the first record's.
func CheckBatch(c *Collection, records []Record) (int, error) {
	if len(records) == 0 {
		return c.Dimension, ErrInvalid("no records given")
	}
	dim := c.Dimension
	if dim == 0 {
		dim = len(records[0].Embedding)
	}

	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if r.ID == "" {
			return 0, ErrInvalid("record %d: ID is required", i)
		}
		if _, dup := seen[r.ID]; dup {
			return 0, ErrInvalid("record %d: duplicate ID %q in batch", i, r.ID)
		}
		seen[r.ID] = struct{}{}
		if err := CheckVector(r.Embedding, dim); err != nil {
			return 0, ErrInvalid("record %d (%s): %v", i, r.ID, err)
		}
	}
	return dim, nil
}

// CheckVector validates one embedding against dim.
func CheckVector(v []float32, dim int) error {
	if len(v) == 0 {
		return ErrInvalid("embedding is empty")
	}
	if len(v) != dim {
		return ErrInvalid("Embedding dimension %d does not match collection dimensionality %d", len(v), dim)
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return ErrInvalid("embedding has a non-finite component")
		}
	}
	return nil
}
