// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"cmp"
	"slices"

	"github.com/sigil-dev/chroma-go/internal/distance"
)

// Rank scores candidates against each vector with the collection's metric
// and keeps the k nearest, ties broken by ID. Backends without native
// search, or facing filters they cannot push down, use this.
func Rank(c *Collection, candidates []Record, vectors [][]float32, k int, filter Filter) ([][]Match, error) {
	fn, err := distance.Provider(c.Metric)
	if err != nil {
		return nil, ErrInvalid("%v", err)
	}
	for i, v := range vectors {
		if c.Dimension > 0 {
			if err := CheckVector(v, c.Dimension); err != nil {
				return nil, ErrInvalid("query vector %d: %v", i, err)
			}
		}
	}

	eligible := candidates
	if !filter.Empty() {
		eligible = make([]Record, 0, len(candidates))
		for _, r := range candidates {
			ok, err := filter.Matches(r)
			if err != nil {
				return nil, err
			}
			if ok {
				eligible = append(eligible, r)
			}
		}
	}

	out := make([][]Match, len(vectors))
	for i, v := range vectors {
		matches := make([]Match, 0, len(eligible))
		for _, r := range eligible {
			if len(r.Embedding) != len(v) {
				continue
			}
			matches = append(matches, Match{Record: r, Distance: fn(v, r.Embedding)})
		}
		slices.SortFunc(matches, func(a, b Match) int {
			if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		if len(matches) > k {
			matches = matches[:k]
		}
		out[i] = matches
	}
	return out, nil
}
