// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"cmp"
	"fmt"
	"slices"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

// mapQueryResponse converts the columnar query response into one result per
// query vector. Each row is stably ordered by ascending distance.
func mapQueryResponse(resp queryResponse, queries int) ([]QueryResult, error) {
	if len(resp.IDs) != queries {
		return nil, malformed("query returned %d result rows for %d query vectors", len(resp.IDs), queries)
	}
	// Columns that were not included come back null or empty.
	if len(resp.Distances) == 0 {
		resp.Distances = nil
	}
	if len(resp.Metadatas) == 0 {
		resp.Metadatas = nil
	}
	if len(resp.Documents) == 0 {
		resp.Documents = nil
	}
	if len(resp.Embeddings) == 0 {
		resp.Embeddings = nil
	}
	if err := checkRows("distances", len(resp.Distances), queries); err != nil {
		return nil, err
	}
	if err := checkRows("metadatas", len(resp.Metadatas), queries); err != nil {
		return nil, err
	}
	if err := checkRows("documents", len(resp.Documents), queries); err != nil {
		return nil, err
	}
	if err := checkRows("embeddings", len(resp.Embeddings), queries); err != nil {
		return nil, err
	}

	results := make([]QueryResult, queries)
	for q, ids := range resp.IDs {
		n := len(ids)
		if err := checkColumn(q, "distances", resp.Distances, n); err != nil {
			return nil, err
		}
		if err := checkColumn(q, "metadatas", resp.Metadatas, n); err != nil {
			return nil, err
		}
		if err := checkColumn(q, "documents", resp.Documents, n); err != nil {
			return nil, err
		}
		if err := checkColumn(q, "embeddings", resp.Embeddings, n); err != nil {
			return nil, err
		}

		matches := make([]Match, n)
		for i, id := range ids {
			m := Match{ID: id}
			if resp.Distances != nil {
				m.Distance = resp.Distances[q][i]
			}
			if resp.Metadatas != nil {
				m.Metadata = resp.Metadatas[q][i]
			}
			if resp.Documents != nil {
				m.Document = resp.Documents[q][i]
			}
			if resp.Embeddings != nil {
				m.Embedding = resp.Embeddings[q][i]
			}
			matches[i] = m
		}
		slices.SortStableFunc(matches, func(a, b Match) int {
			return cmp.Compare(a.Distance, b.Distance)
		})
		results[q] = QueryResult{Matches: matches}
	}
	return results, nil
}

// mapGetResponse converts the columnar get response into records.
func mapGetResponse(resp getResponse) (GetResult, error) {
	n := len(resp.IDs)
	if len(resp.Embeddings) == 0 {
		resp.Embeddings = nil
	}
	if len(resp.Metadatas) == 0 {
		resp.Metadatas = nil
	}
	if len(resp.Documents) == 0 {
		resp.Documents = nil
	}
	if resp.Embeddings != nil && len(resp.Embeddings) != n {
		return GetResult{}, malformed("get returned %d embeddings for %d ids", len(resp.Embeddings), n)
	}
	if resp.Metadatas != nil && len(resp.Metadatas) != n {
		return GetResult{}, malformed("get returned %d metadatas for %d ids", len(resp.Metadatas), n)
	}
	if resp.Documents != nil && len(resp.Documents) != n {
		return GetResult{}, malformed("get returned %d documents for %d ids", len(resp.Documents), n)
	}

	records := make([]Record, n)
	for i, id := range resp.IDs {
		r := Record{ID: id}
		if resp.Embeddings != nil {
			r.Embedding = resp.Embeddings[i]
		}
		if resp.Metadatas != nil {
			r.Metadata = resp.Metadatas[i]
		}
		if resp.Documents != nil {
			r.Document = resp.Documents[i]
		}
		records[i] = r
	}
	return GetResult{Records: records}, nil
}

func checkRows(name string, rows, queries int) error {
	if rows != 0 && rows != queries {
		return malformed("query returned %d %s rows for %d query vectors", rows, name, queries)
	}
	return nil
}

func checkColumn[T any](q int, name string, col [][]T, n int) error {
	if col == nil {
		return nil
	}
	if len(col[q]) != n {
		return malformed("query row %d has %d %s for %d ids", q, len(col[q]), name, n)
	}
	return nil
}

func malformed(format string, args ...any) error {
	return chromaerr.New(chromaerr.CodeTransportResponseInvalid, fmt.Sprintf(format, args...))
}
