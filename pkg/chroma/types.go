// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"fmt"
	"strings"
)

// Metric is the distance function a collection ranks records by.
type Metric string

const (
	// MetricL2 is squared Euclidean distance.
	MetricL2 Metric = "l2"
	// MetricCosine is 1 - cosine similarity.
	MetricCosine Metric = "cosine"
	// MetricIP is 1 - inner product.
	MetricIP Metric = "ip"
)

// ParseMetric converts a user-supplied metric name. The empty string maps to MetricL2.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "", MetricL2:
		return MetricL2, nil
	case MetricCosine:
		return MetricCosine, nil
	case MetricIP:
		return MetricIP, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q (want l2, cosine or ip)", s)
	}
}

// Valid reports whether m is one of the supported metrics.
func (m Metric) Valid() bool {
	return m == MetricL2 || m == MetricCosine || m == MetricIP
}

// Record is a single embedding with its identifier and optional payload.
type Record struct {
	ID        string
	Embedding []float32
	// Metadata values must be scalars: string, bool, integer or float.
	Metadata map[string]any
	Document *string
}

// Doc returns a pointer to s, for populating Record.Document inline.
func Doc(s string) *string { return &s }

// Match is one ranked record in a query result.
type Match struct {
	ID        string
	Distance  float64
	Metadata  map[string]any
	Document  *string
	Embedding []float32
}

// QueryResult holds the matches for a single query vector, ordered by
// ascending distance.
type QueryResult struct {
	Matches []Match
}

// IDs returns the matched record identifiers in rank order.
func (r QueryResult) IDs() []string {
	ids := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		ids[i] = m.ID
	}
	return ids
}

// GetResult holds the records returned by Collection.Get.
type GetResult struct {
	Records []Record
}

// Include selects which optional fields the server returns.
type Include string

const (
	IncludeMetadatas  Include = "metadatas"
	IncludeDocuments  Include = "documents"
	IncludeDistances  Include = "distances"
	IncludeEmbeddings Include = "embeddings"
)

var (
	defaultQueryInclude = []Include{IncludeMetadatas, IncludeDocuments, IncludeDistances}
	defaultGetInclude   = []Include{IncludeMetadatas, IncludeDocuments}
)
