// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma_test

import (
	"strings"
	"testing"

	"github.com/sigil-dev/chroma-go/pkg/chroma"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidateCollectionName(t *testing.T) {
	valid := []string{"abc", "my-collection", "v1.2_embeddings", "A1B", strings.Repeat("x", 63)}
	for _, name := range valid {
		assert.NoError(t, chroma.ValidateCollectionName(name), name)
	}

	invalid := []string{"", "ab", strings.Repeat("x", 64), "-abc", "abc_", "has space", "a..b", "émoji"}
	for _, name := range invalid {
		err := chroma.ValidateCollectionName(name)
		if assert.Error(t, err, name) {
			assert.True(t, chromaerr.IsValidation(err), name)
			assert.Equal(t, name, chromaerr.FieldsOf(err)["collection"])
		}
	}
}

func TestParseMetric(t *testing.T) {
	for in, want := range map[string]chroma.Metric{
		"":        chroma.MetricL2,
		"l2":      chroma.MetricL2,
		" Cosine": chroma.MetricCosine,
		"IP":      chroma.MetricIP,
	} {
		got, err := chroma.ParseMetric(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.True(t, got.Valid())
	}

	_, err := chroma.ParseMetric("manhattan")
	assert.Error(t, err)
	assert.False(t, chroma.Metric("manhattan").Valid())
}

func TestQueryResult_IDs(t *testing.T) {
	r := chroma.QueryResult{Matches: []chroma.Match{{ID: "x"}, {ID: "y"}}}
	assert.Equal(t, []string{"x", "y"}, r.IDs())
	assert.Empty(t, chroma.QueryResult{}.IDs())
}
