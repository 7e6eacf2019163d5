// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma_test

import (
	"encoding/json"
	"testing"

	"github.com/sigil-dev/chroma-go/pkg/chroma"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhere_BuildersEncode(t *testing.T) {
	w := chroma.And(
		chroma.Eq("genre", "jazz"),
		chroma.Or(chroma.Gt("year", 1959), chroma.In("label", "blue note", "impulse")),
	)
	raw, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"$and":[
		{"genre":{"$eq":"jazz"}},
		{"$or":[{"year":{"$gt":1959}},{"label":{"$in":["blue note","impulse"]}}]}
	]}`, string(raw))

	raw, err = json.Marshal(chroma.AndDocument(chroma.Contains("piano"), chroma.NotContains("vocals")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"$and":[{"$contains":"piano"},{"$not_contains":"vocals"}]}`, string(raw))
}

func TestWhere_Validate(t *testing.T) {
	tests := []struct {
		name    string
		where   chroma.Where
		wantErr string
	}{
		{name: "nil", where: nil},
		{name: "shorthand equality", where: chroma.Where{"lang": "en"}},
		{name: "builders", where: chroma.And(chroma.Eq("a", 1), chroma.Nin("b", "x"), chroma.Lte("c", 2.5))},
		{name: "decoded json", where: chroma.Where{"$or": []any{map[string]any{"a": map[string]any{"$ne": true}}}}},
		{name: "unknown operator", where: chroma.Where{"a": map[string]any{"$regex": "x"}}, wantErr: "unknown operator $regex"},
		{name: "two operators", where: chroma.Where{"a": map[string]any{"$gt": 1, "$lt": 3}}, wantErr: "exactly one operator"},
		{name: "non-numeric range", where: chroma.Gt("a", "high"), wantErr: "must be a number"},
		{name: "empty in", where: chroma.In("a"), wantErr: "non-empty list"},
		{name: "nested value", where: chroma.Where{"a": []string{"x"}}, wantErr: "must be a scalar"},
		{name: "and with siblings", where: chroma.Where{"$and": []chroma.Where{chroma.Eq("a", 1)}, "b": 2}, wantErr: "only key"},
		{name: "empty and", where: chroma.And(), wantErr: "at least one clause"},
		{name: "operator as key", where: chroma.Where{"$eq": 1}, wantErr: "unexpected operator"},
		{name: "empty key", where: chroma.Where{"": 1}, wantErr: "empty metadata key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.where.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, chromaerr.HasCode(err, chromaerr.CodeFilterValidateInvalid))
			assert.True(t, chromaerr.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWhereDocument_Validate(t *testing.T) {
	assert.NoError(t, chroma.WhereDocument(nil).Validate())
	assert.NoError(t, chroma.OrDocument(chroma.Contains("a"), chroma.NotContains("b")).Validate())

	for name, wd := range map[string]chroma.WhereDocument{
		"empty text":       chroma.Contains(""),
		"unknown operator": {"$matches": "x"},
		"two operators":    {"$contains": "a", "$not_contains": "b"},
		"non-string":       {"$contains": 3},
	} {
		t.Run(name, func(t *testing.T) {
			err := wd.Validate()
			require.Error(t, err)
			assert.True(t, chromaerr.IsValidation(err))
		})
	}
}
