// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding_test

import (
	"context"
	"testing"

	"github.com/sigil-dev/chroma-go/pkg/embedding"
	"github.com/sigil-dev/chroma-go/pkg/embedding/google"
	"github.com/sigil-dev/chroma-go/pkg/embedding/openai"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	fn, err := embedding.New(ctx, embedding.Config{})
	require.NoError(t, err)
	assert.Nil(t, fn)

	fn, err = embedding.New(ctx, embedding.Config{Provider: "OpenAI", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &openai.Embedder{}, fn)

	fn, err = embedding.New(ctx, embedding.Config{Provider: "gemini", APIKey: "k", Model: "gemini-embedding-001"})
	require.NoError(t, err)
	require.IsType(t, &google.Embedder{}, fn)
	assert.Equal(t, "gemini-embedding-001", fn.(*google.Embedder).Model())

	_, err = embedding.New(ctx, embedding.Config{Provider: "openai"})
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeEmbeddingConfigInvalid))

	_, err = embedding.New(ctx, embedding.Config{Provider: "cohere", APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embedding provider")
}
