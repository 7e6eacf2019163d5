// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package google_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sigil-dev/chroma-go/pkg/chroma"
	"github.com/sigil-dev/chroma-go/pkg/embedding/google"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ chroma.EmbeddingFunction = (*google.Embedder)(nil)

func newEmbedder(t *testing.T, status int, body string) (*google.Embedder, *atomic.Value) {
	t.Helper()
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	e, err := google.New(context.Background(), google.Config{APIKey: "k", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	return e, &path
}

func TestNew_Validation(t *testing.T) {
	_, err := google.New(context.Background(), google.Config{})
	require.Error(t, err)
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeEmbeddingConfigInvalid))
	assert.Equal(t, "google", chromaerr.FieldsOf(err)["provider"])

	_, err = google.New(context.Background(), google.Config{APIKey: "k", Dimensions: -4})
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeEmbeddingConfigInvalid))
}

func TestEmbed(t *testing.T) {
	e, path := newEmbedder(t, http.StatusOK, `{"embeddings":[{"values":[1,2,3]},{"values":[4,5,6]}]}`)
	assert.Equal(t, google.DefaultModel, e.Model())

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, vecs)
	assert.Contains(t, path.Load(), google.DefaultModel)
}

func TestEmbed_CountMismatch(t *testing.T) {
	e, _ := newEmbedder(t, http.StatusOK, `{"embeddings":[{"values":[1]}]}`)
	_, err := e.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeEmbeddingResponseInvalid))
}

func TestEmbed_UpstreamError(t *testing.T) {
	e, _ := newEmbedder(t, http.StatusForbidden, `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`)
	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeEmbeddingUpstreamFailure))
}
