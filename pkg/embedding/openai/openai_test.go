// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sigil-dev/chroma-go/pkg/chroma"
	"github.com/sigil-dev/chroma-go/pkg/embedding/openai"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ chroma.EmbeddingFunction = (*openai.Embedder)(nil)

type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	Dimensions     int      `json:"dimensions"`
	EncodingFormat string   `json:"encoding_format"`
}

func newFakeAPI(t *testing.T, handler func(w http.ResponseWriter, req embeddingRequest)) (*httptest.Server, *[]embeddingRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []embeddingRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestNew_Validation(t *testing.T) {
	_, err := openai.New(openai.Config{})
	require.Error(t, err)
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeEmbeddingConfigInvalid))
	assert.Equal(t, "openai", chromaerr.FieldsOf(err)["provider"])

	_, err = openai.New(openai.Config{APIKey: "k", Dimensions: -1})
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeEmbeddingConfigInvalid))

	e, err := openai.New(openai.Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, openai.DefaultModel, e.Model())
}

func TestEmbed_OrdersByIndex(t *testing.T) {
	srv, seen := newFakeAPI(t, func(w http.ResponseWriter, req embeddingRequest) {
		w.Header().Set("Content-Type", "application/json")
		// Reversed on purpose; the embedder must restore input order.
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[
			{"object":"embedding","index":1,"embedding":[0.5,0.25]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		],"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	})

	e, err := openai.New(openai.Config{APIKey: "k", BaseURL: srv.URL, Model: "text-embedding-3-large", Dimensions: 2})
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0.5, 0.25}}, vecs)

	require.Len(t, *seen, 1)
	got := (*seen)[0]
	assert.Equal(t, []string{"first", "second"}, got.Input)
	assert.Equal(t, "text-embedding-3-large", got.Model)
	assert.Equal(t, 2, got.Dimensions)
	assert.Equal(t, "float", got.EncodingFormat)
}

func TestEmbed_Empty(t *testing.T) {
	e, err := openai.New(openai.Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestEmbed_CountMismatch(t *testing.T) {
	srv, _ := newFakeAPI(t, func(w http.ResponseWriter, _ embeddingRequest) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[1]}]}`))
	})
	e, err := openai.New(openai.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeEmbeddingResponseInvalid))
}

func TestEmbed_UpstreamError(t *testing.T) {
	srv, _ := newFakeAPI(t, func(w http.ResponseWriter, _ embeddingRequest) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	})
	e, err := openai.New(openai.Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeEmbeddingUpstreamFailure))
}
