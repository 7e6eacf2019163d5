// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package emulator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sigil-dev/chroma-go/internal/emulator"
	"github.com/sigil-dev/chroma-go/internal/store"
	"github.com/sigil-dev/chroma-go/internal/store/memory"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg emulator.Config) *emulator.Server {
	t.Helper()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	srv, err := emulator.New(cfg, memory.New())
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *emulator.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func createCollection(t *testing.T, srv *emulator.Server, name string, dim int, metric string) emulator.CollectionBody {
	t.Helper()
	w := call(t, srv, http.MethodPost, "/api/v1/collections", map[string]any{
		"name":      name,
		"dimension": dim,
		"metadata":  map[string]any{"hnsw:space": metric},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[emulator.CollectionBody](t, w)
}

func TestServer_New_Validation(t *testing.T) {
	_, err := emulator.New(emulator.Config{}, memory.New())
	require.Error(t, err)
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeServerConfigInvalid))

	_, err = emulator.New(emulator.Config{ListenAddr: "127.0.0.1:0"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store is required")

	_, err = emulator.New(emulator.Config{
		ListenAddr: "127.0.0.1:0",
		RateLimit:  emulator.RateLimitConfig{RequestsPerSecond: 5},
	}, memory.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "burst must be positive")
}

func TestServer_Heartbeat(t *testing.T) {
	srv := newTestServer(t, emulator.Config{})

	before := time.Now().UnixNano()
	w := call(t, srv, http.MethodGet, "/api/v1/heartbeat", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]int64](t, w)
	assert.GreaterOrEqual(t, body["nanosecond heartbeat"], before)
}

func TestServer_Version(t *testing.T) {
	srv := newTestServer(t, emulator.Config{})
	w := call(t, srv, http.MethodGet, "/api/v1/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, emulator.Version, decode[string](t, w))
}

func TestServer_OpenAPISpec(t *testing.T) {
	srv := newTestServer(t, emulator.Config{})
	w := call(t, srv, http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/collections/{collection}/query")
}

func TestServer_CollectionLifecycle(t *testing.T) {
	srv := newTestServer(t, emulator.Config{})

	created := createCollection(t, srv, "docs", 3, "cosine")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "docs", created.Name)
	require.NotNil(t, created.Dimension)
	assert.Equal(t, 3, *created.Dimension)
	assert.Equal(t, "cosine", created.Metadata["hnsw:space"])
	assert.Equal(t, "default_tenant", created.Tenant)

	w := call(t, srv, http.MethodGet, "/api/v1/collections/docs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[emulator.CollectionBody](t, w).ID)

	w = call(t, srv, http.MethodGet, "/api/v1/count_collections", nil)
	assert.Equal(t, 1, decode[int](t, w))

	w = call(t, srv, http.MethodPut, "/api/v1/collections/"+created.ID, map[string]any{"new_name": "renamed"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = call(t, srv, http.MethodGet, "/api/v1/collections", nil)
	list := decode[[]emulator.CollectionBody](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "renamed", list[0].Name)

	w = call(t, srv, http.MethodDelete, "/api/v1/collections/renamed", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = call(t, srv, http.MethodGet, "/api/v1/collections/renamed", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode[errorEnvelope](t, w)
	assert.Equal(t, "NotFoundError", env.Error)
	assert.Contains(t, env.Message, "does not exist")
}

func TestServer_CreateCollection_Conflict(t *testing.T) {
	srv := newTestServer(t, emulator.Config{})
	first := createCollection(t, srv, "dup", 2, "l2")

	w := call(t, srv, http.MethodPost, "/api/v1/collections", map[string]any{"name": "dup", "dimension": 2})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "UniqueConstraintError", decode[errorEnvelope](t, w).Error)

	w = call(t, srv, http.MethodPost, "/api/v1/collections", map[string]any{
		"name": "dup", "dimension": 2, "get_or_create": true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.ID, decode[emulator.CollectionBody](t, w).ID)
}

func TestServer_CreateCollection_Invalid(t *testing.T) {
	srv := newTestServer(t, emulator.Config{})

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "short name", body: map[string]any{"name": "ab"}},
		{name: "bad metric", body: map[string]any{"name": "valid", "metadata": map[string]any{"hnsw:space": "manhattan"}}},
		{name: "negative dimension", body: map[string]any{"name": "valid", "dimension": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(t, srv, http.MethodPost, "/api/v1/collections", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "InvalidArgumentError", decode[errorEnvelope](t, w).Error)
		})
	}
}

func TestServer_ModifyCollection_RejectsMetricChange(t *testing.T) {
	srv := newTestServer(t, emulator.Config{})
	col := createCollection(t, srv, "fixed", 2, "l2")

	w := call(t, srv, http.MethodPut, "/api/v1/collections/"+col.ID, map[string]any{
		"new_metadata": map[string]any{"hnsw:space": "cosine"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_RecordsRoundTrip(t *testing.T) {
	srv := newTestServer(t, emulator.Config{})
	col := createCollection(t, srv, "points", 2, "l2")
	base := "/api/v1/collections/" + col.ID

	w := call(t, srv, http.MethodPost, base+"/add", map[string]any{
		"ids":        []string{"a", "b", "c"},
		"embeddings": [][]float32{{0, 0}, {1, 0}, {5, 5}},
		"metadatas":  []map[string]any{{"kind": "x"}, {"kind": "y"}, {"kind": "x"}},
		"documents":  []string{"alpha", "beta", "gamma"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(t, srv, http.MethodGet, base+"/count", nil)
	assert.Equal(t, 3, decode[int](t, w))

	w = call(t, srv, http.MethodPost, base+"/query", map[string]any{
		"query_embeddings": [][]float32{{0.1, 0}},
		"n_results":        2,
		"include":          []string{"distances", "documents"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	q := decode[emulator.QueryRecordsBody](t, w)
	require.Len(t, q.IDs, 1)
	assert.Equal(t, []string{"a", "b"}, q.IDs[0])
	assert.InDelta(t, 0.01, q.Distances[0][0], 1e-6)
	assert.InDelta(t, 0.81, q.Distances[0][1], 1e-6)
	assert.Equal(t, "alpha", *q.Documents[0][0])
	assert.Nil(t, q.Metadatas)
	assert.Nil(t, q.Embeddings)

	w = call(t, srv, http.MethodPost, base+"/query", map[string]any{
		"query_embeddings": [][]float32{{0, 0}},
		"n_results":        5,
		"where":            map[string]any{"kind": "x"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"a", "c"}, decode[emulator.QueryRecordsBody](t, w).IDs[0])

	w = call(t, srv, http.MethodPost, base+"/get", map[string]any{
		"ids":     []string{"c"},
		"include": []string{"embeddings"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	g := decode[emulator.GetRecordsBody](t, w)
	assert.Equal(t, []string{"c"}, g.IDs)
	assert.Equal(t, [][]float32{{5, 5}}, g.Embeddings)
	assert.Nil(t, g.Documents)

	w = call(t, srv, http.MethodPost, base+"/delete", map[string]any{"where": map[string]any{"kind": "y"}})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = call(t, srv, http.MethodGet, base+"/count", nil)
	assert.Equal(t, 2, decode[int](t, w))
}

func TestServer_AddDuplicate(t *testing.T) {
	srv := newTestServer(t, emulator.Config{})
	col := createCollection(t, srv, "dupes", 1, "l2")
	body := map[string]any{"ids": []string{"x"}, "embeddings": [][]float32{{1}}}

	w := call(t, srv, http.MethodPost, "/api/v1/collections/"+col.ID+"/add", body)
	require.Equal(t, http.StatusCreated, w.Code)
	w = call(t, srv, http.MethodPost, "/api/v1/collections/"+col.ID+"/add", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(t, srv, http.MethodPost, "/api/v1/collections/"+col.ID+"/upsert", body)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_RecordErrors(t *testing.T) {
	srv := newTestServer(t, emulator.Config{})
	col := createCollection(t, srv, "strict", 2, "l2")
	base := "/api/v1/collections/" + col.ID

	tests := []struct {
		name   string
		path   string
		body   map[string]any
		status int
	}{
		{
			name:   "dimension mismatch",
			path:   base + "/add",
			body:   map[string]any{"ids": []string{"a"}, "embeddings": [][]float32{{1, 2, 3}}},
			status: http.StatusBadRequest,
		},
		{
			name:   "missing embeddings",
			path:   base + "/upsert",
			body:   map[string]any{"ids": []string{"a"}, "documents": []string{"text"}},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown operator",
			path:   base + "/get",
			body:   map[string]any{"where": map[string]any{"n": map[string]any{"$regex": "x"}}},
			status: http.StatusBadRequest,
		},
		{
			name:   "empty delete",
			path:   base + "/delete",
			body:   map[string]any{},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown collection",
			path:   "/api/v1/collections/00000000-0000-0000-0000-000000000000/query",
			body:   map[string]any{"query_embeddings": [][]float32{{1, 2}}},
			status: http.StatusNotFound,
		},
		{
			name:   "distances on get",
			path:   base + "/get",
			body:   map[string]any{"include": []string{"distances"}},
			status: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(t, srv, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestServer_Reset(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		srv := newTestServer(t, emulator.Config{})
		w := call(t, srv, http.MethodPost, "/api/v1/reset", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		srv := newTestServer(t, emulator.Config{AllowReset: true})
		createCollection(t, srv, "gone", 1, "l2")
		w := call(t, srv, http.MethodPost, "/api/v1/reset", nil)
		require.Equal(t, http.StatusOK, w.Code)
		w = call(t, srv, http.MethodGet, "/api/v1/count_collections", nil)
		assert.Equal(t, 0, decode[int](t, w))
	})
}

func TestServer_Scopes(t *testing.T) {
	srv := newTestServer(t, emulator.Config{})
	createCollection(t, srv, "shared", 1, "l2")

	w := call(t, srv, http.MethodGet, "/api/v1/collections/shared?tenant=other&database=db", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(t, srv, http.MethodPost, "/api/v1/collections?tenant=other&database=db",
		map[string]any{"name": "shared", "dimension": 1})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Auth(t *testing.T) {
	srv := newTestServer(t, emulator.Config{AuthToken: "s3cret"})

	w := call(t, srv, http.MethodGet, "/api/v1/heartbeat", nil)
	assert.Equal(t, http.StatusOK, w.Code, "heartbeat is public")

	w = call(t, srv, http.MethodGet, "/api/v1/collections", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AuthorizationError", decode[errorEnvelope](t, w).Error)

	for _, header := range []struct{ key, value string }{
		{"Authorization", "Bearer s3cret"},
		{"X-Chroma-Token", "s3cret"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/collections", nil)
		req.Header.Set(header.key, header.value)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, header.key)
	}
}

func TestServer_RateLimit(t *testing.T) {
	srv := newTestServer(t, emulator.Config{
		RateLimit: emulator.RateLimitConfig{RequestsPerSecond: 1, Burst: 2},
	})

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, call(t, srv, http.MethodGet, "/api/v1/heartbeat", nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	w := call(t, srv, http.MethodGet, "/api/v1/heartbeat", nil)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "RateLimitError", decode[errorEnvelope](t, w).Error)
}

func TestServer_Start(t *testing.T) {
	st, err := store.Open(store.Config{Backend: "memory"})
	require.NoError(t, err)
	srv, err := emulator.New(emulator.Config{ListenAddr: "127.0.0.1:0"}, st)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx, ready) }()

	addr := <-ready
	resp, err := http.Get("http://" + addr.String() + "/api/v1/heartbeat")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
