// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sigil-dev/chroma-go/internal/emulator"
	"github.com/sigil-dev/chroma-go/internal/store/memory"
	"github.com/sigil-dev/chroma-go/pkg/chroma"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is a client connected to an in-process emulator. requests counts
// every HTTP request the emulator receives.
type testEnv struct {
	client   *chroma.Client
	url      string
	requests *atomic.Int64
}

func newTestEnv(t *testing.T, opts ...chroma.Option) *testEnv {
	t.Helper()
	srv, err := emulator.New(emulator.Config{ListenAddr: "127.0.0.1:0", AllowReset: true}, memory.New())
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		srv.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	c, err := chroma.Connect(context.Background(), ts.URL, append([]chroma.Option{fastRetry}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return &testEnv{client: c, url: ts.URL, requests: &requests}
}

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

func recordsFor(vectors [][]float32) []chroma.Record {
	records := make([]chroma.Record, len(vectors))
	for i, v := range vectors {
		records[i] = chroma.Record{
			ID:        fmt.Sprintf("r%03d", i),
			Embedding: v,
			Metadata:  map[string]any{"i": i, "parity": []string{"even", "odd"}[i%2]},
		}
	}
	return records
}

func TestClient_ServerInfo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	beat, err := env.client.Heartbeat(ctx)
	require.NoError(t, err)
	assert.Positive(t, beat)

	v, err := env.client.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, emulator.Version, v)
}

func TestClient_CollectionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	col, err := env.client.CreateCollection(ctx, "articles", 4, chroma.MetricCosine,
		chroma.WithCollectionMetadata(map[string]any{"owner": "search"}))
	require.NoError(t, err)
	assert.NotEmpty(t, col.ID)
	assert.Equal(t, 4, col.Dimension)
	assert.Equal(t, chroma.MetricCosine, col.Metric)
	assert.Equal(t, "search", col.Metadata["owner"])
	assert.NotContains(t, col.Metadata, "hnsw:space")

	_, err = env.client.CreateCollection(ctx, "articles", 4, chroma.MetricCosine)
	require.Error(t, err)
	assert.True(t, chromaerr.IsConflict(err), "got %s", chromaerr.CodeOf(err))
	assert.Equal(t, "articles", chromaerr.FieldsOf(err)["collection"])

	same, err := env.client.GetOrCreateCollection(ctx, "articles", 4, chroma.MetricCosine)
	require.NoError(t, err)
	assert.Equal(t, col.ID, same.ID)

	got, err := env.client.GetCollection(ctx, "articles")
	require.NoError(t, err)
	assert.Equal(t, col.ID, got.ID)
	assert.Equal(t, chroma.MetricCosine, got.Metric)

	_, err = env.client.CreateCollection(ctx, "other", 2, "")
	require.NoError(t, err)

	n, err := env.client.CountCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := env.client.ListCollections(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "other", list[0].Name)
	assert.Equal(t, chroma.MetricL2, list[0].Metric)

	renamed, err := col.Modify(ctx, "articles-v2", map[string]any{"owner": "ranking"})
	require.NoError(t, err)
	assert.Equal(t, "articles-v2", renamed.Name)
	assert.Equal(t, "articles", col.Name, "original handle is unchanged")
	got, err = env.client.GetCollection(ctx, "articles-v2")
	require.NoError(t, err)
	assert.Equal(t, "ranking", got.Metadata["owner"])
	assert.Equal(t, chroma.MetricCosine, got.Metric)

	require.NoError(t, env.client.DeleteCollection(ctx, "articles-v2"))
	_, err = env.client.GetCollection(ctx, "articles-v2")
	require.Error(t, err)
	assert.True(t, chromaerr.IsNotFound(err))
}

func TestClient_DeleteCollectionIdempotence(t *testing.T) {
	ctx := context.Background()

	lenient := newTestEnv(t)
	assert.NoError(t, lenient.client.DeleteCollection(ctx, "never-created"))

	strict := newTestEnv(t, chroma.WithIdempotentDelete(false))
	err := strict.client.DeleteCollection(ctx, "never-created")
	require.Error(t, err)
	assert.True(t, chromaerr.IsNotFound(err))
}

func TestClient_CreateCollectionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	before := env.requests.Load()

	tests := []struct {
		name      string
		colName   string
		dimension int
		metric    chroma.Metric
	}{
		{"short name", "ab", 3, chroma.MetricL2},
		{"bad characters", "has space", 3, chroma.MetricL2},
		{"double period", "a..b", 3, chroma.MetricL2},
		{"zero dimension", "valid", 0, chroma.MetricL2},
		{"unknown metric", "valid", 3, chroma.Metric("hamming")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.CreateCollection(ctx, tt.colName, tt.dimension, tt.metric)
			require.Error(t, err)
			assert.True(t, chromaerr.IsValidation(err), "got %s", chromaerr.CodeOf(err))
		})
	}
	assert.Equal(t, before, env.requests.Load(), "invalid input must not reach the server")
}

func TestCollection_SelfQueryReturnsSelf(t *testing.T) {
	for _, metric := range []chroma.Metric{chroma.MetricL2, chroma.MetricCosine} {
		t.Run(string(metric), func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			rng := rand.New(rand.NewPCG(1, uint64(len(metric))))

			col, err := env.client.CreateCollection(ctx, "self-"+string(metric), 8, metric)
			require.NoError(t, err)
			vectors := randomVectors(rng, 40, 8)
			records := recordsFor(vectors)
			require.NoError(t, col.Upsert(ctx, records))

			results, err := col.Query(ctx, vectors, 1, nil)
			require.NoError(t, err)
			require.Len(t, results, len(vectors))
			for i, res := range results {
				require.Len(t, res.Matches, 1)
				assert.Equal(t, records[i].ID, res.Matches[0].ID)
				assert.LessOrEqual(t, res.Matches[0].Distance, 1e-5)
			}
		})
	}
}

func TestCollection_QueryDistancesAreMonotonic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))

	col, err := env.client.CreateCollection(ctx, "monotonic", 6, chroma.MetricIP)
	require.NoError(t, err)
	require.NoError(t, col.Upsert(ctx, recordsFor(randomVectors(rng, 50, 6))))

	results, err := col.Query(ctx, randomVectors(rng, 5, 6), 20, nil)
	require.NoError(t, err)
	for q, res := range results {
		require.Len(t, res.Matches, 20)
		assert.True(t, slices.IsSortedFunc(res.Matches, func(a, b chroma.Match) int {
			switch {
			case a.Distance < b.Distance:
				return -1
			case a.Distance > b.Distance:
				return 1
			}
			return 0
		}), "query %d distances not ascending", q)
	}
}

func TestCollection_QueryBatchingPreservesOrder(t *testing.T) {
	env := newTestEnv(t, chroma.WithQueryBatchSize(2), chroma.WithMaxConcurrency(3))
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(3, 5))

	col, err := env.client.CreateCollection(ctx, "batched", 3, chroma.MetricL2)
	require.NoError(t, err)
	vectors := randomVectors(rng, 9, 3)
	records := recordsFor(vectors)
	require.NoError(t, col.Add(ctx, records))

	before := env.requests.Load()
	results, err := col.Query(ctx, vectors, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), env.requests.Load()-before, "9 vectors in batches of 2")
	require.Len(t, results, 9)
	for i, res := range results {
		assert.Equal(t, records[i].ID, res.Matches[0].ID, "result %d out of order", i)
	}
}

func TestCollection_ValidationSendsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	col, err := env.client.CreateCollection(ctx, "guarded", 3, chroma.MetricL2)
	require.NoError(t, err)
	before := env.requests.Load()

	records := []chroma.Record{
		{ID: "ok", Embedding: []float32{1, 2, 3}},
		{ID: "short", Embedding: []float32{1, 2}},
		{ID: "ok2", Embedding: []float32{1, 2, 3}},
		{ID: "", Embedding: []float32{1, 2, 3}},
		{ID: "ok", Embedding: []float32{3, 2, 1}},
		{ID: "meta", Embedding: []float32{1, 2, 3}, Metadata: map[string]any{"tags": []string{"x"}}},
	}
	err = col.Upsert(ctx, records)
	require.Error(t, err)
	assert.True(t, chromaerr.IsValidation(err))
	assert.Equal(t, []int{1, 3, 4, 5}, chromaerr.Indices(err))

	_, err = col.Query(ctx, [][]float32{{1, 2, 3}, {1}, {1, 2, 3, 4}}, 1, nil)
	require.Error(t, err)
	assert.True(t, chromaerr.IsValidation(err))
	assert.Equal(t, []int{1, 2}, chromaerr.Indices(err))

	_, err = col.Query(ctx, [][]float32{{1, 2, 3}}, 0, nil)
	assert.True(t, chromaerr.IsValidation(err))

	_, err = col.Query(ctx, [][]float32{{1, 2, 3}}, 1, chroma.Where{"n": map[string]any{"$like": 1}})
	assert.True(t, chromaerr.IsValidation(err))

	err = col.Delete(ctx, nil, nil)
	assert.True(t, chromaerr.IsValidation(err))

	assert.Equal(t, before, env.requests.Load())

	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "a rejected batch writes nothing")
}

// legacyCollectionServer serves a collection whose dimension the server does
// not report, and counts every write it receives.
func legacyCollectionServer(t *testing.T, writes *atomic.Int64) *httptest.Server {
	t.Helper()
	return newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/collections/legacy"):
			_, _ = w.Write([]byte(`{"id":"c-legacy","name":"legacy","metadata":{"hnsw:space":"l2"}}`))
		case r.Method == http.MethodPost:
			writes.Add(1)
			_, _ = w.Write([]byte(`true`))
		default:
			http.NotFound(w, r)
		}
	})
}

func TestCollection_UnknownDimensionInferredFromFirstEmbedding(t *testing.T) {
	ctx := context.Background()
	var writes atomic.Int64
	ts := legacyCollectionServer(t, &writes)
	col, err := newFakeClient(t, ts.URL).GetCollection(ctx, "legacy")
	require.NoError(t, err)
	require.Zero(t, col.Dimension)

	err = col.Upsert(ctx, []chroma.Record{
		{ID: "a", Document: chroma.Doc("no vector and no embedder")},
		{ID: "b", Embedding: []float32{1, 2, 3}},
		{ID: "c", Embedding: []float32{4, 5, 6}},
		{ID: "d", Embedding: []float32{7, 8}},
	})
	require.Error(t, err)
	assert.True(t, chromaerr.IsValidation(err))
	assert.Equal(t, []int{0, 3}, chromaerr.Indices(err))
	assert.Contains(t, err.Error(), "want 3")
	assert.Zero(t, writes.Load())

	require.NoError(t, col.Upsert(ctx, []chroma.Record{
		{ID: "b", Embedding: []float32{1, 2, 3}},
		{ID: "c", Embedding: []float32{4, 5, 6}},
	}))
	assert.EqualValues(t, 1, writes.Load())
}

func TestCollection_AddConflictAndUpsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	col, err := env.client.CreateCollection(ctx, "writes", 2, chroma.MetricL2)
	require.NoError(t, err)
	require.NoError(t, col.Add(ctx, []chroma.Record{{ID: "a", Embedding: []float32{1, 0}, Document: chroma.Doc("first")}}))

	err = col.Add(ctx, []chroma.Record{{ID: "a", Embedding: []float32{0, 1}}})
	require.Error(t, err)
	assert.True(t, chromaerr.IsConflict(err))
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeRecordAddConflict), "got %s", chromaerr.CodeOf(err))

	require.NoError(t, col.Upsert(ctx, []chroma.Record{{ID: "a", Embedding: []float32{0, 1}, Document: chroma.Doc("second")}}))
	got, err := col.Get(ctx, chroma.GetOptions{IDs: []string{"a"}, Include: []chroma.Include{chroma.IncludeEmbeddings, chroma.IncludeDocuments}})
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, []float32{0, 1}, got.Records[0].Embedding)
	assert.Equal(t, "second", *got.Records[0].Document)
}

func TestCollection_FiltersGetAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	col, err := env.client.CreateCollection(ctx, "filtered", 2, chroma.MetricL2)
	require.NoError(t, err)
	records := []chroma.Record{
		{ID: "a", Embedding: []float32{0, 0}, Metadata: map[string]any{"lang": "en", "year": 2020}, Document: chroma.Doc("the quick fox")},
		{ID: "b", Embedding: []float32{1, 0}, Metadata: map[string]any{"lang": "de", "year": 2021}, Document: chroma.Doc("der schnelle fuchs")},
		{ID: "c", Embedding: []float32{2, 0}, Metadata: map[string]any{"lang": "en", "year": 2023}, Document: chroma.Doc("a lazy dog")},
		{ID: "d", Embedding: []float32{3, 0}},
	}
	require.NoError(t, col.Upsert(ctx, records))

	res, err := col.Query(ctx, [][]float32{{0, 0}}, 10, chroma.And(chroma.Eq("lang", "en"), chroma.Gte("year", 2021)))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, res[0].IDs())

	res, err = col.Query(ctx, [][]float32{{0, 0}}, 10, nil,
		chroma.WithWhereDocument(chroma.Contains("fox")))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res[0].IDs())

	res, err = col.Query(ctx, [][]float32{{0, 0}}, 10, chroma.Ne("lang", "de"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, res[0].IDs(), "$ne matches records without the key")

	got, err := col.Get(ctx, chroma.GetOptions{Where: chroma.In("lang", "de", "fr")})
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "b", got.Records[0].ID)
	assert.Equal(t, "der schnelle fuchs", *got.Records[0].Document)
	assert.Nil(t, got.Records[0].Embedding, "embeddings are not included by default")

	page, err := col.Get(ctx, chroma.GetOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page.Records, 2)

	require.NoError(t, col.Delete(ctx, nil, chroma.Eq("lang", "en")))
	require.NoError(t, col.Delete(ctx, []string{"d", "missing"}, nil))
	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCollection_EmbeddingFunction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var calls atomic.Int32
	embed := chroma.EmbeddingFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		calls.Add(1)
		out := make([][]float32, len(texts))
		for i, s := range texts {
			out[i] = []float32{float32(len(s)), float32(strings.Count(s, "a")), 1}
		}
		return out, nil
	})

	col, err := env.client.CreateCollection(ctx, "embedded", 3, chroma.MetricL2, chroma.WithEmbeddingFunction(embed))
	require.NoError(t, err)

	records := []chroma.Record{
		{ID: "short", Document: chroma.Doc("cat")},
		{ID: "long", Document: chroma.Doc("a much longer sentence")},
		{ID: "given", Embedding: []float32{100, 0, 1}},
	}
	require.NoError(t, col.Upsert(ctx, records))
	assert.Equal(t, int32(1), calls.Load())
	assert.Nil(t, records[0].Embedding, "caller records are not modified")

	res, err := col.QueryTexts(ctx, []string{"bat"}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, res[0].IDs())

	plain, err := env.client.GetCollection(ctx, "embedded")
	require.NoError(t, err)
	_, err = plain.QueryTexts(ctx, []string{"bat"}, 1, nil)
	require.Error(t, err)
	assert.True(t, chromaerr.IsValidation(err), "no embedder configured")

	failing := col.WithEmbedder(chroma.EmbeddingFunc(func(context.Context, []string) ([][]float32, error) {
		return nil, fmt.Errorf("quota exceeded")
	}))
	err = failing.Upsert(ctx, []chroma.Record{{ID: "x", Document: chroma.Doc("x")}})
	require.Error(t, err)
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeEmbeddingUpstreamFailure))
}

func TestCollection_ListedHandleKeepsDimension(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.CreateCollection(ctx, "lazy-dim", 5, chroma.MetricL2)
	require.NoError(t, err)

	// A handle from a listing carries the server-reported dimension.
	list, err := env.client.ListCollections(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].Dimension)

	err = list[0].Upsert(ctx, []chroma.Record{{ID: "a", Embedding: []float32{1, 2}}})
	require.Error(t, err)
	assert.True(t, chromaerr.IsValidation(err))
}

func TestClient_Reset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.CreateCollection(ctx, "doomed", 2, chroma.MetricL2)
	require.NoError(t, err)
	require.NoError(t, env.client.Reset(ctx))

	n, err := env.client.CountCollections(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClient_ScopedByTenantAndDatabase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.CreateCollection(ctx, "shared", 2, chroma.MetricL2)
	require.NoError(t, err)

	other, err := chroma.Connect(ctx, env.url, chroma.WithTenant("acme"), chroma.WithDatabase("prod"))
	require.NoError(t, err)
	defer func() { _ = other.Close() }()
	_, err = other.GetCollection(ctx, "shared")
	assert.True(t, chromaerr.IsNotFound(err))

	col, err := other.CreateCollection(ctx, "shared", 2, chroma.MetricL2)
	require.NoError(t, err)
	assert.Equal(t, "acme", col.Tenant)
	assert.Equal(t, "prod", col.Database)
}

func TestClient_ConcurrentWrites(t *testing.T) {
	env := newTestEnv(t, chroma.WithMaxConcurrency(4))
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(9, 9))

	col, err := env.client.CreateCollection(ctx, "concurrent", 4, chroma.MetricL2)
	require.NoError(t, err)

	vectors := randomVectors(rng, 64, 4)
	errs := make(chan error, 8)
	for w := range 8 {
		go func() {
			batch := make([]chroma.Record, 0, 8)
			for i := w * 8; i < (w+1)*8; i++ {
				batch = append(batch, chroma.Record{ID: fmt.Sprintf("w%d-%d", w, i), Embedding: vectors[i]})
			}
			errs <- col.Upsert(ctx, batch)
		}()
	}
	for range 8 {
		require.NoError(t, <-errs)
	}

	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 64, n)
}
