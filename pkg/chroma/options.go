// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultEndpoint       = "http://localhost:8000"
	DefaultTenant         = "default_tenant"
	DefaultDatabase       = "default_database"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = 100 * time.Millisecond
	DefaultRetryMaxDelay  = 2 * time.Second
	DefaultMaxConcurrency = 16
	DefaultQueryBatchSize = 100
)

type options struct {
	httpClient       *http.Client
	timeout          time.Duration
	maxAttempts      int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	maxConcurrency   int
	rateLimit        float64
	rateBurst        int
	token            string
	tokenHeader      string
	headers          map[string]string
	tenant           string
	database         string
	logger           *slog.Logger
	registerer       prometheus.Registerer
	idempotentDelete bool
	queryBatchSize   int
	healthCooldown   time.Duration
}

func defaultOptions() options {
	return options{
		timeout:          DefaultTimeout,
		maxAttempts:      DefaultMaxAttempts,
		retryBaseDelay:   DefaultRetryBaseDelay,
		retryMaxDelay:    DefaultRetryMaxDelay,
		maxConcurrency:   DefaultMaxConcurrency,
		tenant:           DefaultTenant,
		database:         DefaultDatabase,
		idempotentDelete: true,
		queryBatchSize:   DefaultQueryBatchSize,
		headers:          map[string]string{},
	}
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient replaces the pooled HTTP client. The client's Timeout is
// used as the per-attempt timeout when set.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTimeout sets the per-attempt request timeout. Zero disables it and
// leaves deadlines to the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithRetry configures retry of transient failures. maxAttempts counts the
// first try, so 1 disables retries. Delays grow exponentially from baseDelay
// and are capped at maxDelay.
func WithRetry(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return func(o *options) {
		o.maxAttempts = maxAttempts
		o.retryBaseDelay = baseDelay
		o.retryMaxDelay = maxDelay
	}
}

// WithMaxConcurrency bounds the number of requests in flight at once.
func WithMaxConcurrency(n int) Option {
	return func(o *options) {
		o.maxConcurrency = n
	}
}

// WithRateLimit throttles outgoing requests client-side. A zero rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.rateLimit = rps
		o.rateBurst = burst
	}
}

// WithToken sends token on every request, as "Authorization: Bearer <token>"
// unless WithTokenHeader selects another header.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithTokenHeader sets the header carrying the auth token. Chroma accepts
// "Authorization" (bearer) and "X-Chroma-Token" (raw).
func WithTokenHeader(header string) Option {
	return func(o *options) {
		o.tokenHeader = header
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers[key] = value
	}
}

// WithTenant selects the tenant collections are scoped to.
func WithTenant(tenant string) Option {
	return func(o *options) {
		o.tenant = tenant
	}
}

// WithDatabase selects the database collections are scoped to.
func WithDatabase(database string) Option {
	return func(o *options) {
		o.database = database
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics registers the client's Prometheus collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithIdempotentDelete controls whether DeleteCollection succeeds when the
// collection does not exist. Enabled by default.
func WithIdempotentDelete(enabled bool) Option {
	return func(o *options) {
		o.idempotentDelete = enabled
	}
}

// WithQueryBatchSize caps the number of query vectors sent per request.
// Larger queries are split and sent concurrently.
func WithQueryBatchSize(n int) Option {
	return func(o *options) {
		o.queryBatchSize = n
	}
}

// WithHealthCooldown sets how long the endpoint stays marked unhealthy after
// a request exhausts its retries. While unhealthy, requests are tried once.
func WithHealthCooldown(d time.Duration) Option {
	return func(o *options) {
		o.healthCooldown = d
	}
}

type collectionOptions struct {
	metadata map[string]any
	embedder EmbeddingFunction
}

// CollectionOption configures collection creation and handles.
type CollectionOption func(*collectionOptions)

// WithCollectionMetadata attaches metadata to a new collection.
func WithCollectionMetadata(md map[string]any) CollectionOption {
	return func(o *collectionOptions) {
		o.metadata = md
	}
}

// WithEmbeddingFunction lets the collection embed record documents and
// query texts that arrive without vectors.
func WithEmbeddingFunction(fn EmbeddingFunction) CollectionOption {
	return func(o *collectionOptions) {
		o.embedder = fn
	}
}

type queryOptions struct {
	whereDocument WhereDocument
	include       []Include
}

// QueryOption configures Collection.Query and Collection.QueryTexts.
type QueryOption func(*queryOptions)

// WithWhereDocument restricts matches by document content.
func WithWhereDocument(wd WhereDocument) QueryOption {
	return func(o *queryOptions) {
		o.whereDocument = wd
	}
}

// WithInclude selects the fields returned per match. Distances are always
// requested so results can be ordered.
func WithInclude(include ...Include) QueryOption {
	return func(o *queryOptions) {
		o.include = include
	}
}
