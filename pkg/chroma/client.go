// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/sigil-dev/chroma-go/pkg/health"
)

// LibraryVersion is sent in the User-Agent header.
const LibraryVersion = "0.1.0"

const defaultPort = "8000"

// Client talks to one Chroma endpoint. It is safe for concurrent use; all
// requests share one bounded connection pool.
type Client struct {
	transport *transport
	opts      options
	endpoint  string
}

// Connect builds a client for endpoint and verifies the server answers a
// heartbeat. endpoint may be "host:port", a full http(s) URL, or empty for
// http://localhost:8000. An unreachable server, or one that does not answer
// before ctx's deadline, yields a ConnectionError.
func Connect(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	c, err := NewClient(endpoint, opts...)
	if err != nil {
		return nil, err
	}

	_, wireErr, err := c.transport.exchange(ctx, c.heartbeatRequest(new(heartbeatResponse)))
	if err != nil {
		if chromaerr.IsCancelled(err) {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, chromaerr.Wrap(context.DeadlineExceeded, chromaerr.CodeClientConnectFailure,
					"timed out connecting to chroma at "+c.endpoint,
					chromaerr.FieldEndpoint(c.endpoint))
			}
			return nil, err
		}
		return nil, chromaerr.With(err, chromaerr.FieldEndpoint(c.endpoint))
	}
	if wireErr != nil {
		return nil, chromaerr.Wrap(wireErr, chromaerr.CodeClientConnectFailure,
			"connecting to chroma at "+c.endpoint,
			chromaerr.FieldEndpoint(c.endpoint))
	}

	c.transport.logger.DebugContext(ctx, "connected to chroma")
	return c, nil
}

// NewClient builds a client without contacting the server.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.queryBatchSize <= 0 {
		return nil, chromaerr.Errorf(chromaerr.CodeClientConfigInvalid,
			"query batch size must be positive, got %d", o.queryBatchSize)
	}
	if o.tenant == "" || o.database == "" {
		return nil, chromaerr.New(chromaerr.CodeClientConfigInvalid, "tenant and database must not be empty")
	}

	base, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	t, err := newTransport(base, o)
	if err != nil {
		return nil, err
	}
	return &Client{transport: t, opts: o, endpoint: base.String()}, nil
}

// ParseEndpoint normalizes a user-supplied endpoint to a base URL.
func ParseEndpoint(endpoint string) (*url.URL, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, chromaerr.Wrapf(err, chromaerr.CodeClientConfigInvalid, "parsing endpoint %q", endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, chromaerr.Errorf(chromaerr.CodeClientConfigInvalid,
			"endpoint scheme must be http or https, got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, chromaerr.Errorf(chromaerr.CodeClientConfigInvalid, "endpoint %q has no host", endpoint)
	}
	if u.Port() == "" && u.Scheme == "http" {
		u.Host = net.JoinHostPort(u.Hostname(), defaultPort)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// Endpoint returns the normalized base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Tenant returns the tenant collections are scoped to.
func (c *Client) Tenant() string { return c.opts.tenant }

// Database returns the database collections are scoped to.
func (c *Client) Database() string { return c.opts.database }

func (c *Client) heartbeatRequest(out *heartbeatResponse) *request {
	return &request{
		method: http.MethodGet,
		path:   apiPrefix + "/heartbeat",
		route:  "heartbeat",
		out:    out,
	}
}

// Heartbeat returns the server's clock in nanoseconds.
func (c *Client) Heartbeat(ctx context.Context) (int64, error) {
	var resp heartbeatResponse
	if err := c.transport.do(ctx, c.heartbeatRequest(&resp)); err != nil {
		return 0, err
	}
	return resp.NanosecondHeartbeat, nil
}

// Version returns the server's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var v string
	err := c.transport.do(ctx, &request{
		method: http.MethodGet,
		path:   apiPrefix + "/version",
		route:  "version",
		out:    &v,
	})
	if err != nil {
		return "", err
	}
	return v, nil
}

// Reset deletes every collection on the server. Servers refuse it unless
// started with resets allowed.
func (c *Client) Reset(ctx context.Context) error {
	return c.transport.do(ctx, &request{
		method: http.MethodPost,
		path:   apiPrefix + "/reset",
		route:  "reset",
	})
}

// Health reports the endpoint's recent failure history.
func (c *Client) Health() health.Metrics {
	return c.transport.health.Metrics()
}

// Close releases idle pooled connections. In-flight requests are not
// interrupted; cancel their contexts for that.
func (c *Client) Close() error {
	c.transport.http.CloseIdleConnections()
	return nil
}

// scope returns the tenant/database query parameters.
func (c *Client) scope() url.Values {
	v := url.Values{}
	v.Set("tenant", c.opts.tenant)
	v.Set("database", c.opts.database)
	return v
}
