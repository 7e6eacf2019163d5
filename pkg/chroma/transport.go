// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"
	"time"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/sigil-dev/chroma-go/pkg/health"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// request describes one logical API call. The transport may send it several
// times when attempts fail transiently.
type request struct {
	method string
	path   string
	// route is the path template used as a metrics label.
	route string
	query url.Values
	body  any
	out   any
	codes errorCodes
	// noReplay marks a request the server may have applied even when the
	// response was lost. It is resent only when the server provably did not
	// process it.
	noReplay bool
}

// transport is the connection manager: a pooled HTTP client with bounded
// concurrency, retries and endpoint health tracking. Safe for concurrent use.
type transport struct {
	baseURL *url.URL
	http    *http.Client
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	health  *health.Tracker
	metrics *clientMetrics
	logger  *slog.Logger
	headers http.Header

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func newTransport(base *url.URL, o options) (*transport, error) {
	if o.maxConcurrency <= 0 {
		return nil, chromaerr.Errorf(chromaerr.CodeClientConfigInvalid,
			"max concurrency must be positive, got %d", o.maxConcurrency)
	}
	if o.maxAttempts <= 0 {
		return nil, chromaerr.Errorf(chromaerr.CodeClientConfigInvalid,
			"retry attempts must be positive, got %d", o.maxAttempts)
	}
	if o.retryBaseDelay < 0 || o.retryMaxDelay < o.retryBaseDelay {
		return nil, chromaerr.Errorf(chromaerr.CodeClientConfigInvalid,
			"retry delays must satisfy 0 <= base <= max, got base=%s max=%s", o.retryBaseDelay, o.retryMaxDelay)
	}
	if o.rateLimit < 0 {
		return nil, chromaerr.Errorf(chromaerr.CodeClientConfigInvalid,
			"rate limit must not be negative, got %g", o.rateLimit)
	}

	cooldown := o.healthCooldown
	if cooldown == 0 {
		cooldown = health.DefaultCooldown
	}
	tracker, err := health.NewTracker(base.String(), cooldown)
	if err != nil {
		return nil, err
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   o.timeout,
			Transport: pooledTransport(o.maxConcurrency),
		}
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	headers.Set("Content-Type", "application/json")
	headers.Set("User-Agent", "chroma-go/"+LibraryVersion)
	for k, v := range o.headers {
		headers.Set(k, v)
	}
	if o.token != "" {
		switch o.tokenHeader {
		case "", "Authorization":
			headers.Set("Authorization", "Bearer "+o.token)
		default:
			headers.Set(o.tokenHeader, o.token)
		}
	}

	t := &transport{
		baseURL:     base,
		http:        httpClient,
		sem:         semaphore.NewWeighted(int64(o.maxConcurrency)),
		health:      tracker,
		logger:      logger.With("endpoint", base.String()),
		headers:     headers,
		maxAttempts: o.maxAttempts,
		baseDelay:   o.retryBaseDelay,
		maxDelay:    o.retryMaxDelay,
		sleep:       sleepContext,
	}
	if o.rateLimit > 0 {
		burst := o.rateBurst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(o.rateLimit), burst)
	}
	if o.registerer != nil {
		m, err := newClientMetrics(o.registerer)
		if err != nil {
			return nil, err
		}
		t.metrics = m
	}
	return t, nil
}

// pooledTransport sizes the connection pool to the concurrency bound so
// requests admitted by the semaphore never queue on the dialer.
func pooledTransport(maxConns int) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConns = maxConns
	tr.MaxIdleConnsPerHost = maxConns
	tr.MaxConnsPerHost = maxConns
	tr.IdleConnTimeout = 90 * time.Second
	return tr
}

// do sends req, retrying transient failures. Terminal responses are returned
// as coded errors; wire failures that outlast the retries become a
// TransportError.
func (t *transport) do(ctx context.Context, req *request) error {
	attempts, wireErr, err := t.exchange(ctx, req)
	if err != nil {
		return err
	}
	if wireErr != nil {
		return chromaerr.Wrap(wireErr, chromaerr.CodeTransportRequestFailure,
			fmt.Sprintf("%s %s failed after %d attempt(s)", req.method, req.path, attempts),
			chromaerr.FieldAttempts(attempts),
			chromaerr.FieldEndpoint(t.baseURL.String()),
		)
	}
	return nil
}

// exchange runs the retry loop. It returns the number of attempts made and
// either the last wire failure (uncoded, so the caller picks the code) or a
// coded error for terminal outcomes such as cancellation, 4xx responses and
// undecodable bodies.
func (t *transport) exchange(ctx context.Context, req *request) (int, error, error) {
	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return 0, nil, chromaerr.Wrapf(err, chromaerr.CodeQueryValidateInvalid, "encoding %s request", req.route)
		}
	}

	if err := t.sem.Acquire(ctx, 1); err != nil {
		return 0, nil, cancelled(ctx, err)
	}
	defer t.sem.Release(1)

	maxAttempts := t.maxAttempts
	if !t.health.IsHealthy() {
		maxAttempts = 1
	}

	var wireErr error
	attempt := 0
	for attempt < maxAttempts {
		attempt++

		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return attempt, nil, cancelled(ctx, err)
			}
		}

		retryAfter, retry, err := t.attempt(ctx, req, payload)
		if err == nil {
			t.health.RecordSuccess()
			return attempt, nil, nil
		}
		if chromaerr.CodeOf(err) != "" {
			// The server answered; the endpoint itself is fine.
			if !chromaerr.IsCancelled(err) {
				t.health.RecordSuccess()
			}
			return attempt, nil, err
		}
		wireErr = err
		if !retry || attempt >= maxAttempts {
			break
		}

		delay := t.backoff(attempt)
		if retryAfter > 0 {
			delay = min(retryAfter, t.maxDelay)
		}
		t.logger.WarnContext(ctx, "retrying chroma request",
			"method", req.method,
			"route", req.route,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		t.metrics.observeRetry(req.route)
		if err := t.sleep(ctx, delay); err != nil {
			return attempt, nil, cancelled(ctx, err)
		}
	}

	t.health.RecordFailure()
	return attempt, wireErr, nil
}

// attempt sends the request once. A nil error means success and a coded
// error is terminal. A plain error is a wire failure, retried when retry is
// set; retryAfter carries the server's Retry-After hint.
func (t *transport) attempt(ctx context.Context, req *request, payload []byte) (retryAfter time.Duration, retry bool, err error) {
	u := t.baseURL.JoinPath(req.path)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return 0, false, chromaerr.Wrapf(err, chromaerr.CodeClientConfigInvalid, "building %s request", req.route)
	}
	httpReq.Header = t.headers.Clone()

	start := time.Now()
	resp, err := t.http.Do(httpReq)
	if err != nil {
		t.metrics.observeRequest(req.method, req.route, "error", time.Since(start))
		if ctx.Err() != nil {
			return 0, false, cancelled(ctx, ctx.Err())
		}
		t.logger.DebugContext(ctx, "chroma request failed", "route", req.route, "error", err)
		if req.noReplay {
			return 0, isDialFailure(err), err
		}
		return 0, isTransient(err), err
	}
	defer func() { _ = resp.Body.Close() }()
	t.metrics.observeRequest(req.method, req.route, strconv.Itoa(resp.StatusCode), time.Since(start))

	if isRetryableStatus(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return parseRetryAfter(resp.Header.Get("Retry-After")), !req.noReplay || isRejectedStatus(resp.StatusCode),
			fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		codes := req.codes
		if codes.notFound == "" {
			codes = defaultErrorCodes
		}
		return 0, false, decodeError(resp, codes)
	}

	if req.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(req.out); err != nil {
		if ctx.Err() != nil {
			return 0, false, cancelled(ctx, ctx.Err())
		}
		return 0, false, chromaerr.Wrapf(err, chromaerr.CodeTransportResponseInvalid,
			"decoding %s response", req.route)
	}
	return 0, false, nil
}

// backoff returns the delay before retry number attempt (1-based): an
// exponentially growing window with the upper half jittered.
func (t *transport) backoff(attempt int) time.Duration {
	d := t.baseDelay << (attempt - 1)
	if d <= 0 || d > t.maxDelay {
		d = t.maxDelay
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half+1)
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isRejectedStatus reports whether a retryable status means the server
// refused the request outright. 502 and 504 come from a proxy that may have
// forwarded it.
func isRejectedStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// isDialFailure reports whether err happened before any bytes reached the
// server.
func isDialFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// isTransient reports whether a client-side failure is worth retrying:
// dial failures, timeouts, resets and truncated responses.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// cancelled maps a context failure to a CancelledError. Both explicit
// cancellation and an expired caller deadline surface this way.
func cancelled(ctx context.Context, cause error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		cause = ctxErr
	}
	return chromaerr.Wrap(cause, chromaerr.CodeRequestCancelled, "request cancelled")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
