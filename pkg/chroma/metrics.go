// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

const metricsNamespace = "chroma_client"

// clientMetrics holds the Prometheus collectors for one client. A nil
// *clientMetrics records nothing.
type clientMetrics struct {
	requests *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "HTTP attempts sent to the Chroma server, by route and status.",
		}, []string{"method", "route", "status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "retries_total",
			Help:      "Retries of transient failures, by route.",
		}, []string{"route"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP attempts, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	for i, c := range []prometheus.Collector{m.requests, m.retries, m.duration} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, chromaerr.Wrap(err, chromaerr.CodeClientConfigInvalid, "registering client metrics")
			}
			// Share collectors with an earlier client on the same registry.
			switch i {
			case 0:
				m.requests = already.ExistingCollector.(*prometheus.CounterVec)
			case 1:
				m.retries = already.ExistingCollector.(*prometheus.CounterVec)
			case 2:
				m.duration = already.ExistingCollector.(*prometheus.HistogramVec)
			}
		}
	}
	return m, nil
}

func (m *clientMetrics) observeRequest(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, status).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *clientMetrics) observeRetry(route string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(route).Inc()
}
