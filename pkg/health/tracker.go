// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package health

import (
	"sync"
	"time"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

// Tracker provides simple health state tracking for an endpoint.
// An endpoint is considered healthy until RecordFailure is called.
// After a failure, the endpoint is marked unhealthy for a cooldown
// period, after which it becomes available again to allow recovery.
type Tracker struct {
	mu           sync.RWMutex
	endpoint     string
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	failureCount int64
	successCount int64
	nowFunc      func() time.Time // for testing
}

// DefaultCooldown is the duration after which an unhealthy endpoint
// becomes eligible for full retries again.
const DefaultCooldown = 30 * time.Second

// NewTracker creates a Tracker that starts healthy.
// Returns an error if cooldown is zero or negative.
func NewTracker(endpoint string, cooldown time.Duration) (*Tracker, error) {
	if cooldown <= 0 {
		return nil, chromaerr.Errorf(chromaerr.CodeClientConfigInvalid,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &Tracker{
		endpoint: endpoint,
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// isHealthyLocked reports whether the endpoint is healthy or the cooldown
// has elapsed. The caller MUST hold at least h.mu.RLock.
func (h *Tracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

// IsHealthy returns true if the endpoint is healthy or the cooldown has elapsed.
func (h *Tracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

// RecordSuccess marks the endpoint as healthy.
func (h *Tracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.successCount++
	h.mu.Unlock()
}

// RecordFailure marks the endpoint as unhealthy and increments the
// cumulative failure count.
func (h *Tracker) RecordFailure() {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	h.mu.Unlock()
}

// SetNowFunc overrides the time source (for testing).
func (h *Tracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// Metrics returns a point-in-time snapshot of the tracker's state.
func (h *Tracker) Metrics() Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := Metrics{
		Endpoint:     h.endpoint,
		FailureCount: h.failureCount,
		SuccessCount: h.successCount,
	}

	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}

	m.Available = h.isHealthyLocked()
	if !h.healthy {
		cooldownEnd := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &cooldownEnd
	}
	return m
}
