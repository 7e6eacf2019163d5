// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package health tracks whether a Chroma endpoint is currently usable.
package health

import "time"

// Metrics is a snapshot of one endpoint's health, as returned by
// chroma.Client.Health.
type Metrics struct {
	Endpoint      string     `json:"endpoint"`
	Available     bool       `json:"available"`
	SuccessCount  int64      `json:"success_count"`
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}
