// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"context"
	"time"
)

// SetSleep replaces the retry sleep so tests can observe backoff delays.
func (c *Client) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	c.transport.sleep = fn
}

var ParseRetryAfter = parseRetryAfter
