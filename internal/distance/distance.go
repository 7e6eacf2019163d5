// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package distance implements the distance functions collections rank by.
// Smaller is always closer.
package distance

import (
	"fmt"
	"math"
)

// Func computes the distance between two vectors of equal length.
type Func func(a, b []float32) float64

// Dot returns the inner product of a and b.
// Assumes equal lengths (caller's responsibility).
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Cosine returns 1 - cos(a, b). A zero vector is at distance 1 from
// everything.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	// Rounding can push identical vectors slightly below zero.
	return math.Max(d, 0)
}

// InnerProduct returns 1 - a·b.
func InnerProduct(a, b []float32) float64 {
	return 1 - Dot(a, b)
}

// Provider returns the distance function for a metric name: "l2", "cosine"
// or "ip".
func Provider(metric string) (Func, error) {
	switch metric {
	case "", "l2":
		return SquaredL2, nil
	case "cosine":
		return Cosine, nil
	case "ip":
		return InnerProduct, nil
	default:
		return nil, fmt.Errorf("unsupported metric %q", metric)
	}
}
