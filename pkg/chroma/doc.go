// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package chroma is a client for Chroma-compatible vector databases speaking
// the HTTP+JSON /api/v1 protocol.
//
// A Client owns a bounded pool of HTTP connections and retries transient
// failures with exponential backoff. Collections are addressed through
// *Collection handles returned by CreateCollection, GetCollection and
// GetOrCreateCollection:
//
//	client, err := chroma.Connect(ctx, "localhost:8000")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	col, err := client.CreateCollection(ctx, "docs", 384, chroma.MetricCosine)
//	if err != nil {
//	    return err
//	}
//	err = col.Upsert(ctx, []chroma.Record{{ID: "a", Embedding: vec}})
//	results, err := col.Query(ctx, [][]float32{vec}, 5, chroma.Eq("lang", "en"))
//
// Errors carry codes from pkg/errors and are classified with its predicates
// (IsConnection, IsTransport, IsValidation, IsConflict, IsNotFound,
// IsCancelled).
package chroma
