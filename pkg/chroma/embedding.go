// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package chroma

import (
	"context"
	"fmt"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

// EmbeddingFunction turns text into vectors. Implementations must return one
// vector per input text, in input order.
type EmbeddingFunction interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingFunc adapts a plain function to EmbeddingFunction.
type EmbeddingFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbeddingFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// embedTexts calls fn and checks the response shape.
func embedTexts(ctx context.Context, fn EmbeddingFunction, texts []string) ([][]float32, error) {
	if fn == nil {
		return nil, chromaerr.New(chromaerr.CodeEmbeddingFunctionUnavailable,
			"no embedding function configured for this collection")
	}
	vectors, err := fn.Embed(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx, err)
		}
		if chromaerr.CodeOf(err) != "" {
			return nil, err
		}
		return nil, chromaerr.Wrap(err, chromaerr.CodeEmbeddingUpstreamFailure, "embedding texts")
	}
	if len(vectors) != len(texts) {
		return nil, chromaerr.New(chromaerr.CodeEmbeddingResponseInvalid,
			fmt.Sprintf("embedding function returned %d vectors for %d texts", len(vectors), len(texts)))
	}
	return vectors, nil
}

// embedMissing fills embeddings for records that carry a document but no
// vector. records is copied when anything needs filling; the caller's slice
// is never modified.
func embedMissing(ctx context.Context, fn EmbeddingFunction, records []Record) ([]Record, error) {
	var pending []int
	for i, r := range records {
		if len(r.Embedding) == 0 && r.Document != nil {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 || fn == nil {
		return records, nil
	}

	texts := make([]string, len(pending))
	for i, idx := range pending {
		texts[i] = *records[idx].Document
	}
	vectors, err := embedTexts(ctx, fn, texts)
	if err != nil {
		return nil, err
	}

	out := make([]Record, len(records))
	copy(out, records)
	for i, idx := range pending {
		out[idx].Embedding = vectors[i]
	}
	return out, nil
}
