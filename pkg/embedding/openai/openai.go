// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package openai embeds text with the OpenAI embeddings API.
package openai

import (
	"context"
	"fmt"
	"sort"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "text-embedding-3-small"

// Config holds OpenAI embedding configuration.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string // optional, useful for testing against a mock server
	Dimensions int    // 0 leaves the model default
}

// Embedder implements chroma.EmbeddingFunction.
type Embedder struct {
	client openaisdk.Client
	model  string
	dims   int
}

// New creates an Embedder. Returns an error if the API key is missing.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, chromaerr.New(chromaerr.CodeEmbeddingConfigInvalid,
			"openai: missing api_key in config", chromaerr.FieldProvider("openai"))
	}
	if cfg.Dimensions < 0 {
		return nil, chromaerr.New(chromaerr.CodeEmbeddingConfigInvalid,
			fmt.Sprintf("openai: dimensions must be >= 0, got %d", cfg.Dimensions), chromaerr.FieldProvider("openai"))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Embedder{client: openaisdk.NewClient(opts...), model: model, dims: cfg.Dimensions}, nil
}

func (e *Embedder) Model() string { return e.model }

// Embed returns one vector per text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openaisdk.EmbeddingNewParams{
		Input:          openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openaisdk.EmbeddingModel(e.model),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.dims > 0 {
		params.Dimensions = openaisdk.Int(int64(e.dims))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, chromaerr.Wrapf(err, chromaerr.CodeEmbeddingUpstreamFailure,
			"openai: embedding %d texts", len(texts))
	}
	return toVectors(resp.Data, len(texts))
}

func toVectors(data []openaisdk.Embedding, want int) ([][]float32, error) {
	if len(data) != want {
		return nil, chromaerr.New(chromaerr.CodeEmbeddingResponseInvalid,
			fmt.Sprintf("openai: got %d embeddings for %d texts", len(data), want))
	}

	sorted := make([]openaisdk.Embedding, len(data))
	copy(sorted, data)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	out := make([][]float32, want)
	for i, d := range sorted {
		if int(d.Index) != i {
			return nil, chromaerr.New(chromaerr.CodeEmbeddingResponseInvalid,
				fmt.Sprintf("openai: unexpected embedding index %d", d.Index))
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}
