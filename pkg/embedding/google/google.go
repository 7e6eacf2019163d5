// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package google embeds text with the Gemini API.
package google

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

const DefaultModel = "text-embedding-004"

// Config holds Gemini embedding configuration.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// Embedder implements chroma.EmbeddingFunction.
type Embedder struct {
	client *genai.Client
	model  string
	dims   int
}

// New creates an Embedder. Returns an error if the API key is missing.
func New(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, chromaerr.New(chromaerr.CodeEmbeddingConfigInvalid,
			"google: missing api_key in config", chromaerr.FieldProvider("google"))
	}
	if cfg.Dimensions < 0 {
		return nil, chromaerr.New(chromaerr.CodeEmbeddingConfigInvalid,
			fmt.Sprintf("google: dimensions must be >= 0, got %d", cfg.Dimensions), chromaerr.FieldProvider("google"))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, chromaerr.Wrapf(err, chromaerr.CodeEmbeddingConfigInvalid, "google: creating client")
	}

	return &Embedder{client: client, model: model, dims: cfg.Dimensions}, nil
}

func (e *Embedder) Model() string { return e.model }

// Embed returns one vector per text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	var cfg *genai.EmbedContentConfig
	if e.dims > 0 {
		d := int32(e.dims)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &d}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, chromaerr.Wrapf(err, chromaerr.CodeEmbeddingUpstreamFailure,
			"google: embedding %d texts", len(texts))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, chromaerr.New(chromaerr.CodeEmbeddingResponseInvalid,
			fmt.Sprintf("google: got %d embeddings for %d texts", len(resp.Embeddings), len(texts)))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, chromaerr.New(chromaerr.CodeEmbeddingResponseInvalid,
				fmt.Sprintf("google: embedding %d is empty", i))
		}
		out[i] = emb.Values
	}
	return out, nil
}
