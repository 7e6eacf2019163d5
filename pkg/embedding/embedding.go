// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package embedding builds a chroma.EmbeddingFunction from provider settings.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/sigil-dev/chroma-go/pkg/chroma"
	"github.com/sigil-dev/chroma-go/pkg/embedding/google"
	"github.com/sigil-dev/chroma-go/pkg/embedding/openai"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// Providers lists the accepted Config.Provider values.
var Providers = []string{"openai", "google"}

// New returns nil and no error when cfg.Provider is empty.
func New(ctx context.Context, cfg Config) (chroma.EmbeddingFunction, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, nil
	case "openai":
		e, err := openai.New(openai.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	case "google", "gemini":
		e, err := google.New(ctx, google.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, chromaerr.New(chromaerr.CodeEmbeddingConfigInvalid,
			fmt.Sprintf("unknown embedding provider %q (want one of %s)", cfg.Provider, strings.Join(Providers, ", ")),
			chromaerr.FieldProvider(cfg.Provider))
	}
}
