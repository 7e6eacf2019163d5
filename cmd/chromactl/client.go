// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/sigil-dev/chroma-go/internal/config"
	"github.com/sigil-dev/chroma-go/pkg/chroma"
	"github.com/sigil-dev/chroma-go/pkg/embedding"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/spf13/cobra"
)

// session bundles what data commands need: a client plus the configured
// embedding function (nil when none is configured).
type session struct {
	client   *chroma.Client
	embedder chroma.EmbeddingFunction
	cfg      *config.Config
}

func endpointFor(cmd *cobra.Command, cfg *config.Config) string {
	if u, _ := cmd.Flags().GetString("url"); u != "" {
		return u
	}
	return cfg.Client.Endpoint()
}

// connect loads config, builds an embedding function and connects to the
// server. The heartbeat round trip surfaces a bad endpoint before any
// command-specific work.
func connect(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.New(ctx, embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, err
	}

	opts := append(cfg.Client.Options(cfg.Client.Token), chroma.WithLogger(slog.Default()))
	client, err := chroma.Connect(ctx, endpointFor(cmd, cfg), opts...)
	if err != nil {
		return nil, err
	}
	return &session{client: client, embedder: embedder, cfg: cfg}, nil
}

func (s *session) Close() error { return s.client.Close() }

// collection looks up name and attaches the configured embedder.
func (s *session) collection(ctx context.Context, name string) (*chroma.Collection, error) {
	var opts []chroma.CollectionOption
	if s.embedder != nil {
		opts = append(opts, chroma.WithEmbeddingFunction(s.embedder))
	}
	return s.client.GetCollection(ctx, name, opts...)
}

func inputError(format string, args ...any) error {
	return chromaerr.Errorf(chromaerr.CodeCLIInputInvalid, format, args...)
}
