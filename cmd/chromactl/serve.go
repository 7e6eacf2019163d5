// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/sigil-dev/chroma-go/internal/config"
	"github.com/sigil-dev/chroma-go/internal/emulator"
	"github.com/sigil-dev/chroma-go/internal/store"
	_ "github.com/sigil-dev/chroma-go/internal/store/memory" // register memory backend
	_ "github.com/sigil-dev/chroma-go/internal/store/sqlite" // register sqlite backend
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a Chroma-compatible emulator",
		Long: `Serve the Chroma /api/v1 HTTP API from an in-process store.

The memory backend forgets everything on exit; the sqlite backend persists
collections under emulator.data_dir.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("listen", "", "override emulator.listen (host:port)")
	cmd.Flags().String("backend", "", "override emulator.backend (memory or sqlite)")
	cmd.Flags().String("data-dir", "", "override emulator.data_dir")
	return cmd
}

// applyServeFlags overlays explicitly set flags onto cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.EmulatorConfig) {
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.Listen = v
	}
	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		cfg.Backend = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, &cfg.Emulator)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serveEmulator(ctx, cfg.Emulator, func(addr net.Addr) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Chroma emulator listening on http://%s (backend=%s)\n", addr, cfg.Emulator.Backend)
	})
}

// serveEmulator runs until ctx is cancelled. onReady, if non-nil, is called
// once the listener is bound.
func serveEmulator(ctx context.Context, ec config.EmulatorConfig, onReady func(net.Addr)) error {
	st, err := store.Open(store.Config{Backend: ec.Backend, DataDir: ec.DataDir})
	if err != nil {
		return chromaerr.Wrapf(err, chromaerr.CodeCLISetupFailure, "opening %s store", ec.Backend)
	}
	defer func() { _ = st.Close() }()

	srv, err := emulator.New(emulator.Config{
		ListenAddr:  ec.Listen,
		CORSOrigins: ec.CORSOrigins,
		AuthToken:   ec.AuthToken,
		AllowReset:  ec.AllowReset,
		RateLimit: emulator.RateLimitConfig{
			RequestsPerSecond: ec.RateLimit.RPS,
			Burst:             ec.RateLimit.Burst,
		},
		Logger: slog.Default(),
	}, st)
	if err != nil {
		return err
	}
	defer srv.Close()

	if ec.AuthToken == "" {
		slog.Warn("emulator authentication disabled: emulator.auth_token is empty")
	}

	ready := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx, ready) }()

	select {
	case addr := <-ready:
		if onReady != nil {
			onReady(addr)
		}
	case err := <-errCh:
		return err
	}
	return <-errCh
}
