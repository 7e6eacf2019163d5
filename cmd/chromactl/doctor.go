// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sigil-dev/chroma-go/internal/config"
	"github.com/sigil-dev/chroma-go/pkg/chroma"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the config file, server reachability, embedding provider settings and disk space for the emulator data directory.",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
	cmd.Flags().Duration("timeout", 3*time.Second, "server check timeout")
	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg, cfgErr := loadConfig()

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgErr) }},
		{"Server", func() string {
			if cfg == nil {
				return "skipped (config invalid)"
			}
			return checkServer(cmd.Context(), endpointFor(cmd, cfg), cfg, timeout)
		}},
		{"Embedding", func() string { return checkEmbedding(cfg) }},
		{"Disk Space", func() string { return checkDiskSpace(dataDirFor(cfg)) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}
	return nil
}

func checkBinary() string {
	return fmt.Sprintf("chromactl %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(err error) string {
	if err != nil {
		return fmt.Sprintf("invalid: %s", err)
	}
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

func checkServer(ctx context.Context, endpoint string, cfg *config.Config, timeout time.Duration) string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(cfg.Client.Options(cfg.Client.Token), chroma.WithRetry(1, time.Millisecond, time.Millisecond))
	client, err := chroma.NewClient(endpoint, opts...)
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	defer func() { _ = client.Close() }()

	if _, err := client.Heartbeat(ctx); err != nil {
		switch {
		case chromaerr.IsConnection(err), chromaerr.IsTransport(err), chromaerr.IsCancelled(err):
			return fmt.Sprintf("not reachable at %s (run 'chromactl serve' for a local emulator)", endpoint)
		default:
			return fmt.Sprintf("error: %s", err)
		}
	}
	ver, err := client.Version(ctx)
	if err != nil {
		return fmt.Sprintf("reachable at %s, version unknown: %s", endpoint, err)
	}
	return fmt.Sprintf("chroma %s at %s", ver, endpoint)
}

func checkEmbedding(cfg *config.Config) string {
	if cfg == nil || cfg.Embedding.Provider == "" {
		return "not configured (records must carry embeddings)"
	}
	model := cfg.Embedding.Model
	if model == "" {
		model = "default model"
	}
	if cfg.Embedding.APIKey == "" {
		return fmt.Sprintf("%s (%s), missing api_key", cfg.Embedding.Provider, model)
	}
	return fmt.Sprintf("%s (%s), api_key set", cfg.Embedding.Provider, model)
}

// dataDirFor returns the emulator data directory, defaulting to
// ~/.local/share/chroma.
func dataDirFor(cfg *config.Config) string {
	if cfg != nil && cfg.Emulator.DataDir != "" {
		return cfg.Emulator.DataDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "chroma")
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	avail := stat.Bavail * uint64(stat.Bsize)
	return fmt.Sprintf("%s available at %s", formatBytes(avail), path)
}

func formatBytes(b uint64) string {
	const (
		gb = 1 << 30
		mb = 1 << 20
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/gb)
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/mb)
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
