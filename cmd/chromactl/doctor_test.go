// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sigil-dev/chroma-go/internal/config"
	"github.com/sigil-dev/chroma-go/internal/emulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctor_ReachableServer(t *testing.T) {
	isolate(t)
	url := startEmulator(t, emulator.Config{})

	out, err := run(t, nil, "doctor", "--url", url)
	require.NoError(t, err)
	for _, label := range []string{"Binary:", "Platform:", "Config:", "Server:", "Embedding:", "Disk Space:"} {
		assert.Contains(t, out, label)
	}
	assert.Contains(t, out, "chroma "+emulator.Version+" at "+url)
	assert.Contains(t, out, "using defaults")
	assert.Contains(t, out, "not configured")
}

func TestDoctor_UnreachableServerIsNotAnError(t *testing.T) {
	isolate(t)

	out, err := run(t, nil, "doctor", "--url", "http://127.0.0.1:1", "--timeout", "500ms")
	require.NoError(t, err)
	assert.Contains(t, out, "not reachable at http://127.0.0.1:1")
}

func TestDoctor_InvalidConfig(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "chroma.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client:\n  port: -3\n"), 0o600))

	out, err := run(t, nil, "doctor", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "invalid:")
	assert.Contains(t, out, "skipped (config invalid)")
}

func TestCheckEmbedding(t *testing.T) {
	assert.Contains(t, checkEmbedding(nil), "not configured")

	cfg := &config.Config{Embedding: config.EmbeddingConfig{Provider: "openai"}}
	assert.Equal(t, "openai (default model), missing api_key", checkEmbedding(cfg))

	cfg.Embedding.Model = "text-embedding-3-large"
	cfg.Embedding.APIKey = "keyring://chroma/openai-api-key"
	assert.Equal(t, "openai (text-embedding-3-large), api_key set", checkEmbedding(cfg))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "1.5 MB", formatBytes(3<<19))
	assert.Equal(t, "2.0 GB", formatBytes(2<<30))
}

func TestDataDirFor(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".local", "share", "chroma"), dataDirFor(nil))
	assert.Equal(t, "/srv/chroma", dataDirFor(&config.Config{Emulator: config.EmulatorConfig{DataDir: "/srv/chroma"}}))
}
