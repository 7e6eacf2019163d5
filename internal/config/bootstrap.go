// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

//go:embed chroma.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/chroma/chroma.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", chromaerr.Errorf(chromaerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "chroma", "chroma.yaml"), nil
}

// WriteDefault writes the commented default config to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return chromaerr.New(chromaerr.CodeConfigAlreadyExists, "config already exists: "+path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return chromaerr.Errorf(chromaerr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return chromaerr.Errorf(chromaerr.CodeConfigLoadReadFailure, "writing config %s: %w", path, err)
	}
	return nil
}

// BootstrapConfig writes the default config to DefaultConfigPath if nothing
// is there yet. Returns the path written, or "" when skipped. Failures are
// logged at debug level and never fatal.
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return ""
	}

	if err := WriteDefault(cfgPath, false); err != nil {
		slog.Debug("skipping config bootstrap", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}
