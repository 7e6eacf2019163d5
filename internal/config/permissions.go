// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

const groupOrOtherRead fs.FileMode = 0o044

// WarnInsecurePermissions logs a warning when the config file at path is
// readable by group or others. Client tokens and provider API keys may live
// in it. Reports whether a warning was emitted.
func WarnInsecurePermissions(logger *slog.Logger, path string) bool {
	if path == "" {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Debug("could not stat config file for permission check", "path", path, "error", err)
		return false
	}

	if info.Mode().Perm()&groupOrOtherRead == 0 {
		return false
	}
	logger.Warn("config file has insecure permissions; tokens may be readable by other users",
		"path", path,
		"mode", info.Mode(),
		"recommended", "0600",
	)
	return true
}
