// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/sigil-dev/chroma-go/internal/store"
)

// DBFile is the database file name inside the data directory.
const DBFile = "chroma.db"

func init() {
	store.RegisterBackend("sqlite", open)
}

func open(cfg store.Config) (store.Store, error) {
	if cfg.DataDir == "" {
		return Open(":memory:")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, store.ErrDatabase(err, "creating data dir")
	}
	return Open(filepath.Join(cfg.DataDir, DBFile))
}
