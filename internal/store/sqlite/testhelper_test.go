// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sigil-dev/chroma-go/internal/store"
	"github.com/sigil-dev/chroma-go/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

func testCollection(name, metric string, dim int) *store.Collection {
	return &store.Collection{
		ID:        "id-" + name,
		Name:      name,
		Dimension: dim,
		Metric:    metric,
		Scope:     store.Scope{Tenant: "default_tenant", Database: "default_database"},
		CreatedAt: time.Now(),
	}
}

func mustOpen(t *testing.T, path string) store.Store {
	t.Helper()
	s, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
