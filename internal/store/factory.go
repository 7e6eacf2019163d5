// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"slices"
	"sync"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

// DefaultBackend is used when Config.Backend is empty.
const DefaultBackend = "memory"

// Config selects and configures a storage backend.
type Config struct {
	Backend string
	// DataDir holds on-disk state for persistent backends.
	DataDir string
}

// Factory opens a store for cfg.
type Factory func(cfg Config) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends lists the registered backend names, sorted.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open creates the store for cfg's backend.
func Open(cfg Config) (Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = DefaultBackend
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, chromaerr.Errorf(chromaerr.CodeStoreBackendUnsupported,
			"unsupported storage backend: %q (registered: %v)", backend, Backends())
	}
	return factory(cfg)
}
