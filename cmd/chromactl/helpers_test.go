// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"io"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/sigil-dev/chroma-go/internal/emulator"
	"github.com/sigil-dev/chroma-go/internal/secrets"
	"github.com/sigil-dev/chroma-go/internal/store/memory"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/stretchr/testify/require"
)

// mockSecretStore is an in-memory secrets.Store keyed by service/key.
type mockSecretStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockSecretStore() *mockSecretStore {
	return &mockSecretStore{data: map[string]string{}}
}

func (m *mockSecretStore) Store(service, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[service+"/"+key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(service, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[service+"/"+key]
	if !ok {
		return "", chromaerr.Errorf(chromaerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	return v, nil
}

func (m *mockSecretStore) Delete(service, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[service+"/"+key]; !ok {
		return chromaerr.Errorf(chromaerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	delete(m.data, service+"/"+key)
	return nil
}

func (m *mockSecretStore) List(service string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if name, ok := strings.CutPrefix(k, service+"/"); ok {
			keys = append(keys, name)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// isolate points HOME at a temp dir and swaps in an in-memory secret store.
func isolate(t *testing.T) *mockSecretStore {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	store := newMockSecretStore()
	prev := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() { secretStoreFactory = prev })
	return store
}

// startEmulator serves a fresh in-memory emulator and returns its URL.
func startEmulator(t *testing.T, cfg emulator.Config) string {
	t.Helper()
	cfg.ListenAddr = "127.0.0.1:0"
	srv, err := emulator.New(cfg, memory.New())
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// run executes chromactl with args and returns combined stdout.
func run(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}
