// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/zalando/go-keyring"
)

// go-keyring cannot enumerate keys, so each service keeps a JSON list of its
// key names under this suffix.
const indexSuffix = "::index"

// KeyringStore implements Store on the OS keyring: Keychain on macOS,
// secret-service on Linux, Credential Manager on Windows.
type KeyringStore struct{}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkRef(op, service, key string) error {
	if service == "" {
		return chromaerr.New(chromaerr.CodeSecretInvalidInput, "secret "+op+": service must not be empty")
	}
	if key == "" {
		return chromaerr.New(chromaerr.CodeSecretInvalidInput, "secret "+op+": key must not be empty")
	}
	if key == service+indexSuffix {
		return chromaerr.New(chromaerr.CodeSecretInvalidInput, "secret "+op+": key "+key+" is reserved")
	}
	return nil
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkRef("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return chromaerr.Wrapf(err, chromaerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	})
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkRef("retrieve", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", chromaerr.Errorf(chromaerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return "", chromaerr.Wrapf(err, chromaerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkRef("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return chromaerr.Errorf(chromaerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return chromaerr.Wrapf(err, chromaerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})
}

// List returns the stored key names, sorted.
func (s *KeyringStore) List(service string) ([]string, error) {
	if service == "" {
		return nil, chromaerr.New(chromaerr.CodeSecretInvalidInput, "secret list: service must not be empty")
	}
	keys, err := s.loadIndex(service)
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+indexSuffix)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, chromaerr.Wrapf(err, chromaerr.CodeSecretListFailure, "loading key index for %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, chromaerr.Wrapf(err, chromaerr.CodeSecretListFailure, "decoding key index for %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) updateIndex(service string, edit func([]string) []string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	keys = edit(keys)

	indexKey := service + indexSuffix
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("failed to remove empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return chromaerr.Wrapf(err, chromaerr.CodeSecretListFailure, "encoding key index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return chromaerr.Wrapf(err, chromaerr.CodeSecretListFailure, "saving key index for %s", service)
	}
	return nil
}
