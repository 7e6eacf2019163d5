// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps chromactl credentials (server tokens, embedding
// provider API keys) out of plain-text config.
package secrets

// DefaultService is the keyring service chromactl writes under.
const DefaultService = "chroma"

// Store provides secret storage operations.
type Store interface {
	// Store saves value under service/key.
	Store(service, key, value string) error

	// Retrieve returns a CodeSecretNotFound error if the key does not exist.
	Retrieve(service, key string) (string, error)

	// Delete returns a CodeSecretNotFound error if the key does not exist.
	Delete(service, key string) error

	// List returns the key names stored under service.
	List(service string) ([]string, error)
}
