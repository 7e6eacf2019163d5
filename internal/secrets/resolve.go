// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"strings"

	"github.com/sigil-dev/chroma-go/internal/config"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

const scheme = "keyring://"

// Ref names a secret in a Store.
type Ref struct {
	Service string
	Key     string
}

func (r Ref) String() string { return scheme + r.Service + "/" + r.Key }

// IsRef reports whether value uses the keyring:// scheme.
func IsRef(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseRef parses keyring://service/key. The key may itself contain slashes.
func ParseRef(uri string) (Ref, error) {
	if !IsRef(uri) {
		return Ref{}, chromaerr.Errorf(chromaerr.CodeSecretInvalidInput, "not a keyring reference: %q", uri)
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(uri, scheme), "/")
	if !ok || service == "" || key == "" {
		return Ref{}, chromaerr.Errorf(chromaerr.CodeSecretInvalidInput,
			"invalid keyring reference %q: expected keyring://service/key", uri)
	}
	return Ref{Service: service, Key: key}, nil
}

// Resolve returns value unchanged unless it is a keyring reference, in which
// case the referenced secret is fetched from store.
func Resolve(store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	ref, err := ParseRef(value)
	if err != nil {
		return "", err
	}
	secret, err := store.Retrieve(ref.Service, ref.Key)
	if err != nil {
		return "", chromaerr.Wrapf(err, chromaerr.CodeSecretResolveFailure, "resolving %s", ref)
	}
	return secret, nil
}

// ResolveConfig replaces keyring references in the credential fields of cfg
// in place. The first failure is returned and names the config key.
func ResolveConfig(store Store, cfg *config.Config) error {
	fields := []struct {
		key string
		val *string
	}{
		{"client.token", &cfg.Client.Token},
		{"embedding.api_key", &cfg.Embedding.APIKey},
		{"emulator.auth_token", &cfg.Emulator.AuthToken},
	}
	for _, f := range fields {
		resolved, err := Resolve(store, *f.val)
		if err != nil {
			return chromaerr.Wrap(err, chromaerr.CodeSecretResolveFailure, "config "+f.key,
				chromaerr.Field("config_key", f.key))
		}
		*f.val = resolved
	}
	return nil
}
