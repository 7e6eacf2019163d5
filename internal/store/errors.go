// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"fmt"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

// ErrCollectionNotFound reports a missing collection by name or ID.
func ErrCollectionNotFound(ref string) error {
	return chromaerr.New(chromaerr.CodeStoreCollectionNotFound,
		fmt.Sprintf("Collection %s does not exist.", ref), chromaerr.FieldCollection(ref))
}

// ErrCollectionExists reports a name already taken in the scope.
func ErrCollectionExists(name string) error {
	return chromaerr.New(chromaerr.CodeStoreCollectionConflict,
		fmt.Sprintf("Collection %s already exists.", name), chromaerr.FieldCollection(name))
}

// ErrRecordsExist reports IDs rejected by Add because they are present.
func ErrRecordsExist(collection string, ids []string) error {
	return chromaerr.New(chromaerr.CodeStoreRecordConflict,
		fmt.Sprintf("records already exist: %v", ids),
		chromaerr.FieldCollection(collection), chromaerr.Field("ids", ids))
}

// ErrInvalid reports malformed input.
func ErrInvalid(format string, args ...any) error {
	return chromaerr.Errorf(chromaerr.CodeStoreInvalidInput, format, args...)
}

// ErrDatabase wraps a backend failure.
func ErrDatabase(err error, op string) error {
	return chromaerr.Wrapf(err, chromaerr.CodeStoreDatabaseFailure, "%s", op)
}
