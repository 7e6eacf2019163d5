// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := chromaerr.New(
		chromaerr.CodeCollectionCreateConflict,
		"collection already exists",
		chromaerr.FieldCollection("docs"),
		chromaerr.Field("tenant", "default_tenant"),
	)

	require.Error(t, err)
	assert.Equal(t, chromaerr.CodeCollectionCreateConflict, chromaerr.CodeOf(err))
	assert.True(t, chromaerr.HasCode(err, chromaerr.CodeCollectionCreateConflict))

	fields := chromaerr.FieldsOf(err)
	assert.Equal(t, "docs", fields["collection"])
	assert.Equal(t, "default_tenant", fields["tenant"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("connection refused")
	err := chromaerr.Errorf(chromaerr.CodeClientConnectFailure, "dialing %s: %w", "localhost:8000", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, chromaerr.CodeClientConnectFailure, chromaerr.CodeOf(err))
	assert.Contains(t, err.Error(), "dialing localhost:8000")
}

// ---------------------------------------------------------------------------
// Wrap / Wrapf / With
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("no such collection")
	err := chromaerr.Wrap(root, chromaerr.CodeCollectionNotFound, "loading collection",
		chromaerr.FieldCollection("docs"))

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, chromaerr.IsNotFound(err))
	assert.Equal(t, "docs", chromaerr.FieldsOf(err)["collection"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, chromaerr.Wrap(nil, chromaerr.CodeServerInternalFailure, "ignored"))
	assert.NoError(t, chromaerr.Wrapf(nil, chromaerr.CodeServerInternalFailure, "ignored %s", "arg"))
	assert.NoError(t, chromaerr.With(nil, chromaerr.Field("k", "v")))
}

func TestWithAddsContextWithoutChangingCode(t *testing.T) {
	base := chromaerr.New(chromaerr.CodeRecordValidateInvalid, "bad batch")
	withCtx := chromaerr.With(base, chromaerr.FieldCollection("docs"))

	assert.Equal(t, chromaerr.CodeRecordValidateInvalid, chromaerr.CodeOf(withCtx))
	assert.Equal(t, "docs", chromaerr.FieldsOf(withCtx)["collection"])
}

func TestWithOnPlainErrorDefaultsToInternalCode(t *testing.T) {
	err := chromaerr.With(stderrors.New("plain"), chromaerr.Field("k", 1))
	assert.Equal(t, chromaerr.CodeServerInternalFailure, chromaerr.CodeOf(err))
}

func TestCodeOfReturnsInnermostCodedError(t *testing.T) {
	inner := chromaerr.New(chromaerr.CodeStoreCollectionNotFound, "missing")
	outer := chromaerr.Wrap(inner, chromaerr.CodeServerInternalFailure, "handler")
	assert.Equal(t, chromaerr.CodeStoreCollectionNotFound, chromaerr.CodeOf(outer))
	assert.Equal(t, http.StatusNotFound, chromaerr.HTTPStatus(outer))
}

func TestCodeOfPlainAndNil(t *testing.T) {
	assert.Equal(t, chromaerr.Code(""), chromaerr.CodeOf(nil))
	assert.Equal(t, chromaerr.Code(""), chromaerr.CodeOf(stderrors.New("plain")))
	assert.Nil(t, chromaerr.FieldsOf(stderrors.New("plain")))
}

// ---------------------------------------------------------------------------
// Indices
// ---------------------------------------------------------------------------

func TestIndicesSortedCopy(t *testing.T) {
	idx := []int{4, 1, 2}
	err := chromaerr.New(chromaerr.CodeRecordValidateInvalid, "dimension mismatch",
		chromaerr.FieldIndices(idx))

	assert.Equal(t, []int{1, 2, 4}, chromaerr.Indices(err))
	assert.Equal(t, []int{4, 1, 2}, idx, "caller slice must not be reordered")
}

func TestIndicesAbsent(t *testing.T) {
	assert.Nil(t, chromaerr.Indices(chromaerr.New(chromaerr.CodeRecordValidateInvalid, "x")))
	assert.Nil(t, chromaerr.Indices(nil))
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

func TestClassificationAndStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   chromaerr.Code
		check  func(error) bool
		status int
	}{
		{"connection", chromaerr.CodeClientConnectFailure, chromaerr.IsConnection, http.StatusInternalServerError},
		{"transport", chromaerr.CodeTransportRequestFailure, chromaerr.IsTransport, http.StatusInternalServerError},
		{"response malformed", chromaerr.CodeTransportResponseInvalid, chromaerr.IsTransport, http.StatusInternalServerError},
		{"upstream", chromaerr.CodeTransportUpstreamFailure, chromaerr.IsUpstreamFailure, http.StatusBadGateway},
		{"validation", chromaerr.CodeRecordValidateInvalid, chromaerr.IsValidation, http.StatusBadRequest},
		{"conflict", chromaerr.CodeCollectionCreateConflict, chromaerr.IsConflict, http.StatusConflict},
		{"record conflict", chromaerr.CodeStoreRecordConflict, chromaerr.IsConflict, http.StatusConflict},
		{"not found", chromaerr.CodeCollectionNotFound, chromaerr.IsNotFound, http.StatusNotFound},
		{"cancelled", chromaerr.CodeRequestCancelled, chromaerr.IsCancelled, http.StatusInternalServerError},
		{"unauthorized", chromaerr.CodeTransportUnauthorized, chromaerr.IsUnauthorized, http.StatusUnauthorized},
		{"rate limited", chromaerr.CodeServerRateLimited, chromaerr.IsRateLimited, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := chromaerr.New(tt.code, tt.name)
			assert.True(t, tt.check(err))
			assert.Equal(t, tt.status, chromaerr.HTTPStatus(err))
		})
	}
}

func TestUnauthorizedIsNotTransport(t *testing.T) {
	err := chromaerr.New(chromaerr.CodeTransportUnauthorized, "bad token")
	assert.False(t, chromaerr.IsTransport(err))
}

func TestClassificationNegativeCases(t *testing.T) {
	err := chromaerr.New(chromaerr.CodeCollectionNotFound, "missing")
	assert.False(t, chromaerr.IsConflict(err))
	assert.False(t, chromaerr.IsValidation(err))
	assert.False(t, chromaerr.IsCancelled(err))
	assert.False(t, chromaerr.IsTransport(err))
	assert.False(t, chromaerr.IsConnection(err))
}

func TestClassificationOnPlainError(t *testing.T) {
	plain := stderrors.New("boom")
	assert.False(t, chromaerr.IsNotFound(plain))
	assert.False(t, chromaerr.IsTransport(plain))
	assert.Equal(t, http.StatusInternalServerError, chromaerr.HTTPStatus(plain))
	assert.Equal(t, http.StatusInternalServerError, chromaerr.HTTPStatus(nil))
}

func TestJoinCombinesErrors(t *testing.T) {
	a := stderrors.New("a")
	b := stderrors.New("b")
	err := chromaerr.Join(a, b)
	assert.ErrorIs(t, err, a)
	assert.ErrorIs(t, err, b)
	assert.Equal(t, chromaerr.CodeServerInternalFailure, chromaerr.CodeOf(err))
}
