// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
//
// Codes are dotted paths; the last segment is the reason and drives the
// classification predicates below (not_found, conflict, invalid_input, ...).
type Code string

const (
	CodeClientConnectFailure     Code = "client.connect.failure"
	CodeClientConfigInvalid      Code = "client.config.invalid"
	CodeTransportRequestFailure  Code = "transport.request.failure"
	CodeTransportResponseInvalid Code = "transport.response.malformed"
	CodeTransportUpstreamFailure Code = "transport.upstream.failure"
	CodeTransportUnauthorized    Code = "transport.auth.unauthorized"
	CodeRequestCancelled         Code = "request.cancelled"

	CodeCollectionCreateConflict     Code = "collection.create.conflict"
	CodeCollectionNotFound           Code = "collection.get.not_found"
	CodeCollectionValidateInvalid    Code = "collection.validate.invalid_input"
	CodeRecordValidateInvalid        Code = "record.validate.invalid_input"
	CodeRecordAddConflict            Code = "record.add.conflict"
	CodeQueryValidateInvalid         Code = "query.validate.invalid_input"
	CodeFilterValidateInvalid        Code = "filter.validate.invalid_input"
	CodeEmbeddingConfigInvalid       Code = "embedding.config.invalid"
	CodeEmbeddingUpstreamFailure     Code = "embedding.upstream.failure"
	CodeEmbeddingResponseInvalid     Code = "embedding.response.invalid"
	CodeEmbeddingFunctionUnavailable Code = "embedding.function.invalid_input"

	CodeStoreCollectionNotFound Code = "store.collection.not_found"
	CodeStoreCollectionConflict Code = "store.collection.conflict"
	CodeStoreRecordConflict     Code = "store.record.conflict"
	CodeStoreInvalidInput       Code = "store.invalid_input"
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"
	CodeConfigAlreadyExists        Code = "config.write.conflict"

	CodeSecretInvalidInput   Code = "secret.input.invalid"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"
	CodeServerRateLimited     Code = "server.ratelimit.exceeded"

	CodeCLIRequestFailure  Code = "cli.request.failure"
	CodeCLIResponseInvalid Code = "cli.response.invalid"
	CodeCLISetupFailure    Code = "cli.setup.failure"
	CodeCLIInputInvalid    Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldCollection(value string) Attr {
	return Field("collection", value)
}

func FieldEndpoint(value string) Attr {
	return Field("endpoint", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldStatus(value int) Attr {
	return Field("status", value)
}

func FieldAttempts(value int) Attr {
	return Field("attempts", value)
}

// FieldIndices records the positions of offending items in a batch.
func FieldIndices(value []int) Attr {
	return Field("indices", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

// Indices returns the offending batch positions attached to a validation
// error, sorted ascending. Returns nil when none were recorded.
func Indices(err error) []int {
	raw, ok := FieldsOf(err)["indices"]
	if !ok {
		return nil
	}
	idx, ok := raw.([]int)
	if !ok {
		return nil
	}
	out := slices.Clone(idx)
	slices.Sort(out)
	return out
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

// IsValidation is an alias of IsInvalidInput that reads better at client callsites.
func IsValidation(err error) bool {
	return IsInvalidInput(err)
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

func IsConnection(err error) bool {
	return HasCode(err, CodeClientConnectFailure)
}

// IsTransport reports whether err is a request that failed on the wire
// (retries exhausted, malformed response, or upstream 5xx).
func IsTransport(err error) bool {
	code := CodeOf(err)
	return strings.HasPrefix(string(code), "transport.") && !IsUnauthorized(err)
}

func IsCancelled(err error) bool {
	return reason(CodeOf(err)) == "cancelled"
}

func IsRateLimited(err error) bool {
	return reason(CodeOf(err)) == "exceeded"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		if reason(CodeOf(err)) == "forbidden" || reason(CodeOf(err)) == "denied" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case IsRateLimited(err):
		return http.StatusTooManyRequests
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
