// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package emulator

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

// apiError is the Chroma error envelope: {"error": "<type>", "message": "..."}.
type apiError struct {
	status  int
	Type    string `json:"error" doc:"Error type name" example:"NotFoundError"`
	Message string `json:"message" doc:"Human-readable error message"`
}

func (e *apiError) Error() string  { return e.Message }
func (e *apiError) GetStatus() int { return e.status }

func init() {
	// Framework-generated errors (bad JSON, unknown routes through huma,
	// parameter parsing) use the same envelope as handler errors.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		details := make([]string, 0, len(errs))
		for _, err := range errs {
			if err != nil {
				details = append(details, err.Error())
			}
		}
		if len(details) > 0 {
			msg += ": " + strings.Join(details, "; ")
		}
		return &apiError{status: status, Type: errorType(status), Message: msg}
	}
}

func errorType(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NotFoundError"
	case http.StatusConflict:
		return "UniqueConstraintError"
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "InvalidArgumentError"
	case http.StatusUnauthorized, http.StatusForbidden:
		return "AuthorizationError"
	case http.StatusTooManyRequests:
		return "RateLimitError"
	default:
		return "InternalError"
	}
}

// fail converts a coded error to its HTTP form and logs server-side failures.
func (s *Server) fail(ctx context.Context, err error) error {
	status := chromaerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, "request failed", "error", err, "code", chromaerr.CodeOf(err))
	}
	return &apiError{status: status, Type: errorType(status), Message: err.Error()}
}

func badRequest(format string, args ...any) error {
	err := chromaerr.Errorf(chromaerr.CodeServerRequestInvalid, format, args...)
	return &apiError{status: http.StatusBadRequest, Type: errorType(http.StatusBadRequest), Message: err.Error()}
}
