// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package emulator

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// publicPaths are reachable without a token, matching Chroma's default
// auth ignore list.
var publicPaths = map[string]bool{
	"/api/v1":           true,
	"/api/v1/heartbeat": true,
	"/api/v1/version":   true,
}

// authMiddleware enforces token auth. An empty token disables it.
func authMiddleware(token string) func(http.Handler) http.Handler {
	if token == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	want := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet && publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get("X-Chroma-Token")
			if got == "" {
				got, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				slog.Debug("rejecting unauthenticated request", "path", r.URL.Path, "remote", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "missing or invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes the error envelope outside of huma handlers.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := `{"error":"` + errorType(status) + `","message":` + quoteJSON(msg) + `}`
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Warn("failed to write error response", "error", err)
	}
}

func quoteJSON(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
