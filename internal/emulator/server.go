// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package emulator serves the Chroma /api/v1 HTTP API from a store.Store.
// It backs the chromactl serve command and the client's integration tests.
package emulator

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sigil-dev/chroma-go/internal/store"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
)

// Version is reported by the /api/v1/version endpoint.
const Version = "0.4.24"

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    RateLimitConfig
	// AuthToken, when set, is required as a bearer token or X-Chroma-Token.
	AuthToken string
	// AllowReset enables POST /api/v1/reset.
	AllowReset bool
	Logger     *slog.Logger
}

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router chi.Router
	api    huma.API
	cfg    Config
	store  store.Store
	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Server serving st. Close stops its background goroutines;
// it does not close st.
func New(cfg Config, st store.Store) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, chromaerr.New(chromaerr.CodeServerConfigInvalid, "listen address is required")
	}
	if st == nil {
		return nil, chromaerr.New(chromaerr.CodeServerConfigInvalid, "store is required")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		store:  st,
		logger: logger.With("component", "emulator"),
		done:   make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimit, s.done))
	r.Use(authMiddleware(cfg.AuthToken))

	humaConfig := huma.DefaultConfig("Chroma Emulator", Version)
	humaConfig.Info.Description = "Chroma-compatible vector database API backed by a local store"
	s.api = humachi.New(r, humaConfig)
	s.router = r

	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops the rate limiter's cleanup goroutine.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown. ready, if non-nil, receives the bound
// address once the listener is open.
func (s *Server) Start(ctx context.Context, ready chan<- net.Addr) error {
	defer s.Close()

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return chromaerr.Wrapf(err, chromaerr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}
	if ready != nil {
		ready <- ln.Addr()
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.InfoContext(ctx, "chroma emulator listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return chromaerr.Wrap(err, chromaerr.CodeServerStartFailure, "serving")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return chromaerr.Wrap(err, chromaerr.CodeServerShutdownFailure, "shutting down")
	}

	return <-errCh
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Chroma-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
