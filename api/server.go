// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/poiesic/chatsession/ai"
	"github.com/poiesic/chatsession/history"
	"github.com/poiesic/chatsession/session"
)

// DefaultShutdownTimeout bounds graceful shutdown in ListenAndServe.
const DefaultShutdownTimeout = 10 * time.Second

// ErrHistoryRequired is returned when a server is built without a history service.
var ErrHistoryRequired = errors.New("history service is required")

// Server routes HTTP requests to a history service and, when configured,
// an embedder and a session manager.
type Server struct {
	service  history.Service
	embedder ai.Embedder
	sessions *session.Manager
	origin   string
	logger   *slog.Logger
	router   *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithEmbedder lets /api/v1/query and /api/v1/documents embed text
// sent without a vector.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(s *Server) {
		s.embedder = embedder
	}
}

// WithSessionManager enables /api/v1/ask.
func WithSessionManager(m *session.Manager) Option {
	return func(s *Server) {
		s.sessions = m
	}
}

// WithAllowedOrigin sets the CORS allowed origin. Empty disables CORS headers.
func WithAllowedOrigin(origin string) Option {
	return func(s *Server) {
		s.origin = origin
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server for service.
func NewServer(service history.Service, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, ErrHistoryRequired
	}
	s := &Server{
		service: service,
		origin:  "*",
		logger:  slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	if s.origin != "" {
		r.Use(s.corsMiddleware)
	}

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/schema", s.handleEnsureSchema).Methods(http.MethodPut)
	v1.HandleFunc("/schema", s.handleGetSchema).Methods(http.MethodGet)
	v1.HandleFunc("/schema", s.handleDeleteSchema).Methods(http.MethodDelete)

	v1.HandleFunc("/documents", s.handleAddDocument).Methods(http.MethodPost)
	v1.HandleFunc("/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	v1.HandleFunc("/documents/{id}", s.handleDeleteDocument).Methods(http.MethodDelete)

	v1.HandleFunc("/users/{userId}/documents", s.handleListUserDocuments).Methods(http.MethodGet)
	v1.HandleFunc("/users/{userId}/documents", s.handleDeleteUserDocuments).Methods(http.MethodDelete)
	v1.HandleFunc("/users/{userId}/sessions/{sessionId}/documents", s.handleListSessionDocuments).Methods(http.MethodGet)
	v1.HandleFunc("/users/{userId}/sessions/{sessionId}/documents", s.handleDeleteSessionDocuments).Methods(http.MethodDelete)
	v1.HandleFunc("/users/{userId}/sessions/{sessionId}/history", s.handleSessionHistory).Methods(http.MethodGet)

	v1.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	v1.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)

	// Preflight requests are answered by the CORS middleware
	v1.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
