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

package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
)

// Service persists and retrieves chat documents on one backend schema.
//
// No provider error crosses this interface. Administrative operations report
// through (core.Messages, bool); queries return possibly-empty or nil values
// as documented per method.
type Service interface {
	// EnsureSchema creates the schema if it is absent. It succeeds when the
	// schema already existed or was created.
	EnsureSchema(ctx context.Context) (core.Messages, bool)

	// SchemaExists asks the store for the schema. Any failure reads as false.
	SchemaExists(ctx context.Context) bool

	// DeleteSchemaIfExists drops the schema and every stored document.
	// An absent schema is a successful no-op.
	DeleteSchemaIfExists(ctx context.Context) (core.Messages, bool)

	// AddDocument validates doc, lazily ensures the schema and upserts doc
	// by ID, replacing any document with the same ID.
	AddDocument(ctx context.Context, doc *core.ChatDocument) (core.Messages, bool)

	// FindByID returns the document with the given ID, or nil when it does
	// not exist or cannot be read.
	FindByID(ctx context.Context, id string) *core.ChatDocument

	// FindAllByUserID returns the user's documents in timestamp order.
	// The result is empty when nothing matches and nil on a transport error.
	FindAllByUserID(ctx context.Context, userID string) []*core.ChatDocument

	// FindByUserAndSession returns the documents of one session of a user.
	// The result is empty when nothing matches and nil on a transport error.
	FindByUserAndSession(ctx context.Context, userID, sessionID string) []*core.ChatDocument

	// FindAll returns up to storage.MaxPageSize documents matching filter.
	// The result is empty when nothing matches and nil on a transport error.
	FindAll(ctx context.Context, filter storage.Filter) []*core.ChatDocument

	// Find returns the first document matching filter, or nil.
	Find(ctx context.Context, filter storage.Filter) *core.ChatDocument

	// DeleteByID deletes one document. A missing document is a success.
	DeleteByID(ctx context.Context, id string) (core.Messages, bool)

	// DeleteByUserID deletes every document of a user. Every individual
	// delete must succeed for the call to succeed.
	DeleteByUserID(ctx context.Context, userID string) (core.Messages, bool)

	// DeleteByUserAndSession deletes every document of one session.
	DeleteByUserAndSession(ctx context.Context, userID, sessionID string) (core.Messages, bool)

	// HybridQuery runs vector retrieval for a user. See HybridQuery for the
	// per-backend semantics. It never returns nil.
	HybridQuery(ctx context.Context, q HybridQuery) []*core.ChatDocument

	// BuildHistoryContext wraps FindAll. It returns nil when no documents match.
	BuildHistoryContext(ctx context.Context, filter storage.Filter) *core.HistoryContext

	// BuildQueryHistoryContext wraps HybridQuery. It returns nil when no
	// documents are retrieved.
	BuildQueryHistoryContext(ctx context.Context, q HybridQuery) *core.HistoryContext

	// State returns the observed schema lifecycle state.
	State() SchemaState
}

// DataService implements Service over a storage.Store. The store's native
// capabilities select the retrieval policy used by HybridQuery.
type DataService struct {
	store        storage.Store
	dimension    int
	ttl          time.Duration
	semanticName string
	logger       *slog.Logger

	// initMu serializes schema checks and creation. initialized is the
	// lock-free fast path and is only set while initMu is held.
	initMu      sync.Mutex
	initialized atomic.Bool
	state       atomic.Int32

	retrieval retrievalPolicy
}

var _ Service = (*DataService)(nil)

// Option configures a DataService.
type Option func(*DataService) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *DataService) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithSchemaName asserts the schema name the service is configured for.
// The name is lowercased and must match the store's schema.
func WithSchemaName(name string) Option {
	return func(s *DataService) error {
		if normalized := storage.NormalizeName(name); normalized != s.store.Name() {
			return fmt.Errorf("%w: %q != %q", ErrSchemaNameMismatch, normalized, s.store.Name())
		}
		return nil
	}
}

// WithDimension sets the embedding dimension of the vector index and of
// document validation.
func WithDimension(dimension int) Option {
	return func(s *DataService) error {
		if dimension <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidDimension, dimension)
		}
		s.dimension = dimension
		return nil
	}
}

// WithDefaultTTL sets document retention. Zero keeps documents forever.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *DataService) error {
		if ttl < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
		}
		s.ttl = ttl
		return nil
	}
}

// WithSemanticConfigName names the semantic configuration created with the
// schema and used by hybrid queries.
func WithSemanticConfigName(name string) Option {
	return func(s *DataService) error {
		if name != "" {
			s.semanticName = name
		}
		return nil
	}
}

// newDataService is an internal constructor that returns the concrete type.
func newDataService(store storage.Store, opts ...Option) (*DataService, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	s := &DataService{
		store:        store,
		dimension:    storage.DefaultDimension,
		ttl:          storage.DefaultTTL,
		semanticName: storage.DefaultSemanticConfigName,
		logger:       slog.Default().With("component", "history", "schema", store.Name()),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.retrieval = policyFor(store.Capabilities())
	s.setState(StateUnknown)
	return s, nil
}

// New creates a history service bound to store.
func New(store storage.Store, opts ...Option) (Service, error) {
	return newDataService(store, opts...)
}

// definition builds the schema this service creates.
func (s *DataService) definition() *storage.SchemaDefinition {
	def := storage.ChatSchema(s.store.Name(), s.dimension)
	def.DefaultTTL = s.ttl
	if def.Semantic != nil {
		def.Semantic.Name = s.semanticName
	}
	return def
}
