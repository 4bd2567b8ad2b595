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

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
)

// Store is a document-database implementation of storage.Store on BadgerDB.
// Documents are mus-encoded values; Search ranks by cosine similarity
// computed while scanning the user's partition.
type Store struct {
	backend     *Backend
	name        string
	ownsBackend bool
	logger      *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// newStore is an internal constructor that returns the concrete type.
func newStore(backend *Backend, name string, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	name = storage.NormalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", storage.ErrInvalidSchema)
	}

	s := &Store{
		backend: backend,
		name:    name,
		logger:  slog.Default().With("component", "badger-store", "schema", name),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewStore creates a store for the named schema on an open backend.
// The backend is not closed by Store.Close.
//
// Returns storage.Store interface to enforce abstraction.
func NewStore(backend *Backend, name string, opts ...Option) (storage.Store, error) {
	return newStore(backend, name, opts...)
}

// Name returns the schema name.
func (s *Store) Name() string {
	return s.name
}

// Capabilities reports server-side distance ranking and exact filters.
func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{
		ServerSideDistance: true,
		ExactFilter:        true,
	}
}

// Close releases the backend if the store owns it.
func (s *Store) Close() error {
	if s.ownsBackend {
		return s.backend.Close()
	}
	return nil
}

// SchemaExists reports whether the schema definition is stored.
func (s *Store) SchemaExists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var exists bool
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeSchemaKey(s.name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	}, false)
	return exists, err
}

// CreateOrUpdateSchema stores the schema definition. Existing documents are kept.
func (s *Store) CreateOrUpdateSchema(ctx context.Context, def *storage.SchemaDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := def.Validate(); err != nil {
		return err
	}
	if def.Name != s.name {
		return fmt.Errorf("%w: definition %q does not match store %q", storage.ErrInvalidSchema, def.Name, s.name)
	}

	value, err := storage.MarshalSchema(def)
	if err != nil {
		return err
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeSchemaKey(s.name), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteSchema drops the schema definition and every document under it.
func (s *Store) DeleteSchema(ctx context.Context) error {
	exists, err := s.SchemaExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrSchemaNotFound
	}
	s.logger.Debug("dropping schema namespace")
	return s.backend.DropPrefix(makeNamespace(s.name))
}

// Upsert creates or replaces documents by ID in a single transaction.
// Status is 201 for new documents and 200 for replaced ones.
func (s *Store) Upsert(ctx context.Context, docs ...*core.ChatDocument) ([]storage.UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]storage.UpsertResult, len(docs))

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		def, err := s.readSchema(tx)
		if err != nil {
			return err
		}

		for i, doc := range docs {
			if doc == nil || doc.ID == "" {
				results[i] = storage.UpsertResult{Status: http.StatusBadRequest, ErrorMessage: "document id is required"}
				continue
			}
			results[i].ID = doc.ID

			value, err := storage.MarshalChatDocument(doc)
			if err != nil {
				results[i].Status = http.StatusBadRequest
				results[i].ErrorMessage = err.Error()
				continue
			}

			status := http.StatusCreated
			old, err := s.readDocument(tx, doc.ID)
			if err != nil {
				return err
			}
			if old != nil {
				status = http.StatusOK
				if err := s.deleteIndexes(tx, old); err != nil {
					return err
				}
			}

			entries := []*badger.Entry{
				badger.NewEntry(makeDocumentKey(s.name, doc.ID), value),
				badger.NewEntry(makeUserIndexKey(s.name, doc.UserID, doc.Timestamp, doc.ID), []byte(doc.ID)),
				badger.NewEntry(makeTimeIndexKey(s.name, doc.Timestamp, doc.ID), []byte(doc.ID)),
			}
			for _, entry := range entries {
				if def.DefaultTTL > 0 {
					entry = entry.WithTTL(def.DefaultTTL)
				}
				if err := tx.SetEntry(entry); err != nil {
					return err
				}
			}
			results[i].Status = status
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// Delete removes documents and their index entries in a single transaction.
// Missing documents are reported as not succeeded.
func (s *Store) Delete(ctx context.Context, ids ...string) ([]storage.DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]storage.DeleteResult, len(ids))

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := s.readSchema(tx); err != nil {
			return err
		}
		for i, id := range ids {
			results[i].ID = id
			old, err := s.readDocument(tx, id)
			if err != nil {
				return err
			}
			if old == nil {
				continue
			}
			if err := tx.Delete(makeDocumentKey(s.name, id)); err != nil {
				return err
			}
			if err := s.deleteIndexes(tx, old); err != nil {
				return err
			}
			results[i].Succeeded = true
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// Find returns documents matching filter in timestamp order.
func (s *Store) Find(ctx context.Context, filter storage.Filter, page storage.Page) ([]*core.ChatDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page = page.Normalize()
	docs := []*core.ChatDocument{}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := s.readSchema(tx); err != nil {
			return err
		}

		if filter.ID != "" {
			doc, err := s.readDocument(tx, filter.ID)
			if err != nil {
				return err
			}
			if doc != nil && filter.Matches(doc) && page.Offset == 0 {
				docs = append(docs, doc)
			}
			return nil
		}

		skipped := 0
		return s.scan(ctx, tx, filter, func(doc *core.ChatDocument) bool {
			if skipped < page.Offset {
				skipped++
				return true
			}
			docs = append(docs, doc)
			return len(docs) < page.Limit
		})
	}, false)

	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Search ranks documents by cosine similarity to req.Vector, highest first.
// Every document matching req.Filter is scored; only the best req.Size are
// held in memory. Equal scores keep the older document first.
func (s *Store) Search(ctx context.Context, req storage.SearchRequest) ([]storage.ScoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Vector) == 0 {
		return nil, fmt.Errorf("%w: vector is required", storage.ErrInvalidQuery)
	}

	size := req.Size
	if size <= 0 {
		size = storage.DefaultNeighbors
	}

	best := &topK{limit: size}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := s.readSchema(tx); err != nil {
			return err
		}

		return s.scan(ctx, tx, req.Filter, func(doc *core.ChatDocument) bool {
			// Skip documents without embeddings
			if len(doc.QuestionVector) > 0 {
				best.offer(doc, core.CosineSimilarity(req.Vector, doc.QuestionVector))
			}
			return true
		})
	}, false)

	if err != nil {
		return nil, err
	}
	return best.sorted(), nil
}

// scan visits documents matching filter in timestamp order until visit returns false.
// The user index is used when the filter names a user.
func (s *Store) scan(ctx context.Context, tx *badger.Txn, filter storage.Filter, visit func(*core.ChatDocument) bool) error {
	prefix := makeTimePrefix(s.name)
	if filter.UserID != "" {
		prefix = makeUserPrefix(s.name, filter.UserID)
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		id, err := iter.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		doc, err := s.readDocument(tx, string(id))
		if err != nil {
			return err
		}
		// Index entries can briefly outlive an expired document
		if doc == nil || !filter.Matches(doc) {
			continue
		}
		if !visit(doc) {
			return nil
		}
	}
	return nil
}

// readSchema loads the schema definition or returns ErrSchemaNotFound.
func (s *Store) readSchema(tx *badger.Txn) (*storage.SchemaDefinition, error) {
	item, err := tx.Get(makeSchemaKey(s.name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrSchemaNotFound, s.name)
	}
	if err != nil {
		return nil, err
	}
	var def *storage.SchemaDefinition
	err = item.Value(func(val []byte) error {
		var err error
		def, err = storage.UnmarshalSchema(val)
		return err
	})
	return def, err
}

// readDocument returns the document with id, or nil if it does not exist.
func (s *Store) readDocument(tx *badger.Txn, id string) (*core.ChatDocument, error) {
	item, err := tx.Get(makeDocumentKey(s.name, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc *core.ChatDocument
	err = item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalChatDocument(val)
		return err
	})
	return doc, err
}

// deleteIndexes removes the index entries written for doc.
func (s *Store) deleteIndexes(tx *badger.Txn, doc *core.ChatDocument) error {
	if err := tx.Delete(makeUserIndexKey(s.name, doc.UserID, doc.Timestamp, doc.ID)); err != nil {
		return err
	}
	return tx.Delete(makeTimeIndexKey(s.name, doc.Timestamp, doc.ID))
}
