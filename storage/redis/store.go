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

package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/rerank"
	"github.com/poiesic/chatsession/storage"
	goredis "github.com/redis/go-redis/v9"
)

// Store is a search-engine implementation of storage.Store on Redis with the
// search module. Documents are hashes under "<index>:doc:"; Search runs a KNN
// query and reranks the neighbours semantically. Search does not apply the
// request filter, callers post-filter on the rerank score.
type Store struct {
	client     *goredis.Client
	name       string
	ownsClient bool
	reranker   rerank.Reranker
	logger     *slog.Logger
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

// WithReranker replaces the default semantic reranker.
func WithReranker(r rerank.Reranker) Option {
	return func(s *Store) error {
		if r == nil {
			return ErrRerankerRequired
		}
		s.reranker = r
		return nil
	}
}

func newStore(client *goredis.Client, name string, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	name = storage.NormalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", storage.ErrInvalidSchema)
	}

	s := &Store{
		client:   client,
		name:     name,
		reranker: rerank.New(),
		logger:   slog.Default().With("component", "redis-store", "index", name),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewStore creates a store for the named index on an existing client.
// The client is not closed by Store.Close.
func NewStore(client *goredis.Client, name string, opts ...Option) (storage.Store, error) {
	return newStore(client, name, opts...)
}

// Open connects to the server described by cfg and creates a store that
// owns the connection.
func Open(ctx context.Context, cfg Config, name string, opts ...Option) (storage.Store, error) {
	client := NewClient(cfg)
	if err := Ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to %s: %w", cfg.withDefaults().Addr(), err)
	}
	s, err := newStore(client, name, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	s.ownsClient = true
	return s, nil
}

// Name implements storage.Store.
func (s *Store) Name() string {
	return s.name
}

// Capabilities implements storage.Store.
func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{SemanticRerank: true, ExactFilter: true}
}

// SchemaExists implements storage.Store.
func (s *Store) SchemaExists(ctx context.Context) (bool, error) {
	_, err := s.client.FTInfo(ctx, s.name).Result()
	if err == nil {
		return true, nil
	}
	if isUnknownIndex(err) {
		return false, nil
	}
	return false, err
}

// CreateOrUpdateSchema implements storage.Store. An existing index is kept;
// only the stored definition is refreshed.
func (s *Store) CreateOrUpdateSchema(ctx context.Context, def *storage.SchemaDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if def.Name != s.name {
		return fmt.Errorf("%w: definition %q does not match index %q", storage.ErrInvalidSchema, def.Name, s.name)
	}

	exists, err := s.SchemaExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		err = s.client.FTCreate(ctx, s.name, &goredis.FTCreateOptions{
			OnHash: true,
			Prefix: []any{documentPrefix(s.name)},
		}, fieldSchema(def)...).Err()
		if err != nil && !isIndexExists(err) {
			return fmt.Errorf("creating index %s: %w", s.name, err)
		}
		s.logger.Info("created index", "dimension", def.Vector.Dimension)
	}

	data, err := storage.MarshalSchema(def)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, schemaKey(s.name), data, 0).Err()
}

// DeleteSchema implements storage.Store. Documents are dropped with the index.
func (s *Store) DeleteSchema(ctx context.Context) error {
	err := s.client.FTDropIndexWithArgs(ctx, s.name, &goredis.FTDropIndexOptions{DeleteDocs: true}).Err()
	if isUnknownIndex(err) {
		return fmt.Errorf("%w: %s", storage.ErrSchemaNotFound, s.name)
	}
	if err != nil {
		return fmt.Errorf("dropping index %s: %w", s.name, err)
	}
	return s.client.Del(ctx, schemaKey(s.name)).Err()
}

// Upsert implements storage.Store.
func (s *Store) Upsert(ctx context.Context, docs ...*core.ChatDocument) ([]storage.UpsertResult, error) {
	def, err := s.readSchema(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]storage.UpsertResult, len(docs))
	exists := make([]*goredis.IntCmd, len(docs))

	pipe := s.client.TxPipeline()
	for i, doc := range docs {
		if doc == nil || doc.ID == "" {
			results[i] = storage.UpsertResult{Status: http.StatusBadRequest, ErrorMessage: core.ErrEmptyID.Error()}
			continue
		}
		key := documentKey(s.name, doc.ID)
		exists[i] = pipe.Exists(ctx, key)
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, toHash(doc))
		if def.DefaultTTL > 0 {
			pipe.Expire(ctx, key, def.DefaultTTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("writing documents: %w", err)
	}

	for i, doc := range docs {
		if exists[i] == nil {
			continue
		}
		status := http.StatusCreated
		if exists[i].Val() > 0 {
			status = http.StatusOK
		}
		results[i] = storage.UpsertResult{ID: doc.ID, Status: status}
	}
	return results, nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, ids ...string) ([]storage.DeleteResult, error) {
	cmds := make([]*goredis.IntCmd, len(ids))
	pipe := s.client.Pipeline()
	for i, id := range ids {
		cmds[i] = pipe.Del(ctx, documentKey(s.name, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("deleting documents: %w", err)
	}

	results := make([]storage.DeleteResult, len(ids))
	for i, id := range ids {
		results[i] = storage.DeleteResult{ID: id, Succeeded: cmds[i].Val() > 0}
	}
	return results, nil
}

// Find implements storage.Store.
func (s *Store) Find(ctx context.Context, filter storage.Filter, page storage.Page) ([]*core.ChatDocument, error) {
	page = page.Normalize()

	if filter.ID != "" {
		return s.findByID(ctx, filter, page)
	}

	res, err := s.client.FTSearchWithArgs(ctx, s.name, filterQuery(filter), &goredis.FTSearchOptions{
		SortBy:         []goredis.FTSearchSortBy{{FieldName: core.FieldTimestamp, Asc: true}},
		LimitOffset:    page.Offset,
		Limit:          page.Limit,
		DialectVersion: 2,
	}).Result()
	if isUnknownIndex(err) {
		return nil, fmt.Errorf("%w: %s", storage.ErrSchemaNotFound, s.name)
	}
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.name, err)
	}

	docs := make([]*core.ChatDocument, 0, len(res.Docs))
	for _, hit := range res.Docs {
		doc, err := fromHash(hit.Fields)
		if err != nil {
			s.logger.Warn("skipping unreadable document", "key", hit.ID, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) findByID(ctx context.Context, filter storage.Filter, page storage.Page) ([]*core.ChatDocument, error) {
	if _, err := s.readSchema(ctx); err != nil {
		return nil, err
	}
	docs := []*core.ChatDocument{}
	if page.Offset > 0 {
		return docs, nil
	}

	fields, err := s.client.HGetAll(ctx, documentKey(s.name, filter.ID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", filter.ID, err)
	}
	if len(fields) == 0 {
		return docs, nil
	}
	doc, err := fromHash(fields)
	if err != nil {
		return nil, err
	}
	if filter.Matches(doc) {
		docs = append(docs, doc)
	}
	return docs, nil
}

// Search implements storage.Store. It retrieves the K nearest neighbours
// over the whole index, reranks them against req.Text and returns at most
// req.Size hits in rerank order.
func (s *Store) Search(ctx context.Context, req storage.SearchRequest) ([]storage.ScoredDocument, error) {
	if len(req.Vector) == 0 {
		return nil, fmt.Errorf("%w: vector is required", storage.ErrInvalidQuery)
	}
	def, err := s.readSchema(ctx)
	if err != nil {
		return nil, err
	}
	semantic := def.Semantic
	if req.SemanticConfig != "" && (semantic == nil || semantic.Name != req.SemanticConfig) {
		return nil, fmt.Errorf("%w: unknown semantic configuration %q", storage.ErrInvalidQuery, req.SemanticConfig)
	}

	k := req.K
	if k <= 0 {
		k = storage.DefaultNeighbors
	}
	res, err := s.client.FTSearchWithArgs(ctx, s.name, knnQuery(k), &goredis.FTSearchOptions{
		SortBy:         []goredis.FTSearchSortBy{{FieldName: scoreField, Asc: true}},
		Limit:          k,
		Params:         map[string]any{"vec": storage.MarshalVector(req.Vector)},
		DialectVersion: 2,
	}).Result()
	if isUnknownIndex(err) {
		return nil, fmt.Errorf("%w: %s", storage.ErrSchemaNotFound, s.name)
	}
	if err != nil {
		return nil, fmt.Errorf("vector search on %s: %w", s.name, err)
	}

	candidates := make([]storage.ScoredDocument, 0, len(res.Docs))
	for _, hit := range res.Docs {
		doc, err := fromHash(hit.Fields)
		if err != nil {
			s.logger.Warn("skipping unreadable document", "key", hit.ID, "error", err)
			continue
		}
		distance, err := strconv.ParseFloat(hit.Fields[scoreField], 64)
		if err != nil {
			s.logger.Warn("skipping hit without distance", "key", hit.ID)
			continue
		}
		candidates = append(candidates, storage.ScoredDocument{Document: doc, Score: 1 - distance})
	}

	ranked := s.reranker.Rerank(req.Text, semantic, candidates)
	if req.Size > 0 && len(ranked) > req.Size {
		ranked = ranked[:req.Size]
	}
	return ranked, nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}

func (s *Store) readSchema(ctx context.Context) (*storage.SchemaDefinition, error) {
	data, err := s.client.Get(ctx, schemaKey(s.name)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: %s", storage.ErrSchemaNotFound, s.name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", s.name, err)
	}
	return storage.UnmarshalSchema(data)
}
