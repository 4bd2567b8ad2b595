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

// Package chatsession wires a configured storage backend, history service
// and AI provider together.
//
//	cfg, _ := config.Load("chatsession.toml")
//	db, err := chatsession.Open(ctx, cfg)
//	if err != nil { ... }
//	defer db.Close()
//	msgs, ok := db.History().EnsureSchema(ctx)
package chatsession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/chatsession/ai"
	"github.com/poiesic/chatsession/ai/openai"
	"github.com/poiesic/chatsession/api"
	"github.com/poiesic/chatsession/config"
	"github.com/poiesic/chatsession/history"
	"github.com/poiesic/chatsession/ingestion"
	"github.com/poiesic/chatsession/reembed"
	"github.com/poiesic/chatsession/session"
	"github.com/poiesic/chatsession/storage"
	"github.com/poiesic/chatsession/storage/badger"
	"github.com/poiesic/chatsession/storage/redis"
)

// ErrConfigRequired is returned by Open without a configuration.
var ErrConfigRequired = errors.New("configuration is required")

// Database owns the store, the history service and the AI provider built
// from one configuration.
type Database struct {
	config   *config.Config
	backend  *badger.Backend
	store    storage.Store
	service  history.Service
	provider ai.Provider
	embedder ai.Embedder
	cache    *ai.CachingEmbedder
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	store    storage.Store
	provider ai.Provider
	logger   *slog.Logger
}

// WithStore uses store instead of opening the configured backend.
// The Database closes it.
func WithStore(store storage.Store) DatabaseOption {
	return func(o *databaseOptions) {
		o.store = store
	}
}

// WithProvider uses provider instead of the configured OpenAI-compatible one.
// The Database closes it.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// Open validates cfg and builds every component it describes.
func Open(ctx context.Context, cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	db := &Database{config: cfg, logger: options.logger}

	db.store = options.store
	if db.store == nil {
		if err := db.openStore(ctx); err != nil {
			return nil, err
		}
	}

	service, err := history.New(db.store,
		history.WithSchemaName(cfg.History.Schema),
		history.WithDimension(cfg.History.Dimension),
		history.WithDefaultTTL(cfg.History.TTL.Std()),
		history.WithSemanticConfigName(cfg.History.SemanticConfig),
		history.WithLogger(db.logger.With("component", "history", "schema", db.store.Name())),
	)
	if err != nil {
		db.Close()
		return nil, err
	}
	db.service = service

	db.provider = options.provider
	if db.provider == nil {
		db.provider, err = openai.NewProvider(cfg.AI.Provider())
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	retrying, err := ai.NewRetryingEmbedder(db.provider.Embedder(), cfg.AI.MaxAttempts, cfg.AI.RetryDelay.Std())
	if err != nil {
		db.Close()
		return nil, err
	}
	db.embedder = retrying
	if cfg.AI.CacheSize > 0 {
		db.cache, err = ai.NewCachingEmbedder(retrying, cfg.AI.CacheSize)
		if err != nil {
			db.Close()
			return nil, err
		}
		db.embedder = db.cache
	}

	db.logger.Debug("database opened", "backend", cfg.History.Backend, "schema", db.store.Name())
	return db, nil
}

func (db *Database) openStore(ctx context.Context) error {
	cfg := db.config
	switch cfg.History.Backend {
	case config.BackendBadger:
		backend, err := badger.OpenBackend(cfg.Badger.Path, cfg.Badger.InMemory)
		if err != nil {
			return fmt.Errorf("opening badger at %s: %w", cfg.Badger.Path, err)
		}
		store, err := badger.NewStore(backend, cfg.History.Schema,
			badger.WithLogger(db.logger.With("component", "badger-store")))
		if err != nil {
			backend.Close()
			return err
		}
		db.backend = backend
		db.store = store
	case config.BackendRedis:
		store, err := redis.Open(ctx, cfg.Redis.Client(), cfg.History.Schema,
			redis.WithLogger(db.logger.With("component", "redis-store")))
		if err != nil {
			return err
		}
		db.store = store
	default:
		return fmt.Errorf("%w %q", config.ErrUnknownBackend, cfg.History.Backend)
	}
	return nil
}

// Close releases the provider, the store and the badger backend.
func (db *Database) Close() error {
	var errs []error
	if db.cache != nil {
		db.cache.Close()
	}
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if db.store != nil {
		if err := db.store.Close(); err != nil {
			db.logger.Error("error closing store", "err", err)
			errs = append(errs, err)
		}
	}
	if db.backend != nil {
		if err := db.backend.Close(); err != nil {
			db.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the validated configuration.
func (db *Database) Config() *config.Config {
	return db.config
}

// Store returns the document store.
func (db *Database) Store() storage.Store {
	return db.store
}

// History returns the history service.
func (db *Database) History() history.Service {
	return db.service
}

// Embedder returns the provider's embedder wrapped with retry and, when
// configured, caching.
func (db *Database) Embedder() ai.Embedder {
	return db.embedder
}

// Completer returns the chat completion service.
func (db *Database) Completer() ai.Completer {
	return db.provider.Completer()
}

// NewSessionManager creates a session manager using the configured top-k
// and rerank threshold. opts are applied after them.
func (db *Database) NewSessionManager(opts ...session.Option) (*session.Manager, error) {
	opts = append([]session.Option{
		session.WithTopK(db.config.History.TopK),
		session.WithRerankThreshold(db.config.History.RerankThreshold),
		session.WithLogger(db.logger.With("component", "session")),
	}, opts...)
	return session.NewManager(db.service, db.embedder, db.provider.Completer(), opts...)
}

// NewIngestionPipeline creates a bulk ingestion pipeline. Call Release on it
// when done.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{
		ingestion.WithRetry(db.config.AI.MaxAttempts, db.config.AI.RetryDelay.Std()),
		ingestion.WithLogger(db.logger.With("component", "ingestion")),
	}, opts...)
	return ingestion.NewPipeline(db.service, db.embedder, opts...)
}

// NewReembedder creates a reembedder over the store. It embeds through the
// provider directly so no cached vector is reused.
func (db *Database) NewReembedder(cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(db.store, db.provider.Embedder(), cfg, progress)
}

// NewServer creates the HTTP API with question answering enabled.
func (db *Database) NewServer(opts ...api.Option) (*api.Server, error) {
	manager, err := db.NewSessionManager()
	if err != nil {
		return nil, err
	}
	opts = append([]api.Option{
		api.WithEmbedder(db.embedder),
		api.WithSessionManager(manager),
		api.WithAllowedOrigin(db.config.Server.AllowedOrigin),
		api.WithLogger(db.logger.With("component", "api")),
	}, opts...)
	return api.NewServer(db.service, opts...)
}
