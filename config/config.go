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

// Package config loads chatsession settings from a TOML file.
//
// A file only needs the values it changes; everything else keeps the
// value from Default:
//
//	[history]
//	backend = "redis"
//	schema = "ChatHistory"
//	dimension = 768
//	ttl = "72h"
//
//	[redis]
//	host = "redis.internal"
//
//	[ai]
//	embedding_host = "http://ollama:11434"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/chatsession/ai"
	"github.com/poiesic/chatsession/history"
	"github.com/poiesic/chatsession/storage"
	"github.com/poiesic/chatsession/storage/redis"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Config is the complete chatsession configuration.
type Config struct {
	History HistoryConfig `toml:"history"`
	Badger  BadgerConfig  `toml:"badger"`
	Redis   RedisConfig   `toml:"redis"`
	AI      AIConfig      `toml:"ai"`
	Server  ServerConfig  `toml:"server"`
}

// HistoryConfig selects the backend and shapes the schema.
type HistoryConfig struct {
	Backend         string   `toml:"backend"`
	Schema          string   `toml:"schema"`
	Dimension       int      `toml:"dimension"`
	TTL             Duration `toml:"ttl"`
	SemanticConfig  string   `toml:"semantic_config"`
	RerankThreshold float64  `toml:"rerank_threshold"`
	TopK            int      `toml:"top_k"`
}

// BadgerConfig locates the embedded database.
type BadgerConfig struct {
	Path     string `toml:"path"`
	InMemory bool   `toml:"in_memory"`
}

// RedisConfig holds the connection to a Redis server with the search module.
type RedisConfig struct {
	Host         string   `toml:"host"`
	Port         int      `toml:"port"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MinIdleConns int      `toml:"min_idle_conns"`
	MaxRetries   int      `toml:"max_retries"`
	DialTimeout  Duration `toml:"dial_timeout"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// AIConfig configures the embedding and completion services and the
// embedder decorators wrapped around them.
type AIConfig struct {
	EmbeddingHost   string   `toml:"embedding_host"`
	CompletionHost  string   `toml:"completion_host"`
	EmbeddingModel  string   `toml:"embedding_model"`
	CompletionModel string   `toml:"completion_model"`
	APIKey          string   `toml:"api_key"`
	Temperature     float64  `toml:"temperature"`
	SystemPrompt    string   `toml:"system_prompt"`
	MaxAttempts     int      `toml:"max_attempts"`
	RetryDelay      Duration `toml:"retry_delay"`
	CacheSize       int64    `toml:"cache_size"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr          string `toml:"addr"`
	AllowedOrigin string `toml:"allowed_origin"`
}

// Default returns a configuration for a local badger database and local
// OpenAI-compatible model server.
func Default() *Config {
	rc := redis.DefaultConfig()
	ac := ai.DefaultConfig()
	return &Config{
		History: HistoryConfig{
			Backend:         BackendBadger,
			Schema:          "chathistory",
			Dimension:       storage.DefaultDimension,
			TTL:             Duration(storage.DefaultTTL),
			SemanticConfig:  storage.DefaultSemanticConfigName,
			RerankThreshold: history.DefaultRerankThreshold,
			TopK:            5,
		},
		Badger: BadgerConfig{
			Path: "./chatsession.db",
		},
		Redis: RedisConfig{
			Host:         rc.Host,
			Port:         rc.Port,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
			MaxRetries:   rc.MaxRetries,
			DialTimeout:  Duration(rc.DialTimeout),
			ReadTimeout:  Duration(rc.ReadTimeout),
			WriteTimeout: Duration(rc.WriteTimeout),
		},
		AI: AIConfig{
			EmbeddingHost:   ac.EmbeddingHost,
			CompletionHost:  ac.CompletionHost,
			EmbeddingModel:  ac.EmbeddingModel,
			CompletionModel: ac.CompletionModel,
			APIKey:          ac.APIKey,
			Temperature:     ac.Temperature,
			SystemPrompt:    ac.SystemPrompt,
			MaxAttempts:     3,
			RetryDelay:      Duration(500 * time.Millisecond),
			CacheSize:       10000,
		},
		Server: ServerConfig{
			Addr:          ":8080",
			AllowedOrigin: "*",
		},
	}
}

// Load reads path over Default. A missing file is an error; callers that
// treat the file as optional should check os.IsNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes TOML over Default. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%w: line %d column %d: %s", ErrInvalidConfig, row, col, derr.Error())
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Normalize lowercases the schema name and backend.
func (c *Config) Normalize() {
	c.History.Schema = storage.NormalizeName(c.History.Schema)
	c.History.Backend = strings.ToLower(strings.TrimSpace(c.History.Backend))
}

// Validate reports every problem at once, each wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	c.Normalize()

	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	h := c.History
	if h.Schema == "" {
		add("history.schema is required")
	}
	if h.Dimension <= 0 {
		add("history.dimension must be positive, got %d", h.Dimension)
	}
	if h.TTL < 0 {
		add("history.ttl must not be negative")
	}
	if h.TopK <= 0 {
		add("history.top_k must be positive, got %d", h.TopK)
	}

	switch h.Backend {
	case BackendBadger:
		if !c.Badger.InMemory && strings.TrimSpace(c.Badger.Path) == "" {
			add("badger.path is required unless badger.in_memory is set")
		}
	case BackendRedis:
		if strings.TrimSpace(c.Redis.Host) == "" {
			add("redis.host is required")
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			add("redis.port must be between 1 and 65535, got %d", c.Redis.Port)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownBackend, h.Backend))
	}

	if err := c.AI.Provider().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if c.AI.MaxAttempts <= 0 {
		add("ai.max_attempts must be positive, got %d", c.AI.MaxAttempts)
	}
	if c.AI.CacheSize < 0 {
		add("ai.cache_size must not be negative")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		add("server.addr is required")
	}
	return errors.Join(errs...)
}

// Client returns the redis connection settings.
func (r RedisConfig) Client() redis.Config {
	return redis.Config{
		Host:         r.Host,
		Port:         r.Port,
		Password:     r.Password,
		DB:           r.DB,
		PoolSize:     r.PoolSize,
		MinIdleConns: r.MinIdleConns,
		MaxRetries:   r.MaxRetries,
		DialTimeout:  r.DialTimeout.Std(),
		ReadTimeout:  r.ReadTimeout.Std(),
		WriteTimeout: r.WriteTimeout.Std(),
	}
}

// Provider returns the AI provider settings.
func (a AIConfig) Provider() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(a.EmbeddingHost),
		ai.WithCompletionHost(a.CompletionHost),
		ai.WithEmbeddingModel(a.EmbeddingModel),
		ai.WithCompletionModel(a.CompletionModel),
		ai.WithAPIKey(a.APIKey),
		ai.WithTemperature(a.Temperature),
		ai.WithSystemPrompt(a.SystemPrompt),
	)
}
