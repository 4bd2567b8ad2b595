package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, BackendBadger, cfg.History.Backend)
	assert.Equal(t, "chathistory", cfg.History.Schema)
	assert.Equal(t, 1536, cfg.History.Dimension)
	assert.Equal(t, 24*time.Hour, cfg.History.TTL.Std())
	assert.Equal(t, 3.5, cfg.History.RerankThreshold)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 5, cfg.Redis.MinIdleConns)
	assert.Equal(t, 3*time.Second, cfg.Redis.ReadTimeout.Std())
	assert.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	t.Run("overrides defaults", func(t *testing.T) {
		cfg, err := Parse([]byte(`
[history]
backend = "Redis"
schema = "  ChatHistory "
dimension = 768
ttl = "72h"

[redis]
host = "redis.internal"
dial_timeout = "2s"

[ai]
embedding_host = "http://ollama:11434"
cache_size = 0
`))
		require.NoError(t, err)
		assert.Equal(t, BackendRedis, cfg.History.Backend)
		assert.Equal(t, "chathistory", cfg.History.Schema)
		assert.Equal(t, 768, cfg.History.Dimension)
		assert.Equal(t, 72*time.Hour, cfg.History.TTL.Std())
		assert.Equal(t, "redis.internal", cfg.Redis.Host)
		assert.Equal(t, 6379, cfg.Redis.Port)
		assert.Equal(t, 2*time.Second, cfg.Redis.DialTimeout.Std())
		assert.Equal(t, int64(0), cfg.AI.CacheSize)
		assert.Equal(t, "qwen2.5:3b", cfg.AI.CompletionModel)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		_, err := Parse([]byte("[history]\nbogus = 1\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects bad durations", func(t *testing.T) {
		_, err := Parse([]byte("[history]\nttl = \"forever\"\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects malformed TOML", func(t *testing.T) {
		_, err := Parse([]byte("[history\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatsession.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \":9090\"\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, os.IsNotExist(err))
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.History.TTL = Duration(90 * time.Minute)
	data, err := cfg.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "1h30m0s")

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestValidate(t *testing.T) {
	t.Run("reports every problem", func(t *testing.T) {
		cfg := Default()
		cfg.History.Schema = " "
		cfg.History.Dimension = 0
		cfg.Badger.Path = ""
		cfg.AI.EmbeddingModel = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		msg := err.Error()
		assert.Contains(t, msg, "history.schema is required")
		assert.Contains(t, msg, "history.dimension must be positive")
		assert.Contains(t, msg, "badger.path is required")
		assert.Contains(t, msg, "EmbeddingModel is required")
	})

	t.Run("in-memory badger needs no path", func(t *testing.T) {
		cfg := Default()
		cfg.Badger.Path = ""
		cfg.Badger.InMemory = true
		assert.NoError(t, cfg.Validate())
	})

	t.Run("redis needs a host and port", func(t *testing.T) {
		cfg := Default()
		cfg.History.Backend = BackendRedis
		cfg.Redis.Host = ""
		cfg.Redis.Port = 70000
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis.host is required")
		assert.Contains(t, err.Error(), "redis.port must be between 1 and 65535")
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := Default()
		cfg.History.Backend = "cosmos"
		err := cfg.Validate()
		assert.True(t, errors.Is(err, ErrUnknownBackend))
	})
}

func TestRedisClient(t *testing.T) {
	cfg := Default().Redis
	cfg.Host = "cache"
	cfg.Password = "secret"
	client := cfg.Client()
	assert.Equal(t, "cache:6379", client.Addr())
	assert.Equal(t, "secret", client.Password)
	assert.Equal(t, 5*time.Second, client.DialTimeout)
}

func TestAIProvider(t *testing.T) {
	cfg := Default().AI
	cfg.EmbeddingHost = "http://embed:8000"
	provider := cfg.Provider()
	require.NoError(t, provider.Validate())
	assert.Equal(t, "http://embed:8000/v1", provider.EmbeddingHost)
	assert.Equal(t, cfg.CompletionModel, provider.CompletionModel)
}
