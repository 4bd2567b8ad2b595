package redis

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to a local server and skips when none is running.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	client := NewClient(DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := Ping(ctx, client); err != nil {
		client.Close()
		t.Skipf("redis not available: %v", err)
	}

	name := fmt.Sprintf("chatsession-test-%d", time.Now().UnixNano())
	store, err := newStore(client, name)
	require.NoError(t, err)
	store.ownsClient = true
	t.Cleanup(func() {
		_ = store.DeleteSchema(context.Background())
		store.Close()
	})
	return store
}

func TestNewStore(t *testing.T) {
	t.Run("requires client", func(t *testing.T) {
		store, err := NewStore(nil, "chat")
		assert.ErrorIs(t, err, ErrClientRequired)
		assert.Nil(t, store)
	})

	t.Run("requires name", func(t *testing.T) {
		client := NewClient(DefaultConfig())
		defer client.Close()
		_, err := NewStore(client, " ")
		assert.ErrorIs(t, err, storage.ErrInvalidSchema)
	})

	t.Run("rejects nil reranker", func(t *testing.T) {
		client := NewClient(DefaultConfig())
		defer client.Close()
		_, err := NewStore(client, "chat", WithReranker(nil))
		assert.ErrorIs(t, err, ErrRerankerRequired)
	})

	t.Run("normalizes name and reports capabilities", func(t *testing.T) {
		client := NewClient(DefaultConfig())
		defer client.Close()
		store, err := NewStore(client, "ChatHistory")
		require.NoError(t, err)
		assert.Equal(t, "chathistory", store.Name())
		assert.True(t, store.Capabilities().SemanticRerank)
		assert.False(t, store.Capabilities().ServerSideDistance)
	})
}

func TestStore_Integration(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exists, err := store.SchemaExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.ErrorIs(t, store.DeleteSchema(ctx), storage.ErrSchemaNotFound)

	_, err = store.Upsert(ctx, &core.ChatDocument{ID: "d0"})
	assert.ErrorIs(t, err, storage.ErrSchemaNotFound)

	require.NoError(t, store.CreateOrUpdateSchema(ctx, storage.ChatSchema(store.Name(), 3)))
	require.NoError(t, store.CreateOrUpdateSchema(ctx, storage.ChatSchema(store.Name(), 3)))
	exists, err = store.SchemaExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	base := time.Now().UTC().Truncate(time.Millisecond)
	docs := []*core.ChatDocument{
		{ID: "b", UserID: "u-1", SessionID: "s1", Question: "capital of France?", Content: "Paris", Timestamp: base.Add(time.Minute), QuestionVector: []float32{1, 0, 0}},
		{ID: "a", UserID: "u-1", SessionID: "s1", Question: "how do birds fly", Content: "wings", Timestamp: base, QuestionVector: []float32{0, 1, 0}},
		{ID: "c", UserID: "u-2", SessionID: "s2", Question: "capital of France?", Content: "Paris", Timestamp: base, QuestionVector: []float32{1, 0, 0}},
	}
	results, err := store.Upsert(ctx, docs...)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, http.StatusCreated, r.Status)
	}

	results, err = store.Upsert(ctx, docs[0])
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, results[0].Status)

	ttl, err := store.client.TTL(ctx, documentKey(store.Name(), "a")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	// Indexing is asynchronous.
	require.Eventually(t, func() bool {
		found, err := store.Find(ctx, storage.Filter{UserID: "u-1"}, storage.FirstPage)
		return err == nil && len(found) == 2
	}, 5*time.Second, 50*time.Millisecond)

	found, err := store.Find(ctx, storage.Filter{UserID: "u-1"}, storage.FirstPage)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "a", found[0].ID)
	assert.Equal(t, "b", found[1].ID)

	found, err = store.Find(ctx, storage.Filter{ID: "c"}, storage.FirstPage)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, docs[2].Timestamp, found[0].Timestamp)

	hits, err := store.Search(ctx, storage.SearchRequest{
		Text:   "capital of France",
		Vector: []float32{1, 0, 0},
		Size:   10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.NotNil(t, hits[0].RerankScore)
	assert.Equal(t, "capital of France?", hits[0].Document.Question)

	_, err = store.Search(ctx, storage.SearchRequest{Vector: []float32{1, 0, 0}, SemanticConfig: "missing"})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	deleted, err := store.Delete(ctx, "a", "missing")
	require.NoError(t, err)
	assert.True(t, deleted[0].Succeeded)
	assert.False(t, deleted[1].Succeeded)

	require.NoError(t, store.DeleteSchema(ctx))
	exists, err = store.SchemaExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}
