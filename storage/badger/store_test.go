package badger

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := newMemoryStore("ChatHistory")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createSchema(t *testing.T, store *Store, ttl time.Duration) {
	t.Helper()
	def := storage.ChatSchema(store.Name(), 3)
	def.DefaultTTL = ttl
	require.NoError(t, store.CreateOrUpdateSchema(context.Background(), def))
}

func testDoc(id, user, session string, ts time.Time, vector ...float32) *core.ChatDocument {
	return &core.ChatDocument{
		ID:             id,
		UserID:         user,
		SessionID:      session,
		Question:       "question " + id,
		Content:        "answer " + id,
		Role:           "user",
		Timestamp:      ts,
		QuestionVector: vector,
	}
}

func ids(docs []*core.ChatDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestNewStore(t *testing.T) {
	t.Run("requires backend", func(t *testing.T) {
		store, err := NewStore(nil, "chat")
		assert.ErrorIs(t, err, ErrBackendRequired)
		assert.Nil(t, store)
	})

	t.Run("requires name", func(t *testing.T) {
		backend, err := OpenBackend("", true)
		require.NoError(t, err)
		defer backend.Close()

		store, err := NewStore(backend, "   ")
		assert.ErrorIs(t, err, storage.ErrInvalidSchema)
		assert.Nil(t, store)
	})

	t.Run("lowercases name", func(t *testing.T) {
		store := newTestStore(t)
		assert.Equal(t, "chathistory", store.Name())
		assert.True(t, store.Capabilities().ServerSideDistance)
		assert.False(t, store.Capabilities().SemanticRerank)
	})
}

func TestSchemaLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	exists, err := store.SchemaExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	err = store.DeleteSchema(ctx)
	assert.ErrorIs(t, err, storage.ErrSchemaNotFound)

	createSchema(t, store, 0)
	exists, err = store.SchemaExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	// Creating again keeps documents
	_, err = store.Upsert(ctx, testDoc("d1", "u1", "s1", time.Now().UTC()))
	require.NoError(t, err)
	createSchema(t, store, 0)
	docs, err := store.Find(ctx, storage.Filter{ID: "d1"}, storage.FirstPage)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, store.DeleteSchema(ctx))
	exists, err = store.SchemaExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Find(ctx, storage.Filter{ID: "d1"}, storage.FirstPage)
	assert.ErrorIs(t, err, storage.ErrSchemaNotFound)
}

func TestCreateOrUpdateSchema_Mismatch(t *testing.T) {
	store := newTestStore(t)
	err := store.CreateOrUpdateSchema(context.Background(), storage.ChatSchema("other", 3))
	assert.ErrorIs(t, err, storage.ErrInvalidSchema)
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("fails without schema", func(t *testing.T) {
		_, err := store.Upsert(ctx, testDoc("d1", "u1", "s1", time.Now()))
		assert.ErrorIs(t, err, storage.ErrSchemaNotFound)
	})

	createSchema(t, store, 0)

	t.Run("creates then replaces", func(t *testing.T) {
		now := time.Now().UTC()
		results, err := store.Upsert(ctx, testDoc("d1", "u1", "s1", now))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, http.StatusCreated, results[0].Status)
		assert.True(t, results[0].Succeeded())

		replacement := testDoc("d1", "u2", "s9", now.Add(time.Minute))
		replacement.Content = "replaced"
		results, err = store.Upsert(ctx, replacement)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, results[0].Status)

		docs, err := store.Find(ctx, storage.Filter{ID: "d1"}, storage.FirstPage)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "replaced", docs[0].Content)

		// Old user index entry is gone
		docs, err = store.Find(ctx, storage.Filter{UserID: "u1"}, storage.FirstPage)
		require.NoError(t, err)
		assert.Empty(t, docs)

		docs, err = store.Find(ctx, storage.Filter{UserID: "u2"}, storage.FirstPage)
		require.NoError(t, err)
		assert.Equal(t, []string{"d1"}, ids(docs))
	})

	t.Run("rejects document without id", func(t *testing.T) {
		results, err := store.Upsert(ctx, &core.ChatDocument{UserID: "u1"}, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, http.StatusBadRequest, results[0].Status)
		assert.False(t, results[1].Succeeded())
	})
}

func TestUpsert_TTL(t *testing.T) {
	ctx := context.Background()

	expiresAt := func(t *testing.T, store *Store, id string) uint64 {
		var expires uint64
		err := store.backend.WithTx(func(tx *badger.Txn) error {
			item, err := tx.Get(makeDocumentKey(store.name, id))
			if err != nil {
				return err
			}
			expires = item.ExpiresAt()
			return nil
		}, false)
		require.NoError(t, err)
		return expires
	}

	t.Run("applies schema ttl", func(t *testing.T) {
		store := newTestStore(t)
		createSchema(t, store, time.Hour)
		_, err := store.Upsert(ctx, testDoc("d1", "u1", "s1", time.Now()))
		require.NoError(t, err)

		expires := expiresAt(t, store, "d1")
		assert.Greater(t, expires, uint64(time.Now().Unix()))
		assert.LessOrEqual(t, expires, uint64(time.Now().Add(time.Hour+time.Minute).Unix()))
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		store := newTestStore(t)
		createSchema(t, store, 0)
		_, err := store.Upsert(ctx, testDoc("d1", "u1", "s1", time.Now()))
		require.NoError(t, err)

		assert.Zero(t, expiresAt(t, store, "d1"))
	})
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSchema(t, store, 0)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.Upsert(ctx,
		testDoc("c", "u1", "s2", base.Add(3*time.Minute)),
		testDoc("a", "u1", "s1", base.Add(1*time.Minute)),
		testDoc("b", "u1", "s1", base.Add(2*time.Minute)),
		testDoc("x", "u2", "s1", base),
	)
	require.NoError(t, err)

	t.Run("by user in timestamp order", func(t *testing.T) {
		docs, err := store.Find(ctx, storage.Filter{UserID: "u1"}, storage.FirstPage)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, ids(docs))
	})

	t.Run("by user and session", func(t *testing.T) {
		docs, err := store.Find(ctx, storage.Filter{UserID: "u1", SessionID: "s1"}, storage.FirstPage)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(docs))
	})

	t.Run("session without user", func(t *testing.T) {
		docs, err := store.Find(ctx, storage.Filter{SessionID: "s1"}, storage.FirstPage)
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "a", "b"}, ids(docs))
	})

	t.Run("by id with mismatching user", func(t *testing.T) {
		docs, err := store.Find(ctx, storage.Filter{ID: "a", UserID: "u2"}, storage.FirstPage)
		require.NoError(t, err)
		assert.NotNil(t, docs)
		assert.Empty(t, docs)
	})

	t.Run("no match is empty not nil", func(t *testing.T) {
		docs, err := store.Find(ctx, storage.Filter{UserID: "nobody"}, storage.FirstPage)
		require.NoError(t, err)
		assert.NotNil(t, docs)
		assert.Empty(t, docs)
	})

	t.Run("paging", func(t *testing.T) {
		docs, err := store.Find(ctx, storage.Filter{}, storage.Page{Offset: 1, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(docs))

		docs, err = store.Find(ctx, storage.Filter{}, storage.Page{Offset: 3, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, ids(docs))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.Find(cctx, storage.Filter{}, storage.FirstPage)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSchema(t, store, 0)

	now := time.Now().UTC()
	_, err := store.Upsert(ctx, testDoc("d1", "u1", "s1", now), testDoc("d2", "u1", "s1", now))
	require.NoError(t, err)

	results, err := store.Delete(ctx, "d1", "missing")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, storage.DeleteResult{ID: "d1", Succeeded: true}, results[0])
	assert.Equal(t, storage.DeleteResult{ID: "missing", Succeeded: false}, results[1])

	docs, err := store.Find(ctx, storage.Filter{UserID: "u1"}, storage.FirstPage)
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, ids(docs))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSchema(t, store, 0)

	now := time.Now().UTC()
	_, err := store.Upsert(ctx,
		testDoc("far", "u1", "s1", now, 0, 1, 0),
		testDoc("near", "u1", "s1", now.Add(time.Second), 1, 0.1, 0),
		testDoc("exact", "u1", "s1", now.Add(2*time.Second), 1, 0, 0),
		testDoc("other-user", "u2", "s1", now, 1, 0, 0),
		testDoc("no-vector", "u1", "s1", now),
	)
	require.NoError(t, err)

	t.Run("ranks by cosine within user", func(t *testing.T) {
		results, err := store.Search(ctx, storage.SearchRequest{
			Vector: []float32{1, 0, 0},
			Size:   10,
			Filter: storage.Filter{UserID: "u1"},
		})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "exact", results[0].Document.ID)
		assert.Equal(t, "near", results[1].Document.ID)
		assert.Equal(t, "far", results[2].Document.ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
		assert.Nil(t, results[0].RerankScore)
	})

	t.Run("caps at size", func(t *testing.T) {
		results, err := store.Search(ctx, storage.SearchRequest{
			Vector: []float32{1, 0, 0},
			Size:   1,
			Filter: storage.Filter{UserID: "u1"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "exact", results[0].Document.ID)
	})

	t.Run("requires vector", func(t *testing.T) {
		_, err := store.Search(ctx, storage.SearchRequest{Size: 1})
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestSearch_BeyondPageSize(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSchema(t, store, 0)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for chunk := 0; chunk < storage.MaxPageSize; chunk += 250 {
		docs := make([]*core.ChatDocument, 0, 250)
		for i := chunk; i < chunk+250; i++ {
			docs = append(docs, testDoc(fmt.Sprintf("old-%d", i), "u1", "s1", base.Add(time.Duration(i)*time.Second), 0, 1, 0))
		}
		_, err := store.Upsert(ctx, docs...)
		require.NoError(t, err)
	}
	_, err := store.Upsert(ctx, testDoc("newest-exact", "u1", "s1", base.Add(time.Hour), 1, 0, 0))
	require.NoError(t, err)

	results, err := store.Search(ctx, storage.SearchRequest{
		Vector: []float32{1, 0, 0},
		Size:   1,
		Filter: storage.Filter{UserID: "u1"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "newest-exact", results[0].Document.ID)
}

func TestSearch_TiesKeepOlderFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSchema(t, store, 0)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.Upsert(ctx,
		testDoc("c", "u1", "s1", base.Add(2*time.Minute), 1, 0, 0),
		testDoc("a", "u1", "s1", base, 1, 0, 0),
		testDoc("b", "u1", "s1", base.Add(time.Minute), 1, 0, 0),
	)
	require.NoError(t, err)

	results, err := store.Search(ctx, storage.SearchRequest{
		Vector: []float32{1, 0, 0},
		Size:   2,
		Filter: storage.Filter{UserID: "u1"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Document.ID)
	assert.Equal(t, "b", results[1].Document.ID)
}

func TestFind_UndatedDocumentsSortFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createSchema(t, store, 0)

	_, err := store.Upsert(ctx,
		testDoc("dated", "u1", "s1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 1, 0, 0),
		testDoc("undated", "u1", "s1", time.Time{}, 1, 0, 0),
		testDoc("ancient", "u1", "s1", time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), 1, 0, 0),
	)
	require.NoError(t, err)

	docs, err := store.Find(ctx, storage.Filter{UserID: "u1"}, storage.FirstPage)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "dated", docs[2].ID)

	docs, err = store.Find(ctx, storage.Filter{}, storage.FirstPage)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "dated", docs[2].ID)
}

func TestIndexTime(t *testing.T) {
	assert.Equal(t, uint64(0), indexTime(time.Time{}))
	assert.Equal(t, uint64(0), indexTime(time.Unix(-1, 0)))
	assert.Equal(t, uint64(1_500_000), indexTime(time.Unix(1, 500_000_000)))
}
