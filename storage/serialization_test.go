package storage

import (
	"testing"
	"time"

	"github.com/poiesic/chatsession/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalChatDocument(t *testing.T) {
	doc := &core.ChatDocument{
		ID:             "d1",
		UserID:         "u1",
		SessionID:      "s1",
		Question:       "capital of France?",
		Content:        "Paris",
		IPAddress:      "10.0.0.1",
		Role:           "user",
		Timestamp:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		QuestionVector: []float32{0.1, 0.2, 0.3},
	}

	data, err := MarshalChatDocument(doc)
	require.NoError(t, err)

	decoded, err := UnmarshalChatDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestUnmarshalChatDocument_Invalid(t *testing.T) {
	valid, err := MarshalChatDocument(&core.ChatDocument{ID: "d1", UserID: "u1", Question: "q"})
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":           nil,
		"json":            []byte(`{"id":"d1"}`),
		"unknown version": append([]byte{recordVersion + 1}, valid[1:]...),
		"truncated":       valid[:len(valid)-3],
		"trailing bytes":  append(append([]byte{}, valid...), 0),
		"huge vector":     {recordVersion, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 0xff, 0x7f},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalChatDocument(data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestChatDocumentMUS(t *testing.T) {
	t.Run("zero time and nil vector round-trip", func(t *testing.T) {
		doc := &core.ChatDocument{ID: "d1", UserID: "u1", Question: "q"}
		data, err := MarshalChatDocument(doc)
		require.NoError(t, err)
		decoded, err := UnmarshalChatDocument(data)
		require.NoError(t, err)
		assert.Equal(t, doc, decoded)
		assert.True(t, decoded.Timestamp.IsZero())
		assert.Nil(t, decoded.QuestionVector)
	})

	t.Run("keeps nanoseconds and decodes in UTC", func(t *testing.T) {
		ts := time.Date(2025, 6, 1, 14, 0, 0, 123456789, time.FixedZone("CEST", 2*60*60))
		doc := &core.ChatDocument{ID: "d1", Timestamp: ts}
		data, err := MarshalChatDocument(doc)
		require.NoError(t, err)
		decoded, err := UnmarshalChatDocument(data)
		require.NoError(t, err)
		assert.True(t, ts.Equal(decoded.Timestamp))
		assert.Equal(t, time.UTC, decoded.Timestamp.Location())
	})

	t.Run("skip consumes exactly one record", func(t *testing.T) {
		doc := core.ChatDocument{ID: "d1", Content: "Paris", QuestionVector: []float32{1, 2}}
		buf := make([]byte, ChatDocumentMUS.Size(doc)+1)
		n := ChatDocumentMUS.Marshal(doc, buf)
		skipped, err := ChatDocumentMUS.Skip(buf)
		require.NoError(t, err)
		assert.Equal(t, n, skipped)
	})

	t.Run("nil document", func(t *testing.T) {
		_, err := MarshalChatDocument(nil)
		assert.ErrorIs(t, err, ErrSerializationFailed)
	})
}

func TestMarshalVector(t *testing.T) {
	t.Run("encodes four bytes per entry", func(t *testing.T) {
		vector := []float32{1.5, -2.25, 0}
		data := MarshalVector(vector)
		assert.Len(t, data, 12)

		decoded, err := UnmarshalVector(data)
		require.NoError(t, err)
		assert.Equal(t, vector, decoded)
	})

	t.Run("rejects truncated data", func(t *testing.T) {
		_, err := UnmarshalVector([]byte{1, 2, 3})
		assert.ErrorIs(t, err, ErrSerializationFailed)
	})

	t.Run("empty vector", func(t *testing.T) {
		decoded, err := UnmarshalVector(MarshalVector(nil))
		require.NoError(t, err)
		assert.Empty(t, decoded)
	})
}

func TestChatSchema(t *testing.T) {
	def := ChatSchema("  ChatHistory ", 0)
	require.NoError(t, def.Validate())

	assert.Equal(t, "chathistory", def.Name)
	assert.Equal(t, DefaultDimension, def.Vector.Dimension)
	assert.Equal(t, core.FieldQuestionVector, def.Vector.Field)
	assert.Equal(t, MetricCosine, def.Vector.Metric)
	assert.Equal(t, DefaultTTL, def.DefaultTTL)
	require.NotNil(t, def.Semantic)
	assert.Equal(t, core.FieldQuestion, def.Semantic.TitleField)

	data, err := MarshalSchema(def)
	require.NoError(t, err)
	decoded, err := UnmarshalSchema(data)
	require.NoError(t, err)
	assert.Equal(t, def, decoded)

	def.Semantic = nil
	data, err = MarshalSchema(def)
	require.NoError(t, err)
	decoded, err = UnmarshalSchema(data)
	require.NoError(t, err)
	assert.Nil(t, decoded.Semantic)
	assert.Equal(t, def.Fields, decoded.Fields)

	skipped, err := SchemaDefinitionMUS.Skip(data[1:])
	require.NoError(t, err)
	assert.Equal(t, len(data)-1, skipped)
}

func TestSchemaDefinitionValidate(t *testing.T) {
	t.Run("nil definition", func(t *testing.T) {
		var def *SchemaDefinition
		assert.ErrorIs(t, def.Validate(), ErrInvalidSchema)
	})

	t.Run("empty name", func(t *testing.T) {
		def := ChatSchema("", 3)
		assert.ErrorIs(t, def.Validate(), ErrInvalidSchema)
	})

	t.Run("uppercase name", func(t *testing.T) {
		def := ChatSchema("chat", 3)
		def.Name = "Chat"
		assert.ErrorIs(t, def.Validate(), ErrInvalidSchema)
	})

	t.Run("negative ttl", func(t *testing.T) {
		def := ChatSchema("chat", 3)
		def.DefaultTTL = -time.Second
		assert.ErrorIs(t, def.Validate(), ErrInvalidSchema)
	})
}

func TestFilterAndPage(t *testing.T) {
	doc := &core.ChatDocument{ID: "d1", UserID: "u1", SessionID: "s1"}

	assert.True(t, Filter{}.IsEmpty())
	assert.True(t, Filter{}.Matches(doc))
	assert.True(t, Filter{UserID: "u1", SessionID: "s1"}.Matches(doc))
	assert.False(t, Filter{UserID: "u2"}.Matches(doc))
	assert.False(t, Filter{ID: "d2"}.Matches(doc))
	assert.False(t, Filter{}.Matches(nil))

	assert.Equal(t, Page{Offset: 0, Limit: MaxPageSize}, Page{Offset: -3}.Normalize())
	assert.Equal(t, Page{Offset: 5, Limit: MaxPageSize}, Page{Offset: 5, Limit: 5000}.Normalize())
	assert.Equal(t, Page{Offset: 0, Limit: 10}, Page{Limit: 10}.Normalize())
}

func TestUpsertResultSucceeded(t *testing.T) {
	assert.True(t, UpsertResult{Status: 200}.Succeeded())
	assert.True(t, UpsertResult{Status: 201}.Succeeded())
	assert.False(t, UpsertResult{Status: 409}.Succeeded())
	assert.False(t, UpsertResult{}.Succeeded())
}
