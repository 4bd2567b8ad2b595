package mock

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
)

// Method names accepted by CallCount.
const (
	MethodSchemaExists         = "SchemaExists"
	MethodCreateOrUpdateSchema = "CreateOrUpdateSchema"
	MethodDeleteSchema         = "DeleteSchema"
	MethodUpsert               = "Upsert"
	MethodDelete               = "Delete"
	MethodFind                 = "Find"
	MethodSearch               = "Search"
	MethodClose                = "Close"
)

// MockStore is a thread-safe in-memory implementation of storage.Store.
type MockStore struct {
	// Function overrides. When set they replace the in-memory behaviour.
	SchemaExistsFunc         func(ctx context.Context) (bool, error)
	CreateOrUpdateSchemaFunc func(ctx context.Context, def *storage.SchemaDefinition) error
	DeleteSchemaFunc         func(ctx context.Context) error
	UpsertFunc               func(ctx context.Context, docs ...*core.ChatDocument) ([]storage.UpsertResult, error)
	DeleteFunc               func(ctx context.Context, ids ...string) ([]storage.DeleteResult, error)
	FindFunc                 func(ctx context.Context, filter storage.Filter, page storage.Page) ([]*core.ChatDocument, error)
	SearchFunc               func(ctx context.Context, req storage.SearchRequest) ([]storage.ScoredDocument, error)

	mu           sync.Mutex
	name         string
	capabilities storage.Capabilities
	schema       *storage.SchemaDefinition
	docs         map[string]*core.ChatDocument
	calls        map[string]int
	lastSearch   *storage.SearchRequest
}

var _ storage.Store = (*MockStore)(nil)

// NewMockStore creates an empty store without a schema.
func NewMockStore(name string, capabilities storage.Capabilities) *MockStore {
	return &MockStore{
		name:         storage.NormalizeName(name),
		capabilities: capabilities,
		docs:         make(map[string]*core.ChatDocument),
		calls:        make(map[string]int),
	}
}

// CallCount returns how many times the named method was called.
func (m *MockStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// LastSearch returns the most recent search request, or nil.
func (m *MockStore) LastSearch() *storage.SearchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSearch
}

// Len returns the number of stored documents.
func (m *MockStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// Seed stores documents directly, creating the schema if needed.
func (m *MockStore) Seed(docs ...*core.ChatDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.schema == nil {
		m.schema = storage.ChatSchema(m.name, 0)
	}
	for _, doc := range docs {
		m.docs[doc.ID] = doc.Clone()
	}
}

func (m *MockStore) record(method string) {
	m.mu.Lock()
	m.calls[method]++
	m.mu.Unlock()
}

// Name implements storage.Store.
func (m *MockStore) Name() string {
	return m.name
}

// Capabilities implements storage.Store.
func (m *MockStore) Capabilities() storage.Capabilities {
	return m.capabilities
}

// SchemaExists implements storage.Store.
func (m *MockStore) SchemaExists(ctx context.Context) (bool, error) {
	m.record(MethodSchemaExists)
	if m.SchemaExistsFunc != nil {
		return m.SchemaExistsFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schema != nil, nil
}

// CreateOrUpdateSchema implements storage.Store.
func (m *MockStore) CreateOrUpdateSchema(ctx context.Context, def *storage.SchemaDefinition) error {
	m.record(MethodCreateOrUpdateSchema)
	if m.CreateOrUpdateSchemaFunc != nil {
		if err := m.CreateOrUpdateSchemaFunc(ctx, def); err != nil {
			return err
		}
	}
	if err := def.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schema = def
	return nil
}

// DeleteSchema implements storage.Store.
func (m *MockStore) DeleteSchema(ctx context.Context) error {
	m.record(MethodDeleteSchema)
	if m.DeleteSchemaFunc != nil {
		return m.DeleteSchemaFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.schema == nil {
		return fmt.Errorf("%w: %s", storage.ErrSchemaNotFound, m.name)
	}
	m.schema = nil
	m.docs = make(map[string]*core.ChatDocument)
	return nil
}

// Upsert implements storage.Store.
func (m *MockStore) Upsert(ctx context.Context, docs ...*core.ChatDocument) ([]storage.UpsertResult, error) {
	m.record(MethodUpsert)
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, docs...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.schema == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrSchemaNotFound, m.name)
	}

	results := make([]storage.UpsertResult, len(docs))
	for i, doc := range docs {
		if doc == nil || doc.ID == "" {
			results[i] = storage.UpsertResult{Status: http.StatusBadRequest, ErrorMessage: core.ErrEmptyID.Error()}
			continue
		}
		status := http.StatusCreated
		if _, ok := m.docs[doc.ID]; ok {
			status = http.StatusOK
		}
		m.docs[doc.ID] = doc.Clone()
		results[i] = storage.UpsertResult{ID: doc.ID, Status: status}
	}
	return results, nil
}

// Delete implements storage.Store.
func (m *MockStore) Delete(ctx context.Context, ids ...string) ([]storage.DeleteResult, error) {
	m.record(MethodDelete)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, ids...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]storage.DeleteResult, len(ids))
	for i, id := range ids {
		_, ok := m.docs[id]
		delete(m.docs, id)
		results[i] = storage.DeleteResult{ID: id, Succeeded: ok}
	}
	return results, nil
}

// Find implements storage.Store.
func (m *MockStore) Find(ctx context.Context, filter storage.Filter, page storage.Page) ([]*core.ChatDocument, error) {
	m.record(MethodFind)
	if m.FindFunc != nil {
		return m.FindFunc(ctx, filter, page)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.schema == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrSchemaNotFound, m.name)
	}

	matched := m.sorted(filter)
	page = page.Normalize()
	if page.Offset >= len(matched) {
		return []*core.ChatDocument{}, nil
	}
	matched = matched[page.Offset:]
	if len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}
	return matched, nil
}

// Search implements storage.Store. By default it ranks by cosine similarity,
// applies the filter only when the store reports ServerSideDistance, and
// reports similarity*4 as the rerank score when it reports SemanticRerank.
func (m *MockStore) Search(ctx context.Context, req storage.SearchRequest) ([]storage.ScoredDocument, error) {
	m.mu.Lock()
	m.calls[MethodSearch]++
	reqCopy := req
	m.lastSearch = &reqCopy
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.schema == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrSchemaNotFound, m.name)
	}

	filter := storage.Filter{}
	if m.capabilities.ServerSideDistance {
		filter = req.Filter
	}

	var hits []storage.ScoredDocument
	for _, doc := range m.sorted(filter) {
		if len(doc.QuestionVector) == 0 {
			continue
		}
		hit := storage.ScoredDocument{Document: doc, Score: core.CosineSimilarity(req.Vector, doc.QuestionVector)}
		if m.capabilities.SemanticRerank {
			score := hit.Score * 4
			hit.RerankScore = &score
		}
		hits = append(hits, hit)
	}
	slices.SortStableFunc(hits, func(a, b storage.ScoredDocument) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if req.Size > 0 && len(hits) > req.Size {
		hits = hits[:req.Size]
	}
	return hits, nil
}

// Close implements storage.Store.
func (m *MockStore) Close() error {
	m.record(MethodClose)
	return nil
}

// sorted returns clones of matching documents in timestamp order.
// Callers hold m.mu.
func (m *MockStore) sorted(filter storage.Filter) []*core.ChatDocument {
	out := []*core.ChatDocument{}
	for _, doc := range m.docs {
		if filter.Matches(doc) {
			out = append(out, doc.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *core.ChatDocument) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}
