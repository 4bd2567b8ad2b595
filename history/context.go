package history

import (
	"context"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
)

// BuildHistoryContext implements Service. Like FindAll it never creates the
// schema.
func (s *DataService) BuildHistoryContext(ctx context.Context, filter storage.Filter) *core.HistoryContext {
	return newContext(s.FindAll(ctx, filter))
}

// BuildQueryHistoryContext implements Service.
func (s *DataService) BuildQueryHistoryContext(ctx context.Context, q HybridQuery) *core.HistoryContext {
	return newContext(s.HybridQuery(ctx, q))
}

// newContext returns nil for no documents so callers can skip context
// injection entirely.
func newContext(docs []*core.ChatDocument) *core.HistoryContext {
	if len(docs) == 0 {
		return nil
	}
	return core.NewHistoryContext(docs...)
}
