package history

import (
	"context"
	"errors"
	"strings"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
)

// AddDocument implements Service. Invalid documents are rejected before any
// store call.
func (s *DataService) AddDocument(ctx context.Context, doc *core.ChatDocument) (core.Messages, bool) {
	rec := s.newRecorder(ctx, "add-document")
	if doc == nil {
		rec.error("ChatDocument is required!")
		return rec.result(false)
	}
	if err := core.ValidateChatDocument(doc, s.dimension); err != nil {
		rec.error("%v", err)
		return rec.result(false)
	}

	if !s.ensureInitialized(ctx, rec) {
		return rec.result(false)
	}

	results, err := s.store.Upsert(ctx, doc)
	if err != nil {
		rec.error("Error creating ChatDocument Embedding: %v", err)
		return rec.result(false)
	}
	if len(results) != 1 || !results[0].Succeeded() {
		status, reason := 0, "no result returned"
		if len(results) > 0 {
			status, reason = results[0].Status, results[0].ErrorMessage
		}
		rec.error("Error creating ChatDocument with Id:%s: status %d: %s", doc.ID, status, reason)
		return rec.result(false)
	}

	rec.info("ChatDocument with Id:%s added Successfully to Index!", doc.ID)
	return rec.result(true)
}

// FindByID implements Service.
func (s *DataService) FindByID(ctx context.Context, id string) *core.ChatDocument {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	return s.Find(ctx, storage.Filter{ID: id})
}

// FindAllByUserID implements Service.
func (s *DataService) FindAllByUserID(ctx context.Context, userID string) []*core.ChatDocument {
	if strings.TrimSpace(userID) == "" {
		s.logger.WarnContext(ctx, "user id is required")
		return []*core.ChatDocument{}
	}
	return s.FindAll(ctx, storage.Filter{UserID: userID})
}

// FindByUserAndSession implements Service.
func (s *DataService) FindByUserAndSession(ctx context.Context, userID, sessionID string) []*core.ChatDocument {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sessionID) == "" {
		s.logger.WarnContext(ctx, "user id and session id are required")
		return []*core.ChatDocument{}
	}
	return s.FindAll(ctx, storage.Filter{UserID: userID, SessionID: sessionID})
}

// FindAll implements Service. A missing schema reads as no documents.
func (s *DataService) FindAll(ctx context.Context, filter storage.Filter) []*core.ChatDocument {
	docs, err := s.store.Find(ctx, filter, storage.FirstPage)
	if errors.Is(err, storage.ErrSchemaNotFound) {
		s.logger.InfoContext(ctx, "Index not found")
		return []*core.ChatDocument{}
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "find failed", "filter", filter, "err", err)
		return nil
	}
	return s.matching(filter, docs)
}

// Find implements Service.
func (s *DataService) Find(ctx context.Context, filter storage.Filter) *core.ChatDocument {
	page := storage.Page{Limit: 1}
	if !s.store.Capabilities().ExactFilter {
		page = storage.FirstPage
	}
	docs, err := s.store.Find(ctx, filter, page)
	if errors.Is(err, storage.ErrSchemaNotFound) {
		s.logger.InfoContext(ctx, "Index not found")
		return nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "find failed", "filter", filter, "err", err)
		return nil
	}
	docs = s.matching(filter, docs)
	if len(docs) == 0 {
		return nil
	}
	return docs[0]
}

// matching drops the documents a store without exact filters returned but
// the filter does not match. The result is never nil.
func (s *DataService) matching(filter storage.Filter, docs []*core.ChatDocument) []*core.ChatDocument {
	if s.store.Capabilities().ExactFilter {
		if docs == nil {
			docs = []*core.ChatDocument{}
		}
		return docs
	}
	out := []*core.ChatDocument{}
	for _, doc := range docs {
		if filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	return out
}

// DeleteByID implements Service.
func (s *DataService) DeleteByID(ctx context.Context, id string) (core.Messages, bool) {
	rec := s.newRecorder(ctx, "delete-by-id")
	if strings.TrimSpace(id) == "" {
		rec.error("Id is required")
		return rec.result(false)
	}
	return s.deleteMatching(ctx, rec, storage.Filter{ID: id})
}

// DeleteByUserID implements Service.
func (s *DataService) DeleteByUserID(ctx context.Context, userID string) (core.Messages, bool) {
	rec := s.newRecorder(ctx, "delete-by-user")
	if strings.TrimSpace(userID) == "" {
		rec.error("UserId is required")
		return rec.result(false)
	}
	return s.deleteMatching(ctx, rec, storage.Filter{UserID: userID})
}

// DeleteByUserAndSession implements Service.
func (s *DataService) DeleteByUserAndSession(ctx context.Context, userID, sessionID string) (core.Messages, bool) {
	rec := s.newRecorder(ctx, "delete-by-session")
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sessionID) == "" {
		rec.error("UserId and SessionId are required")
		return rec.result(false)
	}
	return s.deleteMatching(ctx, rec, storage.Filter{UserID: userID, SessionID: sessionID})
}

// deleteMatching looks documents up page by page and deletes them by ID.
// Each page must be deleted in full; any failed delete fails the call.
func (s *DataService) deleteMatching(ctx context.Context, rec *recorder, filter storage.Filter) (core.Messages, bool) {
	if !s.ensureInitialized(ctx, rec) {
		return rec.result(false)
	}

	total := 0
	for {
		docs, err := s.store.Find(ctx, filter, storage.FirstPage)
		if errors.Is(err, storage.ErrSchemaNotFound) {
			// Dropped behind our back; the next write recreates it.
			s.initMu.Lock()
			s.initialized.Store(false)
			s.setState(StateAbsent)
			s.initMu.Unlock()
			rec.warn("Index not found")
			return rec.result(true)
		}
		if err != nil {
			rec.error("Error looking up ChatDocuments to delete: %v", err)
			return rec.result(false)
		}
		if len(docs) == 0 {
			break
		}

		ids := make([]string, len(docs))
		for i, doc := range docs {
			ids[i] = doc.ID
		}
		results, err := s.store.Delete(ctx, ids...)
		if err != nil {
			rec.error("Error deleting ChatDocuments: %v", err)
			return rec.result(false)
		}
		failed := 0
		for _, r := range results {
			if !r.Succeeded {
				failed++
			}
		}
		if failed > 0 || len(results) != len(ids) {
			rec.error("Failed to delete %d of %d ChatDocuments", len(ids)-len(results)+failed, len(ids))
			return rec.result(false)
		}
		total += len(ids)

		if len(docs) < storage.MaxPageSize {
			break
		}
	}

	if total == 0 {
		rec.info("No ChatDocument found, nothing to delete")
		return rec.result(true)
	}
	rec.info("Deleted %d ChatDocument(s)", total)
	return rec.result(true)
}
