package history

import (
	"context"
	"errors"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
)

// SchemaState is the observed lifecycle state of the backend schema.
//
//	Unknown -> Checking -> Exists
//	                    -> Absent -> Creating -> Exists
//	                                          -> Failed
//
// Failed is not terminal for the instance: the next operation that needs
// the schema checks again.
type SchemaState int32

const (
	StateUnknown SchemaState = iota
	StateChecking
	StateExists
	StateAbsent
	StateCreating
	StateFailed
)

func (s SchemaState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateChecking:
		return "checking"
	case StateExists:
		return "exists"
	case StateAbsent:
		return "absent"
	case StateCreating:
		return "creating"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// State implements Service.
func (s *DataService) State() SchemaState {
	return SchemaState(s.state.Load())
}

func (s *DataService) setState(state SchemaState) {
	s.state.Store(int32(state))
}

// EnsureSchema implements Service. Unlike the lazy path it always asks
// the backend, so a schema dropped elsewhere is recreated.
func (s *DataService) EnsureSchema(ctx context.Context) (core.Messages, bool) {
	rec := s.newRecorder(ctx, "ensure-schema")
	s.initMu.Lock()
	defer s.initMu.Unlock()
	return rec.result(s.ensureSchemaLocked(ctx, rec))
}

// SchemaExists implements Service.
func (s *DataService) SchemaExists(ctx context.Context) bool {
	exists, err := s.lookupSchema(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to check data source", "err", err)
		return false
	}
	return exists
}

// DeleteSchemaIfExists implements Service. On success the instance forgets
// that the schema was initialized, so the next write recreates it.
func (s *DataService) DeleteSchemaIfExists(ctx context.Context) (core.Messages, bool) {
	rec := s.newRecorder(ctx, "delete-schema")
	s.initMu.Lock()
	defer s.initMu.Unlock()

	exists, err := s.lookupSchema(ctx)
	if err != nil {
		rec.error("Error: %v", err)
		return rec.result(false)
	}
	if exists {
		err = s.store.DeleteSchema(ctx)
		switch {
		case errors.Is(err, storage.ErrSchemaNotFound):
			exists = false
		case err != nil:
			rec.error("Error deleting ChatDocument index %s: %v", s.store.Name(), err)
			return rec.result(false)
		}
	}

	s.initialized.Store(false)
	s.setState(StateAbsent)
	if !exists {
		rec.info("Index not found")
		return rec.result(true)
	}
	rec.info("ChatDocument Index Successfully Deleted!")
	return rec.result(true)
}

// ensureInitialized is the lazy double-checked path used before writes.
// At most one check-then-create sequence runs per instance at a time.
func (s *DataService) ensureInitialized(ctx context.Context, rec *recorder) bool {
	if s.initialized.Load() {
		return true
	}
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized.Load() {
		return true
	}
	return s.ensureSchemaLocked(ctx, rec)
}

// ensureSchemaLocked runs the check-then-create sequence. Callers hold initMu.
func (s *DataService) ensureSchemaLocked(ctx context.Context, rec *recorder) bool {
	s.setState(StateChecking)
	exists, err := s.lookupSchema(ctx)
	if err != nil {
		s.setState(StateFailed)
		rec.error("Error checking ChatDocument index %s: %v", s.store.Name(), err)
		return false
	}
	if exists {
		s.setState(StateExists)
		s.initialized.Store(true)
		rec.info("Data source exists skipping creation!")
		return true
	}

	s.setState(StateAbsent)
	s.setState(StateCreating)
	if err := s.store.CreateOrUpdateSchema(ctx, s.definition()); err != nil {
		s.setState(StateFailed)
		rec.error("Error creating ChatDocument Index: %v", err)
		return false
	}
	s.setState(StateExists)
	s.initialized.Store(true)
	rec.info("ChatDocument Index Successfully created!")
	return true
}

// lookupSchema asks the store whether the schema exists, folding not-found errors
// into false.
func (s *DataService) lookupSchema(ctx context.Context) (bool, error) {
	exists, err := s.store.SchemaExists(ctx)
	if errors.Is(err, storage.ErrSchemaNotFound) {
		return false, nil
	}
	return exists, err
}
