package storage

import (
	"net/http"

	"github.com/poiesic/chatsession/core"
)

const (
	// MaxPageSize bounds every paged read.
	MaxPageSize = 1000

	// DefaultNeighbors is the nearest-neighbour over-fetch for hybrid search.
	DefaultNeighbors = 50
)

// Filter is an exact-match predicate over ChatDocument fields.
// Empty fields are ignored; an empty Filter matches everything.
type Filter struct {
	ID        string
	UserID    string
	SessionID string
}

// IsEmpty reports whether the filter has no constraints.
func (f Filter) IsEmpty() bool {
	return f.ID == "" && f.UserID == "" && f.SessionID == ""
}

// Matches reports whether doc satisfies every constraint of the filter.
func (f Filter) Matches(doc *core.ChatDocument) bool {
	if doc == nil {
		return false
	}
	if f.ID != "" && doc.ID != f.ID {
		return false
	}
	if f.UserID != "" && doc.UserID != f.UserID {
		return false
	}
	if f.SessionID != "" && doc.SessionID != f.SessionID {
		return false
	}
	return true
}

// Page selects a window of results.
type Page struct {
	Offset int
	Limit  int
}

// Normalize clamps the page to [0, MaxPageSize]. A zero limit means MaxPageSize.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 || p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// FirstPage is the first MaxPageSize results.
var FirstPage = Page{Limit: MaxPageSize}

// SearchRequest is a vector query, optionally combined with free text for
// stores that rerank semantically.
type SearchRequest struct {
	// Text is the free-text query used by the semantic rerank stage.
	Text string

	// Vector is compared against each document's question vector.
	Vector []float32

	// K is the number of nearest neighbours to retrieve before reranking.
	// Zero means DefaultNeighbors.
	K int

	// Size caps the number of results returned.
	Size int

	// Filter scopes the query. Only stores with ServerSideDistance apply it.
	Filter Filter

	// SemanticConfig names the semantic configuration to rerank with.
	SemanticConfig string
}

// ScoredDocument is one search hit.
type ScoredDocument struct {
	Document *core.ChatDocument

	// Score is the vector similarity (cosine, higher is closer).
	Score float64

	// RerankScore is set by stores with a semantic rerank stage.
	RerankScore *float64
}

// UpsertResult is the outcome of writing one document.
type UpsertResult struct {
	ID           string
	Status       int
	ErrorMessage string
}

// Succeeded reports whether the store accepted the write as a create or replace.
func (r UpsertResult) Succeeded() bool {
	return r.Status == http.StatusOK || r.Status == http.StatusCreated
}

// DeleteResult is the outcome of deleting one document.
type DeleteResult struct {
	ID        string
	Succeeded bool
}
