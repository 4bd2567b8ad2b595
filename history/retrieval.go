package history

import (
	"context"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
)

// DefaultRerankThreshold is the minimum rerank score kept by hybrid queries
// on stores with a semantic rerank stage. Rerank scores range from 0 to 4.
const DefaultRerankThreshold = 3.5

// HybridQuery describes a vector retrieval for one user.
//
// On stores with a semantic rerank stage the service fetches
// storage.DefaultNeighbors neighbours across all users, then keeps hits
// whose user is UserID and whose rerank score is at least RerankThreshold,
// in the store's rank order, up to TopK.
//
// On stores that rank by server-side cosine distance the query is scoped to
// UserID by the store and capped at TopK. RerankThreshold has no effect
// there; no rerank score exists to compare it with.
//
// A query without a Vector returns no documents. There is no text-only
// fallback.
type HybridQuery struct {
	Text            string
	Vector          []float32
	TopK            int
	UserID          string
	RerankThreshold float64
}

// NewHybridQuery returns a query using DefaultRerankThreshold.
func NewHybridQuery(text string, vector []float32, topK int, userID string) HybridQuery {
	return HybridQuery{
		Text:            text,
		Vector:          vector,
		TopK:            topK,
		UserID:          userID,
		RerankThreshold: DefaultRerankThreshold,
	}
}

// retrievalPolicy turns a HybridQuery into a store search and selects the
// documents to return from its hits.
type retrievalPolicy interface {
	request(q HybridQuery, semanticConfig string) storage.SearchRequest
	selectHits(q HybridQuery, hits []storage.ScoredDocument) []*core.ChatDocument
}

func policyFor(caps storage.Capabilities) retrievalPolicy {
	if caps.SemanticRerank {
		return rerankPolicy{}
	}
	return distancePolicy{}
}

// rerankPolicy post-filters reranked hits client side; the rerank score only
// exists after retrieval.
type rerankPolicy struct{}

func (rerankPolicy) request(q HybridQuery, semanticConfig string) storage.SearchRequest {
	return storage.SearchRequest{
		Text:           q.Text,
		Vector:         q.Vector,
		K:              storage.DefaultNeighbors,
		Size:           storage.DefaultNeighbors,
		SemanticConfig: semanticConfig,
	}
}

func (rerankPolicy) selectHits(q HybridQuery, hits []storage.ScoredDocument) []*core.ChatDocument {
	docs := []*core.ChatDocument{}
	for _, hit := range hits {
		if hit.Document == nil || hit.RerankScore == nil {
			continue
		}
		if hit.Document.UserID == q.UserID && *hit.RerankScore >= q.RerankThreshold {
			docs = append(docs, hit.Document)
		}
		if q.TopK > 0 && len(docs) == q.TopK {
			break
		}
	}
	return docs
}

// distancePolicy relies on the store's user-scoped cosine ranking.
type distancePolicy struct{}

func (distancePolicy) request(q HybridQuery, _ string) storage.SearchRequest {
	size := q.TopK
	if size <= 0 {
		size = storage.DefaultNeighbors
	}
	return storage.SearchRequest{
		Text:   q.Text,
		Vector: q.Vector,
		K:      size,
		Size:   size,
		Filter: storage.Filter{UserID: q.UserID},
	}
}

func (distancePolicy) selectHits(q HybridQuery, hits []storage.ScoredDocument) []*core.ChatDocument {
	docs := []*core.ChatDocument{}
	for _, hit := range hits {
		if hit.Document == nil {
			continue
		}
		docs = append(docs, hit.Document)
		if q.TopK > 0 && len(docs) == q.TopK {
			break
		}
	}
	return docs
}

// HybridQuery implements Service. Failures are logged and yield an empty
// result. The store's rank order is preserved.
func (s *DataService) HybridQuery(ctx context.Context, q HybridQuery) []*core.ChatDocument {
	if len(q.Vector) == 0 {
		return []*core.ChatDocument{}
	}

	hits, err := s.store.Search(ctx, s.retrieval.request(q, s.semanticName))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error occurred while searching", "user", q.UserID, "err", err)
		return []*core.ChatDocument{}
	}
	return s.retrieval.selectHits(q, hits)
}
