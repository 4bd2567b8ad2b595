// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rerank

import (
	"slices"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
)

// MaxScore is the upper bound of a rerank score.
const MaxScore = 4.0

// Reranker assigns a rerank score to search candidates and orders them by it.
// Implementations must be safe for concurrent use.
type Reranker interface {
	// Rerank scores candidates against the query text using the fields named
	// by config and returns them sorted by rerank score, highest first.
	// A nil config uses the question as title and question+content as content.
	Rerank(query string, config *storage.SemanticConfig, candidates []storage.ScoredDocument) []storage.ScoredDocument
}

// Weights controls how the rerank score is assembled. Each component is in
// [0, 1]; the weighted sum is clamped to 1 and scaled to MaxScore.
type Weights struct {
	Vector   float64
	Title    float64
	Content  float64
	Keywords float64
	Verbatim float64
}

// DefaultWeights favours vector similarity, then title overlap.
var DefaultWeights = Weights{
	Vector:   0.5,
	Title:    0.25,
	Content:  0.15,
	Keywords: 0.1,
	Verbatim: 0.1,
}

// Semantic is the default Reranker. It blends the candidate's vector
// similarity with query term coverage over the configured fields.
type Semantic struct {
	weights Weights
}

var _ Reranker = (*Semantic)(nil)

// Option configures a Semantic reranker.
type Option func(*Semantic)

// WithWeights overrides DefaultWeights.
func WithWeights(w Weights) Option {
	return func(s *Semantic) {
		s.weights = w
	}
}

// New creates a Semantic reranker.
func New(opts ...Option) *Semantic {
	s := &Semantic{weights: DefaultWeights}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var defaultConfig = &storage.SemanticConfig{
	TitleField:    core.FieldQuestion,
	ContentFields: []string{core.FieldQuestion, core.FieldContent},
}

// Rerank implements Reranker. Ties keep their incoming order.
func (s *Semantic) Rerank(query string, config *storage.SemanticConfig, candidates []storage.ScoredDocument) []storage.ScoredDocument {
	if config == nil {
		config = defaultConfig
	}
	terms := tokenizeAndFilter(query)

	out := make([]storage.ScoredDocument, 0, len(candidates))
	for _, c := range candidates {
		if c.Document == nil {
			continue
		}
		score := s.Score(terms, config, c)
		c.RerankScore = &score
		out = append(out, c)
	}

	slices.SortStableFunc(out, func(a, b storage.ScoredDocument) int {
		if *a.RerankScore > *b.RerankScore {
			return -1
		}
		if *a.RerankScore < *b.RerankScore {
			return 1
		}
		return 0
	})
	return out
}

// Score computes the rerank score of one candidate for pre-tokenized query terms.
func (s *Semantic) Score(terms []string, config *storage.SemanticConfig, c storage.ScoredDocument) float64 {
	w := s.weights
	vector := clamp01(c.Score)

	// Without usable query terms only the vector component carries signal.
	if len(terms) == 0 {
		return MaxScore * vector * w.Vector
	}

	title := fieldValue(c.Document, config.TitleField)
	titleSet := termSet(title)
	contentSet := termSet(fieldValues(c.Document, config.ContentFields)...)
	keywordSet := termSet(fieldValues(c.Document, config.KeywordFields)...)

	raw := w.Vector*vector +
		w.Title*coverage(terms, titleSet) +
		w.Content*coverage(terms, contentSet) +
		w.Keywords*coverage(terms, keywordSet)

	// Verbatim boost when the title holds every query term
	if coverage(terms, titleSet) == 1 {
		raw += w.Verbatim
	}

	return MaxScore * clamp01(raw)
}

func fieldValues(doc *core.ChatDocument, names []string) []string {
	values := make([]string, 0, len(names))
	for _, name := range names {
		values = append(values, fieldValue(doc, name))
	}
	return values
}

// fieldValue returns the text of a named document field.
func fieldValue(doc *core.ChatDocument, name string) string {
	switch name {
	case core.FieldID:
		return doc.ID
	case core.FieldUserID:
		return doc.UserID
	case core.FieldSessionID:
		return doc.SessionID
	case core.FieldQuestion:
		return doc.Question
	case core.FieldContent:
		return doc.Content
	case core.FieldIPAddress:
		return doc.IPAddress
	case core.FieldRole:
		return doc.Role
	default:
		return ""
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
