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

package openai

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/chatsession/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder on an OpenAI-compatible embeddings
// endpoint. The first vector it returns fixes its dimension; a later vector
// of another length is an error rather than a corrupt question vector.
type Embedder struct {
	client    embeddings.Embedder
	model     string
	dimension atomic.Int64
	logger    *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// newEmbedder is an internal constructor that returns the concrete type.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client for %s: %w", config.EmbeddingHost, err)
	}

	client, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	return wrapEmbedder(client, config.EmbeddingModel), nil
}

func wrapEmbedder(client embeddings.Embedder, model string) *Embedder {
	return &Embedder{
		client: client,
		model:  model,
		logger: slog.Default().With("component", "openai-embedder", "model", model),
	}
}

// NewEmbedder creates an embedder for config.EmbeddingModel.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Dimension returns the length of the vectors seen so far, or 0 before the
// first call.
func (e *Embedder) Dimension() int {
	return int(e.dimension.Load())
}

// EmbedText embeds one question.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.client.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to embed question", "length", len(text), "err", err)
		return nil, err
	}
	if err := e.check(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedTexts embeds questions in one request. An empty batch makes no request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("embedding batch", "count", len(texts))

	vectors, err := e.client.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to embed batch", "count", len(texts), "err", err)
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %d texts, %d vectors", ai.ErrEmbeddingCount, len(texts), len(vectors))
	}
	for i, vector := range vectors {
		if err := e.check(vector); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}
	return vectors, nil
}

func (e *Embedder) check(vector []float32) error {
	if len(vector) == 0 {
		return ai.ErrEmptyEmbedding
	}
	n := int64(len(vector))
	if e.dimension.CompareAndSwap(0, n) {
		e.logger.Debug("embedding dimension detected", "dimension", n)
		return nil
	}
	if want := e.dimension.Load(); want != n {
		return fmt.Errorf("%w: model %s returned %d, expected %d", ai.ErrDimensionChanged, e.model, n, want)
	}
	return nil
}
