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
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/chatsession/ai"
)

// ErrProviderClosed is returned by Close on a provider that is already closed.
var ErrProviderClosed = errors.New("openai provider already closed")

// Provider pairs an Embedder and a Completer built from one ai.Config.
type Provider struct {
	embedder  *Embedder
	completer *Completer
	closed    atomic.Bool
	logger    *slog.Logger
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider validates config and builds both clients. The embedding and
// completion hosts may differ.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	completer, err := newCompleter(config)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		embedder:  embedder,
		completer: completer,
		logger:    slog.Default().With("component", "openai-provider"),
	}
	p.logger.Info("ai provider ready",
		"embedding_host", config.EmbeddingHost,
		"embedding_model", config.EmbeddingModel,
		"completion_host", config.CompletionHost,
		"completion_model", config.CompletionModel)
	return p, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Completer() ai.Completer {
	return p.completer
}

// Close marks the provider closed. The HTTP clients hold no resources of
// their own, so a second Close is the only error.
func (p *Provider) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrProviderClosed
	}
	p.logger.Debug("ai provider closed", "embedding_dimension", p.embedder.Dimension())
	return nil
}
