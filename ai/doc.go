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

// Package ai defines the model services the chat history service depends on.
//
// Two contracts cover everything the rest of the module needs from a model:
//
//   - Embedder: turns question text into a fixed-dimension vector
//   - Completer: answers a prompt given prior conversation turns
//
// Provider aggregates both for lifecycle management.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible services (Ollama, vLLM, OpenAI) via langchaingo
//   - ai/mock: deterministic test doubles
//
// # Decorators
//
// RetryingEmbedder retries failed calls with exponential backoff and
// CachingEmbedder memoises vectors by content id. Both wrap any Embedder:
//
//	embedder, _ := ai.NewRetryingEmbedder(provider.Embedder(), 3, 100*time.Millisecond)
//	cached, _ := ai.NewCachingEmbedder(embedder, 0)
//	defer cached.Close()
//
//	vector, err := cached.EmbedText(ctx, "capital of France?")
package ai
