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

// Package rerank scores vector search candidates on a 0 to 4 scale.
//
// The score combines:
//   - Vector similarity reported by the store
//   - Query term coverage of the title, content and keyword fields named by a
//     storage.SemanticConfig, with stop words removed
//   - A verbatim boost when the title contains every query term
//
// Stores without a native semantic ranker use it to produce RerankScore.
package rerank
