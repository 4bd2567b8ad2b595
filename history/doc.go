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

// Package history implements the chat history service.
//
// A DataService is bound to one storage.Store and one schema. It creates the
// schema lazily on first write, guarding the check-then-create sequence with
// an instance mutex and a lock-free initialized flag so concurrent callers
// trigger at most one create.
//
// Administrative operations return (core.Messages, bool) and never surface
// provider errors. Collection queries return an empty slice when nothing
// matches and nil when the store could not answer; single lookups return nil
// in both cases. History contexts are nil when no documents are found.
//
// HybridQuery adapts to the store: stores with a semantic rerank stage are
// post-filtered by user and rerank threshold, stores with server-side
// distance ranking are scoped by user and capped at TopK with the threshold
// ignored.
package history
