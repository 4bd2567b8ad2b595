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

// Package storage defines the document store contract used by the chat
// history service.
//
// A Store binds one schema (index or collection) on one concrete engine and
// exposes schema lifecycle, upsert, delete, structured find and vector search.
// Two engines are provided:
//
//   - storage/badger: an embedded document database. Search ranks by cosine
//     similarity computed inside the store, scoped to a user.
//   - storage/redis: a RediSearch index. Search retrieves nearest neighbours
//     and reranks them semantically; user scoping is left to the caller.
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.Store interface:
//
//	store, err := badger.NewStore(backend, "chathistory")
//
// Use in tests with in-memory storage:
//
//	store, err := badger.NewMemoryStore("chathistory")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// # Bounded Reads
//
// Every read is bounded by MaxPageSize. Callers that need more page through
// results with Page.Offset.
//
// # Thread Safety
//
// All Store implementations must be safe for concurrent use.
package storage
