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

package storage

import (
	"context"

	"github.com/poiesic/chatsession/core"
)

// Capabilities describes what a Store can do natively. The history service
// picks its retrieval policy from these flags.
type Capabilities struct {
	// SemanticRerank is set when Search returns a RerankScore for each hit.
	// Such stores rank by rerank score and do not scope results to a user,
	// so the caller post-filters.
	SemanticRerank bool

	// ServerSideDistance is set when Search ranks by a store-side cosine
	// distance and honours Filter.UserID before ranking.
	ServerSideDistance bool

	// ExactFilter is set when Find returns only documents whose fields equal
	// the Filter values. Without it, Find may match loosely (analyzed text,
	// prefixes) and the caller re-checks each result.
	ExactFilter bool
}

// Store executes schema, write, and query operations against one concrete
// engine. Implementations must be safe for concurrent use; a Store holds no
// per-call state.
type Store interface {
	// Name returns the lowercase schema (index or collection) name.
	Name() string

	// Capabilities reports the native features of the store.
	Capabilities() Capabilities

	// SchemaExists reports whether the schema exists. An absent schema may be
	// reported either as (false, nil) or as an error wrapping ErrSchemaNotFound.
	SchemaExists(ctx context.Context) (bool, error)

	// CreateOrUpdateSchema creates the schema described by def. Calling it
	// for a schema that already exists must succeed without losing data.
	CreateOrUpdateSchema(ctx context.Context, def *SchemaDefinition) error

	// DeleteSchema removes the schema and every document stored under it.
	// Returns ErrSchemaNotFound if the schema does not exist.
	DeleteSchema(ctx context.Context) error

	// Upsert creates or fully replaces documents by ID.
	// Returns one result per document, in input order.
	Upsert(ctx context.Context, docs ...*core.ChatDocument) ([]UpsertResult, error)

	// Delete removes documents by ID.
	// Returns one result per ID, in input order.
	Delete(ctx context.Context, ids ...string) ([]DeleteResult, error)

	// Find returns documents matching every non-empty field of filter,
	// ordered by timestamp ascending. The page limit is clamped to MaxPageSize.
	Find(ctx context.Context, filter Filter, page Page) ([]*core.ChatDocument, error)

	// Search runs a vector (and, where supported, semantic) query.
	// Results are in the store's rank order.
	Search(ctx context.Context, req SearchRequest) ([]ScoredDocument, error)

	// Close releases resources held by the store.
	Close() error
}
