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

package reembed

import (
	"context"

	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
)

const (
	// DefaultBatchSize is the default number of documents fetched per page.
	DefaultBatchSize = 100
)

// DocumentIterator pages through the documents matching a filter in
// timestamp order.
type DocumentIterator struct {
	store     storage.Store
	filter    storage.Filter
	batchSize int
}

// NewDocumentIterator creates a new document iterator.
// batchSize is clamped to storage.MaxPageSize; non-positive uses DefaultBatchSize.
func NewDocumentIterator(store storage.Store, filter storage.Filter, batchSize int) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	batchSize = min(batchSize, storage.MaxPageSize)

	return &DocumentIterator{
		store:     store,
		filter:    filter,
		batchSize: batchSize,
	}
}

// ForEach calls fn with each page of documents. Iteration stops on the first
// error from fn or the store, or when a short page is read. Context
// cancellation is checked between pages.
//
// Pages are addressed by offset, so fn must not add or remove matching
// documents. Replacing them in place is fine.
func (it *DocumentIterator) ForEach(ctx context.Context, fn func([]*core.ChatDocument) error) error {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		docs, err := it.store.Find(ctx, it.filter, storage.Page{Offset: offset, Limit: it.batchSize})
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}

		if err := fn(docs); err != nil {
			return err
		}

		if len(docs) < it.batchSize {
			return nil
		}
		offset += len(docs)
	}
}

// Count returns the number of matching documents.
func (it *DocumentIterator) Count(ctx context.Context) (int, error) {
	total := 0
	err := it.ForEach(ctx, func(docs []*core.ChatDocument) error {
		total += len(docs)
		return nil
	})
	return total, err
}
