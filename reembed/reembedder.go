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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/chatsession/ai"
	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of documents to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for failed embedding calls
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Workers is the number of batches embedded concurrently. Zero means
	// DefaultWorkers.
	Workers int

	// Filter restricts re-embedding to matching documents. The zero value
	// selects every document.
	Filter storage.Filter
}

// DefaultWorkers is the batch pool size when Config.Workers is unset.
const DefaultWorkers = 4

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		Workers:        DefaultWorkers,
	}
}

// Result summarises a completed run.
type Result struct {
	Processed int
	Elapsed   time.Duration
}

// Reembedder re-embeds every stored document of one schema.
type Reembedder struct {
	store     storage.Store
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *DocumentIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr); nil discards it.
func NewReembedder(store storage.Store, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries <= 0 {
		return nil, ai.ErrInvalidMaxAttempts
	}
	if config.Workers < 0 {
		return nil, ErrInvalidWorkers
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		store:     store,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(store, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewDocumentIterator(store, config.Filter, config.BatchSize),
		logger:    slog.Default().With("component", "reembed", "schema", store.Name()),
	}, nil
}

// Run re-embeds every matching document, embedding up to Config.Workers
// batches at once. The first failed batch stops the run; batches that already
// finished keep their new vectors.
func (r *Reembedder) Run(ctx context.Context) (Result, error) {
	total, err := r.iterator.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count documents: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No documents found in %s (0 documents)\n", r.store.Name())
		return Result{}, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d documents (batch size: %d)\n",
		total, r.iterator.batchSize)
	r.logger.Info("starting reembedding", "documents", total)

	tracker := NewProgressTracker(r.progress, r.store.Name(), total, r.config.ReportInterval)
	tracker.Start()

	workers := r.config.Workers
	if workers == 0 {
		workers = DefaultWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		wg        sync.WaitGroup
		processed atomic.Int64
		submitted int
	)
	err = r.iterator.ForEach(runCtx, func(docs []*core.ChatDocument) error {
		offset := submitted
		submitted += len(docs)
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := r.processor.Process(runCtx, docs); err != nil {
				cancel(fmt.Errorf("failed to process batch at offset %d: %w", offset, err))
				return
			}
			tracker.Update(int(processed.Add(int64(len(docs)))))
		})
		if submitErr != nil {
			wg.Done()
			return submitErr
		}
		return nil
	})
	wg.Wait()
	if cause := context.Cause(runCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		err = cause
	} else if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		done := int(processed.Load())
		r.logger.Error("reembedding failed", "processed", done, "err", err)
		return Result{Processed: done, Elapsed: tracker.Snapshot().Elapsed}, err
	}
	done := int(processed.Load())

	tracker.Finish()

	final := tracker.Snapshot()
	final.Done = done
	elapsed := final.Elapsed
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d documents in %v (%.1f documents/sec)\n",
		done, elapsed.Round(time.Millisecond), final.Rate())
	r.logger.Info("reembedding complete", "processed", done, "elapsed", elapsed)

	return Result{Processed: done, Elapsed: elapsed}, nil
}
