package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/chatsession/ai"
	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/history"
)

const (
	// DefaultBatchSize is the number of questions embedded per call.
	DefaultBatchSize = 32

	// DefaultMaxAttempts bounds embedding retries per batch.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the first retry delay; it doubles on each retry.
	DefaultBaseDelay = 200 * time.Millisecond

	// DefaultRole is assigned to documents ingested without a role.
	DefaultRole = "user"
)

// Pipeline embeds and stores chat documents concurrently.
type Pipeline struct {
	service     history.Service
	embedder    ai.Embedder
	pool        *ants.Pool
	embedProc   batchStep
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent adds.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many questions are embedded per call.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithRetry sets the embedding retry policy.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ai.ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.baseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(service history.Service, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if service == nil {
		return nil, ErrHistoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		service:     service,
		embedder:    embedder,
		pool:        pool,
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		logger:      slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Created after options so it sees the final retry policy
	embedProc, err := newEmbeddingProcessor(embedder, p.maxAttempts, p.baseDelay, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embedProc = embedProc

	return p, nil
}

// Ingest stores docs, embedding the questions of those without a vector
// first. Missing ids, timestamps and roles are filled in. It succeeds only
// when every document was stored; the messages are in input order.
func (p *Pipeline) Ingest(ctx context.Context, docs ...*core.ChatDocument) (core.Messages, bool) {
	prepared := prepare(docs)
	results := make([]core.Messages, len(prepared))
	failed := make([]bool, len(prepared))

	p.embedMissing(ctx, prepared, results, failed)

	var wg sync.WaitGroup
	for i, doc := range prepared {
		if failed[i] {
			continue
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			msgs, ok := p.service.AddDocument(ctx, doc)
			results[i] = append(results[i], msgs...)
			failed[i] = !ok
		})
		if err != nil {
			wg.Done()
			results[i] = append(results[i], core.Error("Error submitting ChatDocument with Id:%s: %v", doc.ID, err))
			failed[i] = true
		}
	}
	wg.Wait()

	var messages core.Messages
	stored := 0
	for i := range prepared {
		messages = append(messages, results[i]...)
		if !failed[i] {
			stored++
		}
	}

	summary := fmt.Sprintf("Ingested %d of %d ChatDocuments", stored, len(prepared))
	if stored == len(prepared) {
		messages = append(messages, core.Info("%s", summary))
		p.logger.Info("ingestion complete", "stored", stored)
		return messages, true
	}
	messages = append(messages, core.Warn("%s", summary))
	p.logger.Warn("ingestion incomplete", "stored", stored, "total", len(prepared))
	return messages, false
}

// embedMissing embeds documents without a vector in batches. Documents of
// a failed batch are marked failed.
func (p *Pipeline) embedMissing(ctx context.Context, docs []*core.ChatDocument, results []core.Messages, failed []bool) {
	var pending []int
	for i, doc := range docs {
		if len(doc.QuestionVector) == 0 && strings.TrimSpace(doc.Question) != "" {
			pending = append(pending, i)
		}
	}

	for start := 0; start < len(pending); start += p.batchSize {
		end := min(start+p.batchSize, len(pending))
		idx := pending[start:end]

		batch := make([]*core.ChatDocument, len(idx))
		for j, i := range idx {
			batch[j] = docs[i]
		}

		if err := p.embedProc.process(ctx, batch); err != nil {
			for _, i := range idx {
				results[i] = append(results[i], core.Error("Error embedding ChatDocument with Id:%s: %v", docs[i].ID, err))
				failed[i] = true
			}
		}
	}
}

// prepare copies non-nil docs and fills defaults.
func prepare(docs []*core.ChatDocument) []*core.ChatDocument {
	now := time.Now().UTC()
	out := make([]*core.ChatDocument, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		doc = doc.Clone()
		if doc.ID == "" {
			doc.ID = core.NewDocumentID()
		}
		if doc.Timestamp.IsZero() {
			doc.Timestamp = now
		}
		if doc.Role == "" {
			doc.Role = DefaultRole
		}
		out = append(out, doc)
	}
	return out
}

// ReadDocuments decodes one JSON chat document per line. Blank lines are skipped.
func ReadDocuments(r io.Reader) ([]*core.ChatDocument, error) {
	var docs []*core.ChatDocument
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc core.ChatDocument
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w: %w", line, ErrMalformedLine, err)
		}
		docs = append(docs, &doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
