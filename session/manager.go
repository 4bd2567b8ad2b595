package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/chatsession/ai"
	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/history"
	"github.com/poiesic/chatsession/storage"
)

const (
	// DefaultTopK bounds the number of history turns given to the model.
	DefaultTopK = 5

	// RoleUser is the role stored on answered turns.
	RoleUser = "user"
)

// Question is one user question within a session.
type Question struct {
	UserID    string
	SessionID string
	IPAddress string
	Text      string
}

// Answer is the outcome of a turn.
type Answer struct {
	// Text is the model's response.
	Text string

	// Document is the turn as stored, including the question vector.
	Document *core.ChatDocument

	// History is the context given to the model, or nil when there was none.
	History *core.HistoryContext

	// FromTranscript reports whether History is the session transcript
	// rather than hybrid retrieval hits.
	FromTranscript bool

	// Stored reports whether the turn was persisted. Messages explains why not.
	Stored   bool
	Messages core.Messages
}

// Manager runs conversational turns against one history service.
type Manager struct {
	service   history.Service
	embedder  ai.Embedder
	completer ai.Completer
	topK      int
	threshold float64
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// WithTopK sets how many history turns are retrieved per question.
func WithTopK(k int) Option {
	return func(m *Manager) error {
		if k < 1 {
			return fmt.Errorf("topK must be positive, got %d", k)
		}
		m.topK = k
		return nil
	}
}

// WithRerankThreshold sets the minimum rerank score of retrieved turns.
// Only stores with a semantic rerank stage use it.
func WithRerankThreshold(threshold float64) Option {
	return func(m *Manager) error {
		m.threshold = threshold
		return nil
	}
}

// NewManager creates a session manager.
func NewManager(service history.Service, embedder ai.Embedder, completer ai.Completer, opts ...Option) (*Manager, error) {
	if service == nil {
		return nil, ErrHistoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if completer == nil {
		return nil, ErrCompleterRequired
	}

	m := &Manager{
		service:   service,
		embedder:  embedder,
		completer: completer,
		topK:      DefaultTopK,
		threshold: history.DefaultRerankThreshold,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    slog.Default().With("component", "session"),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Ask answers q and stores the turn.
func (m *Manager) Ask(ctx context.Context, q Question) (*Answer, error) {
	return m.AskWithMonitor(ctx, q, nil)
}

// AskWithMonitor answers q and stores the turn, reporting each step to monitor.
//
// Embedding and completion failures are returned as errors and nothing is
// stored. A failure to store the answered turn is not an error: the answer
// is returned with Stored false.
func (m *Manager) AskWithMonitor(ctx context.Context, q Question, monitor Monitor) (*Answer, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuestion
	}
	if strings.TrimSpace(q.UserID) == "" {
		return nil, ErrUserRequired
	}

	logger := m.logger.With("userId", q.UserID, "sessionId", q.SessionID)
	monitor.Start(q)

	vector, err := m.embedder.EmbedText(ctx, q.Text)
	if err != nil {
		logger.Error("error generating embedding for question", "err", err)
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	monitor.AfterEmbedding(len(vector))

	hc, fromTranscript := m.retrieve(ctx, q, vector)
	monitor.AfterRetrieval(hc, fromTranscript)
	logger.Debug("retrieved history", "turns", hc.Len(), "transcript", fromTranscript)

	text, err := m.completer.Complete(ctx, q.Text, hc)
	if err != nil {
		logger.Error("error generating completion", "err", err)
		return nil, fmt.Errorf("completing question: %w", err)
	}
	monitor.AfterCompletion(text)

	doc := &core.ChatDocument{
		ID:             core.NewDocumentID(),
		UserID:         q.UserID,
		SessionID:      q.SessionID,
		Question:       q.Text,
		Content:        text,
		IPAddress:      q.IPAddress,
		Role:           RoleUser,
		Timestamp:      m.now(),
		QuestionVector: vector,
	}
	msgs, stored := m.service.AddDocument(ctx, doc)
	if !stored {
		logger.Warn("answered turn was not stored", "id", doc.ID, "messages", msgs.String())
	}

	answer := &Answer{
		Text:           text,
		Document:       doc,
		History:        hc,
		FromTranscript: fromTranscript,
		Stored:         stored,
		Messages:       msgs,
	}
	monitor.Finish(answer)
	return answer, nil
}

// retrieve returns related turns, or the most recent turns of the session
// when retrieval finds nothing.
func (m *Manager) retrieve(ctx context.Context, q Question, vector []float32) (*core.HistoryContext, bool) {
	query := history.NewHybridQuery(q.Text, vector, m.topK, q.UserID)
	query.RerankThreshold = m.threshold
	if hc := m.service.BuildQueryHistoryContext(ctx, query); hc != nil {
		return hc, false
	}

	if strings.TrimSpace(q.SessionID) == "" {
		return nil, false
	}
	hc := m.service.BuildHistoryContext(ctx, storage.Filter{UserID: q.UserID, SessionID: q.SessionID})
	if hc == nil {
		return nil, false
	}
	if n := hc.Len(); n > m.topK {
		hc = core.NewHistoryContext(hc.ChatHistories[n-m.topK:]...)
	}
	return hc, true
}
