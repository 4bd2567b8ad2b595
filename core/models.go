package core

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// Stored field names. Backends key on these, so they must stay stable and
// match the JSON tags on ChatDocument.
const (
	FieldID             = "id"
	FieldUserID         = "userId"
	FieldSessionID      = "sessionId"
	FieldQuestion       = "question"
	FieldContent        = "content"
	FieldIPAddress      = "ipAddress"
	FieldRole           = "role"
	FieldTimestamp      = "timestamp"
	FieldQuestionVector = "questionVector"
)

// ID is a 64-bit content hash.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content always produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// NewDocumentID returns a new random document id.
func NewDocumentID() string {
	return uuid.NewString()
}

// ChatDocument is one conversational turn: a user's question and the
// assistant's response, plus the embedding of the question.
type ChatDocument struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	SessionID      string    `json:"sessionId"`
	Question       string    `json:"question"`
	Content        string    `json:"content"`
	IPAddress      string    `json:"ipAddress"`
	Role           string    `json:"role"`
	Timestamp      time.Time `json:"timestamp"`
	QuestionVector []float32 `json:"questionVector,omitempty"`
}

// String returns a short description of the document.
func (d *ChatDocument) String() string {
	return fmt.Sprintf("Id: %s, UserId: %s, Content: %s, CreatedAt: %s",
		d.ID, d.UserID, d.Content, d.Timestamp.Format(time.RFC3339))
}

// Clone returns a deep copy of the document.
func (d *ChatDocument) Clone() *ChatDocument {
	if d == nil {
		return nil
	}
	clone := *d
	if d.QuestionVector != nil {
		clone.QuestionVector = append([]float32(nil), d.QuestionVector...)
	}
	return &clone
}

// HistoryContext is an ordered set of chat documents rendered as a transcript.
// Order is the order in which documents were retrieved.
type HistoryContext struct {
	ChatHistories []*ChatDocument
}

// NewHistoryContext builds a history context from documents, keeping their order.
func NewHistoryContext(docs ...*ChatDocument) *HistoryContext {
	hc := &HistoryContext{ChatHistories: make([]*ChatDocument, 0, len(docs))}
	for _, doc := range docs {
		hc.Add(doc)
	}
	return hc
}

// Add appends a document to the history. Nil documents are ignored.
func (h *HistoryContext) Add(doc *ChatDocument) {
	if doc == nil {
		return
	}
	h.ChatHistories = append(h.ChatHistories, doc)
}

// Len returns the number of documents in the history.
func (h *HistoryContext) Len() int {
	if h == nil {
		return 0
	}
	return len(h.ChatHistories)
}

// String renders the history as alternating Question/Response lines.
func (h *HistoryContext) String() string {
	if h == nil {
		return ""
	}
	var sb strings.Builder
	for _, doc := range h.ChatHistories {
		sb.WriteString("Question: ")
		sb.WriteString(doc.Question)
		sb.WriteString("\n")
		sb.WriteString("Response: ")
		sb.WriteString(doc.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
