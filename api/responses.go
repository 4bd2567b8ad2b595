package api

import (
	"encoding/json"
	"net/http"

	"github.com/poiesic/chatsession/core"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// MessagesResponse reports an administrative operation.
type MessagesResponse struct {
	Success  bool          `json:"success"`
	Messages core.Messages `json:"messages"`
}

// DocumentsResponse lists documents.
type DocumentsResponse struct {
	Documents []*core.ChatDocument `json:"documents"`
	Total     int                  `json:"total"`
}

// SchemaResponse reports the schema state.
type SchemaResponse struct {
	Name   string `json:"name,omitempty"`
	Exists bool   `json:"exists"`
	State  string `json:"state"`
}

// HistoryResponse is a rendered session transcript.
type HistoryResponse struct {
	History   string               `json:"history"`
	Documents []*core.ChatDocument `json:"documents"`
}

// QueryRequest is the body of POST /api/v1/query. When Vector is empty
// and the server has an embedder, Text is embedded.
type QueryRequest struct {
	Text            string    `json:"text"`
	Vector          []float32 `json:"vector,omitempty"`
	TopK            int       `json:"topK"`
	UserID          string    `json:"userId"`
	RerankThreshold *float64  `json:"rerankThreshold,omitempty"`
}

// AskRequest is the body of POST /api/v1/ask.
type AskRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Question  string `json:"question"`
}

// AskResponse is the answer to an AskRequest.
type AskResponse struct {
	Answer         string        `json:"answer"`
	DocumentID     string        `json:"documentId"`
	Stored         bool          `json:"stored"`
	HistoryTurns   int           `json:"historyTurns"`
	FromTranscript bool          `json:"fromTranscript"`
	Messages       core.Messages `json:"messages,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Schema string `json:"schema"`
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON", "err", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}

// sendMessages answers an administrative operation with failStatus on failure.
func (s *Server) sendMessages(w http.ResponseWriter, okStatus, failStatus int, msgs core.Messages, ok bool) {
	status := okStatus
	if !ok {
		status = failStatus
	}
	if msgs == nil {
		msgs = core.Messages{}
	}
	s.sendJSON(w, status, MessagesResponse{Success: ok, Messages: msgs})
}

func documentsResponse(docs []*core.ChatDocument) DocumentsResponse {
	if docs == nil {
		docs = []*core.ChatDocument{}
	}
	return DocumentsResponse{Documents: docs, Total: len(docs)}
}
