package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/poiesic/chatsession/core"
	"github.com/poiesic/chatsession/history"
	"github.com/poiesic/chatsession/session"
	"github.com/poiesic/chatsession/storage"
)

const maxBodyBytes = 1 << 20

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{Status: "ok", Schema: s.service.State().String()})
}

func (s *Server) handleEnsureSchema(w http.ResponseWriter, r *http.Request) {
	msgs, ok := s.service.EnsureSchema(r.Context())
	s.sendMessages(w, http.StatusOK, http.StatusInternalServerError, msgs, ok)
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	exists := s.service.SchemaExists(r.Context())
	s.sendJSON(w, http.StatusOK, SchemaResponse{Exists: exists, State: s.service.State().String()})
}

func (s *Server) handleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	msgs, ok := s.service.DeleteSchemaIfExists(r.Context())
	s.sendMessages(w, http.StatusOK, http.StatusInternalServerError, msgs, ok)
}

// handleAddDocument stores a document. A missing ID, timestamp or role is
// filled in, and a missing vector is computed from the question when an
// embedder is configured.
func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var doc core.ChatDocument
	if !s.decode(w, r, &doc) {
		return
	}
	if doc.ID == "" {
		doc.ID = core.NewDocumentID()
	}
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now().UTC()
	}
	if doc.Role == "" {
		doc.Role = session.RoleUser
	}
	if len(doc.QuestionVector) == 0 && s.embedder != nil && strings.TrimSpace(doc.Question) != "" {
		vector, err := s.embedder.EmbedText(r.Context(), doc.Question)
		if err != nil {
			s.logger.Error("embedding document failed", "id", doc.ID, "err", err)
			s.sendError(w, http.StatusBadGateway, fmt.Sprintf("Failed to embed question: %v", err))
			return
		}
		doc.QuestionVector = vector
	}
	if err := core.ValidateChatDocument(&doc, 0); err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, ok := s.service.AddDocument(r.Context(), &doc)
	s.sendMessages(w, http.StatusCreated, http.StatusUnprocessableEntity, msgs, ok)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc := s.service.FindByID(r.Context(), id)
	if doc == nil {
		s.sendError(w, http.StatusNotFound, fmt.Sprintf("ChatDocument %s not found", id))
		return
	}
	s.sendJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	msgs, ok := s.service.DeleteByID(r.Context(), mux.Vars(r)["id"])
	s.sendMessages(w, http.StatusOK, http.StatusInternalServerError, msgs, ok)
}

func (s *Server) handleListUserDocuments(w http.ResponseWriter, r *http.Request) {
	s.sendDocuments(w, s.service.FindAllByUserID(r.Context(), mux.Vars(r)["userId"]))
}

func (s *Server) handleDeleteUserDocuments(w http.ResponseWriter, r *http.Request) {
	msgs, ok := s.service.DeleteByUserID(r.Context(), mux.Vars(r)["userId"])
	s.sendMessages(w, http.StatusOK, http.StatusInternalServerError, msgs, ok)
}

func (s *Server) handleListSessionDocuments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.sendDocuments(w, s.service.FindByUserAndSession(r.Context(), vars["userId"], vars["sessionId"]))
}

func (s *Server) handleDeleteSessionDocuments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	msgs, ok := s.service.DeleteByUserAndSession(r.Context(), vars["userId"], vars["sessionId"])
	s.sendMessages(w, http.StatusOK, http.StatusInternalServerError, msgs, ok)
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hc := s.service.BuildHistoryContext(r.Context(), storage.Filter{
		UserID:    vars["userId"],
		SessionID: vars["sessionId"],
	})
	resp := HistoryResponse{Documents: []*core.ChatDocument{}}
	if hc != nil {
		resp.History = hc.String()
		resp.Documents = hc.ChatHistories
	}
	s.sendJSON(w, http.StatusOK, resp)
}

// sendDocuments answers a list. A nil list means the backend could not be read.
func (s *Server) sendDocuments(w http.ResponseWriter, docs []*core.ChatDocument) {
	if docs == nil {
		s.sendError(w, http.StatusInternalServerError, "Failed to read ChatDocuments")
		return
	}
	s.sendJSON(w, http.StatusOK, documentsResponse(docs))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		s.sendError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = session.DefaultTopK
	}

	vector := req.Vector
	if len(vector) == 0 {
		if s.embedder == nil || strings.TrimSpace(req.Text) == "" {
			s.sendError(w, http.StatusBadRequest, "vector is required")
			return
		}
		var err error
		vector, err = s.embedder.EmbedText(r.Context(), req.Text)
		if err != nil {
			s.logger.Error("embedding query failed", "err", err)
			s.sendError(w, http.StatusBadGateway, fmt.Sprintf("Failed to embed query: %v", err))
			return
		}
	}

	q := history.NewHybridQuery(req.Text, vector, req.TopK, req.UserID)
	if req.RerankThreshold != nil {
		q.RerankThreshold = *req.RerankThreshold
	}
	s.sendJSON(w, http.StatusOK, documentsResponse(s.service.HybridQuery(r.Context(), q)))
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		s.sendError(w, http.StatusServiceUnavailable, "Question answering is not configured")
		return
	}
	var req AskRequest
	if !s.decode(w, r, &req) {
		return
	}

	answer, err := s.sessions.Ask(r.Context(), session.Question{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		IPAddress: clientIP(r),
		Text:      req.Question,
	})
	if errors.Is(err, session.ErrEmptyQuestion) || errors.Is(err, session.ErrUserRequired) {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("answering question failed", "user", req.UserID, "session", req.SessionID, "err", err)
		s.sendError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.sendJSON(w, http.StatusOK, AskResponse{
		Answer:         answer.Text,
		DocumentID:     answer.Document.ID,
		Stored:         answer.Stored,
		HistoryTurns:   answer.History.Len(),
		FromTranscript: answer.FromTranscript,
		Messages:       answer.Messages,
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
