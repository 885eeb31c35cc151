package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/recall/internal/memory"
	"github.com/ent0n29/recall/internal/protocol"
)

// ChatModel is the downstream language model. The engine only hands it a
// bounded prompt; everything else about it is someone else's problem.
type ChatModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// EchoModel is a deterministic local stand-in for a real model backend.
type EchoModel struct {
	name string
}

func NewEchoModel(name string) *EchoModel {
	if strings.TrimSpace(name) == "" {
		name = "echo-1"
	}
	return &EchoModel{name: name}
}

func (m *EchoModel) Name() string { return m.name }

func (m *EchoModel) Complete(_ context.Context, prompt string) (string, error) {
	// Echo back the final user line of the prompt.
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], "User: ") {
			last = strings.TrimPrefix(lines[i], "User: ")
			break
		}
	}
	if last == "" {
		return "I'm listening.", nil
	}
	return fmt.Sprintf("You said: %s", last), nil
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	var req protocol.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	ctx := r.Context()
	if _, err := s.engine.GetOrCreate(ctx, req.UserID, sessionID); err != nil {
		s.countTurn("error")
		respondError(w, http.StatusInternalServerError, "memory_unavailable", err.Error())
		return
	}

	userMsg := memory.ConversationMessage{
		Role:    memory.RoleUser,
		Content: req.Content,
		Metadata: memory.MessageMetadata{
			UserFeedback:     req.Feedback,
			UserSatisfaction: req.Satisfaction,
		},
	}
	if err := s.engine.AddMessage(ctx, req.UserID, sessionID, userMsg); err != nil {
		s.countTurn("error")
		respondError(w, http.StatusInternalServerError, "ingest_failed", err.Error())
		return
	}

	prompt, err := s.engine.ContextualPrompt(ctx, req.UserID, sessionID, req.Content)
	if err != nil {
		s.countTurn("error")
		respondError(w, http.StatusInternalServerError, "prompt_failed", err.Error())
		return
	}

	started := time.Now()
	reply, err := s.model.Complete(ctx, prompt)
	if err != nil {
		s.countTurn("model_error")
		respondError(w, http.StatusBadGateway, "model_failed", err.Error())
		return
	}

	assistantMsg := memory.ConversationMessage{
		Role:    memory.RoleAssistant,
		Content: reply,
		Model:   s.model.Name(),
		Metadata: memory.MessageMetadata{
			ResponseTimeMS: time.Since(started).Milliseconds(),
		},
	}
	if err := s.engine.AddMessage(ctx, req.UserID, sessionID, assistantMsg); err != nil {
		s.countTurn("error")
		respondError(w, http.StatusInternalServerError, "ingest_failed", err.Error())
		return
	}

	summary, err := s.engine.ConversationSummary(ctx, req.UserID, sessionID)
	if err != nil {
		s.countTurn("error")
		respondError(w, http.StatusInternalServerError, "memory_unavailable", err.Error())
		return
	}

	s.countTurn("ok")
	respondJSON(w, http.StatusOK, protocol.ChatResponse{
		ConversationID: summary.ConversationID,
		Reply:          reply,
		Model:          s.model.Name(),
		PromptChars:    len(prompt),
		HistoryLen:     summary.MessageCount,
		CurrentTopic:   summary.CurrentTopic,
		At:             time.Now().UTC(),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if sessionID == "" || userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "session id and user_id are required")
		return
	}

	summary, err := s.engine.ConversationSummary(r.Context(), userID, sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "memory_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	var req protocol.FeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	err := s.engine.RecordFeedback(r.Context(), req.UserID, sessionID, req.Rating, req.Comment)
	switch {
	case errors.Is(err, memory.ErrInvalidRating):
		respondError(w, http.StatusBadRequest, "invalid_rating", err.Error())
	case errors.Is(err, memory.ErrNoAssistantTurn):
		respondError(w, http.StatusConflict, "nothing_to_rate", err.Error())
	case err != nil:
		respondError(w, http.StatusInternalServerError, "feedback_failed", err.Error())
	default:
		respondJSON(w, http.StatusOK, map[string]any{"status": "recorded"})
	}
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "missing user id")
		return
	}

	prefs, err := s.engine.Preferences(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "memory_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "missing user id")
		return
	}

	var prefs memory.UserMemoryPreferences
	if err := decodeJSON(r, &prefs); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.engine.UpdatePreferences(r.Context(), userID, prefs); err != nil {
		respondError(w, http.StatusInternalServerError, "preferences_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

func (s *Server) countTurn(outcome string) {
	if s.metrics != nil {
		s.metrics.ChatTurns.WithLabelValues(outcome).Inc()
	}
}
