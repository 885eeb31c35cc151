// Package protocol defines the wire types of the chat HTTP and websocket
// API.
package protocol

import "time"

// ChatRequest is one inbound user turn.
type ChatRequest struct {
	UserID       string `json:"user_id"`
	Content      string `json:"content"`
	Feedback     string `json:"feedback,omitempty"`
	Satisfaction int    `json:"satisfaction,omitempty"`
}

// ChatResponse carries the assistant reply plus memory bookkeeping the UI
// surfaces.
type ChatResponse struct {
	ConversationID string    `json:"conversation_id"`
	Reply          string    `json:"reply"`
	Model          string    `json:"model"`
	PromptChars    int       `json:"prompt_chars"`
	HistoryLen     int       `json:"history_len"`
	CurrentTopic   string    `json:"current_topic,omitempty"`
	At             time.Time `json:"at"`
}

// FeedbackRequest rates the most recent assistant turn.
type FeedbackRequest struct {
	UserID  string `json:"user_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// EventEnvelope wraps engine ingest events on the websocket stream.
type EventEnvelope struct {
	Type  string `json:"type"`
	Event any    `json:"event,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	TypeIngestEvent = "ingest_event"
	TypeErrorEvent  = "error_event"
)
