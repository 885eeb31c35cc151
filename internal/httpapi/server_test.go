package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ent0n29/recall/internal/config"
	"github.com/ent0n29/recall/internal/memory"
	"github.com/ent0n29/recall/internal/persist"
	"github.com/ent0n29/recall/internal/protocol"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	engine := memory.NewEngine(persist.NewInMemoryAdapter(), 0, nil)
	return New(config.Config{}, engine, NewEchoModel("echo-test"), nil)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChatMessageEndToEnd(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	rec := postJSON(t, router, "/v1/chat/s1/messages", protocol.ChatRequest{
		UserID:  "u1",
		Content: "I am learning Python and I love programming",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp protocol.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatalf("ConversationID empty")
	}
	if resp.Model != "echo-test" {
		t.Fatalf("Model = %q, want echo-test", resp.Model)
	}
	if !strings.Contains(resp.Reply, "I am learning Python") {
		t.Fatalf("Reply = %q, want echo of the user content", resp.Reply)
	}
	// User turn plus assistant turn.
	if resp.HistoryLen != 2 {
		t.Fatalf("HistoryLen = %d, want 2", resp.HistoryLen)
	}
	if resp.CurrentTopic == "" {
		t.Fatalf("CurrentTopic empty, want extracted topic")
	}
	if resp.PromptChars <= 0 {
		t.Fatalf("PromptChars = %d, want positive", resp.PromptChars)
	}

	// A second turn in the same session keeps the conversation id.
	rec = postJSON(t, router, "/v1/chat/s1/messages", protocol.ChatRequest{
		UserID:  "u1",
		Content: "tell me more about generators",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("second turn status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var second protocol.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if second.ConversationID != resp.ConversationID {
		t.Fatalf("ConversationID changed across turns: %q != %q", second.ConversationID, resp.ConversationID)
	}
	if second.HistoryLen != 4 {
		t.Fatalf("HistoryLen = %d, want 4", second.HistoryLen)
	}
}

func TestChatMessageValidation(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	rec := postJSON(t, router, "/v1/chat/s1/messages", protocol.ChatRequest{Content: "hi"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing user_id status = %d, want 400", rec.Code)
	}

	rec = postJSON(t, router, "/v1/chat/s1/messages", protocol.ChatRequest{UserID: "u1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing content status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/s1/messages", bytes.NewReader(nil))
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("empty body status = %d, want 400", rec2.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	rec := postJSON(t, router, "/v1/chat/s1/messages", protocol.ChatRequest{
		UserID:  "u1",
		Content: "explain database indexes",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/chat/s1/summary?user_id=u1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var sum memory.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if sum.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2", sum.MessageCount)
	}
	if sum.UserID != "u1" || sum.SessionID != "s1" {
		t.Fatalf("summary identity = %s/%s, want u1/s1", sum.UserID, sum.SessionID)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/chat/s1/summary", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("summary without user_id status = %d, want 400", rec.Code)
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	// Nothing to rate yet.
	rec := postJSON(t, router, "/v1/chat/s1/feedback", protocol.FeedbackRequest{UserID: "u1", Rating: 4})
	if rec.Code != http.StatusConflict {
		t.Fatalf("feedback before assistant turn status = %d, want 409", rec.Code)
	}

	rec = postJSON(t, router, "/v1/chat/s1/messages", protocol.ChatRequest{
		UserID:  "u1",
		Content: "what is a goroutine",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rec.Code)
	}

	rec = postJSON(t, router, "/v1/chat/s1/feedback", protocol.FeedbackRequest{UserID: "u1", Rating: 6})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range rating status = %d, want 400", rec.Code)
	}

	rec = postJSON(t, router, "/v1/chat/s1/feedback", protocol.FeedbackRequest{
		UserID:  "u1",
		Rating:  5,
		Comment: "exactly right",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("feedback status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestPreferencesEndpoints(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/users/u1/preferences", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get preferences status = %d", rec.Code)
	}
	var prefs memory.UserMemoryPreferences
	if err := json.Unmarshal(rec.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if !prefs.CrossSessionMemory || prefs.MemoryRetentionDays <= 0 {
		t.Fatalf("defaults = %+v, want cross-session on with positive retention", prefs)
	}

	prefs.CrossSessionMemory = false
	raw, _ := json.Marshal(prefs)
	req = httptest.NewRequest(http.MethodPut, "/v1/users/u1/preferences", bytes.NewReader(raw))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("put preferences status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/users/u1/preferences", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var stored memory.UserMemoryPreferences
	if err := json.Unmarshal(rec.Body.Bytes(), &stored); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if stored.CrossSessionMemory {
		t.Fatalf("CrossSessionMemory = true after update, want false")
	}
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestPerfLatencyWithoutMetrics(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/perf/latency", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("latency status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode latency body: %v", err)
	}
	if _, ok := body["stages"]; !ok {
		t.Fatalf("latency body missing stages: %s", rec.Body.String())
	}
}

func TestEchoModelEchoesLastUserLine(t *testing.T) {
	m := NewEchoModel("")
	if m.Name() != "echo-1" {
		t.Fatalf("Name() = %q, want default echo-1", m.Name())
	}

	prompt := "You are a helpful assistant.\nUser: old question\n\nUser: newest question\n"
	reply, err := m.Complete(context.Background(), prompt)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "You said: newest question" {
		t.Fatalf("Complete() = %q", reply)
	}

	reply, err = m.Complete(context.Background(), "no user line at all")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "I'm listening." {
		t.Fatalf("Complete() fallback = %q", reply)
	}
}

func TestWebsocketOriginPolicy(t *testing.T) {
	engine := memory.NewEngine(persist.NewInMemoryAdapter(), 0, nil)
	s := New(config.Config{}, engine, NewEchoModel(""), nil)

	mk := func(origin, host string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("http://%s/v1/chat/s1/events/ws", host), nil)
		req.Host = host
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		return req
	}

	check := s.upgrader.CheckOrigin
	if !check(mk("", "localhost:8080")) {
		t.Fatalf("missing origin rejected, want allowed for non-browser clients")
	}
	if !check(mk("http://localhost:8080", "localhost:8080")) {
		t.Fatalf("same-origin rejected")
	}
	if check(mk("http://evil.example", "localhost:8080")) {
		t.Fatalf("cross-origin allowed, want rejected")
	}

	open := New(config.Config{AllowAnyOrigin: true}, engine, NewEchoModel(""), nil)
	if !open.upgrader.CheckOrigin(mk("http://evil.example", "localhost:8080")) {
		t.Fatalf("AllowAnyOrigin ignored")
	}
}
