package memory

import (
	"strings"
	"sync"
	"time"
)

// IngestEvent is published after every successful AddMessage, keyed by
// session, for live memory inspection UIs.
type IngestEvent struct {
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	MessageID  string    `json:"message_id"`
	Role       Role      `json:"role"`
	Topics     []string  `json:"topics,omitempty"`
	Sentiment  Sentiment `json:"sentiment"`
	Importance int       `json:"importance"`
	Pruned     bool      `json:"pruned"`
	HistoryLen int       `json:"history_len"`
	At         time.Time `json:"at"`
}

type eventBus struct {
	mu          sync.Mutex
	subscribers map[string]map[int]chan IngestEvent
	nextSubID   int
}

func newEventBus() *eventBus {
	return &eventBus{subscribers: make(map[string]map[int]chan IngestEvent)}
}

func (b *eventBus) subscribe(sessionID string) (<-chan IngestEvent, func()) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		ch := make(chan IngestEvent)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan IngestEvent, 64)
	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	if _, ok := b.subscribers[sessionID]; !ok {
		b.subscribers[sessionID] = make(map[int]chan IngestEvent)
	}
	b.subscribers[sessionID][id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[sessionID]
		if subs == nil {
			return
		}
		if c, ok := subs[id]; ok {
			delete(subs, id)
			close(c)
		}
		if len(subs) == 0 {
			delete(b.subscribers, sessionID)
		}
	}
}

// publish drops events for slow subscribers rather than blocking ingestion.
func (b *eventBus) publish(ev IngestEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
