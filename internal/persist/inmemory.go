package persist

import (
	"context"
	"sync"
)

// InMemoryAdapter is a simple in-process document store for local/dev use.
type InMemoryAdapter struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewInMemoryAdapter() *InMemoryAdapter {
	return &InMemoryAdapter{docs: make(map[string][]byte)}
}

func (a *InMemoryAdapter) Get(_ context.Context, key string) ([]byte, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	doc, ok := a.docs[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, true, nil
}

func (a *InMemoryAdapter) Put(_ context.Context, key string, doc []byte) error {
	stored := make([]byte, len(doc))
	copy(stored, doc)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.docs[key] = stored
	return nil
}

func (a *InMemoryAdapter) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.docs, key)
	return nil
}

func (a *InMemoryAdapter) Close() error { return nil }
