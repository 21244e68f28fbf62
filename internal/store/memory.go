package store

import (
	"context"
	"slices"
	"sync"

	"github.com/Tyrowin/chatline/internal/session"
)

// MemoryBackend keeps the newest messages in process. It is the default
// when no durable store is configured.
type MemoryBackend struct {
	mu       sync.RWMutex
	messages []session.Message
	capacity int
}

// NewMemoryBackend keeps at most capacity messages; non-positive means
// session.DefaultHistorySize.
func NewMemoryBackend(capacity int) *MemoryBackend {
	if capacity <= 0 {
		capacity = session.DefaultHistorySize
	}
	return &MemoryBackend{capacity: capacity}
}

// Store appends msg and drops the oldest messages beyond capacity.
func (m *MemoryBackend) Store(_ context.Context, msg session.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	if over := len(m.messages) - m.capacity; over > 0 {
		m.messages = slices.Delete(m.messages, 0, over)
	}
	return nil
}

// Recent returns up to limit messages, oldest first. A non-positive limit
// returns everything held.
func (m *MemoryBackend) Recent(_ context.Context, limit int) ([]session.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := 0
	if limit > 0 && len(m.messages) > limit {
		start = len(m.messages) - limit
	}
	return slices.Clone(m.messages[start:]), nil
}

// Len returns the number of messages held.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Close is a no-op.
func (m *MemoryBackend) Close() error {
	return nil
}
