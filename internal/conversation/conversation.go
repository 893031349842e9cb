package conversation

import (
	"sync"
	"time"

	"github.com/relayhub/relay-gateway/internal/intent"
	"github.com/relayhub/relay-gateway/internal/metrics"
)

// maxEntries bounds the per-user history window
const maxEntries = 10

// Entry is one remembered message
type Entry struct {
	Message   string
	Intent    intent.Intent
	Timestamp time.Time
}

// Store keeps a bounded conversation window per user. Contexts are created
// lazily on first message and live for the process lifetime.
type Store struct {
	mu       sync.Mutex
	contexts map[string][]Entry
}

// NewStore creates an empty conversation store
func NewStore() *Store {
	return &Store{contexts: make(map[string][]Entry)}
}

// Append records a message for userID, evicting the oldest entry when the
// window is full.
func (s *Store) Append(userID, message string, in intent.Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.contexts[userID]
	if !ok {
		metrics.ActiveContexts.Inc()
	}
	history = append(history, Entry{
		Message:   message,
		Intent:    in,
		Timestamp: time.Now(),
	})
	if len(history) > maxEntries {
		history = history[1:]
	}
	s.contexts[userID] = history
}

// Recent returns up to n most recent entries for userID in insertion order
func (s *Store) Recent(userID string, n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.contexts[userID]
	if n <= 0 || n > len(history) {
		n = len(history)
	}
	out := make([]Entry, n)
	copy(out, history[len(history)-n:])
	return out
}

// Len returns the number of entries stored for userID
func (s *Store) Len(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts[userID])
}

// Users returns the number of active contexts
func (s *Store) Users() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}
