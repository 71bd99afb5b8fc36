// Package continuity persists the previous-response handle of a
// conversation under a client-chosen session id, so a reconnecting
// streaming client resumes where it left off. Entries expire; a missing
// entry just means the conversation starts fresh.
package continuity

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds how long an idle conversation stays resumable.
const DefaultTTL = 30 * time.Minute

// Store maps a session id to the latest response id of its
// conversation. Get returns "" when the session is unknown or expired.
type Store interface {
	Get(ctx context.Context, sessionID string) (string, error)
	Put(ctx context.Context, sessionID, responseID string) error
}

type memoryEntry struct {
	responseID string
	expiresAt  time.Time
}

// MemoryStore is the single-node implementation: an expiring map.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[sessionID]
	if !ok {
		return "", nil
	}
	if s.clock().After(entry.expiresAt) {
		delete(s.entries, sessionID)
		return "", nil
	}
	return entry.responseID, nil
}

func (s *MemoryStore) Put(_ context.Context, sessionID, responseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = memoryEntry{
		responseID: responseID,
		expiresAt:  s.clock().Add(s.ttl),
	}
	return nil
}

// Prune drops expired entries and reports how many were removed.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	removed := 0
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
