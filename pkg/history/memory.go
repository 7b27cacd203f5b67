package history

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore implements Store entirely in memory. It is the default when no
// durable backend is configured, and the fixture for tests that do not want
// miniredis.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	closed  bool
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Persist appends the record.
func (s *MemoryStore) Persist(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	cp := *record
	s.records = append(s.records, &cp)
	return nil
}

// Recent returns the newest records across all sessions.
func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	return s.filter(limit, func(*Record) bool { return true })
}

// Search returns newest records containing the term in the user query or
// explanation, case-insensitively.
func (s *MemoryStore) Search(ctx context.Context, term string, limit int) ([]*Record, error) {
	lowered := strings.ToLower(term)
	return s.filter(limit, func(r *Record) bool { return matches(r, lowered) })
}

// Sessions returns distinct sessions, most recently active first.
func (s *MemoryStore) Sessions(ctx context.Context) ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	last := make(map[string]SessionInfo)
	for _, r := range s.records {
		info, ok := last[r.SessionID]
		if !ok || r.Timestamp.After(info.LastActive) {
			last[r.SessionID] = SessionInfo{ID: r.SessionID, LastActive: r.Timestamp}
		}
	}

	out := make([]SessionInfo, 0, len(last))
	for _, info := range last {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out, nil
}

// Session returns the session's newest records.
func (s *MemoryStore) Session(ctx context.Context, sessionID string, limit int) ([]*Record, error) {
	return s.filter(limit, func(r *Record) bool { return r.SessionID == sessionID })
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) filter(limit int, keep func(*Record) bool) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		return []*Record{}, nil
	}

	out := make([]*Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(s.records[i]) {
			cp := *s.records[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}
