// Package history persists completed interactions and serves the read path
// for browsing and searching them. Persistence is auxiliary: a failed write
// never fails the user-visible response.
package history

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Common errors for store operations.
var (
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("history store is closed")
)

// Record is one persisted interaction. Created on every completed
// interaction (including system and error replies); never mutated.
type Record struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	UserQuery    string    `json:"user_query"`
	GraphQLQuery string    `json:"graphql_query"`
	Variables    string    `json:"variables"`
	Explanation  string    `json:"explanation"`
	Timestamp    time.Time `json:"timestamp"`
}

// SessionInfo summarizes one distinct session in the store.
type SessionInfo struct {
	ID         string    `json:"id"`
	LastActive time.Time `json:"lastActive"`
}

// Store abstracts the durable history backend. Implementations must be safe
// for concurrent use. Reads may be eventually consistent with writes.
type Store interface {
	// Persist writes one record.
	Persist(ctx context.Context, record *Record) error

	// Recent returns the most recently persisted records across all
	// sessions, newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)

	// Search returns records whose user query or explanation contains the
	// term (case-insensitive), newest first.
	Search(ctx context.Context, term string, limit int) ([]*Record, error)

	// Sessions returns the distinct session identifiers with their last
	// activity, most recent first.
	Sessions(ctx context.Context) ([]SessionInfo, error)

	// Session returns the session's records, newest first.
	Session(ctx context.Context, sessionID string, limit int) ([]*Record, error)

	// Close releases any resources held by the store.
	Close() error
}

func matches(r *Record, loweredTerm string) bool {
	return strings.Contains(strings.ToLower(r.UserQuery), loweredTerm) ||
		strings.Contains(strings.ToLower(r.Explanation), loweredTerm)
}
