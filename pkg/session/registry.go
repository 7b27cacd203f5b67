package session

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// maxNameRunes caps the session name derived from the first user message.
const maxNameRunes = 20

// Metadata holds browsing information for one session.
type Metadata struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

// Registry is the process-wide map of session ID to Memory. It is an
// explicit service object passed to request handlers; there is no ambient
// global. Safe for concurrent use.
type Registry struct {
	capacity int
	memories map[string]*Memory
	metadata map[string]*Metadata
	mu       sync.RWMutex

	cron    *cron.Cron
	idleTTL time.Duration
}

// NewRegistry creates a registry whose memories hold up to capacity
// messages each.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		memories: make(map[string]*Memory),
		metadata: make(map[string]*Metadata),
	}
}

// GetOrCreate returns the memory for a session, creating an empty one if
// absent. Two concurrent calls for a new session ID resolve to the same
// Memory instance.
func (r *Registry) GetOrCreate(sessionID string) *Memory {
	r.mu.RLock()
	mem, ok := r.memories[sessionID]
	r.mu.RUnlock()
	if ok {
		return mem
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock.
	if mem, ok := r.memories[sessionID]; ok {
		return mem
	}

	mem = NewMemory(r.capacity)
	now := time.Now().UTC()
	r.memories[sessionID] = mem
	r.metadata[sessionID] = &Metadata{
		ID:         sessionID,
		Name:       "Session " + now.Format("01-02 15:04"),
		CreatedAt:  now,
		LastActive: now,
	}
	return mem
}

// AddMessage appends a message to the session's memory, creating the
// session if needed. The first user message names the session.
func (r *Registry) AddMessage(sessionID string, role Role, content string) {
	mem := r.GetOrCreate(sessionID)
	first := mem.Len() == 0
	mem.Append(role, content)

	r.mu.Lock()
	if meta, ok := r.metadata[sessionID]; ok {
		meta.LastActive = time.Now().UTC()
		if first && role == RoleUser {
			meta.Name = truncateName(content)
		}
	}
	r.mu.Unlock()
}

// FormattedContext renders the session's current log for prompting.
func (r *Registry) FormattedContext(sessionID string) string {
	return r.GetOrCreate(sessionID).FormattedContext()
}

// Touch updates the session's last-activity time.
func (r *Registry) Touch(sessionID string) {
	r.mu.Lock()
	if meta, ok := r.metadata[sessionID]; ok {
		meta.LastActive = time.Now().UTC()
	}
	r.mu.Unlock()
}

// Metadata returns a copy of the session's metadata, or nil if unknown.
func (r *Registry) Metadata(sessionID string) *Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.metadata[sessionID]
	if !ok {
		return nil
	}
	cp := *meta
	return &cp
}

// Sessions lists all in-memory sessions, most recently active first.
func (r *Registry) Sessions() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metadata, 0, len(r.metadata))
	for _, meta := range r.metadata {
		out = append(out, *meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out
}

// Evict removes a session's memory and metadata.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	delete(r.memories, sessionID)
	delete(r.metadata, sessionID)
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.memories)
}

// historyReader is the read path the registry needs to resume a session.
type historyReader interface {
	Session(ctx context.Context, sessionID string, limit int) ([]Exchange, error)
}

// Exchange is one past interaction used to rebuild memory on resume.
type Exchange struct {
	UserQuery   string
	Explanation string
}

// Resume repopulates a session's memory from persisted history. It is a
// no-op when the session already has messages in memory.
func (r *Registry) Resume(ctx context.Context, reader historyReader, sessionID string) error {
	mem := r.GetOrCreate(sessionID)
	if mem.Len() > 0 {
		return nil
	}

	exchanges, err := reader.Session(ctx, sessionID, r.capacity/2)
	if err != nil {
		return err
	}
	for _, ex := range exchanges {
		if ex.UserQuery != "" {
			mem.Append(RoleUser, ex.UserQuery)
		}
		if ex.Explanation != "" {
			mem.Append(RoleAssistant, ex.Explanation)
		}
	}
	return nil
}

// StartSweeper schedules eviction of sessions idle longer than idleTTL.
// spec is a cron expression ("@every 10m" works). Call StopSweeper on
// shutdown.
func (r *Registry) StartSweeper(spec string, idleTTL time.Duration) error {
	r.idleTTL = idleTTL
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(spec, r.sweep); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// StopSweeper stops the scheduled sweep, if running.
func (r *Registry) StopSweeper() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

func (r *Registry) sweep() {
	cutoff := time.Now().UTC().Add(-r.idleTTL)

	r.mu.Lock()
	var evicted []string
	for id, meta := range r.metadata {
		if meta.LastActive.Before(cutoff) {
			delete(r.memories, id)
			delete(r.metadata, id)
			evicted = append(evicted, id)
		}
	}
	r.mu.Unlock()

	if len(evicted) > 0 {
		log.Printf("session sweep: evicted %d idle sessions", len(evicted))
	}
}

func truncateName(s string) string {
	runes := []rune(s)
	if len(runes) <= maxNameRunes {
		return s
	}
	return string(runes[:maxNameRunes]) + "..."
}
