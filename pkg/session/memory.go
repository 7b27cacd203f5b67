// Package session provides per-session conversational memory and the
// process-wide session registry. Memory is bounded and ordered; durability
// is delegated to the history store, not kept here.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Role tags who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultCapacity is the bounded log size used when none is configured.
const DefaultCapacity = 20

// Message is one conversation turn. Immutable once appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Memory holds the ordered, size-bounded message log for one session.
// When the log is at capacity the oldest message is evicted first; FIFO, not
// LRU, because conversational order matters more than recency of access.
// Memory is safe for concurrent use.
type Memory struct {
	capacity int
	messages []Message
	mu       sync.Mutex
}

// NewMemory creates a memory with the given capacity (DefaultCapacity when
// capacity <= 0).
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		capacity: capacity,
		messages: make([]Message, 0, capacity),
	}
}

// Append adds a message to the log, evicting the oldest when at capacity.
func (m *Memory) Append(role Role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if len(m.messages) > m.capacity {
		m.messages = m.messages[1:]
	}
}

// Messages returns a copy of the current log in chronological order.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the number of messages in the log.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// FormattedContext renders the log as a single role-labeled string suitable
// for embedding in a prompt. Deterministic for a given log state.
func (m *Memory) FormattedContext() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.messages) == 0 {
		return ""
	}

	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", roleLabel(msg.Role), msg.Content)
	}
	return b.String()
}

func roleLabel(r Role) string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}
