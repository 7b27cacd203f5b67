package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTranscriptDir is where per-interaction transcript files land when no
// directory is configured.
const DefaultTranscriptDir = "chat_history"

// TranscriptWriter exports each interaction as a plain-text file, one file
// per interaction, named <timestamp>_<session-prefix>.txt. It is a local
// convenience alongside the durable store, not a query surface.
type TranscriptWriter struct {
	dir string
}

// NewTranscriptWriter creates a writer rooted at dir (DefaultTranscriptDir
// when empty). The directory is created on first write.
func NewTranscriptWriter(dir string) *TranscriptWriter {
	if dir == "" {
		dir = DefaultTranscriptDir
	}
	return &TranscriptWriter{dir: dir}
}

// Write exports one record. Returns the file path written.
func (w *TranscriptWriter) Write(record *Record) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}

	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	name := fmt.Sprintf("%s_%s.txt", ts.Format("20060102-150405"), sessionPrefix(record.SessionID))
	path := filepath.Join(w.dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "User Query: %s\n", record.UserQuery)
	fmt.Fprintf(&b, "Timestamp: %s\n", ts.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Session ID: %s\n", record.SessionID)
	b.WriteString(strings.Repeat("=", 50) + "\n")
	if record.GraphQLQuery != "" {
		fmt.Fprintf(&b, "Query: %s\n", record.GraphQLQuery)
	}
	if record.Variables != "" && record.Variables != "{}" {
		fmt.Fprintf(&b, "Variables: %s\n", record.Variables)
	}
	if record.Explanation != "" {
		fmt.Fprintf(&b, "Explanation: %s\n", record.Explanation)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

func sessionPrefix(sessionID string) string {
	if len(sessionID) > 8 {
		return sessionID[:8]
	}
	if sessionID == "" {
		return "anonymous"
	}
	return sessionID
}
