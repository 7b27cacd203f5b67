package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := store.Persist(ctx, testRecord(i, "sess-1")); err != nil {
			t.Fatalf("Persist failed: %v", err)
		}
	}

	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "rec-3" {
		t.Errorf("expected newest first, got %s", records[0].ID)
	}
}

func TestMemoryStore_SearchCaseInsensitive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	r := testRecord(0, "sess-1")
	r.Explanation = "Counts Flu cases by year"
	if err := store.Persist(ctx, r); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	records, err := store.Search(ctx, "FLU", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected explanation match, got %d records", len(records))
	}
}

func TestMemoryStore_Sessions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Persist(ctx, testRecord(0, "a")); err != nil {
		t.Fatal(err)
	}
	if err := store.Persist(ctx, testRecord(1, "b")); err != nil {
		t.Fatal(err)
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "b" {
		t.Errorf("unexpected sessions: %+v", sessions)
	}
}

// slowStore blocks Persist until released, to exercise queue overflow.
type slowStore struct {
	MemoryStore
	release chan struct{}
	once    sync.Once
}

func (s *slowStore) Persist(ctx context.Context, record *Record) error {
	<-s.release
	return s.MemoryStore.Persist(ctx, record)
}

func TestAsyncWriter_PersistsInBackground(t *testing.T) {
	store := NewMemoryStore()
	w := NewAsyncWriter(store, 8)

	w.Enqueue(&Record{SessionID: "sess-1", UserQuery: "show patients"})
	w.Close()

	if store.Len() != 1 {
		t.Fatalf("expected 1 persisted record, got %d", store.Len())
	}
	records, err := store.Recent(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if records[0].ID == "" {
		t.Error("expected an assigned record ID")
	}
	if records[0].Timestamp.IsZero() {
		t.Error("expected an assigned timestamp")
	}
}

func TestAsyncWriter_DropsWhenFull(t *testing.T) {
	store := &slowStore{release: make(chan struct{})}
	w := NewAsyncWriter(store, 1)

	// First record is picked up by the worker and blocks; the second fills
	// the queue; the third must be dropped.
	for i := 0; i < 3; i++ {
		w.Enqueue(&Record{SessionID: "sess-1"})
	}

	deadline := time.After(2 * time.Second)
	for w.Dropped() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected at least one dropped record")
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(store.release)
	w.Close()
}

type failingStore struct {
	MemoryStore
}

func (s *failingStore) Persist(ctx context.Context, record *Record) error {
	return errors.New("backend down")
}

func TestAsyncWriter_CountsFailures(t *testing.T) {
	var hooked int
	w := NewAsyncWriter(&failingStore{}, 4)
	w.OnFailure(func() { hooked++ })

	w.Enqueue(&Record{SessionID: "sess-1"})
	w.Close()

	if w.Failed() != 1 {
		t.Errorf("expected 1 failed write, got %d", w.Failed())
	}
	if hooked != 1 {
		t.Errorf("expected failure hook to fire once, got %d", hooked)
	}
}

func TestTranscriptWriter_Write(t *testing.T) {
	dir := t.TempDir()
	w := NewTranscriptWriter(dir)

	path, err := w.Write(&Record{
		SessionID:    "abcdef123456",
		UserQuery:    "show patients",
		GraphQLQuery: "{ patients { id } }",
		Variables:    "{}",
		Explanation:  "lists all patients",
		Timestamp:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if filepath.Base(path) != "20260801-120000_abcdef12.txt" {
		t.Errorf("unexpected transcript filename: %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "User Query: show patients") {
		t.Error("transcript missing user query")
	}
	if !strings.Contains(content, "Query: { patients { id } }") {
		t.Error("transcript missing GraphQL query")
	}
	if strings.Contains(content, "Variables:") {
		t.Error("empty variables object should be omitted")
	}
	if !strings.Contains(content, "Explanation: lists all patients") {
		t.Error("transcript missing explanation")
	}
}
