package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMemory_AppendAndFormat(t *testing.T) {
	mem := NewMemory(10)
	mem.Append(RoleUser, "show patients")
	mem.Append(RoleAssistant, "here is the query")

	got := mem.FormattedContext()
	want := "User: show patients\nAssistant: here is the query"
	if got != want {
		t.Errorf("FormattedContext mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestMemory_FIFOEviction(t *testing.T) {
	capacity := 4
	mem := NewMemory(capacity)

	for i := 0; i <= capacity; i++ {
		mem.Append(RoleUser, fmt.Sprintf("message %d", i))
	}

	if mem.Len() != capacity {
		t.Fatalf("expected %d messages, got %d", capacity, mem.Len())
	}

	ctx := mem.FormattedContext()
	if strings.Contains(ctx, "message 0") {
		t.Error("oldest message should have been evicted")
	}
	if !strings.HasPrefix(ctx, "User: message 1") {
		t.Errorf("context should start with second-oldest message, got %q", ctx)
	}
}

func TestMemory_EmptyContext(t *testing.T) {
	if got := NewMemory(0).FormattedContext(); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}

func TestRegistry_GetOrCreateIdempotent(t *testing.T) {
	r := NewRegistry(10)

	a := r.GetOrCreate("sess-1")
	b := r.GetOrCreate("sess-1")
	if a != b {
		t.Error("GetOrCreate returned distinct memories for the same session")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 session, got %d", r.Len())
	}
}

func TestRegistry_GetOrCreateConcurrent(t *testing.T) {
	r := NewRegistry(10)

	const n = 32
	memories := make([]*Memory, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			memories[i] = r.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if memories[i] != memories[0] {
			t.Fatal("concurrent GetOrCreate created distinct memories")
		}
	}
}

func TestRegistry_SessionNaming(t *testing.T) {
	r := NewRegistry(10)
	r.AddMessage("sess-1", RoleUser, "Show all patients with a flu diagnosis please")

	meta := r.Metadata("sess-1")
	if meta == nil {
		t.Fatal("metadata missing")
	}
	if meta.Name != "Show all patients wi..." {
		t.Errorf("unexpected session name %q", meta.Name)
	}

	// Later messages do not rename.
	r.AddMessage("sess-1", RoleUser, "something else entirely here")
	if got := r.Metadata("sess-1").Name; got != meta.Name {
		t.Errorf("session renamed on second message: %q", got)
	}
}

func TestRegistry_SessionsOrder(t *testing.T) {
	r := NewRegistry(10)
	r.AddMessage("old", RoleUser, "first")
	time.Sleep(5 * time.Millisecond)
	r.AddMessage("new", RoleUser, "second")

	sessions := r.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "new" {
		t.Errorf("expected most recently active first, got %q", sessions[0].ID)
	}
}

func TestRegistry_Evict(t *testing.T) {
	r := NewRegistry(10)
	r.GetOrCreate("sess-1")
	r.Evict("sess-1")

	if r.Len() != 0 {
		t.Errorf("expected 0 sessions after evict, got %d", r.Len())
	}
	if r.Metadata("sess-1") != nil {
		t.Error("metadata should be gone after evict")
	}
}

type stubReader struct {
	exchanges []Exchange
}

func (s *stubReader) Session(ctx context.Context, sessionID string, limit int) ([]Exchange, error) {
	return s.exchanges, nil
}

func TestRegistry_Resume(t *testing.T) {
	r := NewRegistry(10)
	reader := &stubReader{exchanges: []Exchange{
		{UserQuery: "show patients", Explanation: "lists all patients"},
		{UserQuery: "filter by age", Explanation: "adds an age filter"},
	}}

	if err := r.Resume(context.Background(), reader, "sess-1"); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	mem := r.GetOrCreate("sess-1")
	if mem.Len() != 4 {
		t.Fatalf("expected 4 restored messages, got %d", mem.Len())
	}
	if !strings.HasPrefix(mem.FormattedContext(), "User: show patients") {
		t.Errorf("unexpected restored context: %q", mem.FormattedContext())
	}

	// Resume again is a no-op once memory is populated.
	if err := r.Resume(context.Background(), reader, "sess-1"); err != nil {
		t.Fatalf("second Resume failed: %v", err)
	}
	if mem.Len() != 4 {
		t.Errorf("second Resume should not duplicate messages, got %d", mem.Len())
	}
}
