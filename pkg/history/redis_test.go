package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupMiniredis(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisStoreFromClient(client, "test:", 0)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func testRecord(i int, sessionID string) *Record {
	return &Record{
		ID:           fmt.Sprintf("rec-%d", i),
		SessionID:    sessionID,
		UserQuery:    fmt.Sprintf("show patients batch %d", i),
		GraphQLQuery: "{ patients { id } }",
		Variables:    "{}",
		Explanation:  fmt.Sprintf("lists patients, batch %d", i),
		Timestamp:    time.Date(2026, 8, 1, 12, 0, i, 0, time.UTC),
	}
}

func TestRedisStore_PersistAndRecent(t *testing.T) {
	store := setupMiniredis(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Persist(ctx, testRecord(i, "sess-1")); err != nil {
			t.Fatalf("Persist failed: %v", err)
		}
	}

	records, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ID != "rec-4" {
		t.Errorf("expected newest record first, got %s", records[0].ID)
	}
	if records[2].ID != "rec-2" {
		t.Errorf("expected rec-2 last, got %s", records[2].ID)
	}
	if records[0].GraphQLQuery != "{ patients { id } }" {
		t.Errorf("query not round-tripped: %q", records[0].GraphQLQuery)
	}
}

func TestRedisStore_Search(t *testing.T) {
	store := setupMiniredis(t)
	ctx := context.Background()

	if err := store.Persist(ctx, testRecord(0, "sess-1")); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	special := testRecord(1, "sess-1")
	special.UserQuery = "find all FLU diagnoses"
	if err := store.Persist(ctx, special); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	records, err := store.Search(ctx, "flu", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 match, got %d", len(records))
	}
	if records[0].ID != "rec-1" {
		t.Errorf("wrong record matched: %s", records[0].ID)
	}

	records, err = store.Search(ctx, "no such term anywhere", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no matches, got %d", len(records))
	}
}

func TestRedisStore_SessionsAndSession(t *testing.T) {
	store := setupMiniredis(t)
	ctx := context.Background()

	if err := store.Persist(ctx, testRecord(0, "sess-old")); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if err := store.Persist(ctx, testRecord(1, "sess-new")); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if err := store.Persist(ctx, testRecord(2, "sess-new")); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "sess-new" {
		t.Errorf("expected most recently active session first, got %s", sessions[0].ID)
	}

	records, err := store.Session(ctx, "sess-new", 10)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "rec-2" {
		t.Errorf("expected newest session record first, got %s", records[0].ID)
	}
}

func TestRedisStore_Closed(t *testing.T) {
	store := setupMiniredis(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := store.Persist(context.Background(), testRecord(0, "s")); err != ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := store.Recent(context.Background(), 1); err != ErrStoreClosed {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
