package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// defaultCollection is the Firestore collection holding history records.
const defaultCollection = "query_history"

// searchScanLimit bounds how many recent documents a Search inspects.
// Firestore has no native substring filter, so search is a client-side scan
// over the newest documents.
const searchScanLimit = 500

// FirestoreStore implements Store on Google Cloud Firestore. Records are
// documents keyed by record ID; ordered reads use an index on the timestamp
// field.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	mu         sync.RWMutex
	closed     bool
}

// FirestoreConfig holds Firestore connection configuration.
type FirestoreConfig struct {
	// ProjectID is the GCP project (required).
	ProjectID string
	// CredentialsFile is a service account key path; when empty,
	// Application Default Credentials are used.
	CredentialsFile string
	// Collection is the collection name (default: "query_history").
	Collection string
}

// NewFirestoreStore creates a Firestore-backed history store.
func NewFirestoreStore(ctx context.Context, cfg FirestoreConfig) (*FirestoreStore, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore project ID is required")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = defaultCollection
	}

	return &FirestoreStore{
		client:     client,
		collection: collection,
	}, nil
}

// firestoreRecord is the document layout; kept separate from Record so the
// wire format does not leak into the JSON API shape.
type firestoreRecord struct {
	SessionID    string    `firestore:"session_id"`
	UserQuery    string    `firestore:"user_query"`
	GraphQLQuery string    `firestore:"graphql_query"`
	Variables    string    `firestore:"variables"`
	Explanation  string    `firestore:"explanation"`
	Timestamp    time.Time `firestore:"timestamp"`
}

// Persist writes one record as a document keyed by the record ID.
func (s *FirestoreStore) Persist(ctx context.Context, record *Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	doc := firestoreRecord{
		SessionID:    record.SessionID,
		UserQuery:    record.UserQuery,
		GraphQLQuery: record.GraphQLQuery,
		Variables:    record.Variables,
		Explanation:  record.Explanation,
		Timestamp:    record.Timestamp,
	}
	if _, err := s.client.Collection(s.collection).Doc(record.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("persist record: %w", err)
	}
	return nil
}

// Recent returns the newest records across all sessions.
func (s *FirestoreStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*Record{}, nil
	}

	query := s.client.Collection(s.collection).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit)
	return s.collect(ctx, query, limit, nil)
}

// Search scans the newest documents and filters client-side on the user
// query and explanation fields.
func (s *FirestoreStore) Search(ctx context.Context, term string, limit int) ([]*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*Record{}, nil
	}

	lowered := strings.ToLower(term)
	query := s.client.Collection(s.collection).
		OrderBy("timestamp", firestore.Desc).
		Limit(searchScanLimit)
	return s.collect(ctx, query, limit, func(r *Record) bool { return matches(r, lowered) })
}

// Sessions aggregates distinct sessions from the newest documents.
func (s *FirestoreStore) Sessions(ctx context.Context) ([]SessionInfo, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := s.client.Collection(s.collection).
		OrderBy("timestamp", firestore.Desc).
		Limit(searchScanLimit)

	seen := make(map[string]bool)
	var out []SessionInfo

	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}

		var fr firestoreRecord
		if err := doc.DataTo(&fr); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		if seen[fr.SessionID] {
			continue
		}
		seen[fr.SessionID] = true
		out = append(out, SessionInfo{ID: fr.SessionID, LastActive: fr.Timestamp})
	}
	return out, nil
}

// Session returns the session's newest records.
func (s *FirestoreStore) Session(ctx context.Context, sessionID string, limit int) ([]*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*Record{}, nil
	}

	query := s.client.Collection(s.collection).
		Where("session_id", "==", sessionID).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit)
	return s.collect(ctx, query, limit, nil)
}

// Close releases the Firestore client.
func (s *FirestoreStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

func (s *FirestoreStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *FirestoreStore) collect(ctx context.Context, query firestore.Query, limit int, keep func(*Record) bool) ([]*Record, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	out := make([]*Record, 0, limit)
	for len(out) < limit {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate records: %w", err)
		}

		var fr firestoreRecord
		if err := doc.DataTo(&fr); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		r := &Record{
			ID:           doc.Ref.ID,
			SessionID:    fr.SessionID,
			UserQuery:    fr.UserQuery,
			GraphQLQuery: fr.GraphQLQuery,
			Variables:    fr.Variables,
			Explanation:  fr.Explanation,
			Timestamp:    fr.Timestamp,
		}
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
