// Package queryforge translates natural-language questions into GraphQL
// queries. It wires the schema index, the model provider, per-session
// memory, and persisted history into one engine.
package queryforge

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/queryforge-dev/queryforge/internal/llm/provider"
	"github.com/queryforge-dev/queryforge/internal/query"
	"github.com/queryforge-dev/queryforge/pkg/config"
	"github.com/queryforge-dev/queryforge/pkg/history"
	"github.com/queryforge-dev/queryforge/pkg/observability"
	"github.com/queryforge-dev/queryforge/pkg/schema"
	"github.com/queryforge-dev/queryforge/pkg/session"
)

// Result is the structured outcome of one translation.
type Result = query.Result

// Engine is the top-level service object. Create one with New and share it
// across sessions; it is safe for concurrent use.
type Engine struct {
	cfg      *config.Config
	schema   *schema.Index
	provider provider.Provider
	sessions *session.Registry
	store    history.Store
	writer   *history.AsyncWriter
	scripts  *history.TranscriptWriter
	pipeline *query.Pipeline
}

// New builds an engine from configuration. The caller owns the engine and
// must Close it.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	idx, err := loadSchema(cfg.SchemaPath)
	if err != nil {
		return nil, err
	}

	prov, err := provider.Create(cfg.Provider, cfg.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	sessions := session.NewRegistry(cfg.Session.Capacity)
	if err := sessions.StartSweeper(cfg.Session.SweepInterval, cfg.Session.IdleTTL.Std()); err != nil {
		return nil, fmt.Errorf("start session sweeper: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		sessions.StopSweeper()
		return nil, err
	}

	writer := history.NewAsyncWriter(store, 0)
	writer.OnFailure(observability.RecordHistoryWriteFailure)

	var scripts *history.TranscriptWriter
	if cfg.History.TranscriptDir != "" {
		scripts = history.NewTranscriptWriter(cfg.History.TranscriptDir)
	}

	limit := rate.Inf
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	}

	eng := &Engine{
		cfg:      cfg,
		schema:   idx,
		provider: prov,
		sessions: sessions,
		store:    store,
		writer:   writer,
		scripts:  scripts,
		pipeline: &query.Pipeline{
			Schema:      idx,
			Provider:    prov,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Limiter:     rate.NewLimiter(limit, cfg.RateLimit.Burst),
			Sessions:    sessions,
			History:     writer,
		},
	}
	return eng, nil
}

func loadSchema(path string) (*schema.Index, error) {
	if path == "" {
		log.Println("no schema configured, standardization and subsetting disabled")
		return schema.Empty(), nil
	}
	idx, err := schema.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	log.Printf("schema loaded: %d nodes", idx.NodeCount())
	return idx, nil
}

func openStore(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case "redis":
		store, err := history.NewRedisStore(history.RedisConfig{
			Addr:      cfg.History.RedisAddr,
			Password:  cfg.History.RedisPassword,
			DB:        cfg.History.RedisDB,
			RecordTTL: cfg.History.RedisTTL.Std(),
		})
		if err != nil {
			return nil, fmt.Errorf("open redis history: %w", err)
		}
		return store, nil
	case "firestore":
		store, err := history.NewFirestoreStore(ctx, history.FirestoreConfig{
			ProjectID:       cfg.History.FirestoreProject,
			CredentialsFile: cfg.History.GCPCredentials,
			Collection:      cfg.History.FirestoreCollection,
		})
		if err != nil {
			return nil, fmt.Errorf("open firestore history: %w", err)
		}
		return store, nil
	default:
		return history.NewMemoryStore(), nil
	}
}

// NewSessionID mints a fresh session identifier.
func (e *Engine) NewSessionID() string {
	return uuid.NewString()
}

// Ask translates one natural-language input within a session. System and
// history questions are answered directly without a model call.
func (e *Engine) Ask(ctx context.Context, sessionID, input string) (Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Result{Variables: "{}", Explanation: "empty input"}, nil
	}

	// Rebuild memory from persisted history when this process has not seen
	// the session yet.
	if err := e.sessions.Resume(ctx, exchangeReader{e.store}, sessionID); err != nil {
		log.Printf("session resume failed for %s: %v", sessionID, err)
	}

	if query.IsSystemQuery(input) {
		return e.answerDirectly(sessionID, input, e.systemAnswer(sessionID)), nil
	}
	if query.IsHistoryQuery(input) {
		return e.answerDirectly(sessionID, input, e.historyAnswer(ctx)), nil
	}

	result, err := e.pipeline.Run(ctx, sessionID, input)
	if err != nil {
		return Result{}, err
	}
	e.export(sessionID, input, result)
	observability.SetActiveSessions(e.sessions.Len())
	return result, nil
}

// answerDirectly records a canned reply the same way a translated one is
// recorded.
func (e *Engine) answerDirectly(sessionID, input, answer string) Result {
	result := Result{Variables: "{}", Explanation: answer}

	e.sessions.AddMessage(sessionID, session.RoleUser, input)
	e.sessions.AddMessage(sessionID, session.RoleAssistant, answer)
	e.writer.Enqueue(&history.Record{
		SessionID:   sessionID,
		UserQuery:   input,
		Variables:   "{}",
		Explanation: answer,
	})
	e.export(sessionID, input, result)
	return result
}

func (e *Engine) systemAnswer(sessionID string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf(
		"I am an assistant that translates natural-language questions into GraphQL queries (provider: %s). Current session: %s",
		e.provider.Name(), short)
}

func (e *Engine) historyAnswer(ctx context.Context) string {
	records, err := e.store.Recent(ctx, 10)
	if err != nil {
		return fmt.Sprintf("could not load history: %v", err)
	}
	if len(records) == 0 {
		return "No past queries recorded yet."
	}

	var b strings.Builder
	b.WriteString("Recent queries:\n")
	for i, r := range records {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, r.Timestamp.Format("2006-01-02 15:04"), r.UserQuery)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *Engine) export(sessionID, input string, r Result) {
	if e.scripts == nil {
		return
	}
	if _, err := e.scripts.Write(&history.Record{
		SessionID:    sessionID,
		UserQuery:    input,
		GraphQLQuery: r.Query,
		Variables:    r.Variables,
		Explanation:  r.Explanation,
	}); err != nil {
		log.Printf("transcript export failed: %v", err)
	}
}

// Recent returns the newest persisted records across all sessions.
func (e *Engine) Recent(ctx context.Context, limit int) ([]*history.Record, error) {
	return e.store.Recent(ctx, limit)
}

// Search returns persisted records matching the term.
func (e *Engine) Search(ctx context.Context, term string, limit int) ([]*history.Record, error) {
	return e.store.Search(ctx, term, limit)
}

// Sessions lists the sessions known to the history store.
func (e *Engine) Sessions(ctx context.Context) ([]history.SessionInfo, error) {
	return e.store.Sessions(ctx)
}

// SessionHistory returns a session's persisted records.
func (e *Engine) SessionHistory(ctx context.Context, sessionID string, limit int) ([]*history.Record, error) {
	return e.store.Session(ctx, sessionID, limit)
}

// Ping verifies the history backend when it supports health checks.
func (e *Engine) Ping(ctx context.Context) error {
	if p, ok := e.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close flushes pending history writes and releases resources.
func (e *Engine) Close() error {
	e.sessions.StopSweeper()
	e.writer.Close()
	return e.store.Close()
}

// exchangeReader adapts the history store to the session registry's resume
// interface, turning newest-first records back into chronological
// exchanges.
type exchangeReader struct {
	store history.Store
}

func (r exchangeReader) Session(ctx context.Context, sessionID string, limit int) ([]session.Exchange, error) {
	records, err := r.store.Session(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]session.Exchange, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		out = append(out, session.Exchange{
			UserQuery:   records[i].UserQuery,
			Explanation: records[i].Explanation,
		})
	}
	return out, nil
}
