package query

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/queryforge-dev/queryforge/internal/llm/provider"
	"github.com/queryforge-dev/queryforge/pkg/history"
	"github.com/queryforge-dev/queryforge/pkg/observability"
	"github.com/queryforge-dev/queryforge/pkg/schema"
	"github.com/queryforge-dev/queryforge/pkg/session"
)

// Pipeline runs the full translation flow for one input: standardize,
// classify, optionally decompose, call the model, and combine. Sub-queries
// are processed sequentially so each call sees the memory updates of the
// previous one.
type Pipeline struct {
	Schema      *schema.Index
	Provider    provider.Provider
	Model       string
	Temperature float64
	MaxTokens   int

	// Limiter throttles model calls. Optional.
	Limiter *rate.Limiter

	Sessions *session.Registry

	// History receives fire-and-forget persistence of each completed
	// interaction. Optional.
	History *history.AsyncWriter
}

// Run translates one natural-language input in the context of a session.
// A model failure on the single-call path propagates; on the decomposed
// path failed sub-queries are skipped and the rest still combine.
func (p *Pipeline) Run(ctx context.Context, sessionID, input string) (Result, error) {
	start := time.Now()

	standardized := p.Schema.Standardize(input)
	entities := p.Schema.EntityHits(standardized)
	complexity := Classify(standardized, entities)

	ctx, span := observability.StartSpan(ctx, "query.translate", map[string]any{
		"session.id":       sessionID,
		"query.complexity": string(complexity),
	})
	defer span.End()

	// Context is captured before this interaction's messages are appended.
	conversationContext := p.Sessions.FormattedContext(sessionID)
	p.Sessions.AddMessage(sessionID, session.RoleUser, input)

	var (
		result Result
		err    error
	)
	if complexity == Complex {
		result = p.runDecomposed(ctx, sessionID, standardized, conversationContext)
	} else {
		result, err = p.runSingle(ctx, standardized, conversationContext)
	}
	if err != nil {
		span.SetError(err)
		observability.RecordQuery(string(complexity), "error", time.Since(start))
		return Result{}, err
	}

	p.Sessions.AddMessage(sessionID, session.RoleAssistant, result.Explanation)
	p.persist(sessionID, input, result)

	observability.RecordQuery(string(complexity), "ok", time.Since(start))
	return result, nil
}

// runSingle handles the one-call path.
func (p *Pipeline) runSingle(ctx context.Context, q, conversationContext string) (Result, error) {
	subset := p.Schema.RelevantSubset(q)
	prompt := BuildPrompt(q, subset, conversationContext)

	raw, err := p.complete(ctx, prompt)
	if err != nil {
		return Result{}, err
	}
	return ParseResult(raw), nil
}

// runDecomposed handles the decomposition path. Each sub-query gets its own
// schema subset and a context refreshed with the sub-results so far.
func (p *Pipeline) runDecomposed(ctx context.Context, sessionID, q, conversationContext string) Result {
	subQueries := Decompose(q)

	_, span := observability.StartSpan(ctx, "query.decompose", map[string]any{
		"query.sub_count": len(subQueries),
	})
	span.End()

	subResults := make([]Result, 0, len(subQueries))
	for _, sub := range subQueries {
		subset := p.Schema.RelevantSubset(sub)
		prompt := BuildSubQueryPrompt(sub, q, subset, conversationContext)

		raw, err := p.complete(ctx, prompt)
		if err != nil {
			log.Printf("sub-query failed, skipping: %q: %v", sub, err)
			observability.RecordSubQuery("error")
			continue
		}
		observability.RecordSubQuery("ok")

		subResult := ParseResult(raw)
		subResults = append(subResults, subResult)

		p.Sessions.AddMessage(sessionID, session.RoleUser, sub)
		p.Sessions.AddMessage(sessionID, session.RoleAssistant, subResult.Explanation)
		p.persist(sessionID, sub, subResult)

		// Later sub-queries see earlier sub-results.
		conversationContext = p.Sessions.FormattedContext(sessionID)
	}

	return Combine(subResults, q)
}

// complete performs one rate-limited model call.
func (p *Pipeline) complete(ctx context.Context, prompt string) (string, error) {
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := p.Provider.CreateCompletion(ctx, provider.CompletionRequest{
		Messages: []provider.Message{
			{Role: "system", Content: SystemPrompt()},
			{Role: "user", Content: prompt},
		},
		Model:       p.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		observability.RecordModelCall(p.Provider.Name(), "error", time.Since(start))
		return "", err
	}
	observability.RecordModelCall(p.Provider.Name(), "ok", time.Since(start))
	return resp.Content, nil
}

func (p *Pipeline) persist(sessionID, userQuery string, r Result) {
	if p.History == nil {
		return
	}
	p.History.Enqueue(&history.Record{
		SessionID:    sessionID,
		UserQuery:    userQuery,
		GraphQLQuery: r.Query,
		Variables:    r.Variables,
		Explanation:  r.Explanation,
	})
}
