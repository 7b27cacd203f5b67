package query

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	graphqlBlockRe = regexp.MustCompile("(?s)```graphql\\s*(.*?)\\s*```")
	jsonBlockRe    = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
)

const fallbackExplanation = "Query and variables extracted from response"

// ParseResult turns raw model output into a Result. The primary path parses
// the output as a JSON object. When that fails the fallback extracts the
// first graphql-tagged fenced block as the query and the first json-tagged
// block as the variables. ParseResult never fails; at worst the result has
// an empty query.
func ParseResult(raw string) Result {
	trimmed := strings.TrimSpace(raw)

	// Models sometimes wrap the JSON object itself in a fence.
	if candidate, ok := unwrapJSONObject(trimmed); ok {
		var decoded struct {
			Query       string          `json:"query"`
			Variables   json.RawMessage `json:"variables"`
			Explanation string          `json:"explanation"`
		}
		if err := json.Unmarshal([]byte(candidate), &decoded); err == nil {
			return Result{
				Query:       decoded.Query,
				Variables:   normalizeVariables(decoded.Variables),
				Explanation: decoded.Explanation,
			}
		}
	}

	return extractFenced(trimmed)
}

// unwrapJSONObject finds the JSON object to attempt the primary parse on:
// either the whole output or the content of a json-tagged fence.
func unwrapJSONObject(s string) (string, bool) {
	if strings.HasPrefix(s, "{") {
		return s, true
	}
	if m := jsonBlockRe.FindStringSubmatch(s); m != nil && strings.HasPrefix(strings.TrimSpace(m[1]), "{") {
		// Only treat the fence as the whole result when there is no
		// accompanying graphql fence; otherwise it is the variables block.
		if !graphqlBlockRe.MatchString(s) {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

// extractFenced is the fallback grammar: first graphql fence becomes the
// query, first json fence becomes the variables.
func extractFenced(s string) Result {
	result := Result{
		Variables:   "{}",
		Explanation: fallbackExplanation,
	}
	if m := graphqlBlockRe.FindStringSubmatch(s); m != nil {
		result.Query = m[1]
	}
	if m := jsonBlockRe.FindStringSubmatch(s); m != nil {
		result.Variables = m[1]
	}
	return result
}

// normalizeVariables renders the variables field as a JSON object string
// regardless of whether the model emitted an object, a quoted string, or
// nothing.
func normalizeVariables(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if asString == "" {
			return "{}"
		}
		return asString
	}

	return string(raw)
}
