// Package query implements the translation core: complexity classification,
// decomposition of compound questions into sub-queries, result extraction
// from model output, and combination of sub-results into one structured
// result.
package query

import (
	"encoding/json"
)

// Result is the structured outcome of one translation: a GraphQL query, its
// bound variables as a JSON object string, and a human-readable explanation.
type Result struct {
	Query       string `json:"query"`
	Variables   string `json:"variables"`
	Explanation string `json:"explanation"`
}

// VariablesMap decodes the Variables field. Invalid or non-object content
// yields an empty map.
func (r Result) VariablesMap() map[string]any {
	vars := make(map[string]any)
	if r.Variables == "" {
		return vars
	}
	_ = json.Unmarshal([]byte(r.Variables), &vars)
	return vars
}

// IsEmpty reports whether the result carries no query at all.
func (r Result) IsEmpty() bool {
	return r.Query == ""
}
