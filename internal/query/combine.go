package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// noSubResultsExplanation is returned when every sub-query failed.
const noSubResultsExplanation = "no sub-results obtainable"

// Combine merges the ordered per-sub-query results into one Result that
// represents the original compound intent. Query fragments are sequenced
// with comments naming their ordinal; variables objects are merged with
// later keys winning (later clauses are assumed more specific);
// explanations are concatenated in sub-query order. An empty input produces
// a total-failure result instead of an error.
func Combine(subResults []Result, original string) Result {
	if len(subResults) == 0 {
		return Result{
			Query:       "",
			Variables:   "{}",
			Explanation: noSubResultsExplanation,
		}
	}

	if len(subResults) == 1 {
		r := subResults[0]
		if r.Variables == "" {
			r.Variables = "{}"
		}
		return r
	}

	var queryParts []string
	var explanations []string
	merged := make(map[string]any)

	for i, sub := range subResults {
		if q := strings.TrimSpace(sub.Query); q != "" {
			queryParts = append(queryParts, fmt.Sprintf("# part %d\n%s", i+1, q))
		}
		if e := strings.TrimSpace(sub.Explanation); e != "" {
			explanations = append(explanations, fmt.Sprintf("Part %d: %s", i+1, e))
		}
		for k, v := range sub.VariablesMap() {
			merged[k] = v
		}
	}

	variables := "{}"
	if len(merged) > 0 {
		if data, err := json.Marshal(merged); err == nil {
			variables = string(data)
		}
	}

	explanation := strings.Join(explanations, "\n")
	if explanation == "" {
		explanation = "Combined result for: " + original
	}

	return Result{
		Query:       strings.Join(queryParts, "\n\n"),
		Variables:   variables,
		Explanation: explanation,
	}
}
