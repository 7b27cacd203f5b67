package query

import (
	"strings"
)

// Complexity labels a query's structural complexity.
type Complexity string

const (
	// Simple queries go through a single model call.
	Simple Complexity = "simple"
	// Complex queries are decomposed into sub-queries first.
	Complex Complexity = "complex"
)

// lengthThreshold is the query length beyond which multiple schema-entity
// hits tip the label to complex.
const lengthThreshold = 80

// comparators are phrasings that indicate a filter predicate on an
// attribute.
var comparators = []string{
	">=", "<=", "!=", ">", "<", "=",
	" greater than ", " less than ", " more than ", " fewer than ",
	" at least ", " at most ", " equal to ", " between ",
}

// multiEntityMarkers are phrasings that explicitly name more than one
// subject.
var multiEntityMarkers = []string{
	"both ", " as well as ", " along with ", " together with ",
}

// Classify labels a standardized query as simple or complex using a
// deterministic heuristic over its text. entities is the ordered list of
// schema entities the query references (may be empty when no schema is
// loaded). Ambiguous input defaults to simple: decomposition cost dominates,
// so a missed complex query is cheaper than a needless split.
func Classify(q string, entities []string) Complexity {
	lower := strings.ToLower(q)

	clauses := splitClauses(lower)
	if len(clauses) >= 2 && predicateClauses(clauses) >= 2 {
		return Complex
	}

	if countComparators(lower) >= 2 {
		return Complex
	}

	for _, marker := range multiEntityMarkers {
		if strings.Contains(lower, marker) && len(entities) >= 2 {
			return Complex
		}
	}

	if len(q) > lengthThreshold && len(entities) >= 2 {
		return Complex
	}

	return Simple
}

// predicateClauses counts clauses that carry their own filter predicate.
func predicateClauses(clauses []string) int {
	n := 0
	for _, c := range clauses {
		if countComparators(c) > 0 || hasPredicateWord(c) {
			n++
		}
	}
	return n
}

func countComparators(s string) int {
	n := 0
	rest := s
	for _, op := range []string{">=", "<=", "!=", ">", "<", "="} {
		rest = strings.ReplaceAll(rest, op, "\x00")
	}
	n += strings.Count(rest, "\x00")
	for _, op := range comparators[6:] {
		n += strings.Count(s, op)
	}
	return n
}

var predicateWords = []string{
	"with ", "where ", "whose ", "having ", "older than", "younger than",
	"count ", "average ", "total ", "sum ", "number of",
}

func hasPredicateWord(clause string) bool {
	for _, w := range predicateWords {
		if strings.Contains(clause, w) {
			return true
		}
	}
	return false
}
