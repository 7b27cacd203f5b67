package query

import (
	"strings"
)

// leadingVerbs are command prefixes that carry no predicate content.
var leadingVerbs = []string{
	"show me ", "show ", "give me ", "get all ", "get ", "find all ",
	"find ", "list all ", "list ", "display ", "fetch ", "retrieve ",
	"return ",
}

// subjectConnectors separate a clause's subject from its predicate.
var subjectConnectors = []string{"with", "where", "whose", "having", "who", "that"}

// Decompose splits a complex standardized query into an ordered sequence of
// independent natural-language sub-queries. Order follows the order clauses
// appear in the source text. Sub-queries are never re-decomposed. A query
// that cannot be structurally split comes back as a single-element sequence
// equal to the input, which degenerates to simple-path behavior downstream.
func Decompose(q string) []string {
	stripped := stripLeadingVerb(strings.TrimSpace(q))
	parts := splitClauses(stripped)
	if len(parts) <= 1 {
		return []string{q}
	}

	subject, connector := subjectOf(parts[0])

	subs := make([]string, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// Later clauses often elide the shared subject
		// ("patients with age > 18 and diagnosis = 'flu'"); restore it so
		// each sub-query stands alone. Clauses that name their own subject
		// are left as-is.
		if i > 0 && subject != "" && !hasOwnSubject(part) && !mentionsSubject(part, subject) {
			part = subject + " " + connector + " " + part
		}
		subs = append(subs, part)
	}

	if len(subs) == 0 {
		return []string{q}
	}
	return subs
}

// splitClauses splits text on top-level coordinating conjunctions, ignoring
// separators inside quotes or parentheses.
func splitClauses(s string) []string {
	separators := []string{", and ", " and ", " as well as ", "; "}

	var parts []string
	current := s
	for {
		idx, sepLen := nextSeparator(current, separators)
		if idx < 0 {
			parts = append(parts, current)
			break
		}
		parts = append(parts, current[:idx])
		current = current[idx+sepLen:]
	}

	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// nextSeparator finds the earliest top-level occurrence of any separator.
func nextSeparator(s string, separators []string) (int, int) {
	lower := strings.ToLower(s)
	bestIdx, bestLen := -1, 0
	for _, sep := range separators {
		from := 0
		for {
			i := strings.Index(lower[from:], sep)
			if i < 0 {
				break
			}
			i += from
			if topLevel(s, i) {
				if bestIdx < 0 || i < bestIdx {
					bestIdx, bestLen = i, len(sep)
				}
				break
			}
			from = i + 1
		}
	}
	return bestIdx, bestLen
}

// topLevel reports whether position i sits outside quotes and parentheses.
func topLevel(s string, i int) bool {
	depth := 0
	var quote byte
	for j := 0; j < i; j++ {
		c := s[j]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		}
	}
	return quote == 0 && depth == 0
}

func stripLeadingVerb(s string) string {
	lower := strings.ToLower(s)
	for _, v := range leadingVerbs {
		if strings.HasPrefix(lower, v) {
			return strings.TrimSpace(s[len(v):])
		}
	}
	return s
}

// subjectOf extracts the shared subject and its connector from the first
// clause: "patients with age > 18" yields ("patients", "with").
func subjectOf(clause string) (string, string) {
	words := strings.Fields(clause)
	for i, w := range words {
		for _, conn := range subjectConnectors {
			if strings.EqualFold(w, conn) && i > 0 {
				return strings.Join(words[:i], " "), strings.ToLower(w)
			}
		}
	}
	if len(words) > 0 {
		return words[0], "with"
	}
	return "", "with"
}

// hasOwnSubject reports whether a clause names its own subject, i.e. it has
// words in front of a subject connector ("treatments with outcome = ...").
func hasOwnSubject(clause string) bool {
	_, ok := splitOnConnector(clause)
	return ok
}

func splitOnConnector(clause string) (string, bool) {
	words := strings.Fields(clause)
	for i, w := range words {
		for _, conn := range subjectConnectors {
			if strings.EqualFold(w, conn) && i > 0 {
				return strings.Join(words[:i], " "), true
			}
		}
	}
	return "", false
}

// mentionsSubject reports whether a clause already names the shared subject
// (or its singular form) and so needs no restoration.
func mentionsSubject(clause, subject string) bool {
	lower := strings.ToLower(clause)
	subj := strings.ToLower(subject)
	if strings.Contains(lower, subj) {
		return true
	}
	singular := strings.TrimSuffix(subj, "s")
	return singular != subj && strings.Contains(lower, singular)
}
