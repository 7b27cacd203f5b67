// Package schema loads a graph-shaped data schema into an in-memory index
// and provides term standardization and relevance lookups for incoming
// natural-language queries.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Index is an immutable view of the loaded schema. It is built once by Load
// and shared read-only across all sessions.
type Index struct {
	// nodeProperties maps node name to its ordered field list.
	nodeProperties map[string][]string

	// termMappings maps a case-folded synonym to its canonical schema term.
	termMappings map[string]string

	// synonyms holds mapping keys sorted longest-first so that multi-word
	// synonyms are substituted before their sub-phrases.
	synonyms []string
}

// rawSchema matches the on-disk schema export. Node definitions may carry
// properties either as an object (field name -> definition) or as a plain
// list of field names.
type rawSchema struct {
	Nodes        map[string]rawNode `json:"nodes"`
	TermMappings map[string]string  `json:"term_mappings"`
}

type rawNode struct {
	Properties json.RawMessage `json:"properties"`
}

// Load reads and indexes a schema file. Callers should fall back to Empty()
// when Load fails; the pipeline must keep working with no schema.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(data)
}

// Parse builds an Index from raw schema JSON.
func Parse(data []byte) (*Index, error) {
	var raw rawSchema
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	// Older exports have no "nodes" wrapper: the top level object is the
	// node map itself.
	if raw.Nodes == nil {
		var flat map[string]rawNode
		if err := json.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("parse schema nodes: %w", err)
		}
		delete(flat, "term_mappings")
		raw.Nodes = flat
	}

	idx := &Index{
		nodeProperties: make(map[string][]string, len(raw.Nodes)),
		termMappings:   make(map[string]string, len(raw.TermMappings)),
	}

	for name, node := range raw.Nodes {
		fields, err := parseProperties(node.Properties)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
		idx.nodeProperties[name] = fields
	}

	for synonym, canonical := range raw.TermMappings {
		idx.termMappings[strings.ToLower(synonym)] = canonical
	}
	idx.buildSynonymOrder()

	return idx, nil
}

// Empty returns an index with no nodes and no term mappings. Lookups return
// nothing and Standardize is the identity function.
func Empty() *Index {
	return &Index{
		nodeProperties: make(map[string][]string),
		termMappings:   make(map[string]string),
	}
}

func parseProperties(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	// Object form: field name -> definition.
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		fields := make([]string, 0, len(obj))
		for field := range obj {
			if strings.HasPrefix(field, "_") {
				continue
			}
			fields = append(fields, field)
		}
		sort.Strings(fields)
		return fields, nil
	}

	// List form: plain field names.
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("unsupported properties shape: %w", err)
	}
	return list, nil
}

func (idx *Index) buildSynonymOrder() {
	idx.synonyms = make([]string, 0, len(idx.termMappings))
	for s := range idx.termMappings {
		idx.synonyms = append(idx.synonyms, s)
	}
	sort.Slice(idx.synonyms, func(i, j int) bool {
		if len(idx.synonyms[i]) != len(idx.synonyms[j]) {
			return len(idx.synonyms[i]) > len(idx.synonyms[j])
		}
		return idx.synonyms[i] < idx.synonyms[j]
	})
}

// NodeCount returns the number of indexed nodes.
func (idx *Index) NodeCount() int {
	return len(idx.nodeProperties)
}

// Fields returns the ordered field list for a node, or nil if the node is
// not in the schema.
func (idx *Index) Fields(node string) []string {
	return idx.nodeProperties[node]
}

// Standardize substitutes known synonyms with their canonical schema terms.
// Matching is case-insensitive and bounded at word edges; longer synonyms
// win over shorter ones.
func (idx *Index) Standardize(query string) string {
	if len(idx.termMappings) == 0 {
		return query
	}

	result := query
	for _, synonym := range idx.synonyms {
		canonical := idx.termMappings[synonym]
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(synonym) + `\b`)
		if err != nil {
			continue
		}
		result = re.ReplaceAllString(result, canonical)
	}
	return result
}

// RelevantSubset returns the node -> fields mapping for every node whose
// name or any of whose fields is mentioned in the query. The result is
// empty (not nil) when nothing matches.
func (idx *Index) RelevantSubset(query string) map[string][]string {
	subset := make(map[string][]string)
	lower := strings.ToLower(query)

	for node, fields := range idx.nodeProperties {
		if containsTerm(lower, node) {
			subset[node] = fields
			continue
		}
		for _, field := range fields {
			if containsTerm(lower, field) {
				subset[node] = fields
				break
			}
		}
	}
	return subset
}

// EntityHits returns the distinct node names referenced in the query, in
// order of first appearance. Singular forms of node names also count as a
// hit so that "patient" matches a "patients" node.
func (idx *Index) EntityHits(query string) []string {
	lower := strings.ToLower(query)

	type hit struct {
		node string
		pos  int
	}
	var hits []hit
	for node := range idx.nodeProperties {
		pos := termIndex(lower, node)
		if pos < 0 {
			pos = termIndex(lower, strings.TrimSuffix(strings.ToLower(node), "s"))
		}
		if pos >= 0 {
			hits = append(hits, hit{node: node, pos: pos})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].node < hits[j].node
	})

	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.node
	}
	return names
}

func containsTerm(haystack, term string) bool {
	return termIndex(haystack, term) >= 0
}

// termIndex finds term as a whole word inside haystack, returning its byte
// offset or -1. Both arguments are expected lower-cased by the caller except
// term, which is folded here.
func termIndex(haystack, term string) int {
	if term == "" {
		return -1
	}
	term = strings.ToLower(term)
	from := 0
	for {
		i := strings.Index(haystack[from:], term)
		if i < 0 {
			return -1
		}
		i += from
		before := i == 0 || !isWordByte(haystack[i-1])
		after := i+len(term) == len(haystack) || !isWordByte(haystack[i+len(term)])
		if before && after {
			return i
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
