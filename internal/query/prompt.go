package query

import (
	"fmt"
	"sort"
	"strings"
)

const systemPrompt = `You are a GraphQL query generator for a graph-shaped data schema.
Translate the user's natural-language question into a GraphQL query.

Respond with a single JSON object and nothing else:
{"query": "<graphql query>", "variables": <json object>, "explanation": "<one or two sentences>"}

Only use nodes and fields listed in the schema section. If the question
cannot be answered from the schema, return an empty query and explain why.`

// SystemPrompt returns the instruction preamble sent with every model call.
func SystemPrompt() string {
	return systemPrompt
}

// BuildPrompt renders the user-side prompt for one model call: the
// standardized query, the relevant schema subset, and the rendered
// conversation context. Output is deterministic for a given input.
func BuildPrompt(q string, schemaSubset map[string][]string, conversationContext string) string {
	var b strings.Builder

	if len(schemaSubset) > 0 {
		b.WriteString("Relevant schema:\n")
		nodes := make([]string, 0, len(schemaSubset))
		for node := range schemaSubset {
			nodes = append(nodes, node)
		}
		sort.Strings(nodes)
		for _, node := range nodes {
			fmt.Fprintf(&b, "- %s: %s\n", node, strings.Join(schemaSubset[node], ", "))
		}
		b.WriteString("\n")
	}

	if conversationContext != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(conversationContext)
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(q)
	return b.String()
}

// BuildSubQueryPrompt renders the prompt for one sub-query of a decomposed
// compound question. It names the original question so the model keeps the
// fragment consistent with the whole.
func BuildSubQueryPrompt(subQuery, original string, schemaSubset map[string][]string, conversationContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The user asked a compound question: %q\n", original)
	b.WriteString("Answer only this part of it.\n\n")
	b.WriteString(BuildPrompt(subQuery, schemaSubset, conversationContext))
	return b.String()
}
