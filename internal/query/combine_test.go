package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombine_Empty(t *testing.T) {
	r := Combine(nil, "show patients")
	assert.Equal(t, "", r.Query)
	assert.Equal(t, "{}", r.Variables)
	assert.Equal(t, noSubResultsExplanation, r.Explanation)
}

func TestCombine_Single(t *testing.T) {
	sub := Result{Query: "{ patients }", Explanation: "all patients"}
	r := Combine([]Result{sub}, "show patients")
	assert.Equal(t, "{ patients }", r.Query)
	assert.Equal(t, "{}", r.Variables)
	assert.Equal(t, "all patients", r.Explanation)
}

func TestCombine_OrderPreserved(t *testing.T) {
	subs := []Result{
		{Query: "{ patients }", Explanation: "first"},
		{Query: "{ treatments }", Explanation: "second"},
	}
	r := Combine(subs, "show patients and treatments")

	first := strings.Index(r.Query, "{ patients }")
	second := strings.Index(r.Query, "{ treatments }")
	assert.True(t, first >= 0 && second > first, "query fragments out of order: %q", r.Query)
	assert.Contains(t, r.Query, "# part 1")
	assert.Contains(t, r.Query, "# part 2")

	assert.Equal(t, "Part 1: first\nPart 2: second", r.Explanation)
}

func TestCombine_VariablesLaterKeyWins(t *testing.T) {
	subs := []Result{
		{Query: "a", Variables: `{"age": 18, "status": "open"}`},
		{Query: "b", Variables: `{"age": 65}`},
	}
	r := Combine(subs, "x")
	assert.JSONEq(t, `{"age": 65, "status": "open"}`, r.Variables)
}

func TestCombine_SkipsEmptyFragments(t *testing.T) {
	subs := []Result{
		{Query: "", Explanation: ""},
		{Query: "{ treatments }", Explanation: "second"},
	}
	r := Combine(subs, "x")
	assert.NotContains(t, r.Query, "# part 1")
	assert.Contains(t, r.Query, "# part 2")
	assert.Equal(t, "Part 2: second", r.Explanation)
}

func TestCombine_FallbackExplanation(t *testing.T) {
	subs := []Result{
		{Query: "a"},
		{Query: "b"},
	}
	r := Combine(subs, "show patients and treatments")
	assert.Equal(t, "Combined result for: show patients and treatments", r.Explanation)
}
