package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		entities []string
		want     Complexity
	}{
		{
			name:     "two predicate clauses",
			input:    "Show patients with age > 18 and diagnosis = 'flu'",
			entities: []string{"patients"},
			want:     Complex,
		},
		{
			name:     "two comparators in one clause",
			input:    "patients with age > 18 where weight < 100",
			entities: []string{"patients"},
			want:     Complex,
		},
		{
			name:     "multi-entity marker with two entities",
			input:    "show both patients as well as treatments",
			entities: []string{"patients", "treatments"},
			want:     Complex,
		},
		{
			name:     "long query touching two entities",
			input:    "please retrieve every patient record including all linked treatment outcomes for the full cohort",
			entities: []string{"patients", "treatments"},
			want:     Complex,
		},
		{
			name:     "plain listing",
			input:    "Show all patients",
			entities: []string{"patients"},
			want:     Simple,
		},
		{
			name:     "single filter",
			input:    "patients with age > 18",
			entities: []string{"patients"},
			want:     Simple,
		},
		{
			name:     "marker without second entity stays simple",
			input:    "show both kinds of patients",
			entities: []string{"patients"},
			want:     Simple,
		},
		{
			name:  "empty entities defaults to simple",
			input: "a very long question that rambles on about nothing in particular for quite a while longer",
			want:  Simple,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input, tt.entities))
		})
	}
}

func TestCountComparators(t *testing.T) {
	// ">=" must count once, not as ">" plus "=".
	assert.Equal(t, 1, countComparators("age >= 18"))
	assert.Equal(t, 2, countComparators("age > 18 and weight = 70"))
	assert.Equal(t, 1, countComparators("patients with at least one visit"))
	assert.Equal(t, 0, countComparators("show all patients"))
}
