package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecompose(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "restores elided subject",
			input: "Show patients with age > 18 and diagnosis = 'flu'",
			want: []string{
				"patients with age > 18",
				"patients with diagnosis = 'flu'",
			},
		},
		{
			name:  "keeps explicit subjects",
			input: "show patients with age > 18 and treatments with outcome = 'cured'",
			want: []string{
				"patients with age > 18",
				"treatments with outcome = 'cured'",
			},
		},
		{
			name:  "singular subject mention is not restored over",
			input: "find patients with a flu diagnosis and patient consent on file",
			want: []string{
				"patients with a flu diagnosis",
				"patient consent on file",
			},
		},
		{
			name:  "semicolon separator",
			input: "patients with age > 18; treatments with outcome = 'cured'",
			want: []string{
				"patients with age > 18",
				"treatments with outcome = 'cured'",
			},
		},
		{
			name:  "conjunction inside quotes is not a split point",
			input: "patients with diagnosis = 'cough and cold'",
			want:  []string{"patients with diagnosis = 'cough and cold'"},
		},
		{
			name:  "unsplittable input degenerates to itself",
			input: "Show all patients",
			want:  []string{"Show all patients"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decompose(tt.input))
		})
	}
}

func TestDecompose_OrderFollowsSource(t *testing.T) {
	subs := Decompose("list studies with status = 'open' and subjects with age < 10 and samples with type = 'blood'")
	assert.Len(t, subs, 3)
	assert.Equal(t, "studies with status = 'open'", subs[0])
	assert.Equal(t, "subjects with age < 10", subs[1])
	assert.Equal(t, "samples with type = 'blood'", subs[2])
}

func TestSubjectOf(t *testing.T) {
	subject, connector := subjectOf("patients with age > 18")
	assert.Equal(t, "patients", subject)
	assert.Equal(t, "with", connector)

	subject, connector = subjectOf("treatments whose outcome is unknown")
	assert.Equal(t, "treatments", subject)
	assert.Equal(t, "whose", connector)

	subject, _ = subjectOf("patients")
	assert.Equal(t, "patients", subject)
}
