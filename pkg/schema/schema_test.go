package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"nodes": {
		"patients": {
			"properties": {
				"age": {"type": "integer"},
				"diagnosis": {"type": "string"},
				"gender": {"type": "string"},
				"_internal": {"type": "string"}
			}
		},
		"treatments": {
			"properties": ["name", "start_date", "outcome"]
		}
	},
	"term_mappings": {
		"sickness": "diagnosis",
		"illness": "diagnosis",
		"years old": "age"
	}
}`

func TestParse(t *testing.T) {
	idx, err := Parse([]byte(testSchema))
	require.NoError(t, err)

	assert.Equal(t, 2, idx.NodeCount())
	assert.Equal(t, []string{"age", "diagnosis", "gender"}, idx.Fields("patients"))
	assert.Equal(t, []string{"name", "start_date", "outcome"}, idx.Fields("treatments"))
	assert.Nil(t, idx.Fields("unknown"))
}

func TestParse_FlatLayout(t *testing.T) {
	// Older exports put nodes at the top level with no wrapper.
	idx, err := Parse([]byte(`{"patients": {"properties": ["age"]}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, idx.Fields("patients"))
}

func TestLoad_FileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(testSchema), 0644))

	idx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.NodeCount())
}

func TestStandardize(t *testing.T) {
	idx, err := Parse([]byte(testSchema))
	require.NoError(t, err)

	assert.Equal(t,
		"patients with diagnosis = 'flu'",
		idx.Standardize("patients with sickness = 'flu'"))

	// Case-insensitive, multi-word synonym beats sub-phrase.
	assert.Equal(t,
		"patients over 18 age",
		idx.Standardize("patients over 18 Years Old"))

	// No partial-word substitution.
	assert.Equal(t, "illnesses", idx.Standardize("illnesses"))
}

func TestStandardize_EmptyIndexIsIdentity(t *testing.T) {
	q := "show patients with sickness = 'flu'"
	assert.Equal(t, q, Empty().Standardize(q))
}

func TestRelevantSubset(t *testing.T) {
	idx, err := Parse([]byte(testSchema))
	require.NoError(t, err)

	subset := idx.RelevantSubset("patients with age > 18")
	require.Len(t, subset, 1)
	assert.Contains(t, subset, "patients")

	// Field mention alone pulls in the owning node.
	subset = idx.RelevantSubset("what was the outcome")
	require.Len(t, subset, 1)
	assert.Contains(t, subset, "treatments")

	assert.Empty(t, idx.RelevantSubset("completely unrelated text"))
	assert.Empty(t, Empty().RelevantSubset("patients"))
}

func TestEntityHits(t *testing.T) {
	idx, err := Parse([]byte(testSchema))
	require.NoError(t, err)

	// Order follows first appearance in the query.
	hits := idx.EntityHits("treatments given to patients")
	assert.Equal(t, []string{"treatments", "patients"}, hits)

	// Singular form still counts.
	hits = idx.EntityHits("find a patient by id")
	assert.Equal(t, []string{"patients"}, hits)

	assert.Empty(t, idx.EntityHits("nothing relevant here"))
}
