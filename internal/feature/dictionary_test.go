package feature

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWriteDictionary(t *testing.T) {
	dict := Dictionary{
		IDProperty: "geoid",
		Properties: []Entry{
			{Key: "geoid", Label: "Census tract GEOID", Type: TypeText, Source: "boundary"},
			{Key: "mobility_pct", Label: "Household income at age 35", Unit: "percentile", Type: TypeNumber, Source: "atlas"},
			{Key: "is_desert", Label: "Mobility desert flag", Type: TypeBool, Source: "derived"},
		},
	}

	path := filepath.Join(t.TempDir(), "dict", "tracts.dictionary.yaml")
	require.NoError(t, WriteDictionary(path, dict))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "id_property: geoid")

	var back Dictionary
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, dict, back)
}

func TestWriteDictionaryOmitsEmptyFields(t *testing.T) {
	dict := Dictionary{
		IDProperty: "geoid",
		Properties: []Entry{{Key: "aland", Type: TypeNumber}},
	}

	path := filepath.Join(t.TempDir(), "tracts.dictionary.yaml")
	require.NoError(t, WriteDictionary(path, dict))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "unit:")
	assert.NotContains(t, string(data), "label:")
}
