package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spark-map/atlas-cli/internal/config"
)

func TestNewDispatch(t *testing.T) {
	tests := []struct {
		typ  string
		want string
	}{
		{TypeOpportunityAtlas, "*source.OpportunityAtlas"},
		{TypeChildOpportunity, "*source.ChildOpportunity"},
		{TypeTravelTime, "*source.TravelTime"},
	}
	for _, tt := range tests {
		s, err := New(config.SourceConfig{Name: "x", Type: tt.typ, Path: "x.csv"})
		require.NoError(t, err, "type: %s", tt.typ)
		assert.Equal(t, tt.typ, s.Type())
	}
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(config.SourceConfig{Name: "x", Type: "parquet", Path: "x.parquet"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source type")
}

func TestNewRegistryOrderAndColumns(t *testing.T) {
	r, err := NewRegistry([]config.SourceConfig{
		{Name: "atlas", Type: TypeOpportunityAtlas, Path: "a.csv"},
		{Name: "walk", Type: TypeTravelTime, Path: "w.csv", Types: []string{"grocery"}},
	})
	require.NoError(t, err)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "atlas", all[0].Name())
	assert.Equal(t, "walk", all[1].Name())

	cols := r.Columns()
	assert.Equal(t, "mobility_pct", cols[0].Key)
	assert.Equal(t, "walk_grocery_min", cols[len(cols)-1].Key)

	s, err := r.Get("walk")
	require.NoError(t, err)
	assert.Equal(t, TypeTravelTime, s.Type())

	_, err = r.Get("nope")
	assert.Error(t, err)
}

func TestNewRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry([]config.SourceConfig{
		{Name: "atlas", Type: TypeOpportunityAtlas, Path: "a.csv"},
		{Name: "atlas", Type: TypeTravelTime, Path: "w.csv"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate source name")
}

func TestNewRegistryRejectsCollidingKeys(t *testing.T) {
	_, err := NewRegistry([]config.SourceConfig{
		{Name: "atlas", Type: TypeOpportunityAtlas, Path: "a.csv"},
		{Name: "atlas2", Type: TypeOpportunityAtlas, Path: "b.csv"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mobility_pct")
}

func TestNewRegistryRejectsEmpty(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.Error(t, err)
}
