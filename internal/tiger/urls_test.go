package tiger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTractURL(t *testing.T) {
	assert.Equal(t,
		"https://www2.census.gov/geo/tiger/TIGER2025/TRACT/tl_2025_24_tract.zip",
		TractURL(2025, "24"))
	assert.Equal(t,
		"https://www2.census.gov/geo/tiger/TIGER2020/TRACT/tl_2020_06_tract.zip",
		TractURL(2020, "06"))
}

func TestMirrorURL(t *testing.T) {
	assert.Equal(t,
		"ftp://ftp2.census.gov/geo/tiger/TIGER2025/TRACT/tl_2025_24_tract.zip",
		MirrorURL(TractURL(2025, "24")))
	assert.Equal(t,
		"ftp://ftp2.census.gov/geo/docs/maps-data/data/rel2020/tract/tab20_tract20_tract10_natl.txt",
		MirrorURL(RelationshipURL))
}
