// Package tiger downloads Census TIGER/Line tract shapefiles and the
// 2020-to-2010 tract relationship file into a local cache.
package tiger

import (
	"fmt"
	"strings"
)

// DefaultYear is the TIGER/Line vintage fetched when none is configured.
const DefaultYear = 2025

// RelationshipURL is the national 2020-to-2010 tract relationship file,
// pipe-delimited with GEOID_TRACT_20, GEOID_TRACT_10, and AREALAND_PART
// columns.
const RelationshipURL = "https://www2.census.gov/geo/docs/maps-data/data/rel2020/tract/tab20_tract20_tract10_natl.txt"

// TractURL builds the download URL for one state's tract shapefile ZIP,
// tl_{year}_{statefips}_tract.zip under the TIGER{year}/TRACT tree.
func TractURL(year int, stateFIPS string) string {
	return fmt.Sprintf(
		"https://www2.census.gov/geo/tiger/TIGER%d/TRACT/tl_%d_%s_tract.zip",
		year, year, stateFIPS,
	)
}

// MirrorURL rewrites a www2.census.gov URL onto the FTP mirror, which
// serves the same directory tree.
func MirrorURL(httpURL string) string {
	return strings.Replace(httpURL, "https://www2.census.gov", "ftp://ftp2.census.gov", 1)
}
