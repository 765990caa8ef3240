package source

import (
	"math"
	"strconv"
	"strings"
)

// DefaultSentinels are the missing-value markers recognized when a source
// does not configure its own set.
var DefaultSentinels = []string{"", "NA", "N/A", ".", "-9999"}

// sentinelSet builds the lookup used by parseMetric. A nil or empty
// configured list falls back to DefaultSentinels.
func sentinelSet(configured []string) map[string]struct{} {
	if len(configured) == 0 {
		configured = DefaultSentinels
	}
	set := make(map[string]struct{}, len(configured))
	for _, s := range configured {
		set[s] = struct{}{}
	}
	return set
}

// parseMetric parses a numeric cell. Sentinel markers, unparseable
// values, and non-finite values report absence, never zero.
func parseMetric(s string, sentinels map[string]struct{}) (float64, bool) {
	s = strings.TrimSpace(s)
	if _, hit := sentinels[s]; hit {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseYear parses a year cell, tolerating a float artifact ("2015.0").
func parseYear(s string) int {
	s = strings.TrimSpace(s)
	if base, _, ok := strings.Cut(s, "."); ok {
		s = base
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// trimQuotes removes surrounding double quotes from a CSV field.
func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// mapColumns builds a case-insensitive column name to index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

// getCol gets a column value by name from a CSV record, returning empty string if not found.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[strings.ToLower(name)]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// hasCol reports whether the header declared a column.
func hasCol(colIdx map[string]int, name string) bool {
	_, ok := colIdx[strings.ToLower(name)]
	return ok
}
