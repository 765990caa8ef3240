package geoid

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input, expected string
	}{
		{"24003750100", "24003750100"},
		{"  24003750100 ", "24003750100"},
		{"24-003-750100", "24003750100"},
		{"24003750100.0", "24003750100"}, // spreadsheet float artifact
		{"6037123456", "06037123456"},    // dropped leading state zero
		{"06037123456", "06037123456"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.input)
		require.NoError(t, err, "input: %q", tt.input)
		assert.Equal(t, tt.expected, got, "input: %q", tt.input)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"   ",
		"24003",          // too short
		"240037501001234", // block width, not tract
		"2400375010A",
		"99003750100", // unknown state prefix
		"24.003.750100.5",
	} {
		_, err := Normalize(input)
		require.Error(t, err, "input: %q", input)
		assert.True(t, eris.Is(err, ErrMalformed), "input: %q", input)
	}
}

func TestFromParts(t *testing.T) {
	tests := []struct {
		state, county, tract string
		expected             string
	}{
		{"24", "003", "750100", "24003750100"},
		{"24", "3", "750100", "24003750100"},
		{"6", "37", "123456", "06037123456"},
		{"24", "003", "7501.00", "24003750100"}, // dotted display name
		{"24", "003", "7501.02", "24003750102"},
		{"24", "003", "301.02", "24003030102"},
		{"24", "003", "30100.0", "24003030100"}, // float artifact, not a name
		{"24", "003", "30100", "24003030100"},   // plain zero-pad
		{"24.0", "3.0", "750100", "24003750100"},
	}
	for _, tt := range tests {
		got, err := FromParts(tt.state, tt.county, tt.tract)
		require.NoError(t, err, "tract: %q", tt.tract)
		assert.Equal(t, tt.expected, got, "tract: %q", tt.tract)
	}
}

func TestFromPartsMalformed(t *testing.T) {
	_, err := FromParts("24", "003", "7501.023")
	assert.True(t, eris.Is(err, ErrMalformed))
	_, err = FromParts("24", "003", "75010001")
	assert.True(t, eris.Is(err, ErrMalformed))
	_, err = FromParts("99", "003", "750100")
	assert.True(t, eris.Is(err, ErrMalformed), "unknown state survives padding")
}

func TestFromBlock(t *testing.T) {
	got, err := FromBlock("240037501001021")
	require.NoError(t, err)
	assert.Equal(t, "24003750100", got)

	// 14 digits = block code missing the leading state zero.
	got, err = FromBlock("60371234561021")
	require.NoError(t, err)
	assert.Equal(t, "06037123456", got)

	// Tract-width input passes through.
	got, err = FromBlock("24003750100")
	require.NoError(t, err)
	assert.Equal(t, "24003750100", got)
}

func TestSlices(t *testing.T) {
	const g = "24003750102"
	assert.Equal(t, "24", StateFIPS(g))
	assert.Equal(t, "24003", CountyFIPS(g))
	assert.Equal(t, "750102", TractCE(g))
	assert.Equal(t, "", TractCE("24003"))
}

func TestTractName(t *testing.T) {
	assert.Equal(t, "7501.02", TractName("24003750102"))
	assert.Equal(t, "7501", TractName("24003750100"))
	assert.Equal(t, "301", TractName("24003030100"))
	assert.Equal(t, "1.01", TractName("24003000101"))
}

func TestStateFIPSFor(t *testing.T) {
	fips, ok := StateFIPSFor("MD")
	require.True(t, ok)
	assert.Equal(t, "24", fips)

	fips, ok = StateFIPSFor("24")
	require.True(t, ok)
	assert.Equal(t, "24", fips)

	_, ok = StateFIPSFor("XX")
	assert.False(t, ok)
}

func TestAllStateFIPS(t *testing.T) {
	codes := AllStateFIPS()
	assert.Len(t, codes, 51) // 50 states + DC
	assert.Equal(t, "01", codes[0])
	assert.Equal(t, "56", codes[len(codes)-1])
}
