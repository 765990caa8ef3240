// Package geoid normalizes census-tract identifiers to the canonical
// 11-digit GEOID (2-digit state + 3-digit county + 6-digit tract) used as
// the join key across every source table.
package geoid

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Length is the width of a canonical tract GEOID.
const Length = 11

// BlockLength is the width of a 2020 census block GEOID (tract + 4-digit block).
const BlockLength = 15

// ErrMalformed is returned when an identifier cannot be normalized to a
// canonical tract GEOID. Callers decide whether it aborts the run or is
// skipped with a count.
var ErrMalformed = eris.New("geoid: malformed identifier")

// Normalize canonicalizes a raw tract identifier. It tolerates the usual
// source-table damage: surrounding whitespace, embedded punctuation
// ("24-003-750100"), a spreadsheet float artifact ("24003750100.0"), and a
// dropped leading state zero (10 digits instead of 11). Anything else fails
// with ErrMalformed.
func Normalize(raw string) (string, error) {
	s := stripFloatArtifact(strings.TrimSpace(raw))
	s = stripPunct(s)
	if s == "" {
		return "", eris.Wrapf(ErrMalformed, "empty identifier %q", raw)
	}
	if !allDigits(s) {
		return "", eris.Wrapf(ErrMalformed, "non-digit identifier %q", raw)
	}
	switch len(s) {
	case Length:
	case Length - 1:
		// Integer-typed columns drop the leading zero of states 01-09.
		s = "0" + s
	default:
		return "", eris.Wrapf(ErrMalformed, "identifier %q has %d digits, want %d", raw, len(s), Length)
	}
	if !ValidStateFIPS(s[:2]) {
		return "", eris.Wrapf(ErrMalformed, "identifier %q has unknown state prefix %q", raw, s[:2])
	}
	return s, nil
}

// FromParts builds a GEOID from separate state, county and tract columns,
// zero-padding each to its fixed width. The tract part accepts either the
// 6-digit code or the dotted display form ("7501.02" means tract 750102).
func FromParts(state, county, tract string) (string, error) {
	st := pad(stripFloatArtifact(strings.TrimSpace(state)), 2)
	co := pad(stripFloatArtifact(strings.TrimSpace(county)), 3)
	tr, err := normalizeTract(strings.TrimSpace(tract))
	if err != nil {
		return "", err
	}
	return Normalize(st + co + tr)
}

// FromBlock truncates a 15-digit census block GEOID to its containing
// tract. A 14-digit value is treated as a block code missing its leading
// state zero. Tract-width input passes through Normalize unchanged.
func FromBlock(raw string) (string, error) {
	s := stripFloatArtifact(strings.TrimSpace(raw))
	s = stripPunct(s)
	if allDigits(s) {
		switch len(s) {
		case BlockLength - 1:
			s = "0" + s
			fallthrough
		case BlockLength:
			return Normalize(s[:Length])
		}
	}
	return Normalize(s)
}

// StateFIPS returns the 2-digit state code of a canonical GEOID.
func StateFIPS(geoid string) string {
	if len(geoid) < 2 {
		return ""
	}
	return geoid[:2]
}

// CountyFIPS returns the 5-digit state+county code of a canonical GEOID.
func CountyFIPS(geoid string) string {
	if len(geoid) < 5 {
		return ""
	}
	return geoid[:5]
}

// TractCE returns the 6-digit tract code of a canonical GEOID.
func TractCE(geoid string) string {
	if len(geoid) != Length {
		return ""
	}
	return geoid[5:]
}

// TractName formats the 6-digit tract code as its display name:
// 750102 renders as "7501.02", 030100 as "301".
func TractName(geoid string) string {
	ce := TractCE(geoid)
	if ce == "" {
		return ""
	}
	base := strings.TrimLeft(ce[:4], "0")
	if base == "" {
		base = "0"
	}
	if ce[4:] == "00" {
		return base
	}
	return base + "." + ce[4:]
}

// normalizeTract canonicalizes a tract column value to 6 digits. Dotted
// display names keep two implied decimal places; bare digits are
// zero-padded on the left, matching how the Census Bureau encodes tract
// codes in data files.
func normalizeTract(s string) (string, error) {
	if base, frac, ok := strings.Cut(s, "."); ok {
		if frac == strings.Repeat("0", len(frac)) && len(frac) != 2 {
			// Float artifact such as "30100.0", not a display name.
			s = base
		} else {
			if len(frac) > 2 || !allDigits(base) || !allDigits(frac) || len(base) > 4 {
				return "", eris.Wrapf(ErrMalformed, "bad tract code %q", s)
			}
			for len(frac) < 2 {
				frac += "0"
			}
			s = pad(base, 4) + frac
		}
	}
	if !allDigits(s) || len(s) > 6 || s == "" {
		return "", eris.Wrapf(ErrMalformed, "bad tract code %q", s)
	}
	return pad(s, 6), nil
}

// stripFloatArtifact removes a ".0" style suffix left behind by numeric
// column types. Tract display names never reach here; FromParts routes the
// tract part through normalizeTract instead.
func stripFloatArtifact(s string) string {
	base, frac, ok := strings.Cut(s, ".")
	if ok && allDigits(base) && frac == strings.Repeat("0", len(frac)) {
		return base
	}
	return s
}

func stripPunct(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ', '\t':
			return -1
		}
		return r
	}, s)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
