// Package sanitize turns names coming from the database or the configuration into names
// safe for output files and storage columns.
package sanitize

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fallback for names without a single usable character
const emptyColumnName = "column"

// ascii strips diacritics: "Žluťoučký" -> "Zlutoucky"
func ascii(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// TableName returns the file name (without extension) for an output table.
// The result is lowercase, keeps dots and underscores and replaces any other run of
// unsupported characters with a single dash.
func TableName(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(ascii(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			sb.WriteRune(r)
			dash = false
		default:
			if !dash {
				sb.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.Trim(sb.String(), "-")
}

// ColumnName returns a storage compatible column name: letters, digits and underscores.
func ColumnName(name string) string {
	var sb strings.Builder
	for _, r := range ascii(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			sb.WriteRune(r)
			continue
		}
		sb.WriteByte('_')
	}

	out := strings.Trim(sb.String(), "_")
	if out == "" {
		return emptyColumnName
	}
	return out
}

// ColumnNames sanitizes all names and makes duplicates unique by a numeric suffix.
func ColumnNames(names []string) []string {
	out := make([]string, len(names))
	taken := make(map[string]bool, len(names))
	for i, name := range names {
		s := ColumnName(name)
		candidate := s
		for n := 1; taken[strings.ToLower(candidate)]; n++ {
			candidate = s + "_" + strconv.Itoa(n)
		}
		taken[strings.ToLower(candidate)] = true
		out[i] = candidate
	}
	return out
}
