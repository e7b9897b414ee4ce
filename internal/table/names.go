package table

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	acronymBoundary = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	wordBoundary    = regexp.MustCompile(`([a-z\d])([A-Z])`)
)

// synonyms maps normalized source names to the store's column names.
var synonyms = map[string]string{
	"dna_sequence": "asv_sequence",
}

// missingMarkers are the cell values read as absent.
var missingMarkers = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// Underscore rewrites a camelCase, dashed or spaced name to lower_snake:
//
//	organismQuantity -> organism_quantity
//	DNA sequence     -> dna_sequence
//	eventID          -> event_id
//	DNA_sequence     -> dna_sequence
//	HTTPServer       -> http_server
//	sample-name      -> sample_name
func Underscore(name string) string {
	s := strings.Join(strings.Fields(name), "_")
	s = acronymBoundary.ReplaceAllString(s, "${1}_${2}")
	s = wordBoundary.ReplaceAllString(s, "${1}_${2}")
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ToLower(s)
}

// Canonical returns the store column name for a raw header.
func Canonical(header string) string {
	name := Underscore(CleanHeader(header))
	if s, ok := synonyms[name]; ok {
		return s
	}
	return name
}

// CleanHeader removes common spreadsheet export artifacts from a header:
// surrounding whitespace, the Excel formula prefix (="...") and stray quotes.
func CleanHeader(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}
	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// ParseCell converts a raw field to a cell. Missing-value markers become
// [Absent]; everything else is kept as trimmed text.
func ParseCell(raw string) Cell {
	s := strings.TrimSpace(raw)
	if _, ok := missingMarkers[s]; ok {
		return Absent
	}
	return Text(s)
}

// uniqueHeaders makes repeated names distinct by suffixing ".1", ".2", ...
// and names blank headers "unnamed_<position>".
func uniqueHeaders(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			n = "unnamed_" + strconv.Itoa(i)
		}
		if k, dup := seen[n]; dup {
			seen[n] = k + 1
			n = n + "." + strconv.Itoa(k+1)
		} else {
			seen[n] = 0
		}
		out[i] = n
	}
	return out
}
