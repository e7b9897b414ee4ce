package table

import (
	"math"
	"strconv"

	"github.com/JonMunkholm/asvimport/internal/importerr"
)

// ASVTableIDColumns are the non-sample columns of a wide asv-table, in
// canonical form. Every other column is a sample (event alias).
var ASVTableIDColumns = []string{
	"asv_id_alias",
	"asv_sequence",
	"kingdom",
	"phylum",
	"class",
	"order",
	"family",
	"genus",
	"specific_epithet",
	"infraspecific_epithet",
	"otu",
}

// Melt unpivots a wide table. Columns whose canonical name is in idColumns
// are kept as identifiers under that canonical name; every other column
// becomes one output row per input row, with the column's header in
// varName and the cell in valueName. Output is grouped by variable, in
// column order. All idColumns must be present.
func Melt(wide *Table, idColumns []string, varName, valueName string) (*Table, error) {
	want := make(map[string]bool, len(idColumns))
	for _, c := range idColumns {
		want[c] = true
	}

	idPos := make(map[string]int, len(idColumns))
	var vars []int
	for j, c := range wide.columns {
		if canon := Canonical(c); want[canon] {
			idPos[canon] = j
		} else {
			vars = append(vars, j)
		}
	}
	var missing []string
	for _, c := range idColumns {
		if _, ok := idPos[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, importerr.Errorf(importerr.SchemaMismatch, "melt", wide.Name,
			"wide table lacks id columns %v", missing)
	}

	out := New(wide.Name, append(append([]string(nil), idColumns...), varName, valueName))
	out.rows = make([]Row, 0, len(vars)*len(wide.rows))
	for _, v := range vars {
		label := Text(wide.columns[v])
		for _, r := range wide.rows {
			nr := make(Row, 0, len(idColumns)+2)
			for _, c := range idColumns {
				nr = append(nr, r[idPos[c]])
			}
			out.rows = append(out.rows, append(nr, label, r[v]))
		}
	}
	return out, nil
}

// MeltASVTable converts a wide asv-table (read with RawHeaders so sample
// names survive) into occurrence form with event_id_alias and
// organism_quantity columns. Cells with an absent or non-positive count are
// dropped; a count that is not an integer is a SchemaMismatch.
func MeltASVTable(wide *Table) (*Table, error) {
	long, err := Melt(wide, ASVTableIDColumns, "event_id_alias", "organism_quantity")
	if err != nil {
		return nil, err
	}

	q := long.Index("organism_quantity")
	kept := long.rows[:0]
	for _, r := range long.rows {
		if !r[q].Valid {
			continue
		}
		n, ok := parseCount(r[q].Value)
		if !ok {
			return nil, importerr.Errorf(importerr.SchemaMismatch, "melt", wide.Name,
				"sample %s: count %q is not an integer", r[q-1].Value, r[q].Value)
		}
		if n <= 0 {
			continue
		}
		r[q] = Text(strconv.FormatInt(n, 10))
		kept = append(kept, r)
	}
	long.rows = kept
	return long, nil
}

// parseCount accepts integers and integral floats such as "12.0".
func parseCount(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
