// Package transform turns source tables into per-entity tables shaped like
// their target store tables.
//
// Each transformer is a pure function of a source table, the target column
// list from the catalog and, for entities that reference sampling events, a
// sealed alias resolver. Outputs are projected to the target column order so
// the loader can copy them positionally.
package transform

import (
	"strconv"
	"strings"

	"github.com/JonMunkholm/asvimport/internal/catalog"
	"github.com/JonMunkholm/asvimport/internal/importerr"
	"github.com/JonMunkholm/asvimport/internal/keys"
	"github.com/JonMunkholm/asvimport/internal/table"
)

// Column names shared by source and target tables.
const (
	ColEventID                 = "event_id"
	ColEventAlias              = "event_id_alias"
	ColDatasetID               = "dataset_id"
	ColMeasurementID           = "measurement_id"
	ColMeasurementType         = "measurement_type"
	ColASVID                   = "asv_id"
	ColASVSequence             = "asv_sequence"
	ColOccurrenceID            = "occurrence_id"
	ColOrganismQuantity        = "organism_quantity"
	ColPreviousIdentifications = "previous_identifications"
	ColTaxonomy                = "taxonomy"
)

// Ranks is the taxonomic rank list folded into previous_identifications.
var Ranks = []string{
	"kingdom",
	"phylum",
	"class",
	"order",
	"family",
	"genus",
	"specific_epithet",
	"infraspecific_epithet",
}

// Resolver maps an event alias to its event id.
type Resolver interface {
	Resolve(alias string) (string, error)
}

// Events shapes the event source into sampling_event rows for one dataset.
// Every target column except event_id and dataset_id must be present in the
// source; those two are derived.
func Events(src *table.Table, datasetID string, cols []catalog.Column) (*table.Table, error) {
	need := catalog.Names(catalog.Without(cols, ColEventID, ColDatasetID))
	base, err := named(src, "sampling_event").Project(need)
	if err != nil {
		return nil, err
	}
	if !base.Has(ColEventAlias) {
		return nil, importerr.Errorf(importerr.SchemaMismatch, "transform", "sampling_event",
			"target has no %s column", ColEventAlias)
	}

	out := base.AddColumn(ColDatasetID, table.Text(datasetID))
	out, err = out.Set(ColEventID, func(i int) (table.Cell, error) {
		alias, err := requireCell(base, i, ColEventAlias)
		if err != nil {
			return table.Absent, err
		}
		return table.Text(keys.EventID(datasetID, alias)), nil
	})
	if err != nil {
		return nil, err
	}
	return out.Project(catalog.Names(cols))
}

// Mixs shapes the event source into mixs rows, one per event.
func Mixs(src *table.Table, r Resolver, cols []catalog.Column) (*table.Table, error) {
	out, err := withEventIDs(named(src, "mixs"), r)
	if err != nil {
		return nil, err
	}
	return out.Project(catalog.Names(cols))
}

// Emof shapes the measurement source into emof rows, deriving
// measurement_id from the event id and measurement type.
func Emof(src *table.Table, r Resolver, cols []catalog.Column) (*table.Table, error) {
	resolved, err := withEventIDs(named(src, "emof"), r)
	if err != nil {
		return nil, err
	}
	out, err := resolved.Set(ColMeasurementID, func(i int) (table.Cell, error) {
		mt, err := requireCell(resolved, i, ColMeasurementType)
		if err != nil {
			return table.Absent, err
		}
		return table.Text(keys.MeasurementID(resolved.Cell(i, ColEventID).Value, mt)), nil
	})
	if err != nil {
		return nil, err
	}
	return out.Project(catalog.Names(cols))
}

// PositiveCounts keeps the rows whose column holds a count greater than zero.
// Absent counts are dropped; a value that is not a number is a SchemaMismatch.
func PositiveCounts(src *table.Table, column string) (*table.Table, error) {
	if !src.Has(column) {
		return nil, importerr.Errorf(importerr.SchemaMismatch, "filter counts", src.Name,
			"source lacks column %s", column)
	}
	return src.Filter(func(i int) (bool, error) {
		c := src.Cell(i, column)
		if !c.Valid {
			return false, nil
		}
		n, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return false, importerr.Errorf(importerr.SchemaMismatch, "filter counts", src.Name,
				"row %d: %s %q is not a number", i+1, column, c.Value)
		}
		return n > 0, nil
	})
}

// FlattenRanks joins the rank columns with "|" into previous_identifications
// and drops them. Absent or missing ranks become empty segments, so the
// result always has len(Ranks)-1 separators. A source without rank columns
// that already carries a joined taxonomy column has it renamed instead.
func FlattenRanks(src *table.Table) *table.Table {
	if src.Has(ColTaxonomy) && len(src.Missing(Ranks)) == len(Ranks) {
		return src.Rename(ColTaxonomy, ColPreviousIdentifications)
	}
	out, _ := src.Set(ColPreviousIdentifications, func(i int) (table.Cell, error) {
		var b strings.Builder
		for k, rank := range Ranks {
			if k > 0 {
				b.WriteByte('|')
			}
			b.WriteString(src.Cell(i, rank).String())
		}
		return table.Text(b.String()), nil
	})
	return out.Drop(Ranks...)
}

// SplitOccurrences splits the long occurrence source into occurrence rows and
// the distinct ASVs they reference. Rows with a non-positive count are
// dropped first; the first row for each sequence supplies the ASV's fields.
func SplitOccurrences(src *table.Table, r Resolver, occCols, asvCols []catalog.Column) (occ, asv *table.Table, err error) {
	counted, err := PositiveCounts(named(src, "occurrence"), ColOrganismQuantity)
	if err != nil {
		return nil, nil, err
	}
	resolved, err := withEventIDs(FlattenRanks(counted), r)
	if err != nil {
		return nil, nil, err
	}
	hashed, err := resolved.Set(ColASVID, func(i int) (table.Cell, error) {
		seq, err := requireCell(resolved, i, ColASVSequence)
		if err != nil {
			return table.Absent, err
		}
		return table.Text(keys.ASVID(seq)), nil
	})
	if err != nil {
		return nil, nil, err
	}
	merged, err := hashed.Set(ColOccurrenceID, func(i int) (table.Cell, error) {
		return table.Text(keys.OccurrenceID(hashed.Cell(i, ColEventID).Value, hashed.Cell(i, ColASVID).Value)), nil
	})
	if err != nil {
		return nil, nil, err
	}

	occ, err = merged.Project(catalog.Names(occCols))
	if err != nil {
		return nil, nil, err
	}
	asv, err = named(merged, "asv").Project(catalog.Names(asvCols))
	if err != nil {
		return nil, nil, err
	}
	return occ, asv.DistinctBy(ColASVSequence), nil
}

// withEventIDs sets event_id from the resolved event_id_alias of every row.
func withEventIDs(src *table.Table, r Resolver) (*table.Table, error) {
	if !src.Has(ColEventAlias) {
		return nil, importerr.Errorf(importerr.SchemaMismatch, "transform", src.Name,
			"source lacks column %s", ColEventAlias)
	}
	return src.Set(ColEventID, func(i int) (table.Cell, error) {
		alias, err := requireCell(src, i, ColEventAlias)
		if err != nil {
			return table.Absent, err
		}
		id, err := r.Resolve(alias)
		if err != nil {
			return table.Absent, err
		}
		return table.Text(id), nil
	})
}

func requireCell(t *table.Table, i int, col string) (string, error) {
	c := t.Cell(i, col)
	if !c.Valid {
		return "", importerr.Errorf(importerr.SchemaMismatch, "transform", t.Name,
			"row %d has no %s", i+1, col)
	}
	return c.Value, nil
}

// named returns a copy of t labeled with the target entity.
func named(t *table.Table, entity string) *table.Table {
	out := t.Clone()
	out.Name = entity
	return out
}
