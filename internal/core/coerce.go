package core

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/asvimport/internal/catalog"
	"github.com/JonMunkholm/asvimport/internal/importerr"
	"github.com/JonMunkholm/asvimport/internal/table"
)

// valueKind groups information_schema data types by converter.
type valueKind int

const (
	kindText valueKind = iota
	kindInt
	kindNumeric
	kindFloat
	kindDate
	kindTimestamp
	kindTimestamptz
	kindBool
	kindUUID
)

func kindOf(dataType string) valueKind {
	switch strings.ToLower(dataType) {
	case "smallint", "integer", "bigint", "int2", "int4", "int8":
		return kindInt
	case "numeric", "decimal":
		return kindNumeric
	case "real", "double precision", "float4", "float8":
		return kindFloat
	case "date":
		return kindDate
	case "timestamp without time zone", "timestamp":
		return kindTimestamp
	case "timestamp with time zone", "timestamptz":
		return kindTimestamptz
	case "boolean", "bool":
		return kindBool
	case "uuid":
		return kindUUID
	default:
		return kindText
	}
}

// Coerce converts a cell to the pgx value for a column of dataType. Absent
// cells become NULL. A present value that does not parse as the column's
// type is an error.
func Coerce(dataType string, c table.Cell) (any, error) {
	if !c.Valid {
		return nil, nil
	}
	k := kindOf(dataType)

	var (
		v  any
		ok bool
	)
	switch k {
	case kindInt:
		x := ToPgInt8(c.Value)
		v, ok = x, x.Valid
	case kindNumeric:
		x := ToPgNumeric(c.Value)
		v, ok = x, x.Valid
	case kindFloat:
		x := ToPgFloat8(c.Value)
		v, ok = x, x.Valid
	case kindDate:
		x := ToPgDate(c.Value)
		v, ok = x, x.Valid
	case kindTimestamp:
		x := ToPgTimestamp(c.Value)
		v, ok = x, x.Valid
	case kindTimestamptz:
		x := ToPgTimestamptz(c.Value)
		v, ok = x, x.Valid
	case kindBool:
		x := ToPgBool(c.Value)
		v, ok = x, x.Valid
	case kindUUID:
		x := ToPgUUID(c.Value)
		v, ok = x, x.Valid
	default:
		return ToPgText(c.Value), nil
	}
	if !ok {
		return nil, fmt.Errorf("cannot read %q as %s", c.Value, dataType)
	}
	return v, nil
}

// coerceRows converts every row of t to pgx values, using the data type of
// the same-named catalog column. Columns the catalog does not list are sent
// as text.
func coerceRows(entity string, t *table.Table, cols []catalog.Column) ([][]any, error) {
	names := t.Columns()
	types := make([]string, len(names))
	for j, n := range names {
		types[j] = "text"
		if c, ok := catalog.Lookup(cols, n); ok {
			types[j] = c.DataType
		}
	}

	rows := make([][]any, t.Len())
	for i := range rows {
		vals := make([]any, len(names))
		for j, n := range names {
			v, err := Coerce(types[j], t.Cell(i, n))
			if err != nil {
				return nil, importerr.Errorf(importerr.SchemaMismatch, "coerce", entity,
					"row %d column %s: %w", i+1, n, err)
			}
			vals[j] = v
		}
		rows[i] = vals
	}
	return rows, nil
}
