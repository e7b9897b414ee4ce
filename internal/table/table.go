// Package table implements the record loader: it reads delimited text into an
// in-memory [Table] of ordered columns, normalizes column names to lower_snake,
// and marks missing values with an explicit absent cell.
//
// Tables are treated as values. Every operation that changes shape (Project,
// Rename, Drop, Set, AddColumn, Filter, DistinctBy) returns a new Table and leaves
// the receiver untouched, so transformers built on top of this package stay
// pure functions of their inputs.
package table

import (
	"fmt"

	"github.com/JonMunkholm/asvimport/internal/importerr"
)

// Cell is a single table value. An absent cell (a missing-value marker in the
// source, or a column the row does not reach) has Valid == false.
type Cell struct {
	Value string
	Valid bool
}

// Absent is the missing-value cell.
var Absent = Cell{}

// Text returns a present cell holding s.
func Text(s string) Cell {
	return Cell{Value: s, Valid: true}
}

// String returns the value, or "" for an absent cell.
func (c Cell) String() string {
	if !c.Valid {
		return ""
	}
	return c.Value
}

// Row is one record, aligned with the owning table's columns.
type Row []Cell

// Table is an ordered set of named columns over a list of rows.
type Table struct {
	// Name identifies the source (file name or derived entity) in errors and logs.
	Name string

	columns []string
	index   map[string]int
	rows    []Row
}

// New builds a table from column names and rows. Rows shorter than the
// column list are padded with absent cells; longer rows are truncated.
// Column names must be unique; a repeated name shadows the earlier one.
func New(name string, columns []string, rows ...Row) *Table {
	t := &Table{
		Name:    name,
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
		rows:    make([]Row, 0, len(rows)),
	}
	for i, c := range t.columns {
		t.index[c] = i
	}
	for _, r := range rows {
		t.rows = append(t.rows, t.fit(r))
	}
	return t
}

func (t *Table) fit(r Row) Row {
	out := make(Row, len(t.columns))
	copy(out, r)
	return out
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether the table has the named column.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Index returns the position of col, or -1.
func (t *Table) Index(col string) int {
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}

// Cell returns the value at row i, column col. Unknown columns read as absent.
func (t *Table) Cell(i int, col string) Cell {
	j, ok := t.index[col]
	if !ok {
		return Absent
	}
	return t.rows[i][j]
}

// Column returns every cell of col in row order, or nil if col is unknown.
func (t *Table) Column(col string) []Cell {
	j, ok := t.index[col]
	if !ok {
		return nil
	}
	out := make([]Cell, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out
}

// Missing returns the names in cols that the table does not have, in order.
func (t *Table) Missing(cols []string) []string {
	var missing []string
	for _, c := range cols {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Project returns a table holding exactly cols, in that order.
// It fails with SchemaMismatch when any of cols is not present.
func (t *Table) Project(cols []string) (*Table, error) {
	if missing := t.Missing(cols); len(missing) > 0 {
		return nil, importerr.Errorf(importerr.SchemaMismatch, "project", t.Name,
			"source lacks columns %v", missing)
	}
	pos := make([]int, len(cols))
	for k, c := range cols {
		pos[k] = t.index[c]
	}
	out := New(t.Name, cols)
	out.rows = make([]Row, len(t.rows))
	for i, r := range t.rows {
		nr := make(Row, len(cols))
		for k, j := range pos {
			nr[k] = r[j]
		}
		out.rows[i] = nr
	}
	return out, nil
}

// Rename returns a table with column from renamed to to. If to already
// exists it is replaced by the renamed column. Renaming an unknown column is
// a no-op.
func (t *Table) Rename(from, to string) *Table {
	if from == to || !t.Has(from) {
		return t.Clone()
	}
	src := t
	if t.Has(to) {
		src = t.Drop(to)
	}
	cols := src.Columns()
	cols[src.index[from]] = to
	out := New(t.Name, cols)
	out.rows = cloneRows(src.rows)
	return out
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(cols ...string) *Table {
	skip := make(map[string]bool, len(cols))
	for _, c := range cols {
		skip[c] = true
	}
	keep := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if !skip[c] {
			keep = append(keep, c)
		}
	}
	out, _ := t.Project(keep)
	return out
}

// Set returns a table where col holds fn(i) for every row i. A new column is
// appended; an existing one is replaced in place. The first error returned by
// fn aborts the operation.
func (t *Table) Set(col string, fn func(i int) (Cell, error)) (*Table, error) {
	cols := t.Columns()
	j, exists := t.index[col]
	if !exists {
		cols = append(cols, col)
		j = len(cols) - 1
	}
	out := New(t.Name, cols)
	out.rows = make([]Row, len(t.rows))
	for i, r := range t.rows {
		nr := make(Row, len(cols))
		copy(nr, r)
		c, err := fn(i)
		if err != nil {
			return nil, err
		}
		nr[j] = c
		out.rows[i] = nr
	}
	return out, nil
}

// AddColumn returns a table with col set to v on every row.
func (t *Table) AddColumn(col string, v Cell) *Table {
	out, _ := t.Set(col, func(int) (Cell, error) { return v, nil })
	return out
}

// Filter returns a table with the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) (bool, error)) (*Table, error) {
	out := New(t.Name, t.columns)
	for i, r := range t.rows {
		ok, err := keep(i)
		if err != nil {
			return nil, err
		}
		if ok {
			out.rows = append(out.rows, append(Row(nil), r...))
		}
	}
	return out, nil
}

// DistinctBy returns a table holding the first row for each distinct value
// of col. Absent values form their own group. Unknown columns keep all rows.
func (t *Table) DistinctBy(col string) *Table {
	j, ok := t.index[col]
	if !ok {
		return t.Clone()
	}
	seen := make(map[Cell]bool, len(t.rows))
	out := New(t.Name, t.columns)
	for _, r := range t.rows {
		if seen[r[j]] {
			continue
		}
		seen[r[j]] = true
		out.rows = append(out.rows, append(Row(nil), r...))
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.Name, t.columns)
	out.rows = cloneRows(t.rows)
	return out
}

// Append adds a row, padding or truncating it to the column count.
func (t *Table) Append(r Row) {
	t.rows = append(t.rows, t.fit(r))
}

// String is a short description for logs.
func (t *Table) String() string {
	return fmt.Sprintf("%s(%d cols, %d rows)", t.Name, len(t.columns), len(t.rows))
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = append(Row(nil), r...)
	}
	return out
}
