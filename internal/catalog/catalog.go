// Package catalog reads target table column lists from the store's
// information schema. Transformers project source tables onto these lists,
// and the loader uses the data types to coerce cells.
package catalog

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/asvimport/internal/importerr"
)

const columnsQuery = `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

// DefaultSchema is used when New is given an empty schema name.
const DefaultSchema = "public"

// Querier is the subset of pgx.Conn and pgx.Tx used by the catalog.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Column is one target column.
type Column struct {
	Name     string
	DataType string // information_schema data_type, e.g. "text", "bigint"
}

// Catalog caches column lists per table for the life of one import run.
type Catalog struct {
	q      Querier
	schema string

	mu    sync.Mutex
	cache map[string][]Column
}

// New returns a catalog reading tables in schema.
func New(q Querier, schema string) *Catalog {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Catalog{q: q, schema: schema, cache: make(map[string][]Column)}
}

// Columns returns the columns of table in ordinal order. A table with no
// columns does not exist and is reported as SchemaMismatch.
func (c *Catalog) Columns(ctx context.Context, table string) ([]Column, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cols, ok := c.cache[table]; ok {
		return append([]Column(nil), cols...), nil
	}

	rows, err := c.q.Query(ctx, columnsQuery, c.schema, table)
	if err != nil {
		return nil, importerr.Wrap(err, importerr.LoadFailure, "read columns", table)
	}
	defer rows.Close()

	var cols []Column
	seen := make(map[string]bool)
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Name, &col.DataType); err != nil {
			return nil, importerr.Wrap(err, importerr.LoadFailure, "read columns", table)
		}
		if seen[col.Name] {
			continue
		}
		seen[col.Name] = true
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, importerr.Wrap(err, importerr.LoadFailure, "read columns", table)
	}
	if len(cols) == 0 {
		return nil, importerr.Errorf(importerr.SchemaMismatch, "read columns", table,
			"no such table in schema %q", c.schema)
	}

	c.cache[table] = cols
	return append([]Column(nil), cols...), nil
}

// Names returns the column names in order.
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// Without returns cols minus the named columns, preserving order.
func Without(cols []Column, names ...string) []Column {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := make([]Column, 0, len(cols))
	for _, c := range cols {
		if !skip[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// Lookup returns the column called name.
func Lookup(cols []Column, name string) (Column, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
