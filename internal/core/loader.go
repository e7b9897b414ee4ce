package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/asvimport/internal/catalog"
	"github.com/JonMunkholm/asvimport/internal/importerr"
	"github.com/JonMunkholm/asvimport/internal/table"
)

// Loader writes transformed tables into the store. All writes go through
// the DBTX it was built with, normally the run's transaction.
type Loader struct {
	db     DBTX
	schema string
	log    *slog.Logger
}

// NewLoader returns a loader writing to tables in schema.
func NewLoader(db DBTX, schema string, logger *slog.Logger) *Loader {
	if schema == "" {
		schema = catalog.DefaultSchema
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, schema: schema, log: logger}
}

func (l *Loader) ident(table string) pgx.Identifier {
	return pgx.Identifier{l.schema, table}
}

// InsertReturning inserts the rows of t one at a time and calls fn with each
// row's index and the key the store assigned to it. It returns the number of
// rows inserted.
func (l *Loader) InsertReturning(ctx context.Context, e Entity, t *table.Table, cols []catalog.Column, fn func(i int, key string) error) (int64, error) {
	rows, err := coerceRows(e.Table, t, cols)
	if err != nil {
		return 0, err
	}
	query := insertQuery(l.ident(e.Table), t.Columns(), e.Key)

	var n int64
	for i, vals := range rows {
		var key string
		if err := l.db.QueryRow(ctx, query, vals...).Scan(&key); err != nil {
			return n, importerr.Wrap(fmt.Errorf("row %d: %w", i+1, err), importerr.LoadFailure, "insert", e.Table)
		}
		n++
		if fn != nil {
			if err := fn(i, key); err != nil {
				return n, err
			}
		}
	}
	l.log.Debug("rows inserted", "table", e.Table, "rows", n)
	return n, nil
}

// CopyAppend bulk-copies the rows of t into the entity's table.
func (l *Loader) CopyAppend(ctx context.Context, e Entity, t *table.Table, cols []catalog.Column) (int64, error) {
	rows, err := coerceRows(e.Table, t, cols)
	if err != nil {
		return 0, err
	}
	n, err := l.db.CopyFrom(ctx, l.ident(e.Table), t.Columns(), pgx.CopyFromRows(rows))
	if err != nil {
		return 0, importerr.Wrap(err, importerr.LoadFailure, "copy", e.Table)
	}
	l.log.Debug("rows copied", "table", e.Table, "rows", n)
	return n, nil
}

// CopyDistinct loads the rows of t that the entity's table does not already
// hold, comparing whole rows. Candidates are staged in a scratch table that
// is recreated on every call and left in place afterwards. It returns the
// number of rows actually inserted.
func (l *Loader) CopyDistinct(ctx context.Context, e Entity, t *table.Table, cols []catalog.Column) (int64, error) {
	rows, err := coerceRows(e.Table, t, cols)
	if err != nil {
		return 0, err
	}

	target := l.ident(e.Table).Sanitize()
	scratch := l.ident(e.ScratchTable())

	// One statement per Exec.
	stmts := []string{
		"DROP TABLE IF EXISTS " + scratch.Sanitize(),
		"CREATE TABLE " + scratch.Sanitize() + " AS SELECT * FROM " + target + " WHERE false",
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(ctx, stmt); err != nil {
			return 0, importerr.Wrap(err, importerr.LoadFailure, "stage", e.Table)
		}
	}

	staged, err := l.db.CopyFrom(ctx, scratch, t.Columns(), pgx.CopyFromRows(rows))
	if err != nil {
		return 0, importerr.Wrap(err, importerr.LoadFailure, "copy", e.ScratchTable())
	}

	tag, err := l.db.Exec(ctx, "INSERT INTO "+target+" SELECT * FROM "+scratch.Sanitize()+" EXCEPT SELECT * FROM "+target)
	if err != nil {
		return 0, importerr.Wrap(err, importerr.LoadFailure, "insert new", e.Table)
	}
	n := tag.RowsAffected()
	l.log.Debug("distinct rows inserted", "table", e.Table, "staged", staged, "new", n)
	return n, nil
}

// insertQuery builds INSERT INTO t (cols) VALUES ($1..) RETURNING key::text.
func insertQuery(t pgx.Identifier, cols []string, key string) string {
	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s::text",
		t.Sanitize(), strings.Join(quoted, ", "), strings.Join(params, ", "), pgx.Identifier{key}.Sanitize())
}
