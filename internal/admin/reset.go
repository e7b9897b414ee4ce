// Package admin provides administrative operations for database management.
package admin

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/asvimport/internal/catalog"
	"github.com/JonMunkholm/asvimport/internal/core"
	"github.com/JonMunkholm/asvimport/internal/importerr"
)

// ResetTimeout is the maximum duration for database reset operations.
const ResetTimeout = 30 * time.Second

const restartSequences = `
SELECT setval(c.oid, 1, false)
FROM pg_class c JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind = 'S' AND n.nspname = $1`

// ResetResult reports what a reset changed.
type ResetResult struct {
	Truncated []string // tables truncated, in order
	Sequences int64    // sequences restarted at 1
}

// Resetter empties the survey database.
type Resetter struct {
	connector core.Connector
	schema    string
	log       *slog.Logger
}

// NewResetter returns a resetter working on tables in schema.
func NewResetter(connector core.Connector, schema string, logger *slog.Logger) *Resetter {
	if schema == "" {
		schema = catalog.DefaultSchema
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resetter{connector: connector, schema: schema, log: logger}
}

// Reset truncates every root table with CASCADE, which empties all
// dependent tables too, and restarts the schema's sequences. Scratch tables
// that were never created are skipped. Everything happens in one
// transaction. This is a destructive operation.
func (r *Resetter) Reset(ctx context.Context) (*ResetResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	res := &ResetResult{}
	coord := core.NewCoordinator(r.connector, r.log)
	_, err := coord.Run(ctx, func(ctx context.Context, tx core.Tx) error {
		for _, name := range core.ResetTargets() {
			ident := pgx.Identifier{r.schema, name}

			var exists bool
			if err := tx.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", ident.Sanitize()).Scan(&exists); err != nil {
				return importerr.Wrap(err, importerr.LoadFailure, "lookup", name)
			}
			if !exists {
				r.log.Debug("skipping missing table", "table", name)
				continue
			}
			if _, err := tx.Exec(ctx, "TRUNCATE "+ident.Sanitize()+" CASCADE"); err != nil {
				return importerr.Wrap(err, importerr.LoadFailure, "truncate", name)
			}
			res.Truncated = append(res.Truncated, name)
		}

		tag, err := tx.Exec(ctx, restartSequences, r.schema)
		if err != nil {
			return importerr.Wrap(err, importerr.LoadFailure, "restart sequences", r.schema)
		}
		res.Sequences = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("database reset", "truncated", res.Truncated, "sequences", res.Sequences)
	return res, nil
}
