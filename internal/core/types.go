package core

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the statement surface the loader needs.
// Satisfied by both *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Tx is a DBTX inside an open transaction.
type Tx interface {
	DBTX
	Commit(context.Context) error
	Rollback(context.Context) error
}

// Conn is one store session.
type Conn interface {
	Begin(context.Context) (Tx, error)
	Close(context.Context) error
}

// Connector opens store sessions.
type Connector interface {
	Connect(context.Context) (Conn, error)
}

// PgConnector dials PostgreSQL with pgx.
type PgConnector struct {
	URL     string
	Timeout time.Duration // bounds connection setup only; zero means no limit
}

// Connect opens a single connection. Import runs are sequential and hold
// one transaction, so no pool is used.
func (c PgConnector) Connect(ctx context.Context) (Conn, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	conn, err := pgx.Connect(ctx, c.URL)
	if err != nil {
		return nil, err
	}
	return pgConn{conn: conn}, nil
}

type pgConn struct {
	conn *pgx.Conn
}

func (c pgConn) Begin(ctx context.Context) (Tx, error) {
	return c.conn.Begin(ctx)
}

func (c pgConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// Outcome is the final result of an import run.
type Outcome string

const (
	// OutcomeNotStarted means the store was never reached or no transaction
	// could be opened. No data was touched.
	OutcomeNotStarted Outcome = "not_started"
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
)

// Report summarizes an import run.
type Report struct {
	RunID     string
	DatasetID string
	Outcome   Outcome
	Rows      map[string]int64 // rows persisted per target table; empty unless committed
	Sources   map[string]int   // rows read per source file
	Duration  time.Duration
}
