package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/asvimport/internal/importerr"
)

// ReleaseTimeout bounds rollback and close once the run's own context is
// gone.
var ReleaseTimeout = 10 * time.Second

// State is a coordinator lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateImporting
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateImporting:
		return "importing"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Coordinator owns one connection and one transaction for the duration of
// a run. Either every write made inside Run is committed or none is.
type Coordinator struct {
	connector Connector
	log       *slog.Logger

	mu      sync.Mutex
	state   State
	history []State
}

// NewCoordinator returns a coordinator in StateDisconnected.
func NewCoordinator(connector Connector, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		connector: connector,
		log:       logger,
		history:   []State{StateDisconnected},
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns every state entered so far, starting with StateDisconnected.
func (c *Coordinator) History() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]State(nil), c.history...)
}

func (c *Coordinator) enter(s State) {
	c.mu.Lock()
	from := c.state
	c.state = s
	c.history = append(c.history, s)
	c.mu.Unlock()
	c.log.Debug("transaction state", "from", from.String(), "to", s.String())
}

// Run connects, opens a transaction and calls fn with it. If fn returns an
// error, panics, or ctx is cancelled, the transaction is rolled back and
// the outcome is OutcomeRolledBack. Connection or begin failures return
// OutcomeNotStarted with a ConnectionFailure error. The connection is
// closed exactly once on every path that opened it.
func (c *Coordinator) Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (Outcome, error) {
	conn, err := c.connector.Connect(ctx)
	if err != nil {
		return OutcomeNotStarted, importerr.Wrap(err, importerr.ConnectionFailure, "connect", "")
	}
	c.enter(StateConnected)
	defer c.release(ctx, conn)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return OutcomeNotStarted, importerr.Wrap(err, importerr.ConnectionFailure, "begin", "")
	}
	c.enter(StateImporting)

	if err := c.call(ctx, tx, fn); err != nil {
		c.rollback(ctx, tx, err)
		return OutcomeRolledBack, err
	}
	if err := ctx.Err(); err != nil {
		err = importerr.Wrap(err, importerr.LoadFailure, "import", "")
		c.rollback(ctx, tx, err)
		return OutcomeRolledBack, err
	}
	if err := tx.Commit(ctx); err != nil {
		err = importerr.Wrap(err, importerr.LoadFailure, "commit", "")
		c.rollback(ctx, tx, err)
		return OutcomeRolledBack, err
	}
	c.enter(StateCommitted)
	c.log.Info("transaction committed")
	return OutcomeCommitted, nil
}

// call runs fn, turning a panic into an Internal error.
func (c *Coordinator) call(ctx context.Context, tx Tx, fn func(context.Context, Tx) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = importerr.Errorf(importerr.Internal, "import", "", "panic: %v", r)
		}
	}()
	return fn(ctx, tx)
}

func (c *Coordinator) rollback(ctx context.Context, tx Tx, cause error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ReleaseTimeout)
	defer cancel()
	if err := tx.Rollback(rctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		c.log.Warn("rollback failed", "error", err)
	}
	c.enter(StateRolledBack)
	c.log.Warn("transaction rolled back", "error", cause)
}

func (c *Coordinator) release(ctx context.Context, conn Conn) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ReleaseTimeout)
	defer cancel()
	if err := conn.Close(cctx); err != nil {
		c.log.Warn("close connection", "error", err)
	}
	c.enter(StateDisconnected)
}
