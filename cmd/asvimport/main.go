package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/asvimport/internal/core"
)

var version = "0.1.0"

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a run's outcome to the process exit code: 0 committed,
// 2 rolled back, 1 for everything that failed before a transaction existed.
func exitCode(outcome core.Outcome, err error) int {
	switch {
	case err == nil && outcome == core.OutcomeCommitted:
		return 0
	case outcome == core.OutcomeRolledBack:
		return 2
	default:
		return 1
	}
}

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err == nil {
		slog.Debug("loaded .env file (overwriting existing env vars)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	reportError(os.Stderr, err)
	code := 1
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}
	os.Exit(code)
}

// reportError writes the technical error and, when one is known, the coded
// message telling the user what to do about it.
func reportError(w io.Writer, err error) {
	ue := core.NewUserError(err)
	if ue == nil {
		return
	}
	fmt.Fprintln(w, "error:", ue.Technical)
	if core.IsUserFacing(ue) {
		fmt.Fprintln(w, core.FormatUserError(ue))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "asvimport",
		Short: "Load ASV survey data into the survey database",
		Long: `asvimport reads event, occurrence (or asv-table) and emof files from an input
directory and loads them into PostgreSQL in a single transaction.

Configuration comes from the environment and an optional .env file; see
DATABASE_URL, ASV_INPUT_DIR, ASV_DATASET_ID and LOG_LEVEL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newImportCmd(), newResetCmd(), &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "asvimport v%s\n", version)
		},
	})
	return root
}
