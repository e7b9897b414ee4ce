package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/asvimport/internal/admin"
	"github.com/JonMunkholm/asvimport/internal/config"
	"github.com/JonMunkholm/asvimport/internal/core"
	"github.com/JonMunkholm/asvimport/internal/logging"
)

type importFlags struct {
	input         string
	encoding      string
	datasetID     string
	providerEmail string
	datasetFile   string
	timeout       time.Duration
}

// apply overrides cfg with every flag set on the command line.
func (f *importFlags) apply(cmd *cobra.Command, cfg *config.ImportConfig) {
	set := cmd.Flags().Changed
	if set("input") {
		cfg.InputDir = f.input
	}
	if set("encoding") {
		cfg.Encoding = f.encoding
	}
	if set("dataset-id") {
		cfg.DatasetID = f.datasetID
	}
	if set("provider-email") {
		cfg.ProviderEmail = f.providerEmail
	}
	if set("dataset-file") {
		cfg.DatasetFile = f.datasetFile
	}
	if set("timeout") {
		cfg.Timeout = f.timeout
	}
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import one dataset from an input directory",
		Long: `Import reads event, occurrence and emof files (.tsv, .txt or .csv) from the
input directory. A wide asv-table file, when present, replaces the occurrence
file. Every table is written in one transaction; on any error nothing is kept.

Exit codes: 0 committed, 1 setup error (nothing written), 2 rolled back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			flags.apply(cmd, &cfg.Import)
			if err := cfg.Import.ResolveDataset(); err != nil {
				return &exitError{code: 1, err: err}
			}

			logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			ctx := logging.WithRunID(cmd.Context(), logging.NewRunID())
			runLog := logging.FromContext(ctx)
			runLog.Debug("configuration loaded", "config", cfg.String())
			if cfg.Import.GeneratedID {
				runLog.Info("no dataset id configured, generated one", "dataset_id", cfg.Import.DatasetID)
			}

			im := core.NewImporter(core.ImportOptions{
				InputDir:      cfg.Import.InputDir,
				Encoding:      cfg.Import.Encoding,
				Schema:        cfg.Database.Schema,
				DatasetID:     cfg.Import.DatasetID,
				ProviderEmail: cfg.Import.ProviderEmail,
				Timeout:       cfg.Import.Timeout,
			}, core.PgConnector{URL: cfg.Database.URL, Timeout: cfg.Database.ConnectTimeout}, logger)
			if cfg.Metrics.TextfilePath != "" {
				im.Metrics = core.NewMetrics()
			}

			report, err := im.Run(ctx)
			writeMetrics(runLog, im.Metrics, cfg.Metrics.TextfilePath)
			if err != nil {
				return &exitError{code: exitCode(report.Outcome, err), err: err}
			}
			printReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "Input directory (default: ASV_INPUT_DIR or .)")
	cmd.Flags().StringVar(&flags.encoding, "encoding", "", "Source file encoding, e.g. mac-roman, latin1 (default: UTF-8)")
	cmd.Flags().StringVar(&flags.datasetID, "dataset-id", "", "Dataset id (default: from dataset file, else generated)")
	cmd.Flags().StringVar(&flags.providerEmail, "provider-email", "", "Data provider email")
	cmd.Flags().StringVar(&flags.datasetFile, "dataset-file", "", "Dataset metadata YAML, relative to the input directory")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Import timeout (0 disables)")
	return cmd
}

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all survey data and restart sequences",
		Long: `Reset truncates dataset and asv with CASCADE, which empties every survey
table, and restarts all sequences at 1. It is never run by import.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return &exitError{code: 1, err: errors.New("refusing to reset without --yes")}
			}
			cfg, err := config.Load()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			logger := logging.FromContext(logging.WithRunID(cmd.Context(), logging.NewRunID()))

			r := admin.NewResetter(core.PgConnector{URL: cfg.Database.URL, Timeout: cfg.Database.ConnectTimeout}, cfg.Database.Schema, logger)
			res, err := r.Reset(cmd.Context())
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "truncated %v, restarted %d sequences\n", res.Truncated, res.Sequences)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting all data")
	return cmd
}

func writeMetrics(logger *slog.Logger, m *core.Metrics, path string) {
	if m == nil || path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		logger.Warn("write metrics textfile", "path", path, "error", err)
	}
}

func printReport(cmd *cobra.Command, r *core.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "dataset %s %s in %s (run %s)\n", r.DatasetID, r.Outcome, r.Duration.Round(time.Millisecond), r.RunID)
	for _, e := range core.Entities() {
		fmt.Fprintf(out, "  %-15s %d\n", e.Table, r.Rows[e.Table])
	}
	sources := make([]string, 0, len(r.Sources))
	for s := range r.Sources {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		fmt.Fprintf(out, "  read %-10s %d rows\n", s, r.Sources[s])
	}
}
