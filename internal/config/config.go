// Package config provides centralized configuration for asvimport.
// It loads settings from environment variables with defaults and validates
// them up front so a bad setup fails before any file or database access.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// ConnectTimeout bounds establishing the connection (default: 10s)
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`

	// Schema holds the target tables (default: public)
	Schema string `env:"DB_SCHEMA" default:"public"`
}

// ImportConfig holds the settings of one import run.
type ImportConfig struct {
	// InputDir contains event, occurrence (or asv-table) and emof files (default: .)
	InputDir string `env:"ASV_INPUT_DIR" default:"."`

	// Encoding of the source files, e.g. mac-roman or latin1 (default: UTF-8)
	Encoding string `env:"ASV_ENCODING"`

	DatasetID     string `env:"ASV_DATASET_ID"`
	ProviderEmail string `env:"ASV_PROVIDER_EMAIL"`

	// DatasetFile is a YAML file with dataset metadata, relative to InputDir
	// unless absolute (default: dataset.yaml). Missing is fine.
	DatasetFile string `env:"ASV_DATASET_FILE" default:"dataset.yaml"`

	// Timeout bounds the whole import (default: 30m, 0 disables)
	Timeout time.Duration `env:"ASV_IMPORT_TIMEOUT" default:"30m"`

	// GeneratedID is set when DatasetID was generated by ResolveDataset.
	GeneratedID bool
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds run metrics settings.
type MetricsConfig struct {
	// TextfilePath is where run metrics are written for the node-exporter
	// textfile collector. Empty disables metrics output.
	TextfilePath string `env:"METRICS_TEXTFILE"`
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], Schema: %q, ConnectTimeout: %s}, ",
		c.Database.Schema, c.Database.ConnectTimeout))
	b.WriteString(fmt.Sprintf("Import: {InputDir: %q, Encoding: %q, DatasetID: %q, Timeout: %s}, ",
		c.Import.InputDir, c.Import.Encoding, c.Import.DatasetID, c.Import.Timeout))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}, ",
		c.Logging.Level, c.Logging.Format))
	b.WriteString(fmt.Sprintf("Metrics: {TextfilePath: %q}", c.Metrics.TextfilePath))
	b.WriteString("}")
	return b.String()
}
