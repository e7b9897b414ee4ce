package core

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/asvimport/internal/catalog"
	"github.com/JonMunkholm/asvimport/internal/importerr"
	"github.com/JonMunkholm/asvimport/internal/keys"
	"github.com/JonMunkholm/asvimport/internal/logging"
	"github.com/JonMunkholm/asvimport/internal/table"
	"github.com/JonMunkholm/asvimport/internal/transform"
)

// Source file base names in the input directory.
const (
	SourceEvent      = "event"
	SourceOccurrence = "occurrence"
	SourceASVTable   = "asv-table"
	SourceEmof       = "emof"
)

// SourceExtensions are tried in order when locating a source file.
var SourceExtensions = []string{".tsv", ".txt", ".csv"}

// ImportOptions configures one import run.
type ImportOptions struct {
	InputDir      string
	Encoding      string // source text encoding label; empty means UTF-8
	Schema        string // target schema; empty means public
	DatasetID     string
	ProviderEmail string
	Timeout       time.Duration // whole-run limit; zero means none
}

// Sources are the parsed input tables of a run.
type Sources struct {
	Event      *table.Table
	Occurrence *table.Table
	Emof       *table.Table

	// FromASVTable is set when Occurrence was melted from a wide asv-table.
	FromASVTable bool
}

// FindSource returns the path of the first existing dir/name+ext.
func FindSource(dir, name string) (string, bool) {
	for _, ext := range SourceExtensions {
		p := filepath.Join(dir, name+ext)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

// ReadSources locates and parses the input files. A wide asv-table, when
// present, is melted and takes the place of the occurrence file.
func ReadSources(opts ImportOptions, logger *slog.Logger) (*Sources, error) {
	if logger == nil {
		logger = slog.Default()
	}
	read := func(name string, raw bool) (*table.Table, error) {
		path, ok := FindSource(opts.InputDir, name)
		if !ok {
			return nil, importerr.Errorf(importerr.SourceUnavailable, "open",
				filepath.Join(opts.InputDir, name+SourceExtensions[0]), "source file not found")
		}
		t, err := table.Load(path, table.Options{Encoding: opts.Encoding, RawHeaders: raw})
		if err != nil {
			return nil, err
		}
		logger.Debug("source read", "file", t.Name, "rows", t.Len(), "columns", len(t.Columns()))
		return t, nil
	}

	var (
		src Sources
		err error
	)
	if src.Event, err = read(SourceEvent, false); err != nil {
		return nil, err
	}

	if _, ok := FindSource(opts.InputDir, SourceASVTable); ok {
		wide, err := read(SourceASVTable, true)
		if err != nil {
			return nil, err
		}
		if src.Occurrence, err = table.MeltASVTable(wide); err != nil {
			return nil, err
		}
		src.Occurrence.Name = SourceASVTable
		src.FromASVTable = true
		logger.Info("replacing occurrence source with melted asv-table",
			"samples", len(wide.Columns())-len(table.ASVTableIDColumns), "occurrences", src.Occurrence.Len())
	} else if src.Occurrence, err = read(SourceOccurrence, false); err != nil {
		return nil, err
	}

	if src.Emof, err = read(SourceEmof, false); err != nil {
		return nil, err
	}
	return &src, nil
}

// Importer runs the import pipeline.
type Importer struct {
	opts      ImportOptions
	connector Connector
	log       *slog.Logger

	// Metrics, when set, observes every finished run.
	Metrics *Metrics

	now func() time.Time
}

// NewImporter returns an importer that opens store sessions via connector.
func NewImporter(opts ImportOptions, connector Connector, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		opts:      opts,
		connector: connector,
		log:       logger,
		now:       time.Now,
	}
}

// Run reads every source, then loads all entities inside one transaction.
// Source and configuration problems are reported before the store is
// contacted. The returned report is never nil.
func (im *Importer) Run(ctx context.Context) (*Report, error) {
	runID := logging.RunID(ctx)
	if runID == "" {
		runID = logging.NewRunID()
		ctx = logging.WithRunID(ctx, runID)
	}
	log := logging.With(ctx, im.log)
	start := im.now()

	report := &Report{
		RunID:     runID,
		DatasetID: im.opts.DatasetID,
		Outcome:   OutcomeNotStarted,
		Rows:      make(map[string]int64),
		Sources:   make(map[string]int),
	}
	defer func() {
		report.Duration = im.now().Sub(start)
		im.Metrics.Observe(report)
	}()

	if im.opts.DatasetID == "" {
		return report, importerr.New(importerr.ConfigError, "import", "", "dataset id is empty")
	}
	if im.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, im.opts.Timeout)
		defer cancel()
	}

	log.Info("import started", "input", im.opts.InputDir, "dataset_id", im.opts.DatasetID)

	src, err := ReadSources(im.opts, log)
	if err != nil {
		log.Error("read sources", "error", err)
		return report, err
	}
	report.Sources[SourceEvent] = src.Event.Len()
	occSource := SourceOccurrence
	if src.FromASVTable {
		occSource = SourceASVTable
	}
	report.Sources[occSource] = src.Occurrence.Len()
	report.Sources[SourceEmof] = src.Emof.Len()

	coord := NewCoordinator(im.connector, log)
	outcome, err := coord.Run(ctx, func(ctx context.Context, tx Tx) error {
		return im.load(ctx, tx, src, report, log)
	})
	report.Outcome = outcome
	if outcome != OutcomeCommitted {
		clear(report.Rows)
	}
	if err != nil {
		log.Error("import failed", "outcome", outcome, "error", err)
		return report, err
	}

	log.Info("import completed",
		"dataset_id", report.DatasetID,
		"events", report.Rows[EntitySamplingEvent],
		"occurrences", report.Rows[EntityOccurrence],
		"new_asvs", report.Rows[EntityASV],
		"duration", im.now().Sub(start),
	)
	return report, nil
}

// load writes every entity in dependency order.
func (im *Importer) load(ctx context.Context, tx Tx, src *Sources, report *Report, log *slog.Logger) error {
	cat := catalog.New(tx, im.opts.Schema)
	loader := NewLoader(tx, im.opts.Schema, log)
	resolver := keys.NewAliasResolver()

	columns := func(entity string) ([]catalog.Column, error) {
		return cat.Columns(ctx, entity)
	}

	// Dataset
	dsCols, err := columns(EntityDataset)
	if err != nil {
		return err
	}
	dsEntity, err := lookup(EntityDataset)
	if err != nil {
		return err
	}
	ds := im.datasetTable(dsCols)
	n, err := loader.InsertReturning(ctx, dsEntity, ds, dsCols, func(_ int, key string) error {
		report.DatasetID = key
		return nil
	})
	if err != nil {
		return err
	}
	report.Rows[EntityDataset] = n
	logging.WithFields(ctx, im.log, "entity", EntityDataset).Info("dataset inserted", "dataset_id", report.DatasetID)

	// Sampling events register their aliases; nothing downstream runs
	// until the resolver is sealed.
	evCols, err := columns(EntitySamplingEvent)
	if err != nil {
		return err
	}
	events, err := transform.Events(src.Event, report.DatasetID, evCols)
	if err != nil {
		return err
	}
	evEntity, err := lookup(EntitySamplingEvent)
	if err != nil {
		return err
	}
	aliases := events.Column(transform.ColEventAlias)
	n, err = loader.InsertReturning(ctx, evEntity, events, evCols, func(i int, key string) error {
		return resolver.Register(aliases[i].Value, key)
	})
	if err != nil {
		return err
	}
	resolver.Seal()
	report.Rows[EntitySamplingEvent] = n
	logging.WithFields(ctx, im.log, "entity", EntitySamplingEvent).Info("events inserted", "rows", n)

	// Mixs
	mixsCols, err := columns(EntityMixs)
	if err != nil {
		return err
	}
	mixs, err := transform.Mixs(src.Event, resolver, mixsCols)
	if err != nil {
		return err
	}
	if err := im.copy(ctx, loader, EntityMixs, mixs, mixsCols, report); err != nil {
		return err
	}

	// eMoF
	emofCols, err := columns(EntityEmof)
	if err != nil {
		return err
	}
	emof, err := transform.Emof(src.Emof, resolver, emofCols)
	if err != nil {
		return err
	}
	if err := im.copy(ctx, loader, EntityEmof, emof, emofCols, report); err != nil {
		return err
	}

	// ASVs, then the occurrences referencing them
	occCols, err := columns(EntityOccurrence)
	if err != nil {
		return err
	}
	asvCols, err := columns(EntityASV)
	if err != nil {
		return err
	}
	occ, asv, err := transform.SplitOccurrences(src.Occurrence, resolver, occCols, asvCols)
	if err != nil {
		return err
	}
	if err := im.copy(ctx, loader, EntityASV, asv, asvCols, report); err != nil {
		return err
	}
	return im.copy(ctx, loader, EntityOccurrence, occ, occCols, report)
}

// copy loads t with the entity's bulk strategy and records the row count.
func (im *Importer) copy(ctx context.Context, loader *Loader, entity string, t *table.Table, cols []catalog.Column, report *Report) error {
	e, err := lookup(entity)
	if err != nil {
		return err
	}
	step := logging.WithFields(ctx, im.log, "entity", entity, "strategy", e.Strategy.String())
	step.Debug("loading rows", "candidates", t.Len())

	var n int64
	switch e.Strategy {
	case StrategyCopyDistinct:
		n, err = loader.CopyDistinct(ctx, e, t, cols)
	case StrategyCopyAppend:
		n, err = loader.CopyAppend(ctx, e, t, cols)
	default:
		return importerr.Errorf(importerr.Internal, "load", entity, "strategy %s is not a bulk strategy", e.Strategy)
	}
	if err != nil {
		return err
	}
	report.Rows[entity] = n
	step.Info("rows loaded", "candidates", t.Len(), "rows", n)
	return nil
}

// datasetTable builds the single dataset row, limited to the columns the
// dataset table has.
func (im *Importer) datasetTable(cols []catalog.Column) *table.Table {
	values := map[string]table.Cell{
		"dataset_id":     table.Text(im.opts.DatasetID),
		"provider_email": table.ParseCell(im.opts.ProviderEmail),
		"insertion_time": table.Text(im.now().UTC().Format(time.RFC3339Nano)),
	}
	var (
		names []string
		row   table.Row
	)
	for _, c := range cols {
		if v, ok := values[c.Name]; ok {
			names = append(names, c.Name)
			row = append(row, v)
		}
	}
	return table.New(EntityDataset, names, row)
}
