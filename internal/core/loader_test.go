package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/asvimport/internal/catalog"
	"github.com/JonMunkholm/asvimport/internal/importerr"
	"github.com/JonMunkholm/asvimport/internal/table"
)

var asvCatalog = []catalog.Column{
	{Name: "asv_id", DataType: "text"},
	{Name: "asv_sequence", DataType: "text"},
	{Name: "previous_identifications", DataType: "text"},
}

func beginTx(t *testing.T, store *fakeStore) Tx {
	t.Helper()
	conn, err := store.Connect(context.Background())
	require.NoError(t, err)
	tx, err := conn.Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func mustEntity(t *testing.T, table string) Entity {
	t.Helper()
	e, err := lookup(table)
	require.NoError(t, err)
	return e
}

func asvRows(seqs ...string) *table.Table {
	rows := make([]table.Row, len(seqs))
	for i, s := range seqs {
		rows[i] = table.Row{table.Text("ASV:" + s), table.Text(s), table.Text("Bacteria|||||||")}
	}
	return table.New("asv", []string{"asv_id", "asv_sequence", "previous_identifications"}, rows...)
}

func TestLoader_CopyDistinctIsIdempotent(t *testing.T) {
	store := newSurveyStore()
	tx := beginTx(t, store)
	l := NewLoader(tx, "", nil)
	e := mustEntity(t, EntityASV)

	n, err := l.CopyDistinct(context.Background(), e, asvRows("AC", "GT", "AC"), asvCatalog)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = l.CopyDistinct(context.Background(), e, asvRows("AC", "GT", "TT"), asvCatalog)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the new sequence is inserted")

	require.NoError(t, tx.Commit(context.Background()))
	assert.Equal(t, 3, store.count("asv"))
	assert.Equal(t, 3, store.count("temp_asv"), "scratch table keeps the last staged batch")
}

func TestLoader_CopyDistinctStatements(t *testing.T) {
	store := newSurveyStore()
	l := NewLoader(beginTx(t, store), "", nil)

	_, err := l.CopyDistinct(context.Background(), mustEntity(t, EntityASV), asvRows("AC"), asvCatalog)
	require.NoError(t, err)

	assert.Equal(t, []string{
		`DROP TABLE IF EXISTS "public"."temp_asv"`,
		`CREATE TABLE "public"."temp_asv" AS SELECT * FROM "public"."asv" WHERE false`,
		`COPY temp_asv`,
		`INSERT INTO "public"."asv" SELECT * FROM "public"."temp_asv" EXCEPT SELECT * FROM "public"."asv"`,
	}, store.statements)
}

func TestLoader_CoercionFailureWritesNothing(t *testing.T) {
	store := newSurveyStore()
	l := NewLoader(beginTx(t, store), "", nil)
	cols := []catalog.Column{
		{Name: "occurrence_id", DataType: "text"},
		{Name: "organism_quantity", DataType: "integer"},
	}
	occ := table.New("occurrence", []string{"occurrence_id", "organism_quantity"},
		table.Row{table.Text("o1"), table.Text("many")})

	_, err := l.CopyAppend(context.Background(), mustEntity(t, EntityOccurrence), occ, cols)

	require.Error(t, err)
	assert.ErrorIs(t, err, importerr.SchemaMismatch)
	assert.Contains(t, err.Error(), "organism_quantity")
	assert.Empty(t, store.statements)
}

func TestLoader_CopyAppendWrapsStoreErrors(t *testing.T) {
	store := newSurveyStore()
	store.copyErr["asv"] = errors.New("disk full")
	l := NewLoader(beginTx(t, store), "", nil)

	_, err := l.CopyAppend(context.Background(), mustEntity(t, EntityASV), asvRows("AC"), asvCatalog)

	assert.ErrorIs(t, err, importerr.LoadFailure)
	assert.Contains(t, err.Error(), "disk full")
}

func TestLoader_InsertReturning(t *testing.T) {
	store := newSurveyStore()
	l := NewLoader(beginTx(t, store), "", nil)
	cols := []catalog.Column{{Name: "dataset_id", DataType: "text"}}
	ds := table.New("dataset", []string{"dataset_id"}, table.Row{table.Text("DS1")})

	var keys []string
	n, err := l.InsertReturning(context.Background(), mustEntity(t, EntityDataset), ds, cols, func(i int, key string) error {
		keys = append(keys, key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []string{"DS1"}, keys)

	_, err = l.InsertReturning(context.Background(), mustEntity(t, EntityDataset), ds, cols, nil)
	assert.ErrorIs(t, err, importerr.LoadFailure)
	assert.Equal(t, "LOAD001", MapError(err).Code)
}

func TestLookup_UnknownTable(t *testing.T) {
	_, err := lookup("taxon")
	assert.ErrorIs(t, err, importerr.Internal)
	assert.Contains(t, err.Error(), "taxon")

	e, err := lookup(EntityEmof)
	require.NoError(t, err)
	assert.Equal(t, StrategyCopyAppend, e.Strategy)
}

func TestInsertQuery(t *testing.T) {
	got := insertQuery(pgx.Identifier{"public", "sampling_event"}, []string{"event_id", "country"}, "event_id")
	assert.Equal(t,
		`INSERT INTO "public"."sampling_event" ("event_id", "country") VALUES ($1, $2) RETURNING "event_id"::text`,
		got)
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.Observe(&Report{
		Outcome: OutcomeCommitted,
		Rows:    map[string]int64{EntityOccurrence: 12},
		Sources: map[string]int{SourceEvent: 3},
	})

	path := filepath.Join(t.TempDir(), "asvimport.prom")
	require.NoError(t, m.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, `asvimport_rows_loaded_total{entity="occurrence"} 12`)
	assert.Contains(t, out, `asvimport_source_rows_read_total{source="event"} 3`)
	assert.Contains(t, out, `asvimport_last_run_outcome{outcome="committed"} 1`)
	assert.True(t, strings.Contains(out, `asvimport_last_run_outcome{outcome="rolled_back"} 0`))

	m.Observe(&Report{
		Outcome: OutcomeRolledBack,
		Rows:    map[string]int64{EntityOccurrence: 5},
	})
	require.NoError(t, m.WriteTextfile(path))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `asvimport_rows_loaded_total{entity="occurrence"} 12`, "rolled back rows are not counted")

	var nilMetrics *Metrics
	nilMetrics.Observe(&Report{}) // no-op
}
