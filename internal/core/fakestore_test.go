package core

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeStore is an in-memory stand-in for the survey database. It keeps
// committed tables, hands out transactions working on a copy, and records
// every lifecycle call so tests can assert on them.
type fakeStore struct {
	mu     sync.Mutex
	tables map[string]*fakeTable

	connects  int
	closes    int
	begins    int
	commits   int
	rollbacks int

	connectErr error
	beginErr   error
	commitErr  error
	copyErr    map[string]error // table -> CopyFrom failure
	statements []string
}

type fakeColumn struct {
	name     string
	dataType string
}

type fakeTable struct {
	cols []fakeColumn
	key  string
	fks  map[string]string // column -> parent table
	rows [][]any
}

func (t *fakeTable) clone() *fakeTable {
	out := &fakeTable{cols: t.cols, key: t.key, fks: t.fks}
	for _, r := range t.rows {
		out.rows = append(out.rows, append([]any(nil), r...))
	}
	return out
}

func (t *fakeTable) index(col string) int {
	for i, c := range t.cols {
		if c.name == col {
			return i
		}
	}
	return -1
}

func textCols(names ...string) []fakeColumn {
	out := make([]fakeColumn, len(names))
	for i, n := range names {
		out[i] = fakeColumn{name: n, dataType: "text"}
	}
	return out
}

// newSurveyStore returns a store with the six survey tables.
func newSurveyStore() *fakeStore {
	return &fakeStore{
		copyErr: make(map[string]error),
		tables: map[string]*fakeTable{
			"dataset": {
				cols: []fakeColumn{
					{"dataset_id", "text"},
					{"provider_email", "character varying"},
					{"insertion_time", "timestamp without time zone"},
				},
				key: "dataset_id",
			},
			"sampling_event": {
				cols: []fakeColumn{
					{"event_id", "text"},
					{"event_id_alias", "text"},
					{"dataset_id", "text"},
					{"event_date", "date"},
					{"country", "text"},
				},
				key: "event_id",
				fks: map[string]string{"dataset_id": "dataset"},
			},
			"mixs": {
				cols: textCols("event_id", "env_material"),
				key:  "event_id",
				fks:  map[string]string{"event_id": "sampling_event"},
			},
			"emof": {
				cols: []fakeColumn{
					{"measurement_id", "text"},
					{"event_id", "text"},
					{"measurement_type", "text"},
					{"measurement_value", "numeric"},
				},
				key: "measurement_id",
				fks: map[string]string{"event_id": "sampling_event"},
			},
			"asv": {
				cols: textCols("asv_id", "asv_sequence", "previous_identifications"),
				key:  "asv_id",
			},
			"occurrence": {
				cols: []fakeColumn{
					{"occurrence_id", "text"},
					{"event_id", "text"},
					{"asv_id", "text"},
					{"organism_quantity", "integer"},
				},
				key: "occurrence_id",
				fks: map[string]string{"event_id": "sampling_event", "asv_id": "asv"},
			},
		},
	}
}

// count returns the committed row count of table.
func (s *fakeStore) count(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[table]; ok {
		return len(t.rows)
	}
	return 0
}

// column returns the committed values of col in table, rendered as strings.
func (s *fakeStore) column(table, col string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables[table]
	j := t.index(col)
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = render(r[j])
	}
	return out
}

func (s *fakeStore) Connect(context.Context) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	if s.connectErr != nil {
		return nil, s.connectErr
	}
	return &fakeConn{store: s}, nil
}

type fakeConn struct {
	store *fakeStore
}

func (c *fakeConn) Begin(context.Context) (Tx, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	work := make(map[string]*fakeTable, len(s.tables))
	for name, t := range s.tables {
		work[name] = t.clone()
	}
	return &fakeTx{store: s, tables: work}, nil
}

func (c *fakeConn) Close(context.Context) error {
	c.store.mu.Lock()
	c.store.closes++
	c.store.mu.Unlock()
	return nil
}

// fakeTx applies statements to a private copy of the store's tables.
type fakeTx struct {
	store  *fakeStore
	tables map[string]*fakeTable
	done   bool
}

var (
	reDrop      = regexp.MustCompile(`^DROP TABLE IF EXISTS (\S+)$`)
	reCreateAs  = regexp.MustCompile(`^CREATE TABLE (\S+) AS SELECT \* FROM (\S+) WHERE false$`)
	reExcept    = regexp.MustCompile(`^INSERT INTO (\S+) SELECT \* FROM (\S+) EXCEPT SELECT \* FROM (\S+)$`)
	reInsertRet = regexp.MustCompile(`^INSERT INTO (\S+) \((.*)\) VALUES \((.*)\) RETURNING "([^"]+)"::text$`)
)

// lastIdent returns the unquoted last part of a sanitized identifier.
func lastIdent(s string) string {
	parts := strings.Split(s, ".")
	return strings.Trim(parts[len(parts)-1], `"`)
}

func (tx *fakeTx) record(sql string) {
	tx.store.mu.Lock()
	tx.store.statements = append(tx.store.statements, sql)
	tx.store.mu.Unlock()
}

func (tx *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	tx.record(sql)
	switch {
	case reDrop.MatchString(sql):
		delete(tx.tables, lastIdent(reDrop.FindStringSubmatch(sql)[1]))
		return pgconn.NewCommandTag("DROP TABLE"), nil

	case reCreateAs.MatchString(sql):
		m := reCreateAs.FindStringSubmatch(sql)
		src, ok := tx.tables[lastIdent(m[2])]
		if !ok {
			return pgconn.CommandTag{}, fmt.Errorf("relation %s does not exist", m[2])
		}
		tx.tables[lastIdent(m[1])] = &fakeTable{cols: src.cols}
		return pgconn.NewCommandTag("SELECT 0"), nil

	case reExcept.MatchString(sql):
		m := reExcept.FindStringSubmatch(sql)
		target, scratch := tx.tables[lastIdent(m[1])], tx.tables[lastIdent(m[2])]
		if target == nil || scratch == nil {
			return pgconn.CommandTag{}, errors.New("relation does not exist")
		}
		seen := make(map[string]bool)
		for _, r := range target.rows {
			seen[rowKey(r)] = true
		}
		var n int
		for _, r := range scratch.rows {
			k := rowKey(r)
			if seen[k] {
				continue
			}
			if err := tx.checkRow(target, r); err != nil {
				return pgconn.CommandTag{}, err
			}
			seen[k] = true
			target.rows = append(target.rows, r)
			n++
		}
		return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", n)), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("fake store: unsupported statement %q", sql)
}

func (tx *fakeTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	tx.record(sql)
	if !strings.Contains(sql, "information_schema.columns") {
		return nil, fmt.Errorf("fake store: unsupported query %q", sql)
	}
	rows := &fakeRows{}
	if t, ok := tx.tables[args[1].(string)]; ok {
		for _, c := range t.cols {
			rows.data = append(rows.data, []string{c.name, c.dataType})
		}
	}
	return rows, nil
}

func (tx *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	tx.record(sql)
	m := reInsertRet.FindStringSubmatch(sql)
	if m == nil {
		return fakeRow{err: fmt.Errorf("fake store: unsupported query %q", sql)}
	}
	t, ok := tx.tables[lastIdent(m[1])]
	if !ok {
		return fakeRow{err: fmt.Errorf("relation %s does not exist", m[1])}
	}
	cols := strings.Split(m[2], ", ")
	for i := range cols {
		cols[i] = strings.Trim(cols[i], `"`)
	}
	row, err := tx.align(t, cols, args)
	if err != nil {
		return fakeRow{err: err}
	}
	if err := tx.checkRow(t, row); err != nil {
		return fakeRow{err: err}
	}
	t.rows = append(t.rows, row)
	return fakeRow{val: render(row[t.index(m[4])])}
}

func (tx *fakeTx) CopyFrom(_ context.Context, ident pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	name := ident[len(ident)-1]
	tx.record("COPY " + name)
	if err := tx.store.copyErr[name]; err != nil {
		return 0, err
	}
	t, ok := tx.tables[name]
	if !ok {
		return 0, fmt.Errorf("relation %q does not exist", name)
	}
	var n int64
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		row, err := tx.align(t, cols, vals)
		if err != nil {
			return n, err
		}
		if err := tx.checkRow(t, row); err != nil {
			return n, err
		}
		t.rows = append(t.rows, row)
		n++
	}
	return n, src.Err()
}

func (tx *fakeTx) Commit(context.Context) error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	if s.commitErr != nil {
		return s.commitErr
	}
	s.commits++
	s.tables = tx.tables
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	s.rollbacks++
	return nil
}

// align places vals under their named columns in table order.
func (tx *fakeTx) align(t *fakeTable, cols []string, vals []any) ([]any, error) {
	row := make([]any, len(t.cols))
	for i, c := range cols {
		j := t.index(c)
		if j < 0 {
			return nil, fmt.Errorf("column %q does not exist", c)
		}
		row[j] = vals[i]
	}
	return row, nil
}

// checkRow enforces primary key uniqueness and foreign keys.
func (tx *fakeTx) checkRow(t *fakeTable, row []any) error {
	if t.key != "" {
		k := t.index(t.key)
		if row[k] == nil || render(row[k]) == "NULL" {
			return fmt.Errorf("null value in column %q violates not-null constraint", t.key)
		}
		for _, r := range t.rows {
			if render(r[k]) == render(row[k]) {
				return fmt.Errorf("duplicate key value violates unique constraint on %s", t.key)
			}
		}
	}
	for col, parent := range t.fks {
		v := render(row[t.index(col)])
		p := tx.tables[parent]
		pk := p.index(p.key)
		found := false
		for _, r := range p.rows {
			if render(r[pk]) == v {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("insert violates foreign key constraint on %s (%s)", col, v)
		}
	}
	return nil
}

// render formats a stored value the way psql would print it.
func render(v any) string {
	if dv, ok := v.(driver.Valuer); ok {
		x, err := dv.Value()
		if err != nil {
			return "ERR"
		}
		v = x
	}
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

func rowKey(r []any) string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = render(v)
	}
	return strings.Join(parts, "\x1f")
}

type fakeRow struct {
	val string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	p, ok := dest[0].(*string)
	if !ok {
		return fmt.Errorf("unsupported scan target %T", dest[0])
	}
	*p = r.val
	return nil
}

type fakeRows struct {
	data [][]string
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	for i, d := range dest {
		p, ok := d.(*string)
		if !ok {
			return fmt.Errorf("unsupported scan target %T", d)
		}
		*p = row[i]
	}
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	row := r.data[r.pos-1]
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out, nil
}
