// Package tests drives full CREATE/INSERT/SELECT/DELETE scenarios through
// the compiler pipeline and storage engine together, exercising the
// behavior a standalone package test can't: catalog persistence, buffer
// pool pin discipline, and page overflow across statement boundaries.
package tests

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YilianFengyue/moonsql/pkg/catalog"
	"github.com/YilianFengyue/moonsql/pkg/errs"
	"github.com/YilianFengyue/moonsql/pkg/exec"
	"github.com/YilianFengyue/moonsql/pkg/parser"
	"github.com/YilianFengyue/moonsql/pkg/plan"
	"github.com/YilianFengyue/moonsql/pkg/sem"
	"github.com/YilianFengyue/moonsql/pkg/storage"
	"github.com/YilianFengyue/moonsql/pkg/types"
)

// engine bundles one statement-at-a-time compiler+executor wiring, mirroring
// how cmd/moonsql assembles these pieces.
type engine struct {
	fm      *storage.FileManager
	pool    *storage.BufferPool
	cat     *catalog.Catalog
	sem     *sem.Analyzer
	planner *plan.Planner
	exec    *exec.Executor
}

func newEngine(t *testing.T, dir string) *engine {
	t.Helper()
	fm, err := storage.NewFileManager(dir)
	require.NoError(t, err)
	pool := storage.NewBufferPool(fm, 16, storage.NewLRU())
	eng := storage.NewEngine(fm, pool)
	cat, err := catalog.Open(eng, fm)
	require.NoError(t, err)
	return &engine{
		fm:      fm,
		pool:    pool,
		cat:     cat,
		sem:     sem.New(cat),
		planner: plan.New(cat.GetSchema),
		exec:    exec.New(cat),
	}
}

// run compiles and executes one ';'-terminated statement, failing the test
// on any lex/parse/sem/plan error, and returns the executor's Result.
func (e *engine) run(t *testing.T, sql string) *exec.Result {
	t.Helper()
	stmt, errs := parser.ParseOne(sql)
	require.Empty(t, errs, "parse errors for %q", sql)
	semErrs := e.sem.Check(stmt)
	require.Empty(t, semErrs, "sem errors for %q: %v", sql, semErrs)
	node, err := e.planner.Lower(stmt)
	require.NoError(t, err)
	result, err := e.exec.Execute(node)
	require.NoError(t, err)
	return result
}

// runExpectError compiles and executes sql, asserting that execution (not
// compilation) fails, and returns the error for further inspection.
func (e *engine) runExpectError(t *testing.T, sql string) error {
	t.Helper()
	stmt, errs := parser.ParseOne(sql)
	require.Empty(t, errs)
	require.Empty(t, e.sem.Check(stmt))
	node, err := e.planner.Lower(stmt)
	require.NoError(t, err)
	_, execErr := e.exec.Execute(node)
	require.Error(t, execErr)
	return execErr
}

// Scenario 1 (spec §8): CREATE TABLE returns OK(0) and registers one
// sys_tables row.
func TestScenarioCreateTableRegistersCatalogRow(t *testing.T) {
	e := newEngine(t, t.TempDir())
	res := e.run(t, "CREATE TABLE s (id INT PRIMARY KEY, name VARCHAR(16), age INT);")
	require.Equal(t, 0, res.Count)

	schema, err := e.cat.GetSchema("s")
	require.NoError(t, err)
	require.Len(t, schema.Columns, 3)

	names, err := e.cat.ListTables()
	require.NoError(t, err)
	registered := 0
	for _, name := range names {
		if name == "s" {
			registered++
		}
	}
	require.Equal(t, 1, registered)
}

// Scenario 2: two-row INSERT returns OK(2).
func TestScenarioInsertTwoRows(t *testing.T) {
	e := newEngine(t, t.TempDir())
	e.run(t, "CREATE TABLE s (id INT PRIMARY KEY, name VARCHAR(16), age INT);")
	res := e.run(t, "INSERT INTO s VALUES (1,'ann',20),(2,'bob',17);")
	require.Equal(t, 2, res.Count)
}

// Scenario 3: SELECT with a WHERE and explicit projection returns exactly
// the matching, projected row.
func TestScenarioSelectWithFilterAndProjection(t *testing.T) {
	e := newEngine(t, t.TempDir())
	e.run(t, "CREATE TABLE s (id INT PRIMARY KEY, name VARCHAR(16), age INT);")
	e.run(t, "INSERT INTO s VALUES (1,'ann',20),(2,'bob',17);")

	res := e.run(t, "SELECT id, name FROM s WHERE age > 18;")
	require.Equal(t, []string{"id", "name"}, res.Columns)
	require.Len(t, res.Rows, 1)
	require.Equal(t, int64(1), res.Rows[0][0].I)
	require.Equal(t, "ann", res.Rows[0][1].S)
}

// Scenario 4: inserting a duplicate primary key fails with
// exec/DuplicatePrimaryKey.
func TestScenarioDuplicatePrimaryKeyRejected(t *testing.T) {
	e := newEngine(t, t.TempDir())
	e.run(t, "CREATE TABLE s (id INT PRIMARY KEY, name VARCHAR(16), age INT);")
	e.run(t, "INSERT INTO s VALUES (1,'ann',20),(2,'bob',17);")

	err := e.runExpectError(t, "INSERT INTO s VALUES (1,'eve',30);")
	dbErr, ok := err.(*errs.Error)
	require.True(t, ok, "expected a structured *errs.Error, got %T", err)
	require.Equal(t, errs.PhaseExec, dbErr.Phase)
	require.Equal(t, errs.KindDuplicatePrimaryKey, dbErr.Kind)
}

// Scenario 5: DELETE ... WHERE removes exactly the matching row and leaves
// the rest visible.
func TestScenarioDeleteRemovesMatchingRow(t *testing.T) {
	e := newEngine(t, t.TempDir())
	e.run(t, "CREATE TABLE s (id INT PRIMARY KEY, name VARCHAR(16), age INT);")
	e.run(t, "INSERT INTO s VALUES (1,'ann',20),(2,'bob',17);")

	res := e.run(t, "DELETE FROM s WHERE id = 2;")
	require.Equal(t, 1, res.Count)

	rest := e.run(t, "SELECT * FROM s;")
	require.Len(t, rest.Rows, 1)
	require.Equal(t, int64(1), rest.Rows[0][0].I)
	require.Equal(t, "ann", rest.Rows[0][1].S)
	require.Equal(t, int64(20), rest.Rows[0][2].I)
}

// Scenario 6: inserting rows past one page's capacity must spill onto
// further pages, with sys_tables.page_count matching the file's page count
// and every row visible via SeqScan.
func TestScenarioPageOverflowUpdatesPageCount(t *testing.T) {
	e := newEngine(t, t.TempDir())
	e.run(t, "CREATE TABLE s (id INT PRIMARY KEY, name VARCHAR(60), age INT);")

	padding := make([]byte, 60)
	for i := range padding {
		padding[i] = 'a'
	}
	rowSQL := func(id int) string {
		return "INSERT INTO s VALUES (" + itoa(id) + ",'" + string(padding) + "'," + itoa(id) + ");"
	}
	for id := 1; id <= 100; id++ {
		e.run(t, rowSQL(id))
	}

	n, err := e.fm.PageCount("s")
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 2)

	sysRows, err := e.cat.Engine().SeqScan("sys_tables", mustSchema(t, e, "sys_tables"))
	require.NoError(t, err)
	var recorded int64 = -1
	for _, r := range sysRows {
		if r.Row[0].S == "s" {
			recorded = r.Row[2].I
		}
	}
	require.Equal(t, int64(n), recorded)

	rows, err := e.cat.Engine().SeqScan("s", mustSchema(t, e, "s"))
	require.NoError(t, err)
	require.Len(t, rows, 100)
}

func mustSchema(t *testing.T, e *engine, table string) *types.Schema {
	t.Helper()
	schema, err := e.cat.GetSchema(table)
	require.NoError(t, err)
	return schema
}

// Catalog consistency (spec §8 property): get_schema's column count must
// equal the number of sys_columns rows naming this table.
func TestPropertyCatalogConsistency(t *testing.T) {
	e := newEngine(t, t.TempDir())
	e.run(t, "CREATE TABLE s (id INT PRIMARY KEY, name VARCHAR(16), age INT);")

	schema, err := e.cat.GetSchema("s")
	require.NoError(t, err)
	require.Len(t, schema.Columns, 3)

	colRows, err := e.cat.Engine().SeqScan("sys_columns", mustSchema(t, e, "sys_columns"))
	require.NoError(t, err)
	named := 0
	for _, r := range colRows {
		if r.Row[0].S == "s" {
			named++
		}
	}
	require.Equal(t, len(schema.Columns), named)
}

// Durability (spec §8 property): writes followed by a clean reopen must
// still show exactly the surviving rows. Each write statement flushes the
// buffer pool itself (spec §5's flush_all), so closing the file manager
// here does not need to flush anything first.
func TestPropertyDurabilityAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	e1 := newEngine(t, dir)
	e1.run(t, "CREATE TABLE s (id INT PRIMARY KEY, name VARCHAR(16), age INT);")
	e1.run(t, "INSERT INTO s VALUES (1,'ann',20),(2,'bob',17);")
	e1.run(t, "DELETE FROM s WHERE id = 2;")
	require.NoError(t, e1.fm.Close())

	e2 := newEngine(t, dir)
	res := e2.run(t, "SELECT * FROM s;")
	require.Len(t, res.Rows, 1)
	require.Equal(t, int64(1), res.Rows[0][0].I)
}

// Buffer discipline (spec §8 property): after every statement, no frame is
// left pinned.
func TestPropertyNoFramesPinnedAfterStatement(t *testing.T) {
	e := newEngine(t, t.TempDir())
	e.run(t, "CREATE TABLE s (id INT PRIMARY KEY, name VARCHAR(16), age INT);")
	e.run(t, "INSERT INTO s VALUES (1,'ann',20),(2,'bob',17);")
	e.run(t, "SELECT * FROM s WHERE age > 18;")
	e.run(t, "DELETE FROM s WHERE id = 2;")

	require.Equal(t, 0, e.pool.Stats().PinnedNow)
}

// Determinism (spec §8 property): re-scanning a table with no intervening
// writes yields the same sequence of rows.
func TestPropertySeqScanDeterministicBetweenReads(t *testing.T) {
	e := newEngine(t, t.TempDir())
	e.run(t, "CREATE TABLE s (id INT PRIMARY KEY, name VARCHAR(16), age INT);")
	e.run(t, "INSERT INTO s VALUES (1,'ann',20),(2,'bob',17),(3,'cy',41);")

	first := e.run(t, "SELECT * FROM s;")
	second := e.run(t, "SELECT * FROM s;")
	require.Equal(t, len(first.Rows), len(second.Rows))
	for i := range first.Rows {
		for c := range first.Rows[i] {
			require.True(t, first.Rows[i][c].Equal(second.Rows[i][c]))
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
