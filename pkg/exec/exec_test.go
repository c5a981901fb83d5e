package exec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YilianFengyue/moonsql/pkg/catalog"
	"github.com/YilianFengyue/moonsql/pkg/parser"
	"github.com/YilianFengyue/moonsql/pkg/plan"
	"github.com/YilianFengyue/moonsql/pkg/sem"
	"github.com/YilianFengyue/moonsql/pkg/storage"
)

type harness struct {
	cat     *catalog.Catalog
	sem     *sem.Analyzer
	planner *plan.Planner
	exec    *Executor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fm, err := storage.NewFileManager(t.TempDir())
	require.NoError(t, err)
	pool := storage.NewBufferPool(fm, 16, storage.NewLRU())
	eng := storage.NewEngine(fm, pool)
	cat, err := catalog.Open(eng, fm)
	require.NoError(t, err)
	return &harness{
		cat:     cat,
		sem:     sem.New(cat),
		planner: plan.New(cat.GetSchema),
		exec:    New(cat),
	}
}

func (h *harness) run(t *testing.T, sql string) *Result {
	t.Helper()
	stmt, errs := parser.ParseOne(sql)
	require.Empty(t, errs, "parse errors for %q", sql)
	require.Empty(t, h.sem.Check(stmt), "sem errors for %q", sql)
	node, err := h.planner.Lower(stmt)
	require.NoError(t, err)
	result, err := h.exec.Execute(node)
	require.NoError(t, err)
	return result
}

func TestExecuteCreateInsertSelect(t *testing.T) {
	h := newHarness(t)
	h.run(t, "CREATE TABLE widgets (id INT PRIMARY KEY, label VARCHAR(32));")
	res := h.run(t, "INSERT INTO widgets VALUES (1, 'gear'), (2, 'cog');")
	require.Equal(t, 2, res.Count)

	sel := h.run(t, "SELECT * FROM widgets;")
	require.Len(t, sel.Rows, 2)
	require.Equal(t, []string{"id", "label"}, sel.Columns)
}

func TestExecuteFilterKeepsOnlyMatchingRows(t *testing.T) {
	h := newHarness(t)
	h.run(t, "CREATE TABLE widgets (id INT PRIMARY KEY, label VARCHAR(32));")
	h.run(t, "INSERT INTO widgets VALUES (1, 'gear'), (2, 'cog'), (3, 'bolt');")

	res := h.run(t, "SELECT * FROM widgets WHERE id > 1;")
	require.Len(t, res.Rows, 2)
}

func TestExecuteProjectReordersColumns(t *testing.T) {
	h := newHarness(t)
	h.run(t, "CREATE TABLE widgets (id INT PRIMARY KEY, label VARCHAR(32));")
	h.run(t, "INSERT INTO widgets VALUES (1, 'gear');")

	res := h.run(t, "SELECT label, id FROM widgets;")
	require.Equal(t, []string{"label", "id"}, res.Columns)
	require.Equal(t, "gear", res.Rows[0][0].S)
	require.Equal(t, int64(1), res.Rows[0][1].I)
}

func TestExecuteDeleteRemovesMatchingRows(t *testing.T) {
	h := newHarness(t)
	h.run(t, "CREATE TABLE widgets (id INT PRIMARY KEY, label VARCHAR(32));")
	h.run(t, "INSERT INTO widgets VALUES (1, 'gear'), (2, 'cog');")

	del := h.run(t, "DELETE FROM widgets WHERE id = 1;")
	require.Equal(t, 1, del.Count)

	rest := h.run(t, "SELECT * FROM widgets;")
	require.Len(t, rest.Rows, 1)
	require.Equal(t, int64(2), rest.Rows[0][0].I)
}

func TestExecuteInsertRejectsDuplicatePrimaryKey(t *testing.T) {
	h := newHarness(t)
	h.run(t, "CREATE TABLE widgets (id INT PRIMARY KEY, label VARCHAR(32));")
	h.run(t, "INSERT INTO widgets VALUES (1, 'gear');")

	stmt, errs := parser.ParseOne("INSERT INTO widgets VALUES (1, 'cog');")
	require.Empty(t, errs)
	require.Empty(t, h.sem.Check(stmt))
	node, err := h.planner.Lower(stmt)
	require.NoError(t, err)
	_, err = h.exec.Execute(node)
	require.Error(t, err)
}

func TestExecuteInsertRefreshesPageCountAcrossOverflow(t *testing.T) {
	h := newHarness(t)
	h.run(t, "CREATE TABLE widgets (id INT PRIMARY KEY, label VARCHAR(60));")

	label := ""
	for i := 0; i < 60; i++ {
		label += "x"
	}
	for i := 0; i < 120; i++ {
		stmt, errs := parser.ParseOne("INSERT INTO widgets VALUES (" + itoa(i) + ", '" + label + "');")
		require.Empty(t, errs)
		require.Empty(t, h.sem.Check(stmt))
		node, err := h.planner.Lower(stmt)
		require.NoError(t, err)
		_, err = h.exec.Execute(node)
		require.NoError(t, err)
	}

	schema, err := h.cat.GetSchema("widgets")
	require.NoError(t, err)
	require.NotNil(t, schema)

	// 73-byte records plus 4-byte slots fit 53 to a page, so 120 rows span
	// 3 pages, and sys_tables must record that.
	sysSchema, err := h.cat.GetSchema("sys_tables")
	require.NoError(t, err)
	sysRows, err := h.cat.Engine().SeqScan("sys_tables", sysSchema)
	require.NoError(t, err)
	var pageCount int64
	for _, r := range sysRows {
		if r.Row[0].S == "widgets" {
			pageCount = r.Row[2].I
		}
	}
	require.Equal(t, int64(3), pageCount)

	all := h.run(t, "SELECT * FROM widgets;")
	require.Len(t, all.Rows, 120)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}
