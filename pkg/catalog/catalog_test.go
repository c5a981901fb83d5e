package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YilianFengyue/moonsql/pkg/storage"
	"github.com/YilianFengyue/moonsql/pkg/types"
)

func newCatalog(t *testing.T) (*Catalog, *storage.FileManager) {
	t.Helper()
	fm, err := storage.NewFileManager(t.TempDir())
	require.NoError(t, err)
	pool := storage.NewBufferPool(fm, 16, storage.NewLRU())
	eng := storage.NewEngine(fm, pool)
	cat, err := Open(eng, fm)
	require.NoError(t, err)
	return cat, fm
}

func widgetsSchema() *types.Schema {
	return &types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.INT, PrimaryKey: true},
		{Name: "label", Type: types.VARCHAR, Length: 32},
	}}
}

func TestOpenBootstrapsSystemTables(t *testing.T) {
	cat, fm := newCatalog(t)
	require.True(t, fm.Exists(sysTables))
	require.True(t, fm.Exists(sysColumns))
	require.True(t, fm.Exists(sysIndexes))

	names, err := cat.ListTables()
	require.NoError(t, err)
	require.Contains(t, names, sysTables)
	require.Contains(t, names, sysColumns)
	require.Contains(t, names, sysIndexes)
}

func TestOpenIsIdempotent(t *testing.T) {
	fm, err := storage.NewFileManager(t.TempDir())
	require.NoError(t, err)
	pool := storage.NewBufferPool(fm, 16, storage.NewLRU())
	eng := storage.NewEngine(fm, pool)

	cat1, err := Open(eng, fm)
	require.NoError(t, err)
	names1, err := cat1.ListTables()
	require.NoError(t, err)

	cat2, err := Open(eng, fm)
	require.NoError(t, err)
	names2, err := cat2.ListTables()
	require.NoError(t, err)
	require.Equal(t, len(names1), len(names2), "reopening an existing data dir must not duplicate bootstrap rows")
}

func TestCreateTableThenGetSchema(t *testing.T) {
	cat, _ := newCatalog(t)
	require.NoError(t, cat.CreateTable("widgets", widgetsSchema()))

	got, err := cat.GetSchema("widgets")
	require.NoError(t, err)
	require.Len(t, got.Columns, 2)
	require.Equal(t, "id", got.Columns[0].Name)
	require.True(t, got.Columns[0].PrimaryKey)
	require.Equal(t, "label", got.Columns[1].Name)
	require.Equal(t, 32, got.Columns[1].Length)
}

func TestCreateTableRejectsDuplicateName(t *testing.T) {
	cat, _ := newCatalog(t)
	require.NoError(t, cat.CreateTable("widgets", widgetsSchema()))
	require.Error(t, cat.CreateTable("widgets", widgetsSchema()))
}

func TestGetSchemaRejectsUnknownTable(t *testing.T) {
	cat, _ := newCatalog(t)
	_, err := cat.GetSchema("nope")
	require.Error(t, err)
}

func TestDropTableRemovesItFromListing(t *testing.T) {
	cat, _ := newCatalog(t)
	require.NoError(t, cat.CreateTable("widgets", widgetsSchema()))
	require.NoError(t, cat.DropTable("widgets"))

	_, err := cat.GetSchema("widgets")
	require.Error(t, err)
}

func TestRefreshPageCountReflectsFileManagerState(t *testing.T) {
	cat, fm := newCatalog(t)
	require.NoError(t, cat.CreateTable("widgets", widgetsSchema()))

	// Force a second page directly through the file manager, bypassing the
	// executor's own RefreshPageCount call, then verify a manual refresh
	// picks it up.
	_, err := fm.AllocatePage("widgets")
	require.NoError(t, err)
	require.NoError(t, cat.RefreshPageCount("widgets"))

	rows, err := cat.engine.SeqScan(sysTables, sysTablesSchema())
	require.NoError(t, err)
	found := false
	for _, r := range rows {
		if r.Row[0].S == "widgets" {
			found = true
			require.Equal(t, int64(2), r.Row[2].I)
		}
	}
	require.True(t, found)
}
