// Package catalog implements MoonSQL's self-describing schema store (spec
// §4.11): three system tables, themselves persisted through the same
// storage engine they describe.
package catalog

import (
	"github.com/YilianFengyue/moonsql/pkg/errs"
	"github.com/YilianFengyue/moonsql/pkg/storage"
	"github.com/YilianFengyue/moonsql/pkg/types"
)

const (
	sysTables  = "sys_tables"
	sysColumns = "sys_columns"
	sysIndexes = "sys_indexes"
)

func sysTablesSchema() *types.Schema {
	return &types.Schema{Columns: []types.Column{
		{Name: "table_name", Type: types.VARCHAR, Length: 128},
		{Name: "first_page", Type: types.INT},
		{Name: "page_count", Type: types.INT},
	}}
}

func sysColumnsSchema() *types.Schema {
	return &types.Schema{Columns: []types.Column{
		{Name: "table_name", Type: types.VARCHAR, Length: 128},
		{Name: "ordinal", Type: types.INT},
		{Name: "col_name", Type: types.VARCHAR, Length: 128},
		{Name: "type_code", Type: types.INT},
		{Name: "type_param", Type: types.INT},
		{Name: "nullable", Type: types.BOOLEAN},
		{Name: "primary_key", Type: types.BOOLEAN},
	}}
}

func sysIndexesSchema() *types.Schema {
	return &types.Schema{Columns: []types.Column{
		{Name: "table_name", Type: types.VARCHAR, Length: 128},
		{Name: "col_name", Type: types.VARCHAR, Length: 128},
		{Name: "kind", Type: types.INT},
	}}
}

// Catalog is the schema authority: every user CreateTable/DropTable and
// every name/type lookup goes through it, and every mutation it makes is
// itself routed through the storage Engine (spec §4.11).
type Catalog struct {
	engine *storage.Engine
	fm     *storage.FileManager
}

// Open bootstraps the three system tables if this is a fresh data
// directory (sys_tables.tbl absent), then returns a ready Catalog.
// Bootstrapping is a no-op if the system tables already exist (spec §4.11,
// §9 "cyclic references... resolved by bootstrapping").
func Open(engine *storage.Engine, fm *storage.FileManager) (*Catalog, error) {
	c := &Catalog{engine: engine, fm: fm}
	if fm.Exists(sysTables) {
		return c, nil
	}

	if err := c.bootstrapSystemTable(sysTables, sysTablesSchema()); err != nil {
		return nil, err
	}
	if err := c.bootstrapSystemTable(sysColumns, sysColumnsSchema()); err != nil {
		return nil, err
	}
	if err := c.bootstrapSystemTable(sysIndexes, sysIndexesSchema()); err != nil {
		return nil, err
	}

	// Self-describing: the system tables record their own shape too.
	for _, t := range []struct {
		name   string
		schema *types.Schema
	}{
		{sysTables, sysTablesSchema()},
		{sysColumns, sysColumnsSchema()},
		{sysIndexes, sysIndexesSchema()},
	} {
		if err := c.insertTableMeta(t.name); err != nil {
			return nil, err
		}
		if err := c.insertColumnMeta(t.name, t.schema); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) bootstrapSystemTable(name string, _ *types.Schema) error {
	return c.engine.CreateTable(name)
}

func (c *Catalog) insertTableMeta(name string) error {
	n, err := c.fm.PageCount(name)
	if err != nil {
		return err
	}
	row := types.Row{
		types.StringValue(name),
		types.IntValue(0),
		types.IntValue(int64(n)),
	}
	_, err = c.engine.InsertRow(sysTables, row)
	return err
}

func (c *Catalog) insertColumnMeta(name string, schema *types.Schema) error {
	for i, col := range schema.Columns {
		row := types.Row{
			types.StringValue(name),
			types.IntValue(int64(i)),
			types.StringValue(col.Name),
			types.IntValue(int64(col.Type)),
			types.IntValue(int64(col.Length)),
			types.BoolValue(col.Nullable),
			types.BoolValue(col.PrimaryKey),
		}
		if _, err := c.engine.InsertRow(sysColumns, row); err != nil {
			return err
		}
	}
	return nil
}

// CreateTable registers a new user table: allocates its storage and writes
// its sys_tables/sys_columns rows. Fails with an exec-phase error if the
// table already exists (spec §4.10 "CreateTable... fails if the table
// already exists").
func (c *Catalog) CreateTable(name string, schema *types.Schema) error {
	if _, err := c.GetSchema(name); err == nil {
		return errs.New(errs.PhaseExec, errs.KindUnknownTable, 0, 0, "table %q already exists", name)
	}
	if err := c.engine.CreateTable(name); err != nil {
		return err
	}
	if err := c.insertTableMeta(name); err != nil {
		return err
	}
	if err := c.insertColumnMeta(name, schema); err != nil {
		return err
	}
	c.persistMetadata()
	return nil
}

// DropTable tombstones name's sys_tables and sys_columns rows. The
// underlying table file is left on disk; MoonSQL has no file-deletion
// operation in its storage API.
func (c *Catalog) DropTable(name string) error {
	rows, err := c.engine.SeqScan(sysTables, sysTablesSchema())
	if err != nil {
		return err
	}
	found := false
	for _, r := range rows {
		if r.Row[0].S == name {
			if err := c.engine.DeleteRow(sysTables, r.RID); err != nil {
				return err
			}
			found = true
		}
	}
	if !found {
		return errs.New(errs.PhaseExec, errs.KindUnknownTable, 0, 0, "unknown table %q", name)
	}

	colRows, err := c.engine.SeqScan(sysColumns, sysColumnsSchema())
	if err != nil {
		return err
	}
	for _, r := range colRows {
		if r.Row[0].S == name {
			if err := c.engine.DeleteRow(sysColumns, r.RID); err != nil {
				return err
			}
		}
	}
	return nil
}

// RefreshPageCount rewrites name's sys_tables row with the file manager's
// current page count, preserving invariant (c) of spec §3 ("file-manager
// state agrees with sys_tables.page_count after any committed mutation").
// There is no in-place update operation in the storage API, so this is
// done by deleting the old row and inserting its replacement.
func (c *Catalog) RefreshPageCount(name string) error {
	n, err := c.fm.PageCount(name)
	if err != nil {
		return err
	}
	rows, err := c.engine.SeqScan(sysTables, sysTablesSchema())
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.Row[0].S != name {
			continue
		}
		if r.Row[2].I == int64(n) {
			return nil // already current
		}
		if err := c.engine.DeleteRow(sysTables, r.RID); err != nil {
			return err
		}
		row := types.Row{
			types.StringValue(name),
			r.Row[1],
			types.IntValue(int64(n)),
		}
		if _, err := c.engine.InsertRow(sysTables, row); err != nil {
			return err
		}
		c.persistMetadata()
		return nil
	}
	return errs.New(errs.PhaseExec, errs.KindUnknownTable, 0, 0, "unknown table %q", name)
}

// GetSchema returns name's Schema, or an UnknownTable error if no such
// table is registered (spec §4.11).
func (c *Catalog) GetSchema(name string) (*types.Schema, error) {
	tableRows, err := c.engine.SeqScan(sysTables, sysTablesSchema())
	if err != nil {
		return nil, err
	}
	known := false
	for _, r := range tableRows {
		if r.Row[0].S == name {
			known = true
			break
		}
	}
	if !known {
		return nil, errs.New(errs.PhaseSem, errs.KindUnknownTable, 0, 0, "unknown table %q", name)
	}

	colRows, err := c.engine.SeqScan(sysColumns, sysColumnsSchema())
	if err != nil {
		return nil, err
	}

	type ordered struct {
		ordinal int64
		col     types.Column
	}
	var cols []ordered
	for _, r := range colRows {
		if r.Row[0].S != name {
			continue
		}
		cols = append(cols, ordered{
			ordinal: r.Row[1].I,
			col: types.Column{
				Name:       r.Row[2].S,
				Type:       types.ColumnType(r.Row[3].I),
				Length:     int(r.Row[4].I),
				Nullable:   r.Row[5].B,
				PrimaryKey: r.Row[6].B,
			},
		})
	}
	// sys_columns rows are inserted in ordinal order and seq_scan preserves
	// insertion order absent deletes, but sort defensively.
	for i := 1; i < len(cols); i++ {
		for j := i; j > 0 && cols[j].ordinal < cols[j-1].ordinal; j-- {
			cols[j], cols[j-1] = cols[j-1], cols[j]
		}
	}

	schema := &types.Schema{Columns: make([]types.Column, len(cols))}
	for i, oc := range cols {
		schema.Columns[i] = oc.col
	}
	return schema, nil
}

// ListTables returns every registered user and system table name.
func (c *Catalog) ListTables() ([]string, error) {
	rows, err := c.engine.SeqScan(sysTables, sysTablesSchema())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Row[0].S)
	}
	return names, nil
}

// Engine exposes the underlying storage Engine for pkg/exec's record-level
// operations (insert_row, seq_scan, delete_row against user tables).
func (c *Catalog) Engine() *storage.Engine { return c.engine }
