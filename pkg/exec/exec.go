// Package exec implements MoonSQL's physical executor (spec §4.10): a
// tree of open/next/close-style operators interpreting a plan.Node by
// dispatching on its kind, reading and writing through the catalog's
// storage engine.
package exec

import (
	"github.com/YilianFengyue/moonsql/pkg/catalog"
	"github.com/YilianFengyue/moonsql/pkg/errs"
	"github.com/YilianFengyue/moonsql/pkg/plan"
	"github.com/YilianFengyue/moonsql/pkg/storage"
	"github.com/YilianFengyue/moonsql/pkg/types"
)

// Result is what executing a plan node produces: either a row set (SELECT)
// or an affected-row count (CREATE TABLE, INSERT, DELETE).
type Result struct {
	Columns []string
	Rows    []types.Row
	Count   int
}

// Executor interprets plan trees against a Catalog (spec §4.10).
type Executor struct {
	cat *catalog.Catalog
}

func New(cat *catalog.Catalog) *Executor { return &Executor{cat: cat} }

// Execute dispatches on node's kind and runs it to completion. MoonSQL's
// engine is single-threaded cooperative (spec §5): Execute does not return
// until the whole plan has been interpreted.
func (x *Executor) Execute(node plan.Node) (*Result, error) {
	switch n := node.(type) {
	case *plan.CreateTable:
		return x.execCreateTable(n)
	case *plan.Insert:
		return x.execInsert(n)
	case *plan.SeqScan:
		return x.execSeqScan(n)
	case *plan.Filter:
		return x.execFilter(n)
	case *plan.Project:
		return x.execProject(n)
	case *plan.Delete:
		return x.execDelete(n)
	default:
		return nil, errs.New(errs.PhaseExec, errs.KindUnknownTable, 0, 0, "unrecognized plan node")
	}
}

func (x *Executor) execCreateTable(n *plan.CreateTable) (*Result, error) {
	schema := &types.Schema{Columns: make([]types.Column, len(n.Columns))}
	for i, c := range n.Columns {
		schema.Columns[i] = types.Column{
			Name:       c.Name,
			Type:       parseColumnType(c.Type),
			Length:     c.Length,
			Nullable:   c.Nullable,
			PrimaryKey: c.PrimaryKey,
		}
	}
	if err := x.cat.CreateTable(n.Table, schema); err != nil {
		return nil, err
	}
	if err := x.cat.Engine().FlushAll(); err != nil {
		return nil, err
	}
	return &Result{Count: 0}, nil
}

func parseColumnType(name string) types.ColumnType {
	switch name {
	case "VARCHAR":
		return types.VARCHAR
	case "BOOLEAN":
		return types.BOOLEAN
	default:
		return types.INT
	}
}

// execInsert validates each row against the target schema (NOT NULL and
// primary-key uniqueness; type and length were already checked by pkg/sem
// at plan time) and calls InsertRow per row, returning the count inserted
// (spec §4.10).
func (x *Executor) execInsert(n *plan.Insert) (*Result, error) {
	schema, err := x.cat.GetSchema(n.Table)
	if err != nil {
		return nil, err
	}

	pkIdx := schema.PrimaryKeyIndex()
	var existingPKs map[string]bool
	if pkIdx >= 0 {
		existingPKs, err = x.collectPrimaryKeys(n.Table, schema, pkIdx)
		if err != nil {
			return nil, err
		}
	}

	count := 0
	for _, litRow := range n.Rows {
		row := make(types.Row, len(litRow))
		for i, lv := range litRow {
			row[i] = lv.ToValue()
		}

		for i, col := range schema.Columns {
			if !col.Nullable && row[i].Null {
				return nil, errs.New(errs.PhaseExec, errs.KindNotNullViolation, 0, 0,
					"column %q is NOT NULL", col.Name)
			}
		}

		if pkIdx >= 0 {
			key := row[pkIdx].String()
			if existingPKs[key] {
				return nil, errs.New(errs.PhaseExec, errs.KindDuplicatePrimaryKey, 0, 0,
					"duplicate primary key %s for table %q", key, n.Table)
			}
			existingPKs[key] = true
		}

		if _, err := x.cat.Engine().InsertRow(n.Table, row); err != nil {
			return nil, err
		}
		count++
	}
	if count > 0 {
		if err := x.cat.RefreshPageCount(n.Table); err != nil {
			return nil, err
		}
		if err := x.cat.Engine().FlushAll(); err != nil {
			return nil, err
		}
	}
	return &Result{Count: count}, nil
}

// collectPrimaryKeys linear-scans table's current rows to build the set of
// primary-key values already present, per spec §9(c): no index is
// maintained, so uniqueness is enforced by scanning.
func (x *Executor) collectPrimaryKeys(table string, schema *types.Schema, pkIdx int) (map[string]bool, error) {
	rows, err := x.cat.Engine().SeqScan(table, schema)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(rows))
	for _, rh := range rows {
		set[rh.Row[pkIdx].String()] = true
	}
	return set, nil
}

func (x *Executor) execSeqScan(n *plan.SeqScan) (*Result, error) {
	schema, err := x.cat.GetSchema(n.Table)
	if err != nil {
		return nil, err
	}
	handles, err := x.cat.Engine().SeqScan(n.Table, schema)
	if err != nil {
		return nil, err
	}
	rows := make([]types.Row, len(handles))
	for i, h := range handles {
		rows[i] = h.Row
	}
	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = c.Name
	}
	return &Result{Columns: cols, Rows: rows}, nil
}

func (x *Executor) childSchema(node plan.Node) (*types.Schema, error) {
	switch n := node.(type) {
	case *plan.SeqScan:
		return x.cat.GetSchema(n.Table)
	case *plan.Filter:
		return x.childSchema(n.Input)
	case *plan.Project:
		return x.childSchema(n.Input)
	default:
		return nil, errs.New(errs.PhaseExec, errs.KindUnknownTable, 0, 0, "cannot resolve schema of plan subtree")
	}
}

// execFilter runs its child operator and keeps only rows for which
// Predicate evaluates to BOOLEAN TRUE; NULL is not emitted (spec §4.10).
func (x *Executor) execFilter(n *plan.Filter) (*Result, error) {
	schema, err := x.childSchema(n.Input)
	if err != nil {
		return nil, err
	}
	child, err := x.Execute(n.Input)
	if err != nil {
		return nil, err
	}

	var kept []types.Row
	for _, row := range child.Rows {
		v, err := Eval(n.Predicate, schema, row)
		if err != nil {
			return nil, err
		}
		if !v.Null && v.Kind == types.BOOLEAN && v.B {
			kept = append(kept, row)
		}
	}
	return &Result{Columns: child.Columns, Rows: kept}, nil
}

// execProject evaluates Columns, in order, against each Input row.
func (x *Executor) execProject(n *plan.Project) (*Result, error) {
	schema, err := x.childSchema(n.Input)
	if err != nil {
		return nil, err
	}
	child, err := x.Execute(n.Input)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(n.Columns))
	for i, c := range n.Columns {
		names[i] = exprDisplayName(c)
	}

	out := make([]types.Row, len(child.Rows))
	for ri, row := range child.Rows {
		projected := make(types.Row, len(n.Columns))
		for ci, expr := range n.Columns {
			v, err := Eval(expr, schema, row)
			if err != nil {
				return nil, err
			}
			projected[ci] = v
		}
		out[ri] = projected
	}
	return &Result{Columns: names, Rows: out}, nil
}

func exprDisplayName(e plan.ExprNode) string {
	if e.NodeKind == plan.ExprColumnRef {
		return e.Column
	}
	return "?column?"
}

// execDelete drives a SeqScan internally, evaluates Predicate per row, and
// deletes every matching RID, returning the count deleted (spec §4.10).
func (x *Executor) execDelete(n *plan.Delete) (*Result, error) {
	schema, err := x.cat.GetSchema(n.Table)
	if err != nil {
		return nil, err
	}
	handles, err := x.cat.Engine().SeqScan(n.Table, schema)
	if err != nil {
		return nil, err
	}

	count := 0
	for _, h := range handles {
		v, err := Eval(n.Predicate, schema, h.Row)
		if err != nil {
			return nil, err
		}
		if v.Null || v.Kind != types.BOOLEAN || !v.B {
			continue
		}
		if err := deleteRow(x.cat.Engine(), n.Table, h.RID); err != nil {
			return nil, err
		}
		count++
	}
	if count > 0 {
		if err := x.cat.Engine().FlushAll(); err != nil {
			return nil, err
		}
	}
	return &Result{Count: count}, nil
}

func deleteRow(engine *storage.Engine, table string, rid types.RID) error {
	return engine.DeleteRow(table, rid)
}
