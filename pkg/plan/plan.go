// Package plan defines MoonSQL's logical plan tree (spec §4.4) and the
// Planner that lowers an analyzed AST into it. Plan nodes are JSON-taggable
// so `--show=plan` can print a deterministic, stable representation.
package plan

import (
	"github.com/YilianFengyue/moonsql/pkg/ast"
	"github.com/YilianFengyue/moonsql/pkg/types"
)

// NodeKind identifies a plan node's operator (spec §4.4).
type NodeKind string

const (
	KindCreateTable NodeKind = "CreateTable"
	KindInsert      NodeKind = "Insert"
	KindSeqScan     NodeKind = "SeqScan"
	KindFilter      NodeKind = "Filter"
	KindProject     NodeKind = "Project"
	KindDelete      NodeKind = "Delete"
)

// Node is any plan tree node.
type Node interface {
	PlanKind() NodeKind
}

// ColumnSpec is one column of a CreateTable plan node.
type ColumnSpec struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Length     int    `json:"length,omitempty"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// CreateTable is the plan form of `CREATE TABLE t(...)` (spec §4.4).
type CreateTable struct {
	Kind    NodeKind     `json:"kind"`
	Table   string       `json:"table"`
	Columns []ColumnSpec `json:"columns"`
}

func (n *CreateTable) PlanKind() NodeKind { return KindCreateTable }

// Insert is the plan form of `INSERT INTO t(...) VALUES (...)`, with each
// row already reordered to schema order and omitted nullable columns
// filled with NULL (spec §4.4).
type Insert struct {
	Kind  NodeKind     `json:"kind"`
	Table string       `json:"table"`
	Rows  [][]LitValue `json:"rows"`
}

func (n *Insert) PlanKind() NodeKind { return KindInsert }

// LitValue is a JSON-serializable literal value carried in an Insert plan
// node, distinct from types.Value so the plan tree has no storage-layer
// dependency.
type LitValue struct {
	Null bool   `json:"null,omitempty"`
	Type string `json:"type"`
	I    int64  `json:"i,omitempty"`
	S    string `json:"s,omitempty"`
	B    bool   `json:"b,omitempty"`
}

func litFromValue(v types.Value) LitValue {
	lv := LitValue{Null: v.Null, Type: v.Kind.String()}
	if v.Null {
		return lv
	}
	switch v.Kind {
	case types.INT:
		lv.I = v.I
	case types.VARCHAR:
		lv.S = v.S
	case types.BOOLEAN:
		lv.B = v.B
	}
	return lv
}

func (lv LitValue) ToValue() types.Value {
	var kind types.ColumnType
	switch lv.Type {
	case "VARCHAR":
		kind = types.VARCHAR
	case "BOOLEAN":
		kind = types.BOOLEAN
	default:
		kind = types.INT
	}
	if lv.Null {
		return types.NullValue(kind)
	}
	switch kind {
	case types.VARCHAR:
		return types.StringValue(lv.S)
	case types.BOOLEAN:
		return types.BoolValue(lv.B)
	default:
		return types.IntValue(lv.I)
	}
}

// SeqScan emits every live row of Table (spec §4.10).
type SeqScan struct {
	Kind  NodeKind `json:"kind"`
	Table string   `json:"table"`
}

func (n *SeqScan) PlanKind() NodeKind { return KindSeqScan }

// Filter emits only the Input rows for which Predicate is BOOLEAN TRUE
// (spec §4.10, three-valued logic).
type Filter struct {
	Kind      NodeKind `json:"kind"`
	Predicate ExprNode `json:"predicate"`
	Input     Node     `json:"input"`
}

func (n *Filter) PlanKind() NodeKind { return KindFilter }

// Project emits the evaluation of Columns, in order, per Input row.
type Project struct {
	Kind    NodeKind   `json:"kind"`
	Columns []ExprNode `json:"columns"`
	Input   Node       `json:"input"`
}

func (n *Project) PlanKind() NodeKind { return KindProject }

// Delete drives a SeqScan of Table and deletes every row matching
// Predicate (the constant TRUE when WHERE was omitted).
type Delete struct {
	Kind      NodeKind `json:"kind"`
	Table     string   `json:"table"`
	Predicate ExprNode `json:"predicate"`
}

func (n *Delete) PlanKind() NodeKind { return KindDelete }

// Planner lowers an analyzed statement into a plan tree (spec §4.4). It
// assumes the statement has already passed pkg/sem's checks; it does not
// re-validate names or types.
type Planner struct {
	schemaOf func(table string) (*types.Schema, error)
}

// New builds a Planner that resolves target-table schemas via schemaOf
// (ordinarily catalog.Catalog.GetSchema).
func New(schemaOf func(table string) (*types.Schema, error)) *Planner {
	return &Planner{schemaOf: schemaOf}
}

// Lower converts one parsed, analyzed statement into its plan tree.
func (p *Planner) Lower(stmt ast.Statement) (Node, error) {
	switch s := stmt.(type) {
	case *ast.CreateTableStatement:
		return p.lowerCreateTable(s), nil
	case *ast.InsertStatement:
		return p.lowerInsert(s)
	case *ast.SelectStatement:
		return p.lowerSelect(s)
	case *ast.DeleteStatement:
		return p.lowerDelete(s), nil
	default:
		return nil, nil
	}
}

func (p *Planner) lowerCreateTable(s *ast.CreateTableStatement) *CreateTable {
	cols := make([]ColumnSpec, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = ColumnSpec{
			Name:       c.Name,
			Type:       c.Type,
			Length:     c.Length,
			Nullable:   c.Nullable,
			PrimaryKey: c.PrimaryKey,
		}
	}
	return &CreateTable{Kind: KindCreateTable, Table: s.Table, Columns: cols}
}

func (p *Planner) lowerInsert(s *ast.InsertStatement) (*Insert, error) {
	schema, err := p.schemaOf(s.Table)
	if err != nil {
		return nil, err
	}

	targetCols := s.Columns
	if len(targetCols) == 0 {
		targetCols = make([]string, len(schema.Columns))
		for i, c := range schema.Columns {
			targetCols[i] = c.Name
		}
	}

	rows := make([][]LitValue, len(s.Rows))
	for r, valueRow := range s.Rows {
		ordered := make([]types.Value, len(schema.Columns))
		set := make([]bool, len(schema.Columns))
		for i, name := range targetCols {
			idx := schema.IndexOf(name)
			if idx < 0 {
				continue // pkg/sem already rejects this; be defensive here
			}
			ordered[idx] = evalLiteral(valueRow[i], schema.Columns[idx])
			set[idx] = true
		}
		for i, col := range schema.Columns {
			if !set[i] {
				ordered[i] = types.NullValue(col.Type)
			}
		}
		lits := make([]LitValue, len(ordered))
		for i, v := range ordered {
			lits[i] = litFromValue(v)
		}
		rows[r] = lits
	}

	return &Insert{Kind: KindInsert, Table: s.Table, Rows: rows}, nil
}

func evalLiteral(expr ast.Expression, col types.Column) types.Value {
	switch lit := expr.(type) {
	case *ast.IntLiteral:
		return types.IntValue(lit.Value)
	case *ast.StringLiteral:
		return types.StringValue(lit.Value)
	case *ast.BoolLiteral:
		return types.BoolValue(lit.Value)
	case *ast.NullLiteral:
		return types.NullValue(col.Type)
	default:
		return types.NullValue(col.Type)
	}
}

func (p *Planner) lowerSelect(s *ast.SelectStatement) (Node, error) {
	var node Node = &SeqScan{Kind: KindSeqScan, Table: s.Table}

	if s.Where != nil {
		node = &Filter{Kind: KindFilter, Predicate: lowerExpr(s.Where), Input: node}
	}

	if !s.Star {
		cols := make([]ExprNode, len(s.Columns))
		for i, c := range s.Columns {
			cols[i] = lowerExpr(c)
		}
		node = &Project{Kind: KindProject, Columns: cols, Input: node}
	}

	return node, nil
}

func (p *Planner) lowerDelete(s *ast.DeleteStatement) *Delete {
	var pred ExprNode
	if s.Where != nil {
		pred = lowerExpr(s.Where)
	} else {
		pred = ExprNode{NodeKind: ExprBoolLit, Bool: true}
	}
	return &Delete{Kind: KindDelete, Table: s.Table, Predicate: pred}
}
