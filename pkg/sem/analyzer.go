// Package sem implements MoonSQL's semantic analyzer (spec §4.3): it walks
// the parsed AST against the catalog, resolving names and checking that
// every statement is well-typed before the planner ever sees it.
package sem

import (
	"github.com/YilianFengyue/moonsql/pkg/ast"
	"github.com/YilianFengyue/moonsql/pkg/catalog"
	"github.com/YilianFengyue/moonsql/pkg/errs"
	"github.com/YilianFengyue/moonsql/pkg/types"
)

// Analyzer resolves and type-checks statements against a Catalog.
type Analyzer struct {
	cat *catalog.Catalog
}

func New(cat *catalog.Catalog) *Analyzer { return &Analyzer{cat: cat} }

func semErr(kind errs.Kind, line, col int, format string, args ...any) *errs.Error {
	return errs.New(errs.PhaseSem, kind, line, col, format, args...)
}

// Check dispatches on statement kind and returns every semantic error
// found; an empty slice means the statement is well-formed.
func (a *Analyzer) Check(stmt ast.Statement) []*errs.Error {
	switch s := stmt.(type) {
	case *ast.CreateTableStatement:
		return a.checkCreateTable(s)
	case *ast.InsertStatement:
		return a.checkInsert(s)
	case *ast.SelectStatement:
		return a.checkSelect(s)
	case *ast.DeleteStatement:
		return a.checkDelete(s)
	default:
		return []*errs.Error{semErr(errs.KindUnknownTable, 0, 0, "unrecognized statement")}
	}
}

func (a *Analyzer) checkCreateTable(s *ast.CreateTableStatement) []*errs.Error {
	var out []*errs.Error

	seen := make(map[string]bool, len(s.Columns))
	pkCount := 0
	for _, c := range s.Columns {
		lower := lowerASCII(c.Name)
		if seen[lower] {
			out = append(out, semErr(errs.KindDuplicateColumn, c.Line, c.Col, "duplicate column %q", c.Name))
		}
		seen[lower] = true
		if c.PrimaryKey {
			pkCount++
		}
		if lowerASCII(c.Type) == "varchar" && c.Length <= 0 {
			out = append(out, semErr(errs.KindTypeMismatch, c.Line, c.Col, "VARCHAR column %q must declare a positive length", c.Name))
		}
	}
	if pkCount > 1 {
		out = append(out, semErr(errs.KindMultiplePrimaryKeys, s.Line, s.Col, "table %q declares more than one PRIMARY KEY column", s.Table))
	}
	return out
}

func (a *Analyzer) checkInsert(s *ast.InsertStatement) []*errs.Error {
	var out []*errs.Error

	schema, err := a.cat.GetSchema(s.Table)
	if err != nil {
		return []*errs.Error{semErr(errs.KindUnknownTable, s.Line, s.Col, "unknown table %q", s.Table)}
	}

	targetCols := s.Columns
	if len(targetCols) == 0 {
		for _, c := range schema.Columns {
			targetCols = append(targetCols, c.Name)
		}
	}

	colIdx := make([]int, len(targetCols))
	for i, name := range targetCols {
		idx := schema.IndexOf(name)
		if idx < 0 {
			out = append(out, semErr(errs.KindUnknownColumn, s.Line, s.Col, "unknown column %q of table %q", name, s.Table))
		}
		colIdx[i] = idx
	}

	for _, valueRow := range s.Rows {
		if len(valueRow) != len(targetCols) {
			out = append(out, semErr(errs.KindArityMismatch, s.Line, s.Col,
				"expected %d values, got %d", len(targetCols), len(valueRow)))
			continue
		}
		for i, expr := range valueRow {
			if colIdx[i] < 0 {
				continue
			}
			col := schema.Columns[colIdx[i]]
			out = append(out, a.checkLiteralAssignable(expr, col)...)
		}
	}

	// Every NOT NULL column not present in targetCols with no default
	// fails here rather than at insert time, matching §4.3's arity rule.
	if len(s.Columns) > 0 {
		provided := make(map[string]bool, len(targetCols))
		for _, name := range targetCols {
			provided[lowerASCII(name)] = true
		}
		for _, col := range schema.Columns {
			if !col.Nullable && !provided[lowerASCII(col.Name)] {
				out = append(out, semErr(errs.KindNotNullViolation, s.Line, s.Col,
					"column %q is NOT NULL and has no default", col.Name))
			}
		}
	}

	return out
}

func (a *Analyzer) checkLiteralAssignable(expr ast.Expression, col types.Column) []*errs.Error {
	switch lit := expr.(type) {
	case *ast.NullLiteral:
		if !col.Nullable {
			return []*errs.Error{semErr(errs.KindNotNullViolation, lit.Line, lit.Col,
				"column %q is NOT NULL", col.Name)}
		}
		return nil
	case *ast.IntLiteral:
		if col.Type != types.INT {
			return []*errs.Error{semErr(errs.KindTypeMismatch, lit.Line, lit.Col,
				"column %q is %s, value is INT", col.Name, col.Type)}
		}
		return nil
	case *ast.BoolLiteral:
		if col.Type != types.BOOLEAN {
			return []*errs.Error{semErr(errs.KindTypeMismatch, lit.Line, lit.Col,
				"column %q is %s, value is BOOLEAN", col.Name, col.Type)}
		}
		return nil
	case *ast.StringLiteral:
		if col.Type != types.VARCHAR {
			return []*errs.Error{semErr(errs.KindTypeMismatch, lit.Line, lit.Col,
				"column %q is %s, value is VARCHAR", col.Name, col.Type)}
		}
		if len(lit.Value) > col.Length {
			return []*errs.Error{semErr(errs.KindLengthOverflow, lit.Line, lit.Col,
				"value for column %q is %d bytes, exceeds declared %d", col.Name, len(lit.Value), col.Length)}
		}
		return nil
	default:
		return []*errs.Error{semErr(errs.KindTypeMismatch, 0, 0, "unsupported literal in INSERT")}
	}
}

func (a *Analyzer) checkSelect(s *ast.SelectStatement) []*errs.Error {
	var out []*errs.Error
	schema, err := a.cat.GetSchema(s.Table)
	if err != nil {
		return []*errs.Error{semErr(errs.KindUnknownTable, s.Line, s.Col, "unknown table %q", s.Table)}
	}

	if !s.Star {
		for _, expr := range s.Columns {
			out = append(out, a.checkExpr(expr, schema)...)
		}
	}
	if s.Where != nil {
		t, errsList := a.typeOfExpr(s.Where, schema)
		out = append(out, errsList...)
		if t != types.BOOLEAN && len(errsList) == 0 {
			out = append(out, semErr(errs.KindTypeMismatch, s.Line, s.Col, "WHERE clause must be BOOLEAN"))
		}
	}
	return out
}

func (a *Analyzer) checkDelete(s *ast.DeleteStatement) []*errs.Error {
	var out []*errs.Error
	schema, err := a.cat.GetSchema(s.Table)
	if err != nil {
		return []*errs.Error{semErr(errs.KindUnknownTable, s.Line, s.Col, "unknown table %q", s.Table)}
	}
	if s.Where != nil {
		t, errsList := a.typeOfExpr(s.Where, schema)
		out = append(out, errsList...)
		if t != types.BOOLEAN && len(errsList) == 0 {
			out = append(out, semErr(errs.KindTypeMismatch, s.Line, s.Col, "WHERE clause must be BOOLEAN"))
		}
	}
	return out
}

func (a *Analyzer) checkExpr(expr ast.Expression, schema *types.Schema) []*errs.Error {
	_, out := a.typeOfExpr(expr, schema)
	return out
}

// typeOfExpr resolves expr's static type against schema, collecting every
// semantic error encountered along the way. The returned type is
// best-effort when errors are present; callers should treat it as
// advisory in that case.
func (a *Analyzer) typeOfExpr(expr ast.Expression, schema *types.Schema) (types.ColumnType, []*errs.Error) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return types.INT, nil
	case *ast.StringLiteral:
		return types.VARCHAR, nil
	case *ast.BoolLiteral:
		return types.BOOLEAN, nil
	case *ast.NullLiteral:
		return types.INT, nil // untyped NULL unifies with whatever it's compared against
	case *ast.ColumnRef:
		idx := schema.IndexOf(e.Name)
		if idx < 0 {
			return types.INT, []*errs.Error{semErr(errs.KindUnknownColumn, e.Line, e.Col, "unknown column %q", e.Name)}
		}
		return schema.Columns[idx].Type, nil
	case *ast.UnaryExpression:
		t, out := a.typeOfExpr(e.Operand, schema)
		if e.Operator == "NOT" && t != types.BOOLEAN && len(out) == 0 {
			out = append(out, semErr(errs.KindTypeMismatch, e.Line, e.Col, "NOT requires a BOOLEAN operand"))
		}
		if e.Operator == "-" && t != types.INT && len(out) == 0 {
			out = append(out, semErr(errs.KindTypeMismatch, e.Line, e.Col, "unary - requires an INT operand"))
		}
		if e.Operator == "NOT" {
			return types.BOOLEAN, out
		}
		return types.INT, out
	case *ast.BinaryExpression:
		return a.typeOfBinary(e, schema)
	default:
		return types.INT, []*errs.Error{semErr(errs.KindTypeMismatch, 0, 0, "unsupported expression")}
	}
}

func (a *Analyzer) typeOfBinary(e *ast.BinaryExpression, schema *types.Schema) (types.ColumnType, []*errs.Error) {
	lt, lout := a.typeOfExpr(e.Left, schema)
	rt, rout := a.typeOfExpr(e.Right, schema)
	out := append(lout, rout...)

	switch e.Kind {
	case ast.OpLogical:
		if lt != types.BOOLEAN && isConcrete(e.Left) {
			out = append(out, semErr(errs.KindTypeMismatch, e.Line, e.Col, "%s requires BOOLEAN operands", e.Operator))
		}
		if rt != types.BOOLEAN && isConcrete(e.Right) {
			out = append(out, semErr(errs.KindTypeMismatch, e.Line, e.Col, "%s requires BOOLEAN operands", e.Operator))
		}
		return types.BOOLEAN, out
	case ast.OpArith:
		if lt != types.INT && isConcrete(e.Left) {
			out = append(out, semErr(errs.KindTypeMismatch, e.Line, e.Col, "arithmetic requires INT operands"))
		}
		if rt != types.INT && isConcrete(e.Right) {
			out = append(out, semErr(errs.KindTypeMismatch, e.Line, e.Col, "arithmetic requires INT operands"))
		}
		return types.INT, out
	case ast.OpCmp:
		if isConcrete(e.Left) && isConcrete(e.Right) && lt != rt {
			out = append(out, semErr(errs.KindTypeMismatch, e.Line, e.Col,
				"cannot compare %s with %s", lt, rt))
		}
		return types.BOOLEAN, out
	default:
		return types.BOOLEAN, out
	}
}

// isConcrete reports whether expr has a definite type (not an untyped
// NULL literal, which is assignable to any comparison).
func isConcrete(expr ast.Expression) bool {
	_, ok := expr.(*ast.NullLiteral)
	return !ok
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
