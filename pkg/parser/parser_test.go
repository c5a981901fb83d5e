package parser

import (
	"testing"

	"github.com/YilianFengyue/moonsql/pkg/ast"
)

func mustParseOne(t *testing.T, src string) ast.Statement {
	t.Helper()
	stmt, errs := ParseOne(src)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors for %q: %v", src, errs)
	}
	if stmt == nil {
		t.Fatalf("expected a statement for %q", src)
	}
	return stmt
}

func TestParseCreateTable(t *testing.T) {
	stmt := mustParseOne(t, "CREATE TABLE widgets (id INT PRIMARY KEY, label VARCHAR(32), active BOOLEAN);")
	ct, ok := stmt.(*ast.CreateTableStatement)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if ct.Table != "widgets" {
		t.Fatalf("got table %q", ct.Table)
	}
	if len(ct.Columns) != 3 {
		t.Fatalf("got %d columns", len(ct.Columns))
	}
	if !ct.Columns[0].PrimaryKey || ct.Columns[0].Nullable {
		t.Fatalf("expected id to be PRIMARY KEY and NOT NULL: %+v", ct.Columns[0])
	}
	if ct.Columns[1].Type != "VARCHAR" || ct.Columns[1].Length != 32 {
		t.Fatalf("got %+v", ct.Columns[1])
	}
}

func TestParseInsertWithExplicitColumns(t *testing.T) {
	stmt := mustParseOne(t, "INSERT INTO widgets (id, label) VALUES (1, 'gear'), (2, NULL);")
	ins, ok := stmt.(*ast.InsertStatement)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if len(ins.Columns) != 2 || ins.Columns[0] != "id" {
		t.Fatalf("got columns %v", ins.Columns)
	}
	if len(ins.Rows) != 2 {
		t.Fatalf("got %d rows", len(ins.Rows))
	}
	if _, ok := ins.Rows[1][1].(*ast.NullLiteral); !ok {
		t.Fatalf("expected second row's label to parse as NULL, got %T", ins.Rows[1][1])
	}
}

func TestParseInsertWithNegativeInteger(t *testing.T) {
	stmt := mustParseOne(t, "INSERT INTO widgets VALUES (-5, 'x');")
	ins := stmt.(*ast.InsertStatement)
	lit := ins.Rows[0][0].(*ast.IntLiteral)
	if lit.Value != -5 {
		t.Fatalf("got %d", lit.Value)
	}
}

func TestParseSelectStarWithWhere(t *testing.T) {
	stmt := mustParseOne(t, "SELECT * FROM widgets WHERE id = 1;")
	sel, ok := stmt.(*ast.SelectStatement)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if !sel.Star {
		t.Fatal("expected Star == true")
	}
	be, ok := sel.Where.(*ast.BinaryExpression)
	if !ok {
		t.Fatalf("got %T", sel.Where)
	}
	if be.Operator != "=" || be.Kind != ast.OpCmp {
		t.Fatalf("got %+v", be)
	}
}

func TestParseSelectColumnListAndLogicalWhere(t *testing.T) {
	stmt := mustParseOne(t, "SELECT id, label FROM widgets WHERE id > 1 AND active = TRUE;")
	sel := stmt.(*ast.SelectStatement)
	if sel.Star {
		t.Fatal("expected Star == false")
	}
	if len(sel.Columns) != 2 {
		t.Fatalf("got %d columns", len(sel.Columns))
	}
	be := sel.Where.(*ast.BinaryExpression)
	if be.Operator != "AND" || be.Kind != ast.OpLogical {
		t.Fatalf("got %+v", be)
	}
}

func TestParseDeleteWithoutWhere(t *testing.T) {
	stmt := mustParseOne(t, "DELETE FROM widgets;")
	del, ok := stmt.(*ast.DeleteStatement)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if del.Where != nil {
		t.Fatalf("expected nil WHERE, got %v", del.Where)
	}
}

func TestParseScriptReportsMissingSemicolon(t *testing.T) {
	_, errs := ParseScript("SELECT * FROM widgets")
	if len(errs) == 0 {
		t.Fatal("expected a missing-semicolon error")
	}
	found := false
	for _, e := range errs {
		if e.Kind == "MissingSemicolon" {
			found = true
		}
	}
	if !found {
		t.Fatalf("got errors %v", errs)
	}
}

func TestParseScriptRecoversAfterBadStatement(t *testing.T) {
	stmts, errs := ParseScript("GARBAGE STATEMENT; SELECT * FROM widgets;")
	if len(errs) == 0 {
		t.Fatal("expected an error for the garbage statement")
	}
	if len(stmts) != 1 {
		t.Fatalf("expected the second statement to still parse, got %d statements", len(stmts))
	}
	if _, ok := stmts[0].(*ast.SelectStatement); !ok {
		t.Fatalf("got %T", stmts[0])
	}
}

func TestParseScriptMultipleStatements(t *testing.T) {
	stmts, errs := ParseScript(`
		CREATE TABLE widgets (id INT PRIMARY KEY, label VARCHAR(16));
		INSERT INTO widgets VALUES (1, 'gear');
		SELECT * FROM widgets;
		DELETE FROM widgets WHERE id = 1;
	`)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(stmts) != 4 {
		t.Fatalf("got %d statements", len(stmts))
	}
}
