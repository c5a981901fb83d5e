// Package ast defines MoonSQL's abstract syntax tree (spec §3): a tagged
// variant over {CreateTable, Insert, Select, Delete} statements, with
// Expression a tagged variant over {ColumnRef, IntLiteral, StringLiteral,
// NullLiteral, BinaryOp}.
package ast

import (
	"fmt"
	"strings"
)

// Node is the common interface for every AST node.
type Node interface {
	String() string
}

// Statement is a top-level parsed statement.
type Statement interface {
	Node
	statementNode()
}

// Expression is a value-producing AST node.
type Expression interface {
	Node
	expressionNode()
}

// ColumnDef is one column_def of a CREATE TABLE column list.
type ColumnDef struct {
	Name       string
	Type       string // INT | VARCHAR | BOOLEAN
	Length     int    // VARCHAR(n); 0 for non-VARCHAR
	Nullable   bool
	PrimaryKey bool
	Line, Col  int
}

func (c *ColumnDef) String() string {
	parts := []string{c.Name, c.Type}
	if c.Type == "VARCHAR" {
		parts[1] = fmt.Sprintf("VARCHAR(%d)", c.Length)
	}
	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	} else if !c.Nullable {
		parts = append(parts, "NOT NULL")
	}
	return strings.Join(parts, " ")
}

// CreateTableStatement is `CREATE TABLE ident ( column_def, ... )`.
type CreateTableStatement struct {
	Table   string
	Columns []*ColumnDef
	Line, Col int
}

func (s *CreateTableStatement) statementNode() {}
func (s *CreateTableStatement) String() string {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = c.String()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", s.Table, strings.Join(cols, ", "))
}

// InsertStatement is `INSERT INTO ident (cols)? VALUES (...), ...`.
type InsertStatement struct {
	Table     string
	Columns   []string // explicit column list; nil if omitted
	Rows      [][]Expression
	Line, Col int
}

func (s *InsertStatement) statementNode() {}
func (s *InsertStatement) String() string {
	return fmt.Sprintf("INSERT INTO %s (%d rows)", s.Table, len(s.Rows))
}

// SelectStatement is `SELECT ('*' | expr_list) FROM ident (WHERE expr)?`.
type SelectStatement struct {
	Star      bool
	Columns   []Expression // nil if Star
	Table     string
	Where     Expression // nil if WHERE omitted
	Line, Col int
}

func (s *SelectStatement) statementNode() {}
func (s *SelectStatement) String() string {
	cols := "*"
	if !s.Star {
		parts := make([]string, len(s.Columns))
		for i, c := range s.Columns {
			parts[i] = c.String()
		}
		cols = strings.Join(parts, ", ")
	}
	str := fmt.Sprintf("SELECT %s FROM %s", cols, s.Table)
	if s.Where != nil {
		str += " WHERE " + s.Where.String()
	}
	return str
}

// DeleteStatement is `DELETE FROM ident (WHERE expr)?`.
type DeleteStatement struct {
	Table     string
	Where     Expression // nil if WHERE omitted
	Line, Col int
}

func (s *DeleteStatement) statementNode() {}
func (s *DeleteStatement) String() string {
	str := fmt.Sprintf("DELETE FROM %s", s.Table)
	if s.Where != nil {
		str += " WHERE " + s.Where.String()
	}
	return str
}

// ColumnRef is a bare column name reference.
type ColumnRef struct {
	Name      string
	Line, Col int
}

func (e *ColumnRef) expressionNode() {}
func (e *ColumnRef) String() string  { return e.Name }

// IntLiteral is an integer constant.
type IntLiteral struct {
	Value     int64
	Line, Col int
}

func (e *IntLiteral) expressionNode() {}
func (e *IntLiteral) String() string  { return fmt.Sprintf("%d", e.Value) }

// StringLiteral is a single-quoted string constant.
type StringLiteral struct {
	Value     string
	Line, Col int
}

func (e *StringLiteral) expressionNode() {}
func (e *StringLiteral) String() string  { return fmt.Sprintf("'%s'", e.Value) }

// BoolLiteral is TRUE or FALSE.
type BoolLiteral struct {
	Value     bool
	Line, Col int
}

func (e *BoolLiteral) expressionNode() {}
func (e *BoolLiteral) String() string  { return fmt.Sprintf("%v", e.Value) }

// NullLiteral is the NULL keyword used as an expression.
type NullLiteral struct {
	Line, Col int
}

func (e *NullLiteral) expressionNode() {}
func (e *NullLiteral) String() string  { return "NULL" }

// BinaryOpKind classifies a BinaryExpression's operator family (spec §3).
type BinaryOpKind int

const (
	OpCmp BinaryOpKind = iota
	OpLogical
	OpArith
)

// BinaryExpression is `left OP right`, where OP is a comparison, logical,
// or arithmetic operator (spec §4.2 precedence table).
type BinaryExpression struct {
	Left      Expression
	Operator  string // =, <>, <, <=, >, >=, AND, OR, +, -, *, /
	Right     Expression
	Kind      BinaryOpKind
	Line, Col int
}

func (e *BinaryExpression) expressionNode() {}
func (e *BinaryExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left.String(), e.Operator, e.Right.String())
}

// UnaryExpression is `NOT operand` or unary minus.
type UnaryExpression struct {
	Operator  string // NOT, -
	Operand   Expression
	Line, Col int
}

func (e *UnaryExpression) expressionNode() {}
func (e *UnaryExpression) String() string {
	return fmt.Sprintf("%s %s", e.Operator, e.Operand.String())
}
