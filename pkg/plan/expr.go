package plan

import "github.com/YilianFengyue/moonsql/pkg/ast"

// ExprKind tags an ExprNode's variant for JSON display.
type ExprKind string

const (
	ExprColumnRef ExprKind = "column"
	ExprIntLit    ExprKind = "int"
	ExprStringLit ExprKind = "string"
	ExprBoolLit   ExprKind = "bool"
	ExprNullLit   ExprKind = "null"
	ExprBinary    ExprKind = "binary"
	ExprUnary     ExprKind = "unary"
)

// ExprNode is a flattened, JSON-serializable expression tree used inside
// Filter and Project plan nodes. It carries the same information as
// pkg/ast.Expression but with no interface indirection, so plan JSON
// output is stable regardless of the AST's internal node types.
type ExprNode struct {
	NodeKind ExprKind `json:"kind"`

	Column string `json:"column,omitempty"`
	Int    int64  `json:"int,omitempty"`
	String string `json:"string,omitempty"`
	Bool   bool   `json:"bool,omitempty"`

	Operator string      `json:"operator,omitempty"`
	Left     *ExprNode   `json:"left,omitempty"`
	Right    *ExprNode   `json:"right,omitempty"`
	Operand  *ExprNode   `json:"operand,omitempty"`
}

func lowerExpr(e ast.Expression) ExprNode {
	switch v := e.(type) {
	case *ast.ColumnRef:
		return ExprNode{NodeKind: ExprColumnRef, Column: v.Name}
	case *ast.IntLiteral:
		return ExprNode{NodeKind: ExprIntLit, Int: v.Value}
	case *ast.StringLiteral:
		return ExprNode{NodeKind: ExprStringLit, String: v.Value}
	case *ast.BoolLiteral:
		return ExprNode{NodeKind: ExprBoolLit, Bool: v.Value}
	case *ast.NullLiteral:
		return ExprNode{NodeKind: ExprNullLit}
	case *ast.BinaryExpression:
		left := lowerExpr(v.Left)
		right := lowerExpr(v.Right)
		return ExprNode{NodeKind: ExprBinary, Operator: v.Operator, Left: &left, Right: &right}
	case *ast.UnaryExpression:
		operand := lowerExpr(v.Operand)
		return ExprNode{NodeKind: ExprUnary, Operator: v.Operator, Operand: &operand}
	default:
		return ExprNode{NodeKind: ExprNullLit}
	}
}
