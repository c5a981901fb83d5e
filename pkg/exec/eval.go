package exec

import (
	"github.com/YilianFengyue/moonsql/pkg/errs"
	"github.com/YilianFengyue/moonsql/pkg/plan"
	"github.com/YilianFengyue/moonsql/pkg/types"
)

// Eval evaluates expr against row under schema, following SQL three-valued
// logic: any arithmetic or comparison touching a NULL operand yields NULL;
// AND/OR follow Kleene's tables; NOT NULL is NULL (spec §4.10).
func Eval(expr plan.ExprNode, schema *types.Schema, row types.Row) (types.Value, error) {
	switch expr.NodeKind {
	case plan.ExprIntLit:
		return types.IntValue(expr.Int), nil
	case plan.ExprStringLit:
		return types.StringValue(expr.String), nil
	case plan.ExprBoolLit:
		return types.BoolValue(expr.Bool), nil
	case plan.ExprNullLit:
		return types.NullValue(types.INT), nil
	case plan.ExprColumnRef:
		idx := schema.IndexOf(expr.Column)
		if idx < 0 {
			return types.Value{}, errs.New(errs.PhaseExec, errs.KindUnknownColumn, 0, 0, "unknown column %q", expr.Column)
		}
		return row[idx], nil
	case plan.ExprUnary:
		return evalUnary(expr, schema, row)
	case plan.ExprBinary:
		return evalBinary(expr, schema, row)
	default:
		return types.Value{}, errs.New(errs.PhaseExec, errs.KindDecodeError, 0, 0, "unrecognized expression node")
	}
}

func evalUnary(expr plan.ExprNode, schema *types.Schema, row types.Row) (types.Value, error) {
	v, err := Eval(*expr.Operand, schema, row)
	if err != nil {
		return types.Value{}, err
	}
	switch expr.Operator {
	case "NOT":
		if v.Null {
			return types.NullValue(types.BOOLEAN), nil
		}
		return types.BoolValue(!v.B), nil
	case "-":
		if v.Null {
			return types.NullValue(types.INT), nil
		}
		return types.IntValue(-v.I), nil
	default:
		return types.Value{}, errs.New(errs.PhaseExec, errs.KindDecodeError, 0, 0, "unknown unary operator %q", expr.Operator)
	}
}

func evalBinary(expr plan.ExprNode, schema *types.Schema, row types.Row) (types.Value, error) {
	switch expr.Operator {
	case "AND":
		return evalAnd(expr, schema, row)
	case "OR":
		return evalOr(expr, schema, row)
	}

	left, err := Eval(*expr.Left, schema, row)
	if err != nil {
		return types.Value{}, err
	}
	right, err := Eval(*expr.Right, schema, row)
	if err != nil {
		return types.Value{}, err
	}

	switch expr.Operator {
	case "=", "<>", "<", "<=", ">", ">=":
		return evalComparison(expr.Operator, left, right)
	case "+", "-", "*", "/":
		return evalArith(expr.Operator, left, right)
	default:
		return types.Value{}, errs.New(errs.PhaseExec, errs.KindDecodeError, 0, 0, "unknown operator %q", expr.Operator)
	}
}

// evalAnd implements Kleene's AND: FALSE dominates even against NULL.
func evalAnd(expr plan.ExprNode, schema *types.Schema, row types.Row) (types.Value, error) {
	left, err := Eval(*expr.Left, schema, row)
	if err != nil {
		return types.Value{}, err
	}
	if !left.Null && !left.B {
		return types.BoolValue(false), nil
	}
	right, err := Eval(*expr.Right, schema, row)
	if err != nil {
		return types.Value{}, err
	}
	if !right.Null && !right.B {
		return types.BoolValue(false), nil
	}
	if left.Null || right.Null {
		return types.NullValue(types.BOOLEAN), nil
	}
	return types.BoolValue(true), nil
}

// evalOr implements Kleene's OR: TRUE dominates even against NULL.
func evalOr(expr plan.ExprNode, schema *types.Schema, row types.Row) (types.Value, error) {
	left, err := Eval(*expr.Left, schema, row)
	if err != nil {
		return types.Value{}, err
	}
	if !left.Null && left.B {
		return types.BoolValue(true), nil
	}
	right, err := Eval(*expr.Right, schema, row)
	if err != nil {
		return types.Value{}, err
	}
	if !right.Null && right.B {
		return types.BoolValue(true), nil
	}
	if left.Null || right.Null {
		return types.NullValue(types.BOOLEAN), nil
	}
	return types.BoolValue(false), nil
}

func evalComparison(op string, left, right types.Value) (types.Value, error) {
	if left.Null || right.Null {
		return types.NullValue(types.BOOLEAN), nil
	}

	var cmp int
	switch left.Kind {
	case types.INT:
		switch {
		case left.I < right.I:
			cmp = -1
		case left.I > right.I:
			cmp = 1
		}
	case types.VARCHAR:
		// Byte-order collation (Open Question (b)): compare raw UTF-8 bytes.
		switch {
		case left.S < right.S:
			cmp = -1
		case left.S > right.S:
			cmp = 1
		}
	case types.BOOLEAN:
		lb, rb := 0, 0
		if left.B {
			lb = 1
		}
		if right.B {
			rb = 1
		}
		cmp = lb - rb
	}

	switch op {
	case "=":
		return types.BoolValue(cmp == 0), nil
	case "<>":
		return types.BoolValue(cmp != 0), nil
	case "<":
		return types.BoolValue(cmp < 0), nil
	case "<=":
		return types.BoolValue(cmp <= 0), nil
	case ">":
		return types.BoolValue(cmp > 0), nil
	case ">=":
		return types.BoolValue(cmp >= 0), nil
	default:
		return types.Value{}, errs.New(errs.PhaseExec, errs.KindDecodeError, 0, 0, "unknown comparison operator %q", op)
	}
}

func evalArith(op string, left, right types.Value) (types.Value, error) {
	if left.Null || right.Null {
		return types.NullValue(types.INT), nil
	}
	switch op {
	case "+":
		return types.IntValue(left.I + right.I), nil
	case "-":
		return types.IntValue(left.I - right.I), nil
	case "*":
		return types.IntValue(left.I * right.I), nil
	case "/":
		if right.I == 0 {
			return types.Value{}, errs.New(errs.PhaseExec, errs.KindDivisionByZero, 0, 0, "division by zero")
		}
		return types.IntValue(left.I / right.I), nil
	default:
		return types.Value{}, errs.New(errs.PhaseExec, errs.KindDecodeError, 0, 0, "unknown arithmetic operator %q", op)
	}
}
