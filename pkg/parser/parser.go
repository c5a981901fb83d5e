// Package parser implements MoonSQL's recursive-descent parser (spec §4.2):
// CREATE TABLE, INSERT, SELECT, and DELETE, each terminated by ';'.
package parser

import (
	"strconv"
	"strings"

	"github.com/YilianFengyue/moonsql/pkg/ast"
	"github.com/YilianFengyue/moonsql/pkg/errs"
	"github.com/YilianFengyue/moonsql/pkg/lexer"
	"github.com/YilianFengyue/moonsql/pkg/token"
)

// Parser walks a pre-tokenized statement's token stream.
type Parser struct {
	toks []token.Token
	pos  int

	cur  token.Token
	peek token.Token

	errs []*errs.Error
}

func newParser(toks []token.Token) *Parser {
	p := &Parser{toks: toks}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.peek
	if p.pos < len(p.toks) {
		p.peek = p.toks[p.pos]
		p.pos++
	} else {
		p.peek = token.Token{Kind: token.EOF}
	}
}

func (p *Parser) curKeyword(kw string) bool {
	return p.cur.Kind == token.KEYWORD && strings.EqualFold(p.cur.Lit, kw)
}

func (p *Parser) curPunct(lit string) bool {
	return p.cur.Kind == token.PUNCT && p.cur.Lit == lit
}

func (p *Parser) curOp(lit string) bool {
	return p.cur.Kind == token.OPERATOR && p.cur.Lit == lit
}

func (p *Parser) errorf(format string, args ...any) *errs.Error {
	e := errs.New(errs.PhaseParse, errs.KindUnexpectedToken, p.cur.Line, p.cur.Column, format, args...)
	p.errs = append(p.errs, e)
	return e
}

func (p *Parser) expectPunct(lit string) bool {
	if p.curPunct(lit) {
		p.advance()
		return true
	}
	p.errorf("expected %q, got %q", lit, p.cur.Lit)
	return false
}

func (p *Parser) expectKeyword(kw string) bool {
	if p.curKeyword(kw) {
		p.advance()
		return true
	}
	p.errorf("expected %s, got %q", kw, p.cur.Lit)
	return false
}

func (p *Parser) expectIdent() (string, bool) {
	if p.cur.Kind == token.IDENT {
		name := p.cur.Lit
		p.advance()
		return name, true
	}
	p.errorf("expected identifier, got %q", p.cur.Lit)
	return "", false
}

// ParseScript tokenizes and parses src as a sequence of ';'-terminated
// statements. A statement's parse error does not corrupt parsing of
// subsequent statements: the parser resynchronizes by consuming up to the
// next ';' (spec §4.2). Lex errors from the whole input are reported
// alongside parse errors, each tagged with its own phase.
func ParseScript(src string) ([]ast.Statement, []*errs.Error) {
	toks, lexErrs := lexer.Tokenize(src)

	var stmts []ast.Statement
	var allErrs []*errs.Error
	allErrs = append(allErrs, lexErrs...)

	start := 0
	for start < len(toks) && toks[start].Kind != token.EOF {
		end := start
		for end < len(toks) && !(toks[end].Kind == token.PUNCT && toks[end].Lit == ";") && toks[end].Kind != token.EOF {
			end++
		}
		hasSemicolon := end < len(toks) && toks[end].Kind == token.PUNCT && toks[end].Lit == ";"

		stmtToks := append([]token.Token{}, toks[start:end]...)
		stmtToks = append(stmtToks, token.Token{Kind: token.EOF, Line: toks[end].Line, Column: toks[end].Column})

		p := newParser(stmtToks)
		stmt, err := p.parseStatement()
		allErrs = append(allErrs, p.errs...)
		if err == nil && len(p.errs) == 0 {
			if p.cur.Kind != token.EOF {
				allErrs = append(allErrs, errs.New(errs.PhaseParse, errs.KindUnexpectedToken, p.cur.Line, p.cur.Column,
					"unexpected trailing token %q", p.cur.Lit))
			} else {
				stmts = append(stmts, stmt)
			}
		}

		if !hasSemicolon && end < len(toks) {
			allErrs = append(allErrs, errs.New(errs.PhaseParse, errs.KindMissingSemicolon, toks[end].Line, toks[end].Column,
				"missing semicolon"))
		}

		start = end + 1
	}

	return stmts, allErrs
}

// ParseOne parses exactly one ';'-terminated statement and is used by tests
// and tooling that want a single AST without script-level bookkeeping.
func ParseOne(src string) (ast.Statement, []*errs.Error) {
	stmts, errs := ParseScript(src)
	if len(stmts) == 0 {
		return nil, errs
	}
	return stmts[0], errs
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch {
	case p.curKeyword("CREATE"):
		return p.parseCreateTable()
	case p.curKeyword("INSERT"):
		return p.parseInsert()
	case p.curKeyword("SELECT"):
		return p.parseSelect()
	case p.curKeyword("DELETE"):
		return p.parseDelete()
	default:
		return nil, p.errorf("unsupported statement, got %q", p.cur.Lit)
	}
}

// --- CREATE TABLE ---

func (p *Parser) parseCreateTable() (*ast.CreateTableStatement, error) {
	line, col := p.cur.Line, p.cur.Column
	if !p.expectKeyword("CREATE") {
		return nil, p.errs[len(p.errs)-1]
	}
	if !p.expectKeyword("TABLE") {
		return nil, p.errs[len(p.errs)-1]
	}
	name, ok := p.expectIdent()
	if !ok {
		return nil, p.errs[len(p.errs)-1]
	}
	if !p.expectPunct("(") {
		return nil, p.errs[len(p.errs)-1]
	}

	stmt := &ast.CreateTableStatement{Table: name, Line: line, Col: col}

	col0, err := p.parseColumnDef()
	if err != nil {
		return nil, err
	}
	stmt.Columns = append(stmt.Columns, col0)

	for p.curPunct(",") {
		p.advance()
		c, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, c)
	}

	if !p.expectPunct(")") {
		return nil, p.errs[len(p.errs)-1]
	}

	return stmt, nil
}

func (p *Parser) parseColumnDef() (*ast.ColumnDef, error) {
	line, col := p.cur.Line, p.cur.Column
	name, ok := p.expectIdent()
	if !ok {
		return nil, p.errs[len(p.errs)-1]
	}

	cd := &ast.ColumnDef{Name: name, Nullable: true, Line: line, Col: col}

	switch {
	case p.curKeyword("INT"):
		cd.Type = "INT"
		p.advance()
	case p.curKeyword("BOOLEAN"):
		cd.Type = "BOOLEAN"
		p.advance()
	case p.curKeyword("VARCHAR"):
		cd.Type = "VARCHAR"
		p.advance()
		if !p.expectPunct("(") {
			return nil, p.errs[len(p.errs)-1]
		}
		if p.cur.Kind != token.INT_LITERAL {
			return nil, p.errorf("expected length in VARCHAR(n), got %q", p.cur.Lit)
		}
		n, _ := strconv.Atoi(p.cur.Lit)
		cd.Length = n
		p.advance()
		if !p.expectPunct(")") {
			return nil, p.errs[len(p.errs)-1]
		}
	default:
		return nil, p.errorf("expected column type, got %q", p.cur.Lit)
	}

	for p.curKeyword("PRIMARY") || p.curKeyword("NOT") {
		switch {
		case p.curKeyword("PRIMARY"):
			p.advance()
			if !p.expectKeyword("KEY") {
				return nil, p.errs[len(p.errs)-1]
			}
			cd.PrimaryKey = true
			cd.Nullable = false
		case p.curKeyword("NOT"):
			p.advance()
			if !p.expectKeyword("NULL") {
				return nil, p.errs[len(p.errs)-1]
			}
			cd.Nullable = false
		}
	}

	return cd, nil
}

// --- INSERT ---

func (p *Parser) parseInsert() (*ast.InsertStatement, error) {
	line, col := p.cur.Line, p.cur.Column
	if !p.expectKeyword("INSERT") {
		return nil, p.errs[len(p.errs)-1]
	}
	if !p.expectKeyword("INTO") {
		return nil, p.errs[len(p.errs)-1]
	}
	name, ok := p.expectIdent()
	if !ok {
		return nil, p.errs[len(p.errs)-1]
	}

	stmt := &ast.InsertStatement{Table: name, Line: line, Col: col}

	if p.curPunct("(") {
		p.advance()
		cols, err := p.parseIdentList()
		if err != nil {
			return nil, err
		}
		stmt.Columns = cols
		if !p.expectPunct(")") {
			return nil, p.errs[len(p.errs)-1]
		}
	}

	if !p.expectKeyword("VALUES") {
		return nil, p.errs[len(p.errs)-1]
	}

	row, err := p.parseValueTuple()
	if err != nil {
		return nil, err
	}
	stmt.Rows = append(stmt.Rows, row)

	for p.curPunct(",") {
		p.advance()
		row, err := p.parseValueTuple()
		if err != nil {
			return nil, err
		}
		stmt.Rows = append(stmt.Rows, row)
	}

	return stmt, nil
}

func (p *Parser) parseIdentList() ([]string, error) {
	name, ok := p.expectIdent()
	if !ok {
		return nil, p.errs[len(p.errs)-1]
	}
	names := []string{name}
	for p.curPunct(",") {
		p.advance()
		name, ok := p.expectIdent()
		if !ok {
			return nil, p.errs[len(p.errs)-1]
		}
		names = append(names, name)
	}
	return names, nil
}

func (p *Parser) parseValueTuple() ([]ast.Expression, error) {
	if !p.expectPunct("(") {
		return nil, p.errs[len(p.errs)-1]
	}
	var values []ast.Expression

	v, err := p.parseLiteralExpr()
	if err != nil {
		return nil, err
	}
	values = append(values, v)

	for p.curPunct(",") {
		p.advance()
		v, err := p.parseLiteralExpr()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	if !p.expectPunct(")") {
		return nil, p.errs[len(p.errs)-1]
	}
	return values, nil
}

// parseLiteralExpr parses a literal value in a VALUES tuple: an optionally
// signed integer, a string, NULL, TRUE, or FALSE.
func (p *Parser) parseLiteralExpr() (ast.Expression, error) {
	line, col := p.cur.Line, p.cur.Column
	neg := false
	if p.curOp("-") {
		neg = true
		p.advance()
	} else if p.curOp("+") {
		p.advance()
	}

	switch {
	case p.cur.Kind == token.INT_LITERAL:
		n, err := strconv.ParseInt(p.cur.Lit, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer literal %q", p.cur.Lit)
		}
		if neg {
			n = -n
		}
		p.advance()
		return &ast.IntLiteral{Value: n, Line: line, Col: col}, nil
	case p.cur.Kind == token.STRING_LITERAL:
		if neg {
			return nil, p.errorf("unexpected '-' before string literal")
		}
		s := p.cur.Lit
		p.advance()
		return &ast.StringLiteral{Value: s, Line: line, Col: col}, nil
	case p.curKeyword("NULL"):
		if neg {
			return nil, p.errorf("unexpected '-' before NULL")
		}
		p.advance()
		return &ast.NullLiteral{Line: line, Col: col}, nil
	case p.curKeyword("TRUE"):
		if neg {
			return nil, p.errorf("unexpected '-' before TRUE")
		}
		p.advance()
		return &ast.BoolLiteral{Value: true, Line: line, Col: col}, nil
	case p.curKeyword("FALSE"):
		if neg {
			return nil, p.errorf("unexpected '-' before FALSE")
		}
		p.advance()
		return &ast.BoolLiteral{Value: false, Line: line, Col: col}, nil
	default:
		return nil, p.errorf("expected literal value, got %q", p.cur.Lit)
	}
}

// --- SELECT ---

func (p *Parser) parseSelect() (*ast.SelectStatement, error) {
	line, col := p.cur.Line, p.cur.Column
	if !p.expectKeyword("SELECT") {
		return nil, p.errs[len(p.errs)-1]
	}

	stmt := &ast.SelectStatement{Line: line, Col: col}

	if p.curOp("*") {
		stmt.Star = true
		p.advance()
	} else {
		cols, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		stmt.Columns = cols
	}

	if !p.expectKeyword("FROM") {
		return nil, p.errs[len(p.errs)-1]
	}
	name, ok := p.expectIdent()
	if !ok {
		return nil, p.errs[len(p.errs)-1]
	}
	stmt.Table = name

	if p.curKeyword("WHERE") {
		p.advance()
		where, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	return stmt, nil
}

func (p *Parser) parseExprList() ([]ast.Expression, error) {
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	exprs := []ast.Expression{e}
	for p.curPunct(",") {
		p.advance()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

// --- DELETE ---

func (p *Parser) parseDelete() (*ast.DeleteStatement, error) {
	line, col := p.cur.Line, p.cur.Column
	if !p.expectKeyword("DELETE") {
		return nil, p.errs[len(p.errs)-1]
	}
	if !p.expectKeyword("FROM") {
		return nil, p.errs[len(p.errs)-1]
	}
	name, ok := p.expectIdent()
	if !ok {
		return nil, p.errs[len(p.errs)-1]
	}

	stmt := &ast.DeleteStatement{Table: name, Line: line, Col: col}

	if p.curKeyword("WHERE") {
		p.advance()
		where, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	return stmt, nil
}

// --- Expressions, lowest to highest precedence: OR, AND, NOT, comparison,
// additive, multiplicative, unary minus, primary (spec §4.2). ---

func (p *Parser) parseExpression() (ast.Expression, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.curKeyword("OR") {
		line, col := p.cur.Line, p.cur.Column
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpression{Left: left, Operator: "OR", Right: right, Kind: ast.OpLogical, Line: line, Col: col}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.curKeyword("AND") {
		line, col := p.cur.Line, p.cur.Column
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpression{Left: left, Operator: "AND", Right: right, Kind: ast.OpLogical, Line: line, Col: col}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expression, error) {
	if p.curKeyword("NOT") {
		line, col := p.cur.Line, p.cur.Column
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpression{Operator: "NOT", Operand: operand, Line: line, Col: col}, nil
	}
	return p.parseComparison()
}

var cmpOps = map[string]bool{"=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *Parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == token.OPERATOR && cmpOps[p.cur.Lit] {
		op := p.cur.Lit
		line, col := p.cur.Line, p.cur.Column
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpression{Left: left, Operator: op, Right: right, Kind: ast.OpCmp, Line: line, Col: col}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.curOp("+") || p.curOp("-") {
		op := p.cur.Lit
		line, col := p.cur.Line, p.cur.Column
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpression{Left: left, Operator: op, Right: right, Kind: ast.OpArith, Line: line, Col: col}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.curOp("*") || p.curOp("/") {
		op := p.cur.Lit
		line, col := p.cur.Line, p.cur.Column
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpression{Left: left, Operator: op, Right: right, Kind: ast.OpArith, Line: line, Col: col}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	if p.curOp("-") {
		line, col := p.cur.Line, p.cur.Column
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpression{Operator: "-", Operand: operand, Line: line, Col: col}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	line, col := p.cur.Line, p.cur.Column
	switch {
	case p.cur.Kind == token.INT_LITERAL:
		n, err := strconv.ParseInt(p.cur.Lit, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer literal %q", p.cur.Lit)
		}
		p.advance()
		return &ast.IntLiteral{Value: n, Line: line, Col: col}, nil
	case p.cur.Kind == token.STRING_LITERAL:
		s := p.cur.Lit
		p.advance()
		return &ast.StringLiteral{Value: s, Line: line, Col: col}, nil
	case p.curKeyword("NULL"):
		p.advance()
		return &ast.NullLiteral{Line: line, Col: col}, nil
	case p.curKeyword("TRUE"):
		p.advance()
		return &ast.BoolLiteral{Value: true, Line: line, Col: col}, nil
	case p.curKeyword("FALSE"):
		p.advance()
		return &ast.BoolLiteral{Value: false, Line: line, Col: col}, nil
	case p.cur.Kind == token.IDENT:
		name := p.cur.Lit
		p.advance()
		return &ast.ColumnRef{Name: name, Line: line, Col: col}, nil
	case p.curPunct("("):
		p.advance()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if !p.expectPunct(")") {
			return nil, p.errs[len(p.errs)-1]
		}
		return e, nil
	default:
		return nil, p.errorf("unexpected token in expression: %q", p.cur.Lit)
	}
}
