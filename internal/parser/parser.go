// Package parser implements R+'s recursive-descent parser: statements are
// dispatched by lookahead, expressions by precedence climbing.
package parser

import (
	"fmt"

	"github.com/rplus-lang/rplus/internal/ast"
	"github.com/rplus-lang/rplus/internal/lexer"
	"github.com/rplus-lang/rplus/internal/token"
)

type Parser struct {
	l         *lexer.Lexer
	curToken  token.Token
	peekToken token.Token
	prevToken token.Token
	errors    []string
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:      l,
		errors: []string{},
	}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// ParseProgram parses the full token stream into a Program. If any
// statement produced a parse error, the caller should treat the result
// as unusable even though a best-effort AST (via synchronize-based
// recovery) is still returned, so later errors in the same pass can be
// collected and reported together.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}

	for p.curToken.Type != token.EOF {
		p.skipNewlines()
		if p.curToken.Type == token.EOF {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
		p.skipNewlines()
	}
	if len(prog.Statements) > 0 {
		prog.NodeSpan = token.Span{Start: prog.Statements[0].Span().Start, End: prog.Statements[len(prog.Statements)-1].Span().End}
	}
	return prog
}

func (p *Parser) parseStatement() ast.Statement {
	before := len(p.errors)
	stmt := p.parseStatementInner()
	if len(p.errors) > before {
		p.synchronize()
	}
	return stmt
}

// synchronize discards tokens until the start of the next statement so a
// single malformed statement doesn't prevent the rest of the file from
// being checked in the same pass.
func (p *Parser) synchronize() {
	for p.curToken.Type != token.EOF {
		if p.curToken.Type == token.Semi || p.curToken.Type == token.Newline {
			p.nextToken()
			return
		}
		switch p.peekToken.Type {
		case token.Function, token.If, token.While, token.For, token.Return,
			token.Var, token.Const, token.Class:
			p.nextToken()
			return
		}
		p.nextToken()
	}
}

func (p *Parser) parseStatementInner() ast.Statement {
	switch p.curToken.Type {
	case token.Function:
		return p.parseFuncDecl()
	case token.Return:
		return p.parseReturn()
	case token.If:
		return p.parseIf()
	case token.While:
		return p.parseWhile()
	case token.For:
		return p.parseFor()
	case token.Var, token.Const:
		return p.parseVarDecl()
	case token.Break:
		return p.parseBreak()
	case token.Continue:
		return p.parseContinue()
	case token.LBrace:
		return p.parseBlock()
	case token.Semi:
		stmt := &ast.EmptyStmt{SemiPos: p.curToken.Pos, StmtSpan: token.Span{Start: p.curToken.Pos, End: p.curToken.Pos}}
		p.nextToken()
		return stmt
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) parseBlock() *ast.BlockStmt {
	block := &ast.BlockStmt{LBrace: p.curToken.Pos}
	p.nextToken()
	p.skipNewlines()
	for p.curToken.Type != token.RBrace && p.curToken.Type != token.EOF {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.skipNewlines()
	}
	end := block.LBrace
	if p.curToken.Type == token.RBrace {
		end = p.curToken.Pos
		p.nextToken()
	} else if len(block.Statements) > 0 {
		end = block.Statements[len(block.Statements)-1].Span().End
	}
	block.BlockSpan = token.Span{Start: block.LBrace, End: end}
	return block
}

func (p *Parser) parseVarDecl() ast.Statement {
	decl := &ast.VarDecl{DeclPos: p.curToken.Pos}
	if p.curToken.Type == token.Const {
		decl.Kind = ast.KindConst
	} else {
		decl.Kind = ast.KindVar
	}
	p.nextToken()

	for {
		if p.curToken.Type != token.Ident {
			p.errorf(p.curToken.Pos, "Expected identifier at line %d", p.curToken.Pos.Line)
			break
		}
		d := ast.Declarator{Name: p.curToken.Literal, Pos: p.curToken.Pos}
		if p.peekToken.Type == token.Assign {
			p.nextToken() // move to '='
			p.nextToken() // move to initializer
			d.Init = p.parseExpression(lowest)
		}
		decl.Declarators = append(decl.Declarators, d)
		if p.peekToken.Type != token.Comma {
			break
		}
		p.nextToken() // move to ','
		p.nextToken() // move to next name
	}

	end := decl.DeclPos
	if p.curToken.Type != token.EOF {
		end = p.curToken.Pos
	}
	decl.StmtSpan = token.Span{Start: decl.DeclPos, End: end}
	if n := len(decl.Declarators); n > 0 && decl.Declarators[n-1].Init != nil && p.curToken.Type == token.RBrace && decl.Declarators[n-1].Init.Span().End == p.curToken.Pos {
		p.nextToken() // step past an object literal's own '}'
	}
	p.consumeStatementEnd()
	return decl
}

func (p *Parser) parseReturn() ast.Statement {
	ret := &ast.ReturnStmt{Return: p.curToken.Pos}
	p.nextToken()
	if !p.isEndOfStatement(p.curToken.Type) {
		ret.Value = p.parseExpression(lowest)
	}
	end := ret.Return
	if ret.Value != nil {
		end = ret.Value.Span().End
	}
	ret.StmtSpan = token.Span{Start: ret.Return, End: end}
	if ret.Value != nil && p.curToken.Type == token.RBrace && end == p.curToken.Pos {
		p.nextToken() // step past an object literal's own '}'
	}
	p.consumeStatementEnd()
	return ret
}

func (p *Parser) parseBreak() ast.Statement {
	stmt := &ast.BreakStmt{BreakPos: p.curToken.Pos}
	p.nextToken()
	if p.curToken.Type == token.Ident {
		stmt.Label = p.curToken.Literal
		p.nextToken()
	}
	stmt.StmtSpan = token.Span{Start: stmt.BreakPos, End: stmt.BreakPos}
	p.consumeStatementEnd()
	return stmt
}

func (p *Parser) parseContinue() ast.Statement {
	stmt := &ast.ContinueStmt{ContinuePos: p.curToken.Pos}
	p.nextToken()
	if p.curToken.Type == token.Ident {
		stmt.Label = p.curToken.Literal
		p.nextToken()
	}
	stmt.StmtSpan = token.Span{Start: stmt.ContinuePos, End: stmt.ContinuePos}
	p.consumeStatementEnd()
	return stmt
}

func (p *Parser) parseIf() ast.Statement {
	stmt := &ast.IfStmt{IfPos: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return nil
	}
	p.nextToken()
	p.nextToken()
	stmt.Condition = p.parseExpression(lowest)
	if !p.consumeRParen() {
		return stmt
	}
	p.skipNewlines()
	stmt.Conseq = p.parseBraceOrSingleStmtBlock()

	p.skipNewlinesIfFollowedByElse()
	switch p.curToken.Type {
	case token.ElseIf:
		stmt.Alt = p.parseElseIf()
	case token.Else:
		p.nextToken()
		p.skipNewlines()
		stmt.Alt = p.parseBraceOrSingleStmtBlock()
	}

	end := stmt.IfPos
	if stmt.Alt != nil {
		end = stmt.Alt.Span().End
	} else if stmt.Conseq != nil {
		end = stmt.Conseq.Span().End
	}
	stmt.IfSpan = token.Span{Start: stmt.IfPos, End: end}
	return stmt
}

// parseElseIf parses an `elseif (...) { ... }` clause as a nested IfStmt,
// so a chain of elseifs is just a chain of Alt pointers.
func (p *Parser) parseElseIf() ast.Statement {
	stmt := &ast.IfStmt{IfPos: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return stmt
	}
	p.nextToken()
	p.nextToken()
	stmt.Condition = p.parseExpression(lowest)
	if !p.consumeRParen() {
		return stmt
	}
	p.skipNewlines()
	stmt.Conseq = p.parseBraceOrSingleStmtBlock()

	p.skipNewlinesIfFollowedByElse()
	switch p.curToken.Type {
	case token.ElseIf:
		stmt.Alt = p.parseElseIf()
	case token.Else:
		p.nextToken()
		p.skipNewlines()
		stmt.Alt = p.parseBraceOrSingleStmtBlock()
	}
	end := stmt.IfPos
	if stmt.Alt != nil {
		end = stmt.Alt.Span().End
	} else if stmt.Conseq != nil {
		end = stmt.Conseq.Span().End
	}
	stmt.IfSpan = token.Span{Start: stmt.IfPos, End: end}
	return stmt
}

// skipNewlinesIfFollowedByElse avoids treating a newline between `}` and
// a following `else`/`elseif` as a statement terminator.
func (p *Parser) skipNewlinesIfFollowedByElse() {
	for p.curToken.Type == token.Newline {
		save := p.curToken
		p.nextToken()
		if p.curToken.Type != token.Else && p.curToken.Type != token.ElseIf {
			p.prevToken = save
			return
		}
	}
}

func (p *Parser) parseWhile() ast.Statement {
	stmt := &ast.WhileStmt{WhilePos: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return nil
	}
	p.nextToken()
	p.nextToken()
	stmt.Condition = p.parseExpression(lowest)
	if !p.consumeRParen() {
		return stmt
	}
	p.skipNewlines()
	stmt.Body = p.parseBraceOrSingleStmtBlock()
	end := stmt.WhilePos
	if stmt.Body != nil {
		end = stmt.Body.Span().End
	}
	stmt.NodeSpan = token.Span{Start: stmt.WhilePos, End: end}
	return stmt
}

// parseFor handles both the classic C-style for(init; cond; update) and
// the supplemental for (x in iterable) form.
func (p *Parser) parseFor() ast.Statement {
	forPos := p.curToken.Pos
	if !p.expectPeek(token.LParen) {
		return nil
	}
	p.nextToken() // move to '('
	p.nextToken() // move to first token inside parens

	if p.isForInBinding() {
		return p.parseForIn(forPos)
	}

	stmt := &ast.ForStmt{ForPos: forPos}
	if p.curToken.Type != token.Semi {
		stmt.Init = p.parseForInit()
		p.nextToken() // move past the init's last token
	}
	if p.curToken.Type == token.Semi {
		p.nextToken()
	}
	if p.curToken.Type != token.Semi {
		stmt.Cond = p.parseExpression(lowest)
		p.nextToken()
	}
	if p.curToken.Type == token.Semi {
		p.nextToken()
	}
	if p.curToken.Type != token.RParen {
		stmt.Update = p.parseExpression(lowest)
		p.nextToken()
	}
	if p.curToken.Type != token.RParen {
		p.errorf(p.curToken.Pos, "Expected ')' at line %d", p.curToken.Pos.Line)
	} else {
		p.nextToken()
	}
	p.skipNewlines()
	stmt.Body = p.parseBraceOrSingleStmtBlock()
	end := stmt.ForPos
	if stmt.Body != nil {
		end = stmt.Body.Span().End
	}
	stmt.NodeSpan = token.Span{Start: stmt.ForPos, End: end}
	return stmt
}

// isForInBinding looks ahead to see if this is `for (name in ...)` or
// `for ([k, v] in ...)`.
func (p *Parser) isForInBinding() bool {
	if p.curToken.Type == token.Ident && p.peekToken.Type == token.In {
		return true
	}
	return p.curToken.Type == token.LBracket
}

func (p *Parser) parseForIn(forPos token.Position) ast.Statement {
	stmt := &ast.ForInStmt{ForPos: forPos}
	switch p.curToken.Type {
	case token.Ident:
		stmt.ValueName = p.curToken.Literal
		p.nextToken()
	case token.LBracket:
		if !p.expectPeek(token.Ident) {
			return stmt
		}
		p.nextToken()
		stmt.KeyName = p.curToken.Literal
		if !p.expectPeek(token.Comma) {
			return stmt
		}
		p.nextToken()
		if !p.expectPeek(token.Ident) {
			return stmt
		}
		p.nextToken()
		stmt.ValueName = p.curToken.Literal
		if !p.expectPeek(token.RBracket) {
			return stmt
		}
		p.nextToken()
		p.nextToken() // move past ']'
	}
	if p.curToken.Type != token.In {
		p.errorf(p.curToken.Pos, "Expected 'in' at line %d", p.curToken.Pos.Line)
		return stmt
	}
	p.nextToken()
	stmt.Iterable = p.parseExpression(lowest)
	if !p.consumeRParen() {
		return stmt
	}
	p.skipNewlines()
	stmt.Body = p.parseBraceOrSingleStmtBlock()
	end := stmt.ForPos
	if stmt.Body != nil {
		end = stmt.Body.Span().End
	}
	stmt.NodeSpan = token.Span{Start: stmt.ForPos, End: end}
	return stmt
}

func (p *Parser) parseForInit() ast.Statement {
	if p.curToken.Type == token.Var || p.curToken.Type == token.Const {
		decl := &ast.VarDecl{DeclPos: p.curToken.Pos}
		if p.curToken.Type == token.Const {
			decl.Kind = ast.KindConst
		}
		p.nextToken()
		d := ast.Declarator{Name: p.curToken.Literal, Pos: p.curToken.Pos}
		if p.peekToken.Type == token.Assign {
			p.nextToken()
			p.nextToken()
			d.Init = p.parseExpression(lowest)
		}
		decl.Declarators = append(decl.Declarators, d)
		decl.StmtSpan = token.Span{Start: decl.DeclPos, End: p.curToken.Pos}
		return decl
	}
	expr := p.parseExpression(lowest)
	return &ast.ExprStmt{Expression: expr, Start: expr.Span().Start, StmtSpan: expr.Span()}
}

// parseBraceOrSingleStmtBlock accepts either a real `{ ... }` block or a
// single bare statement, wrapping the latter in a synthetic BlockStmt so
// the compiler only ever lowers BlockStmt bodies.
func (p *Parser) parseBraceOrSingleStmtBlock() *ast.BlockStmt {
	if p.curToken.Type == token.LBrace {
		return p.parseBlock()
	}
	stmt := p.parseStatement()
	block := &ast.BlockStmt{LBrace: p.curToken.Pos}
	if stmt != nil {
		block.Statements = append(block.Statements, stmt)
		block.BlockSpan = stmt.Span()
	}
	return block
}

func (p *Parser) parseFuncDecl() ast.Statement {
	decl := &ast.FuncDecl{FuncPos: p.curToken.Pos}
	if !p.expectPeek(token.Ident) {
		return nil
	}
	p.nextToken()
	decl.Name = p.curToken.Literal
	decl.NamePos = p.curToken.Pos
	if !p.expectPeek(token.LParen) {
		return nil
	}
	p.nextToken() // move to '('
	p.nextToken() // move to first param or ')'
	decl.Params = p.parseParamList()
	p.nextToken() // move past ')'
	p.skipNewlines()
	decl.Body = p.parseBlock()
	end := decl.FuncPos
	if decl.Body != nil {
		end = decl.Body.Span().End
	}
	decl.NodeSpan = token.Span{Start: decl.FuncPos, End: end}
	return decl
}

func (p *Parser) parseExprStatement() ast.Statement {
	stmt := &ast.ExprStmt{Start: p.curToken.Pos}
	stmt.Expression = p.parseExpression(lowest)
	if stmt.Expression != nil {
		stmt.StmtSpan = token.Span{Start: stmt.Start, End: stmt.Expression.Span().End}
		if p.curToken.Type == token.RBrace && stmt.StmtSpan.End == p.curToken.Pos {
			p.nextToken() // step past an object literal's own '}'
		}
	}
	p.consumeStatementEnd()
	return stmt
}

// consumeStatementEnd consumes an optional `;`/newline terminator.
func (p *Parser) consumeStatementEnd() {
	if p.curToken.Type == token.Semi || p.curToken.Type == token.Newline {
		p.nextToken()
		return
	}
	if p.curToken.Type != token.EOF && p.curToken.Type != token.RBrace {
		p.nextToken()
	}
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	left := p.parseUnaryOrPrimary()
	if left == nil {
		return nil
	}
	return p.parseBinaryChain(left, precedence)
}

func (p *Parser) parseUnaryOrPrimary() ast.Expression {
	switch p.curToken.Type {
	case token.Bang, token.Minus, token.Plus, token.Tilde, token.Inc, token.Dec:
		return p.parsePrefixExpression()
	default:
		return p.parsePostfixChain(p.parsePrimary())
	}
}

func (p *Parser) parsePrimary() ast.Expression {
	pos := p.curToken.Pos
	span := token.Span{Start: pos, End: pos}
	switch p.curToken.Type {
	case token.Ident:
		expr := &ast.Identifier{Name: p.curToken.Literal, PosT: pos, Sp: span}
		return expr
	case token.Number:
		return &ast.NumberLiteral{Value: p.curToken.Literal, PosT: pos, Sp: span}
	case token.Float:
		return &ast.FloatLiteral{Value: p.curToken.Literal, PosT: pos, Sp: span}
	case token.String:
		return &ast.StringLiteral{Value: p.curToken.Literal, PosT: pos, Sp: span}
	case token.Char:
		lit := p.curToken.Literal
		var b byte
		if len(lit) > 0 {
			b = lit[0]
		}
		return &ast.CharLiteral{Value: b, PosT: pos, Sp: span}
	case token.True:
		return &ast.BoolLiteral{Value: true, PosT: pos, Sp: span}
	case token.False:
		return &ast.BoolLiteral{Value: false, PosT: pos, Sp: span}
	case token.Null:
		return &ast.NullLiteral{PosT: pos, Sp: span}
	case token.Function:
		return p.parseFuncExpr()
	case token.LParen:
		p.nextToken()
		inner := p.parseExpression(lowest)
		if !p.expectPeek(token.RParen) {
			return nil
		}
		p.nextToken()
		return inner
	case token.LBracket:
		return p.parseArrayOrRange()
	case token.LBrace:
		return p.parseObjectLiteral()
	default:
		p.errorf(pos, "Unexpected token: %s", p.curToken.Type)
		return nil
	}
}

// parsePostfixChain handles repeated call/index/member/postfix-inc-dec
// suffixes on a primary expression.
func (p *Parser) parsePostfixChain(left ast.Expression) ast.Expression {
	if left == nil {
		return nil
	}
	for {
		switch p.peekToken.Type {
		case token.LParen:
			p.nextToken()
			left = p.parseCallExpression(left)
		case token.LBracket:
			p.nextToken()
			left = p.parseIndexExpression(left)
		case token.Dot:
			p.nextToken()
			left = p.parseMemberExpression(left)
		case token.Inc, token.Dec:
			p.nextToken()
			left = &ast.UnaryExpr{Operator: p.curToken.Type, Right: left, Prefix: false, PosT: p.curToken.Pos, Sp: token.Span{Start: left.Span().Start, End: p.curToken.Pos}}
		default:
			return left
		}
		if left == nil {
			return nil
		}
	}
}

func (p *Parser) parseBinaryChain(left ast.Expression, precedence int) ast.Expression {
	for !p.isEndOfExpression(p.peekToken.Type) && precedence < p.peekPrecedence() {
		op := p.peekToken.Type
		switch op {
		case token.Assign:
			p.nextToken()
			left = p.parseAssignExpression(left, "")
		default:
			if compound, ok := token.CompoundOp(op); ok {
				p.nextToken()
				left = p.parseAssignExpression(left, compound)
				break
			}
			if op == token.Question {
				p.nextToken()
				left = p.parseConditionalExpression(left)
				break
			}
			p.nextToken()
			left = p.parseInfixExpression(left)
		}
		if left == nil {
			return nil
		}
	}
	return left
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expr := &ast.UnaryExpr{
		Operator: p.curToken.Type,
		Prefix:   true,
		PosT:     p.curToken.Pos,
	}
	p.nextToken()
	expr.Right = p.parseUnaryOrPrimary()
	if expr.Right == nil {
		return nil
	}
	expr.Sp = token.Span{Start: expr.PosT, End: expr.Right.Span().End}
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.BinaryExpr{
		Left:     left,
		Operator: p.curToken.Type,
		PosT:     p.curToken.Pos,
	}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	expr.Sp = token.Span{Start: left.Span().Start, End: expr.Right.Span().End}
	return expr
}

// parseAssignExpression handles both plain `=` (compoundOp == "") and
// compound operators like `+=`, which desugar here into an AssignExpr
// that still records the original operator for the compiler.
func (p *Parser) parseAssignExpression(left ast.Expression, compoundOp token.Type) ast.Expression {
	expr := &ast.AssignExpr{
		Left:       left,
		CompoundOp: compoundOp,
		PosT:       p.curToken.Pos,
	}
	p.nextToken()
	expr.Value = p.parseExpression(assignPrecedence - 1)
	if expr.Value != nil {
		expr.Sp = token.Span{Start: left.Span().Start, End: expr.Value.Span().End}
	}
	switch left.(type) {
	case *ast.Identifier, *ast.IndexExpr, *ast.MemberExpr:
	default:
		p.errorf(expr.PosT, "Invalid assignment target")
	}
	return expr
}

func (p *Parser) parseConditionalExpression(cond ast.Expression) ast.Expression {
	expr := &ast.ConditionalExpr{Condition: cond, PosT: p.curToken.Pos}
	p.nextToken()
	expr.Then = p.parseExpression(conditionalPrecedence)
	if !p.expectPeek(token.Colon) {
		return nil
	}
	p.nextToken()
	p.nextToken()
	expr.Else = p.parseExpression(conditionalPrecedence - 1)
	if expr.Else != nil {
		expr.Sp = token.Span{Start: cond.Span().Start, End: expr.Else.Span().End}
	}
	return expr
}

func (p *Parser) parseCallExpression(callee ast.Expression) ast.Expression {
	expr := &ast.CallExpr{
		Callee: callee,
		PosT:   p.curToken.Pos,
	}
	p.nextToken()
	expr.Arguments = p.parseExpressionList(token.RParen)
	end := expr.PosT
	if len(expr.Arguments) > 0 {
		end = expr.Arguments[len(expr.Arguments)-1].Span().End
	} else if p.curToken.Type == token.RParen {
		end = p.curToken.Pos
	}
	expr.Sp = token.Span{Start: callee.Span().Start, End: end}
	return expr
}

func (p *Parser) parseMemberExpression(left ast.Expression) ast.Expression {
	pos := p.curToken.Pos
	if !p.expectPeek(token.Ident) {
		return nil
	}
	p.nextToken()
	prop := p.curToken.Literal
	return &ast.MemberExpr{
		Left:     left,
		Property: prop,
		PosT:     pos,
		Sp:       token.Span{Start: left.Span().Start, End: p.curToken.Pos},
	}
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	pos := p.curToken.Pos
	p.nextToken()
	index := p.parseExpression(lowest)
	if !p.expectPeek(token.RBracket) {
		return nil
	}
	p.nextToken()
	return &ast.IndexExpr{
		Left:  left,
		Index: index,
		PosT:  pos,
		Sp:    token.Span{Start: left.Span().Start, End: pos},
	}
}

func (p *Parser) parseArrayOrRange() ast.Expression {
	startPos := p.curToken.Pos
	p.nextToken()
	if p.curToken.Type == token.RBracket {
		p.nextToken()
		return &ast.ArrayLiteral{PosT: startPos, Sp: token.Span{Start: startPos, End: startPos}}
	}

	first := p.parseExpression(lowest)
	if p.peekToken.Type == token.Range {
		p.nextToken()
		p.nextToken()
		end := p.parseExpression(lowest)
		if p.peekToken.Type != token.RBracket {
			p.errorf(p.curToken.Pos, "Expected ']' to close range")
			return &ast.RangeLiteral{Start: first, End: end, PosT: startPos}
		}
		p.nextToken()
		return &ast.RangeLiteral{Start: first, End: end, PosT: startPos, Sp: token.Span{Start: startPos, End: p.curToken.Pos}}
	}

	elements := []ast.Expression{first}
	trailingComma := false
	for p.peekToken.Type == token.Comma {
		p.nextToken()
		p.nextToken()
		if p.curToken.Type == token.RBracket {
			trailingComma = true
			break
		}
		elements = append(elements, p.parseExpression(lowest))
	}
	if trailingComma {
		return &ast.ArrayLiteral{Elements: elements, PosT: startPos, Sp: token.Span{Start: startPos, End: p.curToken.Pos}}
	}
	if p.peekToken.Type != token.RBracket {
		p.errorf(p.curToken.Pos, "Expected ']' to close array")
		return &ast.ArrayLiteral{Elements: elements, PosT: startPos}
	}
	p.nextToken()
	return &ast.ArrayLiteral{Elements: elements, PosT: startPos, Sp: token.Span{Start: startPos, End: p.curToken.Pos}}
}

func (p *Parser) parseObjectLiteral() ast.Expression {
	obj := &ast.ObjectLiteral{PosT: p.curToken.Pos}
	p.nextToken()
	p.skipNewlines()
	if p.curToken.Type == token.RBrace {
		obj.Sp = token.Span{Start: obj.PosT, End: p.curToken.Pos}
		p.nextToken()
		return obj
	}
	for {
		p.skipNewlines()
		if p.curToken.Type == token.RBrace {
			break
		}
		field := ast.ObjectField{Key: p.parseObjectKey()}
		if !p.expectPeek(token.Colon) {
			return obj
		}
		p.nextToken()
		p.nextToken()
		p.skipNewlines()
		field.Value = p.parseExpression(lowest)
		obj.Fields = append(obj.Fields, field)
		p.skipPeekNewlines()
		if p.peekToken.Type == token.RBrace {
			p.nextToken()
			break
		}
		if p.peekToken.Type != token.Comma {
			p.errorf(p.curToken.Pos, "Expected ',' or '}' in object literal")
			break
		}
		p.nextToken()
		p.nextToken()
		if p.curToken.Type == token.RBrace {
			break
		}
	}
	obj.Sp = token.Span{Start: obj.PosT, End: p.curToken.Pos}
	return obj
}

func (p *Parser) parseObjectKey() ast.ObjectKey {
	pos := p.curToken.Pos
	span := token.Span{Start: pos, End: pos}
	switch p.curToken.Type {
	case token.Ident:
		return ast.ObjectKey{Ident: p.curToken.Literal, PosT: pos, Sp: span}
	case token.String:
		val := p.curToken.Literal
		return ast.ObjectKey{Str: &val, PosT: pos, Sp: span}
	case token.Number:
		val := p.curToken.Literal
		return ast.ObjectKey{Num: &val, PosT: pos, Sp: span}
	default:
		p.errorf(pos, "Invalid object key")
		return ast.ObjectKey{PosT: pos, Sp: span}
	}
}

func (p *Parser) parseExpressionList(end token.Type) []ast.Expression {
	list := []ast.Expression{}
	if p.curToken.Type == end {
		return list
	}
	for {
		exp := p.parseExpression(lowest)
		if exp == nil {
			return list
		}
		list = append(list, exp)
		if p.peekToken.Type == token.Comma {
			p.nextToken()
			p.nextToken()
			if p.curToken.Type == end {
				p.errorf(p.curToken.Pos, "Expected expression")
				return list
			}
			continue
		}
		if p.peekToken.Type == end {
			p.nextToken()
		}
		if p.curToken.Type != end {
			p.errorf(p.peekToken.Pos, "Expected ',' or %s", end)
		}
		break
	}
	return list
}

func (p *Parser) parseParamList() []ast.Param {
	params := []ast.Param{}
	if p.curToken.Type == token.RParen {
		return params
	}
	if p.curToken.Type != token.Ident {
		p.errorf(p.curToken.Pos, "Expected parameter")
		return params
	}
	params = append(params, ast.Param{Name: p.curToken.Literal, Pos: p.curToken.Pos, Sp: token.Span{Start: p.curToken.Pos, End: p.curToken.Pos}})
	for p.peekToken.Type == token.Comma {
		p.nextToken()
		p.nextToken()
		if p.curToken.Type != token.Ident {
			p.errorf(p.curToken.Pos, "Expected parameter")
			return params
		}
		params = append(params, ast.Param{Name: p.curToken.Literal, Pos: p.curToken.Pos, Sp: token.Span{Start: p.curToken.Pos, End: p.curToken.Pos}})
	}
	if p.expectPeek(token.RParen) {
		p.nextToken() // leave cur on ')', as for an empty list
	}
	return params
}

func (p *Parser) consumeRParen() bool {
	if p.curToken.Type == token.RParen {
		p.nextToken()
		return true
	}
	if p.peekToken.Type == token.RParen {
		p.nextToken()
		p.nextToken()
		return true
	}
	p.errorf(p.curToken.Pos, "Expected ')' at line %d", p.curToken.Pos.Line)
	return false
}

func (p *Parser) parseFuncExpr() ast.Expression {
	fn := &ast.FuncExpr{FuncPos: p.curToken.Pos}
	if !p.expectPeek(token.LParen) {
		return nil
	}
	p.nextToken()
	p.nextToken()
	fn.Params = p.parseParamList()
	p.nextToken()
	p.skipNewlines()
	fn.Body = p.parseBlock()
	end := fn.FuncPos
	if fn.Body != nil {
		end = fn.Body.Span().End
	}
	fn.Sp = token.Span{Start: fn.FuncPos, End: end}
	return fn
}

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekToken.Type == t {
		return true
	}
	p.errorf(p.peekToken.Pos, "Expected next token to be %s, got %s at line %d", t, p.peekToken.Type, p.peekToken.Pos.Line)
	return false
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return lowest
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return lowest
}

func (p *Parser) skipNewlines() {
	for p.curToken.Type == token.Newline {
		p.nextToken()
	}
}

func (p *Parser) skipPeekNewlines() {
	for p.peekToken.Type == token.Newline {
		p.nextToken()
	}
}

func (p *Parser) isEndOfExpression(t token.Type) bool {
	switch t {
	case token.Newline, token.RBrace, token.EOF, token.Comma, token.RParen, token.RBracket, token.Semi, token.Colon:
		return true
	default:
		return false
	}
}

func (p *Parser) isEndOfStatement(t token.Type) bool {
	switch t {
	case token.Newline, token.RBrace, token.EOF, token.Semi:
		return true
	default:
		return false
	}
}

func (p *Parser) errorf(pos token.Position, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Sprintf("%s at line %d", msg, pos.Line))
}

const (
	lowest = iota + 1
	assignPrecedence
	conditionalPrecedence
	orPrecedence
	andPrecedence
	equalPrecedence
	lessGreaterPrecedence
	sumPrecedence
	productPrecedence
	prefixPrecedence
	callPrecedence
)

var precedences = map[token.Type]int{
	token.Assign:        assignPrecedence,
	token.PlusAssign:    assignPrecedence,
	token.MinusAssign:   assignPrecedence,
	token.StarAssign:    assignPrecedence,
	token.SlashAssign:   assignPrecedence,
	token.PercentAssign: assignPrecedence,
	token.Question:       conditionalPrecedence,
	token.OrOr:           orPrecedence,
	token.AndAnd:         andPrecedence,
	token.Equal:          equalPrecedence,
	token.NotEqual:       equalPrecedence,
	token.Less:           lessGreaterPrecedence,
	token.LessEqual:      lessGreaterPrecedence,
	token.Greater:        lessGreaterPrecedence,
	token.GreaterEqual:   lessGreaterPrecedence,
	token.Plus:           sumPrecedence,
	token.Minus:          sumPrecedence,
	token.Star:           productPrecedence,
	token.Slash:          productPrecedence,
	token.Percent:        productPrecedence,
	token.LParen:         callPrecedence,
	token.LBracket:       callPrecedence,
	token.Dot:            callPrecedence,
	token.Inc:            callPrecedence,
	token.Dec:            callPrecedence,
}
