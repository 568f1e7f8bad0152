package parser

import (
	"strings"

	"github.com/cuemby/mercury/pkg/sparql/ast"
	"github.com/cuemby/mercury/pkg/sparql/lexer"
)

// parseExpr parses a full conditional-or expression (the FILTER/BIND/
// ORDER BY/HAVING expression grammar): precedence climbs
// Or -> And -> Relational -> Additive -> Multiplicative -> Unary -> Primary.
func (p *Parser) parseExpr() ast.Expr {
	return p.parseOr()
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.tok.Kind == lexer.Or {
		p.advance()
		right := p.parseAnd()
		left = ast.Expr{Kind: ast.ExprBinary, Op: "||", Args: []ast.Expr{left, right}}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseRelational()
	for p.tok.Kind == lexer.And {
		p.advance()
		right := p.parseRelational()
		left = ast.Expr{Kind: ast.ExprBinary, Op: "&&", Args: []ast.Expr{left, right}}
	}
	return left
}

func (p *Parser) parseRelational() ast.Expr {
	left := p.parseAdditive()
	op := ""
	switch p.tok.Kind {
	case lexer.Eq:
		op = "="
	case lexer.Ne:
		op = "!="
	case lexer.Lt:
		op = "<"
	case lexer.Gt:
		op = ">"
	case lexer.Le:
		op = "<="
	case lexer.Ge:
		op = ">="
	default:
		return left
	}
	p.advance()
	right := p.parseAdditive()
	return ast.Expr{Kind: ast.ExprBinary, Op: op, Args: []ast.Expr{left, right}}
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.tok.Kind == lexer.Plus || p.tok.Kind == lexer.Minus {
		op := "+"
		if p.tok.Kind == lexer.Minus {
			op = "-"
		}
		p.advance()
		right := p.parseMultiplicative()
		left = ast.Expr{Kind: ast.ExprBinary, Op: op, Args: []ast.Expr{left, right}}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for p.tok.Kind == lexer.Star || p.tok.Kind == lexer.Slash {
		op := "*"
		if p.tok.Kind == lexer.Slash {
			op = "/"
		}
		p.advance()
		right := p.parseUnary()
		left = ast.Expr{Kind: ast.ExprBinary, Op: op, Args: []ast.Expr{left, right}}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.tok.Kind {
	case lexer.Bang:
		p.advance()
		e := p.parseUnary()
		return ast.Expr{Kind: ast.ExprUnary, Op: "!", Args: []ast.Expr{e}}
	case lexer.Minus:
		p.advance()
		e := p.parseUnary()
		return ast.Expr{Kind: ast.ExprUnary, Op: "-", Args: []ast.Expr{e}}
	case lexer.Plus:
		p.advance()
		return p.parseUnary()
	default:
		return p.parsePrimaryExpr()
	}
}

var aggregateNames = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
	"GROUP_CONCAT": true, "SAMPLE": true,
}

// parsePrimaryExpr parses a primary expression: parenthesized group,
// variable, literal/IRI term, builtin/aggregate call, or EXISTS/NOT
// EXISTS.
func (p *Parser) parsePrimaryExpr() ast.Expr {
	start := p.tok.Start
	switch {
	case p.tok.Kind == lexer.LParen:
		p.advance()
		e := p.parseExpr()
		p.expectKind(lexer.RParen, "')'")
		return e
	case p.tok.Kind == lexer.Var:
		name := p.varName()
		return ast.Expr{Kind: ast.ExprVar, Name: name, Span: ast.Span{Start: start, End: p.tok.Start}}
	case p.kw("NOT"):
		p.advance()
		p.expectKeyword("EXISTS")
		pat := p.parseGroupGraphPattern(p.depth)
		return ast.Expr{Kind: ast.ExprNotExists, Pattern: pat}
	case p.kw("EXISTS"):
		p.advance()
		pat := p.parseGroupGraphPattern(p.depth)
		return ast.Expr{Kind: ast.ExprExists, Pattern: pat}
	case p.tok.Kind == lexer.Keyword:
		name := strings.ToUpper(p.text())
		switch name {
		case "TRUE", "FALSE":
			p.advance()
			lit := boolLiteral(name == "TRUE")
			return ast.Expr{Kind: ast.ExprTerm, Term: ast.Term{Kind: ast.TermLiteral, Literal: lit}}
		}
		p.advance()
		distinct := false
		p.expectKind(lexer.LParen, "'('")
		if aggregateNames[name] {
			distinct = p.acceptKeyword("DISTINCT")
		}
		var args []ast.Expr
		if name == "COUNT" && p.tok.Kind == lexer.Star {
			p.advance()
		} else {
			for p.tok.Kind != lexer.RParen {
				args = append(args, p.parseExpr())
				if !p.acceptKind(lexer.Comma) {
					break
				}
			}
		}
		p.expectKind(lexer.RParen, "')'")
		kind := ast.ExprCall
		if aggregateNames[name] {
			kind = ast.ExprAggregate
		}
		return ast.Expr{Kind: kind, Name: name, Args: args, Distinct: distinct, Span: ast.Span{Start: start, End: p.tok.Start}}
	default:
		t := p.parseTerm()
		return ast.Expr{Kind: ast.ExprTerm, Term: t, Span: t.Span}
	}
}
