// Package parser implements a hand-written recursive-descent parser for
// SPARQL 1.1 Query and Update forms plus Mercury's AS OF/DURING/ALL
// VERSIONS temporal extension (§4.8), built directly on pkg/sparql/lexer
// and producing pkg/sparql/ast nodes. Semantic checks that need whole-
// query context (undefined prefix, aggregate misuse, ungrouped variable
// in projection, Cartesian-product warning) run
// as a second pass over the finished AST and report through pkg/diag.
//
// The descent structure (one method per grammar production, a
// single-token lookahead buffer, panic/recover around the whole parse
// to unwind cleanly on the first hard error) mirrors the pack's SQL
// parsers (sqlparser, tsqlparser, sqldef) rather than any RDF-specific
// example, since none of those touch query languages.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/mercury/pkg/diag"
	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/sparql/ast"
	"github.com/cuemby/mercury/pkg/sparql/lexer"
)

// Parser holds parse state for one query/update string.
type Parser struct {
	src   string
	lex   *lexer.Lexer
	tok   lexer.Token
	bag   *diag.Bag
	depth int
}

// parseError is the panic payload used to unwind on the first fatal
// syntax error; ParseQuery and ParseUpdate recover it and return it as a
// normal error.
type parseError struct{ err error }

// New creates a Parser over src. bag receives semantic diagnostics
// collected by Check; syntax errors are returned directly by ParseQuery
// and ParseUpdate.
func New(src string, bag *diag.Bag) *Parser {
	p := &Parser{src: src, lex: lexer.New(src), bag: bag}
	p.advance()
	return p
}

func (p *Parser) advance() { p.tok = p.lex.Next() }

func (p *Parser) text() string { return p.tok.Text(p.src) }

func (p *Parser) kw(word string) bool { return lexer.KeywordEquals(p.src, p.tok, word) }

func (p *Parser) fail(format string, args ...any) {
	panic(parseError{fmt.Errorf("sparql: %s (at byte %d near %q)", fmt.Sprintf(format, args...), p.tok.Start, snippet(p.src, p.tok.Start))})
}

func snippet(src string, pos int) string {
	end := pos + 12
	if end > len(src) {
		end = len(src)
	}
	if pos > len(src) {
		pos = len(src)
	}
	return src[pos:end]
}

func (p *Parser) expectKind(k lexer.Kind, what string) lexer.Token {
	if p.tok.Kind != k {
		p.fail("expected %s", what)
	}
	t := p.tok
	p.advance()
	return t
}

func (p *Parser) expectKeyword(word string) {
	if !p.kw(word) {
		p.fail("expected keyword %q", word)
	}
	p.advance()
}

func (p *Parser) acceptKeyword(word string) bool {
	if p.kw(word) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) acceptKind(k lexer.Kind) bool {
	if p.tok.Kind == k {
		p.advance()
		return true
	}
	return false
}

// ParseQuery parses a full SPARQL query string. Syntax errors are
// returned as a Go error; call Check afterward for semantic diagnostics.
func (p *Parser) ParseQuery() (q *ast.Query, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(parseError); ok {
				err = pe.err
				return
			}
			panic(r)
		}
	}()
	prologue := p.parsePrologue()
	query := p.parseQueryBody(prologue)
	return query, nil
}

// ParseUpdate parses a full SPARQL Update request (semicolon-separated
// operations sharing one prologue scope, extended per-operation as each
// clause may redeclare PREFIX/BASE in real SPARQL; Mercury's subset
// shares a single leading prologue for simplicity).
func (p *Parser) ParseUpdate() (u *ast.UpdateRequest, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(parseError); ok {
				err = pe.err
				return
			}
			panic(r)
		}
	}()
	prologue := p.parsePrologue()
	req := &ast.UpdateRequest{Prologue: prologue}
	for {
		if p.tok.Kind == lexer.EOF {
			break
		}
		op := p.parseUpdateOperation()
		req.Operations = append(req.Operations, op)
		if !p.acceptKind(lexer.Semicolon) {
			break
		}
	}
	return req, nil
}

func (p *Parser) parsePrologue() ast.Prologue {
	var pr ast.Prologue
	for {
		switch {
		case p.acceptKeyword("BASE"):
			iri := p.expectKind(lexer.IRIRef, "IRI").Text(p.src)
			pr.Base = trimIRI(iri)
		case p.acceptKeyword("PREFIX"):
			start := p.tok.Start
			name := p.parsePrefixName()
			iri := p.expectKind(lexer.IRIRef, "IRI").Text(p.src)
			if len(pr.Prefixes) >= 32 {
				p.fail("too many PREFIX declarations (limit 32)")
			}
			pr.Prefixes = append(pr.Prefixes, ast.PrefixDecl{Name: name, IRI: trimIRI(iri), Span: ast.Span{Start: start, End: p.tok.Start}})
		default:
			return pr
		}
	}
}

func (p *Parser) parsePrefixName() string {
	if p.tok.Kind != lexer.PNameNS {
		p.fail("expected prefix name ending in ':'")
	}
	name := strings.TrimSuffix(p.text(), ":")
	p.advance()
	return name
}

func trimIRI(s string) string {
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return s
}

func (p *Parser) parseQueryBody(prologue ast.Prologue) *ast.Query {
	start := p.tok.Start
	q := &ast.Query{Prologue: prologue}
	switch {
	case p.acceptKeyword("SELECT"):
		q.Form = ast.Select
		q.Select = p.parseSelectClause()
	case p.acceptKeyword("CONSTRUCT"):
		q.Form = ast.Construct
		q.Construct = p.parseConstructTemplate()
	case p.acceptKeyword("DESCRIBE"):
		q.Form = ast.Describe
		q.Describe = p.parseDescribeTargets()
	case p.acceptKeyword("ASK"):
		q.Form = ast.Ask
	default:
		p.fail("expected SELECT, CONSTRUCT, DESCRIBE, or ASK")
	}

	for p.tok.Kind == lexer.Keyword && (p.kw("FROM")) {
		q.Dataset = append(q.Dataset, p.parseDatasetClause())
	}

	if (q.Form != ast.Construct && q.Form != ast.Describe) || p.kw("WHERE") || p.tok.Kind == lexer.LBrace {
		p.expectKeywordOptional("WHERE")
		q.Where = p.parseGroupGraphPattern(0)
	}

	q.Modifier = p.parseSolutionModifier()
	q.Temporal = p.parseTemporalClause()
	q.Span = ast.Span{Start: start, End: p.tok.Start}
	return q
}

func (p *Parser) expectKeywordOptional(word string) {
	p.acceptKeyword(word)
}

func (p *Parser) parseDatasetClause() ast.DatasetClause {
	p.expectKeyword("FROM")
	named := p.acceptKeyword("NAMED")
	iri := p.parseIRI()
	return ast.DatasetClause{IRI: iri, Named: named}
}

func (p *Parser) parseSelectClause() *ast.SelectClause {
	sc := &ast.SelectClause{}
	sc.Distinct = p.acceptKeyword("DISTINCT")
	if !sc.Distinct {
		sc.Reduced = p.acceptKeyword("REDUCED")
	}
	if p.acceptKind(lexer.Star) {
		sc.Star = true
		return sc
	}
	for p.tok.Kind == lexer.Var || p.tok.Kind == lexer.LParen {
		if p.tok.Kind == lexer.Var {
			sc.Vars = append(sc.Vars, ast.ProjectedVar{Var: p.varName()})
			continue
		}
		p.advance() // '('
		e := p.parseExpr()
		p.expectKeyword("AS")
		alias := p.varName()
		p.expectKind(lexer.RParen, "')'")
		if countAggregates(sc.Vars)+1 > 8 {
			p.fail("too many aggregate projections (limit 8)")
		}
		sc.Vars = append(sc.Vars, ast.ProjectedVar{Expr: &e, Alias: alias})
	}
	return sc
}

func countAggregates(vars []ast.ProjectedVar) int {
	n := 0
	for _, v := range vars {
		if v.Expr != nil && v.Expr.Kind == ast.ExprAggregate {
			n++
		}
	}
	return n
}

func (p *Parser) varName() string {
	t := p.expectKind(lexer.Var, "variable")
	return strings.TrimLeft(t.Text(p.src), "?$")
}

func (p *Parser) parseConstructTemplate() []ast.TriplePattern {
	p.expectKind(lexer.LBrace, "'{'")
	var triples []ast.TriplePattern
	for p.tok.Kind != lexer.RBrace {
		triples = append(triples, p.parseTriplesSameSubject(mterm.Term{})...)
	}
	p.advance()
	return triples
}

func (p *Parser) parseDescribeTargets() []ast.Term {
	if p.acceptKind(lexer.Star) {
		return nil
	}
	var out []ast.Term
	for p.tok.Kind == lexer.Var || p.tok.Kind == lexer.IRIRef || p.tok.Kind == lexer.PNameLN || p.tok.Kind == lexer.PNameNS {
		out = append(out, p.parseTerm())
	}
	return out
}

// parseGroupGraphPattern parses "{ ... }" at the given BIND-scope depth
// (§9): patterns nested one level deeper than a BIND see depth+1.
func (p *Parser) parseGroupGraphPattern(depth int) *ast.GroupGraphPattern {
	start := p.tok.Start
	p.expectKind(lexer.LBrace, "'{'")
	ggp := &ast.GroupGraphPattern{Depth: depth}

	for p.tok.Kind != lexer.RBrace {
		switch {
		case p.kw("FILTER"):
			p.advance()
			e := p.parseBracketedOrBuiltinExpr()
			ggp.Elements = append(ggp.Elements, ast.GroupElement{Filter: &ast.FilterElement{Expr: e, Depth: depth}})
		case p.kw("BIND"):
			p.advance()
			p.expectKind(lexer.LParen, "'('")
			e := p.parseExpr()
			p.expectKeyword("AS")
			v := p.varName()
			p.expectKind(lexer.RParen, "')'")
			ggp.Elements = append(ggp.Elements, ast.GroupElement{Bind: &ast.BindElement{Expr: e, Var: v, Depth: depth}})
		case p.kw("OPTIONAL"):
			p.advance()
			sub := p.parseGroupGraphPattern(depth + 1)
			ggp.Elements = append(ggp.Elements, ast.GroupElement{Optional: sub})
		case p.kw("MINUS"):
			p.advance()
			sub := p.parseGroupGraphPattern(depth + 1)
			ggp.Elements = append(ggp.Elements, ast.GroupElement{Minus: sub})
		case p.kw("GRAPH"):
			p.advance()
			g := p.parseTerm()
			sub := p.parseGroupGraphPattern(depth + 1)
			ggp.Elements = append(ggp.Elements, ast.GroupElement{Graph: &ast.GraphElement{Graph: g, Pattern: sub}})
		case p.kw("SERVICE"):
			p.advance()
			silent := p.acceptKeyword("SILENT")
			t := p.parseTerm()
			sub := p.parseGroupGraphPattern(depth + 1)
			ggp.Elements = append(ggp.Elements, ast.GroupElement{Service: &ast.ServiceElement{Silent: silent, Target: t, Pattern: sub}})
		case p.kw("VALUES"):
			p.advance()
			ggp.Elements = append(ggp.Elements, ast.GroupElement{Values: p.parseValuesElement()})
		case p.kw("SELECT"):
			sub := p.parseQueryBody(ast.Prologue{})
			ggp.Elements = append(ggp.Elements, ast.GroupElement{Sub: sub})
		case p.tok.Kind == lexer.LBrace:
			first := p.parseGroupGraphPattern(depth)
			branches := []*ast.GroupGraphPattern{first}
			for p.acceptKeyword("UNION") {
				branches = append(branches, p.parseGroupGraphPattern(depth))
			}
			if len(branches) > 1 {
				ggp.Elements = append(ggp.Elements, ast.GroupElement{Union: branches})
			} else {
				ggp.Elements = append(ggp.Elements, ast.GroupElement{Group: first})
			}
		default:
			if len(ggp.Triples) >= 32 {
				p.fail("too many triple patterns in one group (limit 32)")
			}
			subj := p.parseTerm()
			ggp.Triples = append(ggp.Triples, p.parseTriplesSameSubjectPath(subj)...)
		}
	}
	p.advance()
	ggp.Span = ast.Span{Start: start, End: p.tok.Start}
	return ggp
}

// parseBracketedOrBuiltinExpr parses a FILTER's argument: either a
// parenthesized expression or a bare builtin-function call (EXISTS,
// NOT EXISTS, REGEX, etc. can stand alone without outer parens in the
// full grammar; Mercury requires the parenthesized form for simplicity
// except for EXISTS/NOT EXISTS which read naturally without one).
func (p *Parser) parseBracketedOrBuiltinExpr() ast.Expr {
	if p.kw("EXISTS") || p.kw("NOT") {
		return p.parsePrimaryExpr()
	}
	p.expectKind(lexer.LParen, "'('")
	e := p.parseExpr()
	p.expectKind(lexer.RParen, "')'")
	return e
}

func (p *Parser) parseValuesElement() *ast.ValuesElement {
	ve := &ast.ValuesElement{}
	if p.acceptKind(lexer.LParen) {
		for p.tok.Kind == lexer.Var {
			ve.Vars = append(ve.Vars, p.varName())
		}
		p.expectKind(lexer.RParen, "')'")
		p.expectKind(lexer.LBrace, "'{'")
		for !p.acceptKind(lexer.RBrace) {
			p.expectKind(lexer.LParen, "'('")
			var row []ast.Term
			for p.tok.Kind != lexer.RParen {
				row = append(row, p.parseValuesTerm())
			}
			p.advance()
			ve.Rows = append(ve.Rows, row)
		}
		return ve
	}
	ve.Vars = []string{p.varName()}
	p.expectKind(lexer.LBrace, "'{'")
	for !p.acceptKind(lexer.RBrace) {
		ve.Rows = append(ve.Rows, []ast.Term{p.parseValuesTerm()})
	}
	return ve
}

func (p *Parser) parseValuesTerm() ast.Term {
	if p.kw("UNDEF") {
		p.advance()
		return ast.Term{Kind: ast.TermUndef}
	}
	return p.parseTerm()
}

// parseTriplesSameSubjectPath parses predicate-object lists with
// property path support, for WHERE-clause patterns.
func (p *Parser) parseTriplesSameSubjectPath(subj ast.Term) []ast.TriplePattern {
	var out []ast.TriplePattern
	for {
		path := p.parsePropertyPath()
		obj := p.parseTerm()
		out = append(out, ast.TriplePattern{Subject: subj, Path: path, Object: obj})
		for p.acceptKind(lexer.Comma) {
			obj2 := p.parseTerm()
			out = append(out, ast.TriplePattern{Subject: subj, Path: path, Object: obj2})
		}
		if !p.acceptKind(lexer.Semicolon) {
			break
		}
		if p.tok.Kind == lexer.Dot || p.tok.Kind == lexer.RBrace {
			break
		}
	}
	p.acceptKind(lexer.Dot)
	return out
}

// parseTriplesSameSubject parses a CONSTRUCT-template predicate-object
// list: plain predicate terms only, no property path operators.
func (p *Parser) parseTriplesSameSubject(_ mterm.Term) []ast.TriplePattern {
	subj := p.parseTerm()
	var out []ast.TriplePattern
	for {
		pred := p.parseTerm()
		obj := p.parseTerm()
		out = append(out, ast.TriplePattern{Subject: subj, Path: ast.PropertyPath{Kind: ast.PathSimple, Pred: pred}, Object: obj})
		for p.acceptKind(lexer.Comma) {
			obj2 := p.parseTerm()
			out = append(out, ast.TriplePattern{Subject: subj, Path: ast.PropertyPath{Kind: ast.PathSimple, Pred: pred}, Object: obj2})
		}
		if !p.acceptKind(lexer.Semicolon) {
			break
		}
		if p.tok.Kind == lexer.Dot || p.tok.Kind == lexer.RBrace {
			break
		}
	}
	p.acceptKind(lexer.Dot)
	return out
}

// parsePropertyPath parses a property path expression: alternative of
// sequences of path-primaries with postfix */+/? and prefix ^/!.
func (p *Parser) parsePropertyPath() ast.PropertyPath {
	left := p.parsePathSequence()
	for p.acceptKind(lexer.Pipe) {
		right := p.parsePathSequence()
		l, r := left, right
		left = ast.PropertyPath{Kind: ast.PathAlternative, Left: &l, Right: &r}
	}
	return left
}

func (p *Parser) parsePathSequence() ast.PropertyPath {
	left := p.parsePathPostfix()
	for p.acceptKind(lexer.Slash) {
		right := p.parsePathPostfix()
		l, r := left, right
		left = ast.PropertyPath{Kind: ast.PathSequence, Left: &l, Right: &r}
	}
	return left
}

func (p *Parser) parsePathPostfix() ast.PropertyPath {
	primary := p.parsePathPrimary()
	for {
		switch {
		case p.acceptKind(lexer.Star):
			s := primary
			primary = ast.PropertyPath{Kind: ast.PathZeroOrMore, Sub: &s}
		case p.acceptKind(lexer.Plus):
			s := primary
			primary = ast.PropertyPath{Kind: ast.PathOneOrMore, Sub: &s}
		case p.tok.Kind == lexer.Var && p.text() == "?":
			p.advance()
			s := primary
			primary = ast.PropertyPath{Kind: ast.PathZeroOrOne, Sub: &s}
		default:
			return primary
		}
	}
}

func (p *Parser) parsePathPrimary() ast.PropertyPath {
	switch {
	case p.acceptKind(lexer.Caret):
		s := p.parsePathPrimary()
		return ast.PropertyPath{Kind: ast.PathInverse, Sub: &s}
	case p.acceptKind(lexer.Bang):
		if p.acceptKind(lexer.LParen) {
			var neg []ast.Term
			for {
				neg = append(neg, p.parseTerm())
				if !p.acceptKind(lexer.Pipe) {
					break
				}
			}
			p.expectKind(lexer.RParen, "')'")
			return ast.PropertyPath{Kind: ast.PathNegated, Negated: neg}
		}
		t := p.parseTerm()
		return ast.PropertyPath{Kind: ast.PathNegated, Negated: []ast.Term{t}}
	case p.acceptKind(lexer.LParen):
		inner := p.parsePropertyPath()
		p.expectKind(lexer.RParen, "')'")
		return ast.PropertyPath{Kind: ast.PathGroup, Sub: &inner}
	case p.kw("a"):
		p.advance()
		return ast.PropertyPath{Kind: ast.PathSimple, Pred: ast.Term{Kind: ast.TermIRI, Name: "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"}}
	default:
		return ast.PropertyPath{Kind: ast.PathSimple, Pred: p.parseTerm()}
	}
}

// parseTerm parses one RDF-term-or-variable position: ?var, <iri>,
// prefix:local, _:blank, a literal, or "a".
func (p *Parser) parseTerm() ast.Term {
	start := p.tok.Start
	switch p.tok.Kind {
	case lexer.Var:
		name := p.varName()
		return ast.Term{Kind: ast.TermVar, Name: name, Span: ast.Span{Start: start, End: p.tok.Start}}
	case lexer.IRIRef:
		iri := trimIRI(p.text())
		p.advance()
		return ast.Term{Kind: ast.TermIRI, Name: iri, Span: ast.Span{Start: start, End: p.tok.Start}}
	case lexer.PNameLN, lexer.PNameNS:
		name := p.text()
		p.advance()
		return ast.Term{Kind: ast.TermIRI, Name: "pname:" + name, Span: ast.Span{Start: start, End: p.tok.Start}}
	case lexer.BlankNode:
		label := strings.TrimPrefix(p.text(), "_:")
		p.advance()
		return ast.Term{Kind: ast.TermBlank, Name: label, Span: ast.Span{Start: start, End: p.tok.Start}}
	case lexer.Keyword:
		if p.kw("a") {
			p.advance()
			return ast.Term{Kind: ast.TermIRI, Name: "http://www.w3.org/1999/02/22-rdf-syntax-ns#type", Span: ast.Span{Start: start, End: p.tok.Start}}
		}
		p.fail("expected term, found keyword %q", p.text())
	case lexer.String:
		lit := p.parseRDFLiteral()
		return ast.Term{Kind: ast.TermLiteral, Literal: lit, Span: ast.Span{Start: start, End: p.tok.Start}}
	case lexer.Integer:
		lit := mterm.TypedLiteral(p.text(), mterm.XSDInteger)
		p.advance()
		return ast.Term{Kind: ast.TermLiteral, Literal: lit, Span: ast.Span{Start: start, End: p.tok.Start}}
	case lexer.Decimal:
		lit := mterm.TypedLiteral(p.text(), mterm.XSDDecimal)
		p.advance()
		return ast.Term{Kind: ast.TermLiteral, Literal: lit, Span: ast.Span{Start: start, End: p.tok.Start}}
	case lexer.Double:
		lit := mterm.TypedLiteral(p.text(), mterm.XSDDouble)
		p.advance()
		return ast.Term{Kind: ast.TermLiteral, Literal: lit, Span: ast.Span{Start: start, End: p.tok.Start}}
	}
	p.fail("expected term")
	return ast.Term{}
}

func (p *Parser) parseRDFLiteral() mterm.Term {
	lex := unquote(p.text())
	p.advance()
	if p.tok.Kind == lexer.LangTag {
		lang := strings.TrimPrefix(p.text(), "@")
		p.advance()
		return mterm.LangLiteral(lex, lang)
	}
	if p.tok.Kind == lexer.AssignArrow {
		p.advance()
		dt := p.parseIRI()
		return mterm.TypedLiteral(lex, dt)
	}
	return mterm.PlainLiteral(lex)
}

func unquote(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

func (p *Parser) parseIRI() string {
	switch p.tok.Kind {
	case lexer.IRIRef:
		iri := trimIRI(p.text())
		p.advance()
		return iri
	case lexer.PNameLN, lexer.PNameNS:
		name := p.text()
		p.advance()
		return "pname:" + name
	}
	p.fail("expected IRI")
	return ""
}

func (p *Parser) parseSolutionModifier() ast.SolutionModifier {
	sm := ast.SolutionModifier{Limit: -1, Offset: 0}
	if p.acceptKeyword("GROUP") {
		p.expectKeyword("BY")
		for p.tok.Kind == lexer.Var || p.tok.Kind == lexer.LParen {
			sm.GroupBy = append(sm.GroupBy, p.parseGroupByExpr())
		}
	}
	if p.acceptKeyword("HAVING") {
		sm.Having = append(sm.Having, p.parseBracketedOrBuiltinExpr())
		for p.tok.Kind == lexer.LParen {
			sm.Having = append(sm.Having, p.parseBracketedOrBuiltinExpr())
		}
	}
	if p.acceptKeyword("ORDER") {
		p.expectKeyword("BY")
		for {
			desc := false
			if p.acceptKeyword("DESC") {
				desc = true
			} else {
				p.acceptKeyword("ASC")
			}
			var e ast.Expr
			if p.tok.Kind == lexer.LParen {
				p.advance()
				e = p.parseExpr()
				p.expectKind(lexer.RParen, "')'")
			} else {
				e = p.parsePrimaryExpr()
			}
			sm.OrderBy = append(sm.OrderBy, ast.OrderCondition{Expr: e, Desc: desc})
			if p.tok.Kind != lexer.Var && p.tok.Kind != lexer.LParen && !p.kw("ASC") && !p.kw("DESC") {
				break
			}
		}
	}
	if p.acceptKeyword("LIMIT") {
		sm.Limit = p.parseIntLiteral()
	}
	if p.acceptKeyword("OFFSET") {
		sm.Offset = p.parseIntLiteral()
	}
	return sm
}

func (p *Parser) parseGroupByExpr() ast.Expr {
	if p.tok.Kind == lexer.Var {
		name := p.varName()
		return ast.Expr{Kind: ast.ExprVar, Name: name}
	}
	p.expectKind(lexer.LParen, "'('")
	e := p.parseExpr()
	if p.acceptKeyword("AS") {
		alias := p.varName()
		e = ast.Expr{Kind: ast.ExprCall, Name: "__alias", Args: []ast.Expr{e}, Term: ast.Term{Name: alias}}
	}
	p.expectKind(lexer.RParen, "')'")
	return e
}

func (p *Parser) parseIntLiteral() int64 {
	t := p.expectKind(lexer.Integer, "integer")
	n, _ := strconv.ParseInt(t.Text(p.src), 10, 64)
	return n
}

// parseTemporalClause parses Mercury's non-standard trailing temporal
// modifier: "AS OF expr", "DURING expr expr", or "ALL VERSIONS".
func (p *Parser) parseTemporalClause() *ast.TemporalClause {
	switch {
	case p.acceptKeyword("AS"):
		p.expectKeyword("OF")
		e := p.parsePrimaryExpr()
		return &ast.TemporalClause{Kind: ast.AsOf, T1: &e}
	case p.acceptKeyword("DURING"):
		e1 := p.parsePrimaryExpr()
		e2 := p.parsePrimaryExpr()
		return &ast.TemporalClause{Kind: ast.During, T1: &e1, T2: &e2}
	case p.acceptKeyword("ALL"):
		p.expectKeyword("VERSIONS")
		return &ast.TemporalClause{Kind: ast.AllVersions}
	}
	return nil
}

func (p *Parser) parseUpdateOperation() ast.UpdateOperation {
	start := p.tok.Start
	var op ast.UpdateOperation
	switch {
	case p.acceptKeyword("INSERT"):
		if p.acceptKeyword("DATA") {
			op.Kind = ast.UpdateInsertData
			op.Data = p.parseQuadData()
		} else {
			op.Insert = p.parseQuadPatternTemplate()
			op = p.parseModify(op)
			op.Kind = ast.UpdateModify
		}
	case p.acceptKeyword("DELETE"):
		switch {
		case p.acceptKeyword("DATA"):
			op.Kind = ast.UpdateDeleteData
			op.Data = p.parseQuadData()
		case p.acceptKeyword("WHERE"):
			op.Kind = ast.UpdateDeleteWhere
			ggp := p.parseGroupGraphPattern(0)
			op.Data = ggp.Triples
			op.Where = ggp
		default:
			op.Delete = p.parseQuadPatternTemplate()
			op = p.parseModify(op)
			op.Kind = ast.UpdateModify
		}
	case p.acceptKeyword("LOAD"):
		op.Kind = ast.UpdateLoad
		op.Silent = p.acceptKeyword("SILENT")
		op.Source = ast.GraphRef{IRI: p.parseIRI()}
		if p.acceptKeyword("INTO") {
			p.expectKeyword("GRAPH")
			op.Dest = ast.GraphRef{IRI: p.parseIRI()}
		}
	case p.acceptKeyword("CLEAR"):
		op.Kind = ast.UpdateClear
		op.Silent = p.acceptKeyword("SILENT")
		op.Source = p.parseGraphRef()
	case p.acceptKeyword("CREATE"):
		op.Kind = ast.UpdateCreate
		op.Silent = p.acceptKeyword("SILENT")
		p.expectKeyword("GRAPH")
		op.Source = ast.GraphRef{IRI: p.parseIRI()}
	case p.acceptKeyword("DROP"):
		op.Kind = ast.UpdateDrop
		op.Silent = p.acceptKeyword("SILENT")
		op.Source = p.parseGraphRef()
	case p.acceptKeyword("COPY"):
		op.Kind = ast.UpdateCopy
		op.Silent = p.acceptKeyword("SILENT")
		op.Source = p.parseGraphRef()
		p.expectKeyword("TO")
		op.Dest = p.parseGraphRef()
	case p.acceptKeyword("MOVE"):
		op.Kind = ast.UpdateMove
		op.Silent = p.acceptKeyword("SILENT")
		op.Source = p.parseGraphRef()
		p.expectKeyword("TO")
		op.Dest = p.parseGraphRef()
	case p.acceptKeyword("ADD"):
		op.Kind = ast.UpdateAdd
		op.Silent = p.acceptKeyword("SILENT")
		op.Source = p.parseGraphRef()
		p.expectKeyword("TO")
		op.Dest = p.parseGraphRef()
	default:
		p.fail("expected an update operation keyword")
	}
	op.Span = ast.Span{Start: start, End: p.tok.Start}
	return op
}

func (p *Parser) parseModify(op ast.UpdateOperation) ast.UpdateOperation {
	if p.acceptKeyword("INSERT") {
		op.Insert = p.parseQuadPatternTemplate()
	}
	p.expectKeyword("WHERE")
	op.Where = p.parseGroupGraphPattern(0)
	return op
}

func (p *Parser) parseGraphRef() ast.GraphRef {
	switch {
	case p.acceptKeyword("DEFAULT"):
		return ast.GraphRef{Default: true}
	case p.acceptKeyword("NAMED"):
		return ast.GraphRef{Named: true}
	case p.acceptKeyword("ALL"):
		return ast.GraphRef{All: true}
	case p.acceptKeyword("GRAPH"):
		return ast.GraphRef{IRI: p.parseIRI()}
	default:
		return ast.GraphRef{IRI: p.parseIRI()}
	}
}

func (p *Parser) parseQuadData() []ast.TriplePattern {
	p.expectKind(lexer.LBrace, "'{'")
	var out []ast.TriplePattern
	for p.tok.Kind != lexer.RBrace {
		var graph ast.Term
		if p.acceptKeyword("GRAPH") {
			graph = p.parseTerm()
			p.expectKind(lexer.LBrace, "'{'")
			for p.tok.Kind != lexer.RBrace {
				for _, t := range p.parseTriplesSameSubject(mterm.Term{}) {
					t.Graph = graph
					out = append(out, t)
				}
			}
			p.advance()
			continue
		}
		out = append(out, p.parseTriplesSameSubject(mterm.Term{})...)
	}
	p.advance()
	return out
}

func (p *Parser) parseQuadPatternTemplate() []ast.TriplePattern {
	p.expectKind(lexer.LBrace, "'{'")
	var out []ast.TriplePattern
	for p.tok.Kind != lexer.RBrace {
		var graph ast.Term
		if p.acceptKeyword("GRAPH") {
			graph = p.parseTerm()
			p.expectKind(lexer.LBrace, "'{'")
			for p.tok.Kind != lexer.RBrace {
				for _, t := range p.parseTriplesSameSubjectPath(p.parseTerm()) {
					t.Graph = graph
					out = append(out, t)
				}
			}
			p.advance()
			continue
		}
		out = append(out, p.parseTriplesSameSubjectPath(p.parseTerm())...)
	}
	p.advance()
	return out
}
