package expr

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/sparql/ast"
)

func termExpr(t ast.Term) ast.Expr { return ast.Expr{Kind: ast.ExprTerm, Term: t} }

func intLit(n int64) ast.Expr {
	return termExpr(ast.Term{Kind: ast.TermLiteral, Literal: mterm.TypedLiteral(strconv.FormatInt(n, 10), mterm.XSDInteger)})
}

func varExpr(name string) ast.Expr { return ast.Expr{Kind: ast.ExprVar, Name: name} }

func TestEvalTerm(t *testing.T) {
	e := termExpr(ast.Term{Kind: ast.TermIRI, Name: "http://x/s"})
	v, err := Eval(e, Context{})
	require.NoError(t, err)
	assert.Equal(t, mterm.TermValue(mterm.IRI("http://x/s")), v)
}

func TestEvalVarBound(t *testing.T) {
	row := mterm.EmptyRow.Extend("x", mterm.IntValue(42))
	v, err := Eval(varExpr("x"), Context{Row: row})
	require.NoError(t, err)
	assert.Equal(t, mterm.IntValue(42), v)
}

func TestEvalVarUnbound(t *testing.T) {
	v, err := Eval(varExpr("x"), Context{Row: mterm.EmptyRow})
	require.NoError(t, err)
	assert.Equal(t, mterm.UnboundValue, v)
}

func TestEvalVarRespectsBindDepthVisibility(t *testing.T) {
	row := mterm.EmptyRow.ExtendBind("x", mterm.IntValue(1), 1)
	_, ok := row.Get("x", 2)
	assert.False(t, ok, "a BIND at depth 1 is hidden from a consumer strictly deeper")

	v, err := Eval(varExpr("x"), Context{Row: row, Depth: 2})
	require.NoError(t, err)
	assert.Equal(t, mterm.UnboundValue, v)
}

func TestEvalUnaryNot(t *testing.T) {
	e := ast.Expr{Kind: ast.ExprUnary, Op: "!", Args: []ast.Expr{termExpr(ast.Term{Kind: ast.TermLiteral, Literal: mterm.TypedLiteral("true", mterm.XSDBoolean)})}}
	v, err := Eval(e, Context{})
	require.NoError(t, err)
	assert.Equal(t, mterm.BoolValue(false), v)
}

func TestEvalUnaryNegateInt(t *testing.T) {
	row := mterm.EmptyRow.Extend("x", mterm.IntValue(5))
	e := ast.Expr{Kind: ast.ExprUnary, Op: "-", Args: []ast.Expr{varExpr("x")}}
	v, err := Eval(e, Context{Row: row})
	require.NoError(t, err)
	assert.Equal(t, mterm.IntValue(-5), v)
}

func TestEvalUnaryNegateTermLiteralWidensToFloat(t *testing.T) {
	e := ast.Expr{Kind: ast.ExprUnary, Op: "-", Args: []ast.Expr{intLit(5)}}
	v, err := Eval(e, Context{})
	require.NoError(t, err)
	assert.Equal(t, mterm.FloatValue(-5), v, "a literal term operand widens through AsFloat, not the VInt fast path")
}

func TestEvalBinaryComparison(t *testing.T) {
	e := ast.Expr{Kind: ast.ExprBinary, Op: "<", Args: []ast.Expr{intLit(1), intLit(2)}}
	v, err := Eval(e, Context{})
	require.NoError(t, err)
	assert.Equal(t, mterm.BoolValue(true), v)
}

func TestEvalBinaryEquality(t *testing.T) {
	e := ast.Expr{Kind: ast.ExprBinary, Op: "=", Args: []ast.Expr{intLit(2), intLit(2)}}
	v, err := Eval(e, Context{})
	require.NoError(t, err)
	assert.Equal(t, mterm.BoolValue(true), v)
}

func TestEvalArithIntStaysInt(t *testing.T) {
	row := mterm.EmptyRow.Extend("a", mterm.IntValue(2)).Extend("b", mterm.IntValue(3))
	e := ast.Expr{Kind: ast.ExprBinary, Op: "+", Args: []ast.Expr{varExpr("a"), varExpr("b")}}
	v, err := Eval(e, Context{Row: row})
	require.NoError(t, err)
	assert.Equal(t, mterm.IntValue(5), v, "two integer operands under + stay a VInt")
}

func TestEvalArithDivisionAlwaysFloat(t *testing.T) {
	row := mterm.EmptyRow.Extend("a", mterm.IntValue(4)).Extend("b", mterm.IntValue(2))
	e := ast.Expr{Kind: ast.ExprBinary, Op: "/", Args: []ast.Expr{varExpr("a"), varExpr("b")}}
	v, err := Eval(e, Context{Row: row})
	require.NoError(t, err)
	assert.Equal(t, mterm.VDouble, v.Kind, "division always yields a VDouble even over integer operands")
}

func TestEvalArithDivisionByZero(t *testing.T) {
	e := ast.Expr{Kind: ast.ExprBinary, Op: "/", Args: []ast.Expr{intLit(1), intLit(0)}}
	_, err := Eval(e, Context{})
	assert.Error(t, err)
}

func TestEvalLogicalAndShortCircuits(t *testing.T) {
	falseExpr := termExpr(ast.Term{Kind: ast.TermLiteral, Literal: mterm.TypedLiteral("false", mterm.XSDBoolean)})
	boom := ast.Expr{Kind: ast.ExprBinary, Op: "/", Args: []ast.Expr{intLit(1), intLit(0)}}
	e := ast.Expr{Kind: ast.ExprBinary, Op: "&&", Args: []ast.Expr{falseExpr, boom}}
	v, err := Eval(e, Context{})
	require.NoError(t, err)
	assert.Equal(t, mterm.BoolValue(false), v, "&& with a false left operand never evaluates the right")
}

func TestEvalLogicalOrShortCircuits(t *testing.T) {
	trueExpr := termExpr(ast.Term{Kind: ast.TermLiteral, Literal: mterm.TypedLiteral("true", mterm.XSDBoolean)})
	boom := ast.Expr{Kind: ast.ExprBinary, Op: "/", Args: []ast.Expr{intLit(1), intLit(0)}}
	e := ast.Expr{Kind: ast.ExprBinary, Op: "||", Args: []ast.Expr{trueExpr, boom}}
	v, err := Eval(e, Context{})
	require.NoError(t, err)
	assert.Equal(t, mterm.BoolValue(true), v, "|| with a true left operand never evaluates the right")
}

func TestEvalCallBound(t *testing.T) {
	row := mterm.EmptyRow.Extend("x", mterm.IntValue(1))
	e := ast.Expr{Kind: ast.ExprCall, Name: "BOUND", Args: []ast.Expr{varExpr("x")}}
	v, err := Eval(e, Context{Row: row})
	require.NoError(t, err)
	assert.Equal(t, mterm.BoolValue(true), v)

	v, err = Eval(e, Context{Row: mterm.EmptyRow})
	require.NoError(t, err)
	assert.Equal(t, mterm.BoolValue(false), v)
}

func TestEvalCallBoundRequiresVariable(t *testing.T) {
	e := ast.Expr{Kind: ast.ExprCall, Name: "BOUND", Args: []ast.Expr{intLit(1)}}
	_, err := Eval(e, Context{})
	assert.Error(t, err)
}

func TestEvalCallIf(t *testing.T) {
	trueExpr := termExpr(ast.Term{Kind: ast.TermLiteral, Literal: mterm.TypedLiteral("true", mterm.XSDBoolean)})
	row := mterm.EmptyRow.Extend("a", mterm.IntValue(1)).Extend("b", mterm.IntValue(2))
	e := ast.Expr{Kind: ast.ExprCall, Name: "IF", Args: []ast.Expr{trueExpr, varExpr("a"), varExpr("b")}}
	v, err := Eval(e, Context{Row: row})
	require.NoError(t, err)
	assert.Equal(t, mterm.IntValue(1), v)
}

func TestEvalCallCoalesceSkipsUnbound(t *testing.T) {
	row := mterm.EmptyRow.Extend("fallback", mterm.IntValue(7))
	e := ast.Expr{Kind: ast.ExprCall, Name: "COALESCE", Args: []ast.Expr{varExpr("missing"), varExpr("fallback")}}
	v, err := Eval(e, Context{Row: row})
	require.NoError(t, err)
	assert.Equal(t, mterm.IntValue(7), v)
}

func TestEvalCallCoalesceAllUnbound(t *testing.T) {
	e := ast.Expr{Kind: ast.ExprCall, Name: "COALESCE", Args: []ast.Expr{varExpr("missing")}}
	v, err := Eval(e, Context{Row: mterm.EmptyRow})
	require.NoError(t, err)
	assert.Equal(t, mterm.UnboundValue, v)
}

func TestEvalCallStr(t *testing.T) {
	e := ast.Expr{Kind: ast.ExprCall, Name: "STR", Args: []ast.Expr{termExpr(ast.Term{Kind: ast.TermIRI, Name: "http://x/s"})}}
	v, err := Eval(e, Context{})
	require.NoError(t, err)
	assert.Equal(t, mterm.TermValue(mterm.PlainLiteral("http://x/s")), v)
}

func TestEvalCallStrlenUcaseLcase(t *testing.T) {
	lit := termExpr(ast.Term{Kind: ast.TermLiteral, Literal: mterm.PlainLiteral("Hello")})

	v, err := Eval(ast.Expr{Kind: ast.ExprCall, Name: "STRLEN", Args: []ast.Expr{lit}}, Context{})
	require.NoError(t, err)
	assert.Equal(t, mterm.IntValue(5), v)

	v, err = Eval(ast.Expr{Kind: ast.ExprCall, Name: "UCASE", Args: []ast.Expr{lit}}, Context{})
	require.NoError(t, err)
	assert.Equal(t, "HELLO", v.Term.Lexical)

	v, err = Eval(ast.Expr{Kind: ast.ExprCall, Name: "LCASE", Args: []ast.Expr{lit}}, Context{})
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Term.Lexical)
}

func TestEvalCallRegex(t *testing.T) {
	lit := termExpr(ast.Term{Kind: ast.TermLiteral, Literal: mterm.PlainLiteral("Hello World")})
	pat := termExpr(ast.Term{Kind: ast.TermLiteral, Literal: mterm.PlainLiteral("^hello")})

	e := ast.Expr{Kind: ast.ExprCall, Name: "REGEX", Args: []ast.Expr{lit, pat}}
	v, err := Eval(e, Context{})
	require.NoError(t, err)
	assert.Equal(t, mterm.BoolValue(false), v, "case-sensitive match fails against capitalized Hello")

	flags := termExpr(ast.Term{Kind: ast.TermLiteral, Literal: mterm.PlainLiteral("i")})
	e = ast.Expr{Kind: ast.ExprCall, Name: "REGEX", Args: []ast.Expr{lit, pat, flags}}
	v, err = Eval(e, Context{})
	require.NoError(t, err)
	assert.Equal(t, mterm.BoolValue(true), v, "the i flag makes the match case-insensitive")
}

func TestEvalCallUnknownBuiltin(t *testing.T) {
	e := ast.Expr{Kind: ast.ExprCall, Name: "NOSUCHFUNC", Args: []ast.Expr{intLit(1)}}
	_, err := Eval(e, Context{})
	assert.Error(t, err)
}

func TestEvalExists(t *testing.T) {
	e := ast.Expr{Kind: ast.ExprExists, Pattern: &ast.GroupGraphPattern{}}
	ctx := Context{ExistsEval: func(*ast.GroupGraphPattern, mterm.Row) (bool, error) { return true, nil }}
	v, err := Eval(e, ctx)
	require.NoError(t, err)
	assert.Equal(t, mterm.BoolValue(true), v)
}

func TestEvalNotExists(t *testing.T) {
	e := ast.Expr{Kind: ast.ExprNotExists, Pattern: &ast.GroupGraphPattern{}}
	ctx := Context{ExistsEval: func(*ast.GroupGraphPattern, mterm.Row) (bool, error) { return true, nil }}
	v, err := Eval(e, ctx)
	require.NoError(t, err)
	assert.Equal(t, mterm.BoolValue(false), v)
}

func TestAsBoolCoercions(t *testing.T) {
	b, ok := AsBool(mterm.BoolValue(true))
	assert.True(t, ok)
	assert.True(t, b)

	b, ok = AsBool(mterm.IntValue(0))
	assert.True(t, ok)
	assert.False(t, b)

	b, ok = AsBool(mterm.FloatValue(1.5))
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = AsBool(mterm.UnboundValue)
	assert.False(t, ok)
}
