package expr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/sparql/ast"
)

// Context carries the state an expression evaluator needs: the current
// binding row, the depth the expression is evaluated at (for the BIND
// scope-depth visibility rule, §9), and the query's prefix map for any
// literal IRI resolution a builtin needs.
type Context struct {
	Row        mterm.Row
	Depth      int
	Prefixes   PrefixMap
	ExistsEval func(*ast.GroupGraphPattern, mterm.Row) (bool, error)
}

// Eval evaluates a filter/bind/order-by expression against ctx,
// implementing the stack-machine-equivalent operator set named in
// §4.9: BOUND, IF, COALESCE, STR, STRLEN, UCASE, LCASE, REGEX, the
// arithmetic/comparison/logical operators, and integer-preserving
// numeric coercion (an Int/Int operation stays a VInt unless division
// or an operand is already floating).
func Eval(e ast.Expr, ctx Context) (mterm.Value, error) {
	switch e.Kind {
	case ast.ExprTerm:
		t, err := ResolveTerm(e.Term, ctx.Prefixes)
		if err != nil {
			return mterm.UnboundValue, err
		}
		return mterm.TermValue(t), nil
	case ast.ExprVar:
		v, ok := ctx.Row.Get(e.Name, ctx.Depth)
		if !ok {
			return mterm.UnboundValue, nil
		}
		return v, nil
	case ast.ExprUnary:
		return evalUnary(e, ctx)
	case ast.ExprBinary:
		return evalBinary(e, ctx)
	case ast.ExprCall:
		return evalCall(e, ctx)
	case ast.ExprExists:
		ok, err := ctx.ExistsEval(e.Pattern, ctx.Row)
		if err != nil {
			return mterm.UnboundValue, err
		}
		return mterm.BoolValue(ok), nil
	case ast.ExprNotExists:
		ok, err := ctx.ExistsEval(e.Pattern, ctx.Row)
		if err != nil {
			return mterm.UnboundValue, err
		}
		return mterm.BoolValue(!ok), nil
	default:
		return mterm.UnboundValue, fmt.Errorf("expr: unsupported expression kind %v", e.Kind)
	}
}

func evalUnary(e ast.Expr, ctx Context) (mterm.Value, error) {
	v, err := Eval(e.Args[0], ctx)
	if err != nil {
		return mterm.UnboundValue, err
	}
	switch e.Op {
	case "!":
		b, _ := AsBool(v)
		return mterm.BoolValue(!b), nil
	case "-":
		if v.Kind == mterm.VInt {
			return mterm.IntValue(-v.Int), nil
		}
		f, _ := v.AsFloat()
		return mterm.FloatValue(-f), nil
	default:
		return mterm.UnboundValue, fmt.Errorf("expr: unknown unary operator %q", e.Op)
	}
}

func evalBinary(e ast.Expr, ctx Context) (mterm.Value, error) {
	// Short-circuit logical operators evaluate their second operand lazily.
	if e.Op == "&&" || e.Op == "||" {
		l, err := Eval(e.Args[0], ctx)
		if err != nil {
			return mterm.UnboundValue, err
		}
		lb, _ := AsBool(l)
		if e.Op == "&&" && !lb {
			return mterm.BoolValue(false), nil
		}
		if e.Op == "||" && lb {
			return mterm.BoolValue(true), nil
		}
		r, err := Eval(e.Args[1], ctx)
		if err != nil {
			return mterm.UnboundValue, err
		}
		rb, _ := AsBool(r)
		return mterm.BoolValue(rb), nil
	}

	l, err := Eval(e.Args[0], ctx)
	if err != nil {
		return mterm.UnboundValue, err
	}
	r, err := Eval(e.Args[1], ctx)
	if err != nil {
		return mterm.UnboundValue, err
	}

	switch e.Op {
	case "=":
		return mterm.BoolValue(mterm.Equal(l, r)), nil
	case "!=":
		return mterm.BoolValue(!mterm.Equal(l, r)), nil
	case "<":
		return mterm.BoolValue(mterm.Compare(l, r) < 0), nil
	case ">":
		return mterm.BoolValue(mterm.Compare(l, r) > 0), nil
	case "<=":
		return mterm.BoolValue(mterm.Compare(l, r) <= 0), nil
	case ">=":
		return mterm.BoolValue(mterm.Compare(l, r) >= 0), nil
	case "+", "-", "*", "/":
		return arith(e.Op, l, r)
	default:
		return mterm.UnboundValue, fmt.Errorf("expr: unknown binary operator %q", e.Op)
	}
}

// arith preserves integer-ness the way §4.9 requires: two integer
// operands (VInt values or xsd:integer literals) under +,-,* give a VInt;
// any float operand, or "/", produces a VDouble.
func arith(op string, l, r mterm.Value) (mterm.Value, error) {
	if op != "/" && l.IsIntegerValued() && r.IsIntegerValued() {
		li, ri := l.Int, r.Int
		if l.Kind == mterm.VTerm {
			f, _ := l.AsFloat()
			li = int64(f)
		}
		if r.Kind == mterm.VTerm {
			f, _ := r.AsFloat()
			ri = int64(f)
		}
		switch op {
		case "+":
			return mterm.IntValue(li + ri), nil
		case "-":
			return mterm.IntValue(li - ri), nil
		case "*":
			return mterm.IntValue(li * ri), nil
		}
	}
	lf, ok1 := l.AsFloat()
	rf, ok2 := r.AsFloat()
	if !ok1 || !ok2 {
		return mterm.UnboundValue, fmt.Errorf("expr: non-numeric operand to %q", op)
	}
	switch op {
	case "+":
		return mterm.FloatValue(lf + rf), nil
	case "-":
		return mterm.FloatValue(lf - rf), nil
	case "*":
		return mterm.FloatValue(lf * rf), nil
	case "/":
		if rf == 0 {
			return mterm.UnboundValue, fmt.Errorf("expr: division by zero")
		}
		return mterm.FloatValue(lf / rf), nil
	}
	return mterm.UnboundValue, fmt.Errorf("expr: unknown arithmetic operator %q", op)
}

// AsBool implements the SPARQL effective boolean value (EBV) coercion
// used by FILTER, IF, &&/||, and !.
func AsBool(v mterm.Value) (bool, bool) {
	switch v.Kind {
	case mterm.VBool:
		return v.Bool, true
	case mterm.VInt:
		return v.Int != 0, true
	case mterm.VDouble:
		return v.Float != 0, true
	case mterm.VTerm:
		b, ok := v.Term.AsBool()
		if ok {
			return b, true
		}
		if f, ok := v.Term.AsFloat(); ok {
			return f != 0, true
		}
		return v.Term.Lexical != "", true
	default:
		return false, false
	}
}

func evalCall(e ast.Expr, ctx Context) (mterm.Value, error) {
	switch e.Name {
	case "BOUND":
		if e.Args[0].Kind != ast.ExprVar {
			return mterm.UnboundValue, fmt.Errorf("expr: BOUND requires a variable argument")
		}
		_, ok := ctx.Row.Get(e.Args[0].Name, ctx.Depth)
		return mterm.BoolValue(ok), nil
	case "IF":
		c, err := Eval(e.Args[0], ctx)
		if err != nil {
			return mterm.UnboundValue, err
		}
		b, _ := AsBool(c)
		if b {
			return Eval(e.Args[1], ctx)
		}
		return Eval(e.Args[2], ctx)
	case "COALESCE":
		for _, a := range e.Args {
			v, err := Eval(a, ctx)
			if err == nil && v.IsBound() {
				return v, nil
			}
		}
		return mterm.UnboundValue, nil
	case "STR":
		v, err := Eval(e.Args[0], ctx)
		if err != nil {
			return mterm.UnboundValue, err
		}
		t, ok := v.AsTerm()
		if !ok {
			return mterm.UnboundValue, nil
		}
		return mterm.TermValue(mterm.PlainLiteral(t.Lexical)), nil
	case "STRLEN":
		s, err := evalStringArg(e.Args[0], ctx)
		if err != nil {
			return mterm.UnboundValue, err
		}
		return mterm.IntValue(int64(len([]rune(s)))), nil
	case "UCASE":
		s, err := evalStringArg(e.Args[0], ctx)
		if err != nil {
			return mterm.UnboundValue, err
		}
		return mterm.TermValue(mterm.PlainLiteral(strings.ToUpper(s))), nil
	case "LCASE":
		s, err := evalStringArg(e.Args[0], ctx)
		if err != nil {
			return mterm.UnboundValue, err
		}
		return mterm.TermValue(mterm.PlainLiteral(strings.ToLower(s))), nil
	case "REGEX":
		s, err := evalStringArg(e.Args[0], ctx)
		if err != nil {
			return mterm.UnboundValue, err
		}
		pat, err := evalStringArg(e.Args[1], ctx)
		if err != nil {
			return mterm.UnboundValue, err
		}
		flags := ""
		if len(e.Args) > 2 {
			flags, _ = evalStringArg(e.Args[2], ctx)
		}
		goPat := pat
		if strings.Contains(flags, "i") {
			goPat = "(?i)" + goPat
		}
		re, err := regexp.Compile(goPat)
		if err != nil {
			return mterm.UnboundValue, fmt.Errorf("expr: invalid REGEX pattern: %w", err)
		}
		return mterm.BoolValue(re.MatchString(s)), nil
	case "__alias":
		return Eval(e.Args[0], ctx)
	default:
		return mterm.UnboundValue, fmt.Errorf("expr: unsupported builtin function %q", e.Name)
	}
}

func evalStringArg(e ast.Expr, ctx Context) (string, error) {
	v, err := Eval(e, ctx)
	if err != nil {
		return "", err
	}
	t, ok := v.AsTerm()
	if !ok {
		return "", fmt.Errorf("expr: expected a bound value")
	}
	return t.Lexical, nil
}
