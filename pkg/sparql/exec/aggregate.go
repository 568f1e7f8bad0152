package exec

import (
	"fmt"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/sparql/ast"
	"github.com/cuemby/mercury/pkg/sparql/expr"
)

// groupAndAggregate implements the two-pass GROUP BY/aggregate
// evaluation named in §4.9: pass one partitions rows by the GROUP BY
// key (the empty key when there is none but an aggregate projection is
// present, per SPARQL's implicit single-group rule); pass two computes
// each aggregate/plain projected expression against its partition.
func (ex *Executor) groupAndAggregate(rows []mterm.Row, q *ast.Query) ([]mterm.Row, error) {
	type group struct {
		key  string
		rows []mterm.Row
		rep  mterm.Row // first row, used to evaluate non-aggregate GROUP BY key expressions
	}
	order := []string{}
	groups := map[string]*group{}

	for _, r := range rows {
		key, err := ex.groupKey(r, q.Modifier.GroupBy)
		if err != nil {
			return nil, err
		}
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, rep: r}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, r)
	}
	if len(groups) == 0 && len(rows) == 0 {
		groups[""] = &group{rep: mterm.EmptyRow}
		order = append(order, "")
	}

	var out []mterm.Row
	for _, key := range order {
		g := groups[key]
		pr := mterm.EmptyRow
		for i, ge := range q.Modifier.GroupBy {
			name := fmt.Sprintf("__group%d", i)
			if ge.Kind == ast.ExprVar {
				name = ge.Name
			}
			v, err := expr.Eval(ge, expr.Context{Row: g.rep, Depth: 0, Prefixes: ex.Prefixes, ExistsEval: ex.existsEval})
			if err == nil {
				pr = pr.Extend(name, v)
			}
		}
		if q.Select != nil {
			for _, pv := range q.Select.Vars {
				if pv.Expr == nil {
					v, ok := pr.GetProjected(pv.Var)
					if !ok {
						v, ok = g.rep.GetProjected(pv.Var)
					}
					if ok {
						pr = pr.Extend(pv.Var, v)
					}
					continue
				}
				v, err := ex.evalOverGroup(*pv.Expr, g.rows)
				if err != nil {
					v = mterm.UnboundValue
				}
				pr = pr.Extend(pv.Alias, v)
			}
		}
		out = append(out, pr)
	}
	return out, nil
}

func (ex *Executor) groupKey(r mterm.Row, exprs []ast.Expr) (string, error) {
	if len(exprs) == 0 {
		return "", nil
	}
	key := ""
	for _, e := range exprs {
		v, err := expr.Eval(e, expr.Context{Row: r, Depth: 0, Prefixes: ex.Prefixes, ExistsEval: ex.existsEval})
		if err != nil {
			key += "\x00unbound"
			continue
		}
		if t, ok := v.AsTerm(); ok {
			key += "\x00" + string(mterm.Encode(t))
		} else {
			key += "\x00unbound"
		}
	}
	return key, nil
}

// evalOverGroup evaluates e, which may contain at most one aggregate
// call (SPARQL forbids nesting aggregates), against every row of a
// partition.
func (ex *Executor) evalOverGroup(e ast.Expr, rows []mterm.Row) (mterm.Value, error) {
	if e.Kind == ast.ExprAggregate {
		return ex.evalAggregate(e, rows)
	}
	if len(rows) == 0 {
		return mterm.UnboundValue, nil
	}
	if !containsAggregateExpr(e) {
		return expr.Eval(e, expr.Context{Row: rows[0], Depth: 0, Prefixes: ex.Prefixes, ExistsEval: ex.existsEval})
	}
	// Expression wraps an aggregate argument, e.g. (COUNT(?x)+1): evaluate
	// the aggregate sub-expressions first, substitute, then fold.
	substituted := e
	for i, a := range e.Args {
		if a.Kind == ast.ExprAggregate {
			v, err := ex.evalAggregate(a, rows)
			if err != nil {
				return mterm.UnboundValue, err
			}
			substituted.Args[i] = ast.Expr{Kind: ast.ExprTerm, Term: valueAsConstTerm(v)}
		}
	}
	return expr.Eval(substituted, expr.Context{Row: rows[0], Depth: 0, Prefixes: ex.Prefixes, ExistsEval: ex.existsEval})
}

func valueAsConstTerm(v mterm.Value) ast.Term {
	t, ok := v.AsTerm()
	if !ok {
		return ast.Term{Kind: ast.TermLiteral, Literal: mterm.PlainLiteral("")}
	}
	return ast.Term{Kind: ast.TermLiteral, Literal: t}
}

func (ex *Executor) evalAggregate(e ast.Expr, rows []mterm.Row) (mterm.Value, error) {
	values := make([]mterm.Value, 0, len(rows))
	if len(e.Args) > 0 {
		seen := map[string]bool{}
		for _, r := range rows {
			v, err := expr.Eval(e.Args[0], expr.Context{Row: r, Depth: 0, Prefixes: ex.Prefixes, ExistsEval: ex.existsEval})
			if err != nil || !v.IsBound() {
				continue
			}
			if e.Distinct {
				t, _ := v.AsTerm()
				key := string(mterm.Encode(t))
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			values = append(values, v)
		}
	}

	switch e.Name {
	case "COUNT":
		if len(e.Args) == 0 {
			return mterm.IntValue(int64(len(rows))), nil
		}
		return mterm.IntValue(int64(len(values))), nil
	case "SUM":
		var sum float64
		allInt := true
		var isum int64
		for _, v := range values {
			f, _ := v.AsFloat()
			sum += f
			if v.Kind != mterm.VInt {
				allInt = false
			} else {
				isum += v.Int
			}
		}
		if allInt {
			return mterm.IntValue(isum), nil
		}
		return mterm.FloatValue(sum), nil
	case "AVG":
		if len(values) == 0 {
			return mterm.IntValue(0), nil
		}
		var sum float64
		for _, v := range values {
			f, _ := v.AsFloat()
			sum += f
		}
		return mterm.FloatValue(sum / float64(len(values))), nil
	case "MIN":
		return extremum(values, -1), nil
	case "MAX":
		return extremum(values, 1), nil
	case "SAMPLE":
		if len(values) == 0 {
			return mterm.UnboundValue, nil
		}
		return values[0], nil
	case "GROUP_CONCAT":
		s := ""
		for i, v := range values {
			t, _ := v.AsTerm()
			if i > 0 {
				s += " "
			}
			s += t.Lexical
		}
		return mterm.TermValue(mterm.PlainLiteral(s)), nil
	default:
		return mterm.UnboundValue, fmt.Errorf("exec: unsupported aggregate %q", e.Name)
	}
}

func extremum(values []mterm.Value, dir int) mterm.Value {
	if len(values) == 0 {
		return mterm.UnboundValue
	}
	best := values[0]
	for _, v := range values[1:] {
		if mterm.Compare(v, best)*dir > 0 {
			best = v
		}
	}
	return best
}
