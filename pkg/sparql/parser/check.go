package parser

import (
	"strings"

	"github.com/cuemby/mercury/pkg/diag"
	"github.com/cuemby/mercury/pkg/sparql/ast"
)

// Check runs the whole-query semantic pass (§4.8): undefined prefix,
// aggregate used outside an aggregate projection, a non-grouped
// variable used in a GROUP BY query's projection, duplicate variable
// bindings, and a Cartesian-product warning when the top-level group's
// triple patterns share no variable. Whether FILTER variables are bound
// is not checked.
// Diagnostics are appended to bag; Check never aborts the query itself
// (the results are advisory/diagnostic, not syntax errors).
func Check(q *ast.Query, bag *diag.Bag) {
	prefixes := map[string]bool{}
	for _, pd := range q.Prologue.Prefixes {
		prefixes[pd.Name] = true
	}
	checkPrefixes(q.Where, prefixes, bag)

	if q.Select != nil {
		seen := map[string]bool{}
		hasAggregate := false
		for _, v := range q.Select.Vars {
			if v.Expr != nil && containsAggregate(*v.Expr) {
				hasAggregate = true
			}
		}
		grouped := map[string]bool{}
		for _, g := range q.Modifier.GroupBy {
			if g.Kind == ast.ExprVar {
				grouped[g.Name] = true
			}
		}
		for _, v := range q.Select.Vars {
			name := v.Var
			if name == "" {
				name = v.Alias
			}
			if seen[name] {
				bag.Add(diag.CodeSemDuplicateBinding, diag.Span{}, "variable %q is projected more than once", name)
			}
			seen[name] = true
			if len(q.Modifier.GroupBy) > 0 && v.Var != "" && !grouped[v.Var] {
				bag.Add(diag.CodeSemUngroupedVariable, diag.Span{}, "variable %q is used in the SELECT list but not in GROUP BY", v.Var)
			}
			if v.Expr != nil && hasAggregate != containsAggregate(*v.Expr) && len(q.Modifier.GroupBy) == 0 {
				bag.Warn(diag.CodeSemAggregateMisuse, diag.Span{}, "mixing aggregate and non-aggregate projections without GROUP BY")
			}
		}
	}

	if q.Where != nil && !hasSharedVariable(q.Where) && len(q.Where.Triples) > 1 {
		bag.Warn(diag.CodeSemCartesianProduct, diag.Span{}, "triple patterns in this group share no variable; this produces a Cartesian product")
	}
}

func containsAggregate(e ast.Expr) bool {
	if e.Kind == ast.ExprAggregate {
		return true
	}
	for _, a := range e.Args {
		if containsAggregate(a) {
			return true
		}
	}
	return false
}

func checkPrefixes(ggp *ast.GroupGraphPattern, known map[string]bool, bag *diag.Bag) {
	if ggp == nil {
		return
	}
	for _, t := range ggp.Triples {
		checkTermPrefix(t.Subject, known, bag)
		checkTermPrefix(t.Object, known, bag)
	}
	for _, el := range ggp.Elements {
		switch {
		case el.Optional != nil:
			checkPrefixes(el.Optional, known, bag)
		case el.Minus != nil:
			checkPrefixes(el.Minus, known, bag)
		case el.Group != nil:
			checkPrefixes(el.Group, known, bag)
		case len(el.Union) > 0:
			for _, u := range el.Union {
				checkPrefixes(u, known, bag)
			}
		case el.Graph != nil:
			checkPrefixes(el.Graph.Pattern, known, bag)
		case el.Service != nil:
			checkPrefixes(el.Service.Pattern, known, bag)
		}
	}
}

func checkTermPrefix(t ast.Term, known map[string]bool, bag *diag.Bag) {
	if t.Kind != ast.TermIRI || !strings.HasPrefix(t.Name, "pname:") {
		return
	}
	pname := strings.TrimPrefix(t.Name, "pname:")
	idx := strings.Index(pname, ":")
	if idx < 0 {
		return
	}
	prefix := pname[:idx]
	if prefix == "" {
		return
	}
	if !known[prefix] {
		bag.Add(diag.CodeSemUnknownPrefix, diag.Span{Start: t.Span.Start, End: t.Span.End}, "undefined prefix %q", prefix)
	}
}

// hasSharedVariable reports whether at least one variable appears in
// more than one triple pattern of ggp — a cheap proxy for "the patterns
// are joined on something" without building a full connectivity graph.
func hasSharedVariable(ggp *ast.GroupGraphPattern) bool {
	counts := map[string]int{}
	for _, t := range ggp.Triples {
		collectVars(t.Subject, counts)
		collectVars(t.Object, counts)
	}
	for _, n := range counts {
		if n > 1 {
			return true
		}
	}
	return false
}

func collectVars(t ast.Term, into map[string]int) {
	if t.Kind == ast.TermVar {
		into[t.Name]++
	}
}
