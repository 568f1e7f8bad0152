package exec

import (
	"fmt"

	"github.com/cuemby/mercury/pkg/mstore"
	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/sparql/ast"
	"github.com/cuemby/mercury/pkg/sparql/expr"
)

// Triple is one resolved (subject, predicate, object) produced by
// CONSTRUCT or DESCRIBE — unlike mterm.Quad, which keys rows by interned
// atom id for storage, a query result's triples carry fully resolved
// terms since nothing downstream (serialization) has a store to resolve
// atom ids against.
type Triple struct{ S, P, O mterm.Term }

// Result is the outcome of running one parsed query through an
// Executor: exactly one of Rows (SELECT), Triples (CONSTRUCT/DESCRIBE)
// or Bool (ASK) is meaningful, selected by Form.
type Result struct {
	Form    ast.QueryForm
	Vars    []string
	Rows    []mterm.Row
	Triples []Triple
	Bool    bool
}

// Run evaluates q end-to-end: WHERE-clause pattern matching, then the
// form-specific tail (SELECT's modifiers/projection, CONSTRUCT/DESCRIBE's
// template instantiation, or ASK's existence check).
func (ex *Executor) Run(q *ast.Query) (*Result, error) {
	rows, err := ex.RunWhere(q.Where)
	if err != nil {
		return nil, err
	}

	switch q.Form {
	case ast.Select:
		final, err := ex.ApplyModifier(rows, q)
		if err != nil {
			return nil, err
		}
		return &Result{Form: ast.Select, Vars: selectVars(q), Rows: final}, nil
	case ast.Ask:
		return &Result{Form: ast.Ask, Bool: len(rows) > 0}, nil
	case ast.Construct:
		triples, err := ex.construct(rows, q.Construct)
		if err != nil {
			return nil, err
		}
		return &Result{Form: ast.Construct, Triples: triples}, nil
	case ast.Describe:
		triples, err := ex.describe(rows, q)
		if err != nil {
			return nil, err
		}
		return &Result{Form: ast.Describe, Triples: triples}, nil
	default:
		return nil, fmt.Errorf("exec: unknown query form")
	}
}

func selectVars(q *ast.Query) []string {
	if q.Select == nil || q.Select.Star {
		return nil
	}
	names := make([]string, 0, len(q.Select.Vars))
	for _, pv := range q.Select.Vars {
		if pv.Expr == nil {
			names = append(names, pv.Var)
		} else {
			names = append(names, pv.Alias)
		}
	}
	return names
}

// construct instantiates template (a ground-or-variable triple list,
// §4.8) once per solution row, skipping any instantiation that would
// leave a variable unbound, and deduplicates the result (a CONSTRUCT
// result is a set, not a bag).
func (ex *Executor) construct(rows []mterm.Row, template []ast.TriplePattern) ([]Triple, error) {
	seen := map[string]bool{}
	var out []Triple
	for _, r := range rows {
		for _, tp := range template {
			s, ok := ex.instantiate(tp.Subject, r)
			if !ok {
				continue
			}
			p, ok := ex.instantiate(tp.Path.Pred, r)
			if !ok {
				continue
			}
			o, ok := ex.instantiate(tp.Object, r)
			if !ok {
				continue
			}
			key := string(mterm.Encode(s)) + "\x00" + string(mterm.Encode(p)) + "\x00" + string(mterm.Encode(o))
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Triple{S: s, P: p, O: o})
		}
	}
	return out, nil
}

func (ex *Executor) instantiate(t ast.Term, r mterm.Row) (mterm.Term, bool) {
	if t.Kind == ast.TermVar {
		v, ok := r.GetProjected(t.Name)
		if !ok {
			return mterm.Term{}, false
		}
		return v.AsTerm()
	}
	term, err := expr.ResolveTerm(t, ex.Prefixes)
	if err != nil {
		return mterm.Term{}, false
	}
	return term, true
}

// describe resolves each DESCRIBE target (a bound IRI, or every distinct
// binding of a variable across rows) and returns every triple with that
// term as subject — a conservative "describe by outgoing properties"
// policy in the absence of a configured CBD/named-graph strategy.
func (ex *Executor) describe(rows []mterm.Row, q *ast.Query) ([]Triple, error) {
	targets := map[string]mterm.Term{}
	for _, t := range q.Describe {
		if t.Kind == ast.TermVar {
			for _, r := range rows {
				v, ok := r.GetProjected(t.Name)
				if !ok {
					continue
				}
				term, ok := v.AsTerm()
				if !ok {
					continue
				}
				targets[string(mterm.Encode(term))] = term
			}
			continue
		}
		term, err := expr.ResolveTerm(t, ex.Prefixes)
		if err != nil {
			return nil, err
		}
		targets[string(mterm.Encode(term))] = term
	}

	seen := map[string]bool{}
	var out []Triple
	for _, term := range targets {
		tp := mstore.TermPattern{S: term, SBound: true}
		err := ex.queryTemporal(tp, func(quad mterm.Quad, _ mterm.Version) bool {
			s, err1 := ex.Store.Atoms().Resolve(quad.S)
			p, err2 := ex.Store.Atoms().Resolve(quad.P)
			o, err3 := ex.Store.Atoms().Resolve(quad.O)
			if err1 != nil || err2 != nil || err3 != nil {
				return true
			}
			key := string(mterm.Encode(s)) + "\x00" + string(mterm.Encode(p)) + "\x00" + string(mterm.Encode(o))
			if seen[key] {
				return true
			}
			seen[key] = true
			out = append(out, Triple{S: s, P: p, O: o})
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
