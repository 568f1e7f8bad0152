package exec

import (
	"fmt"

	"github.com/cuemby/mercury/pkg/mstore"
	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/sparql/ast"
	"github.com/cuemby/mercury/pkg/sparql/expr"
)

// pathPair is one (subject, object) solution to a property path
// expression (§4.8's path grammar: ^p, p*, p+, p?, p1/p2, p1|p2,
// !(p1|...), grouping).
type pathPair struct{ S, O mterm.Term }

// maxPathSteps bounds the breadth-first closure used for */+ path
// operators so an unbound-at-both-ends transitive query over a large
// graph fails loudly instead of hanging.
const maxPathSteps = 200000

func termKey(t mterm.Term) string { return string(mterm.Encode(t)) }

// singleStep resolves one PathSimple/PathNegated "edge" of the path,
// scanning the store through the executor's temporal view, with s/o as optional
// bound endpoints (nil = wildcard).
func (ex *Executor) singleStep(pred *mterm.Term, negated []mterm.Term, s, o, graph *mterm.Term) ([]pathPair, error) {
	tp := mstore.TermPattern{}
	if s != nil {
		tp.S, tp.SBound = *s, true
	}
	if o != nil {
		tp.O, tp.OBound = *o, true
	}
	if pred != nil {
		tp.P, tp.PBound = *pred, true
	}
	if graph != nil {
		tp.G, tp.GBound = *graph, true
	}

	negSet := map[string]bool{}
	for _, n := range negated {
		t, err := expr.ResolveTerm(n, ex.Prefixes)
		if err != nil {
			return nil, err
		}
		negSet[termKey(t)] = true
	}

	var pairs []pathPair
	err := ex.queryTemporal(tp, func(q mterm.Quad, _ mterm.Version) bool {
		sTerm, err := ex.Store.Atoms().Resolve(q.S)
		if err != nil {
			return true
		}
		pTerm, err := ex.Store.Atoms().Resolve(q.P)
		if err != nil {
			return true
		}
		if len(negSet) > 0 && negSet[termKey(pTerm)] {
			return true
		}
		oTerm, err := ex.Store.Atoms().Resolve(q.O)
		if err != nil {
			return true
		}
		pairs = append(pairs, pathPair{S: sTerm, O: oTerm})
		return true
	})
	return pairs, err
}

func dedupPairs(pairs []pathPair) []pathPair {
	seen := map[string]bool{}
	out := make([]pathPair, 0, len(pairs))
	for _, p := range pairs {
		key := termKey(p.S) + "\x00" + termKey(p.O)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// evalPath enumerates (s, o) pairs satisfying path, treating a nil s/o
// as an unbound endpoint. PathKind handling follows the standard
// property-path algebra (SPARQL 1.1 §9).
func (ex *Executor) evalPath(path ast.PropertyPath, s, o, graph *mterm.Term) ([]pathPair, error) {
	switch path.Kind {
	case ast.PathSimple:
		p, err := expr.ResolveTerm(path.Pred, ex.Prefixes)
		if err != nil {
			return nil, err
		}
		return ex.singleStep(&p, nil, s, o, graph)
	case ast.PathNegated:
		return ex.singleStep(nil, path.Negated, s, o, graph)
	case ast.PathInverse:
		pairs, err := ex.evalPath(*path.Sub, o, s, graph)
		if err != nil {
			return nil, err
		}
		swapped := make([]pathPair, len(pairs))
		for i, p := range pairs {
			swapped[i] = pathPair{S: p.O, O: p.S}
		}
		return swapped, nil
	case ast.PathGroup:
		return ex.evalPath(*path.Sub, s, o, graph)
	case ast.PathSequence:
		lefts, err := ex.evalPath(*path.Left, s, nil, graph)
		if err != nil {
			return nil, err
		}
		var out []pathPair
		for _, lp := range lefts {
			mid := lp.O
			rights, err := ex.evalPath(*path.Right, &mid, o, graph)
			if err != nil {
				return nil, err
			}
			for _, rp := range rights {
				out = append(out, pathPair{S: lp.S, O: rp.O})
			}
		}
		return dedupPairs(out), nil
	case ast.PathAlternative:
		lefts, err := ex.evalPath(*path.Left, s, o, graph)
		if err != nil {
			return nil, err
		}
		rights, err := ex.evalPath(*path.Right, s, o, graph)
		if err != nil {
			return nil, err
		}
		return dedupPairs(append(lefts, rights...)), nil
	case ast.PathZeroOrOne:
		pairs, err := ex.evalPath(*path.Sub, s, o, graph)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, identityPairs(s, o)...)
		return dedupPairs(pairs), nil
	case ast.PathZeroOrMore, ast.PathOneOrMore:
		return ex.evalClosure(*path.Sub, s, o, graph, path.Kind == ast.PathZeroOrMore)
	default:
		return nil, fmt.Errorf("exec: unsupported property path kind")
	}
}

// identityPairs returns the zero-length-path solution set: {(s,s)} if s
// is bound, {(o,o)} if only o is bound, or empty if both are unbound
// (an unconstrained identity relation isn't enumerable without a known
// node set, so ? at both ends degrades to "no extra solutions").
func identityPairs(s, o *mterm.Term) []pathPair {
	if s != nil {
		return []pathPair{{S: *s, O: *s}}
	}
	if o != nil {
		return []pathPair{{S: *o, O: *o}}
	}
	return nil
}

// evalClosure computes the transitive (optionally reflexive) closure of
// sub via breadth-first search, bounded by maxPathSteps.
func (ex *Executor) evalClosure(sub ast.PropertyPath, s, o, graph *mterm.Term, zeroOk bool) ([]pathPair, error) {
	if s == nil && o == nil {
		return nil, fmt.Errorf("exec: '*'/'+' property path requires at least one bound endpoint")
	}
	reverse := s == nil
	start := s
	if reverse {
		start = o
	}

	visited := map[string]mterm.Term{termKey(*start): *start}
	frontier := []mterm.Term{*start}
	var reached []mterm.Term
	steps := 0
	for len(frontier) > 0 {
		var next []mterm.Term
		for _, node := range frontier {
			var pairs []pathPair
			var err error
			if reverse {
				pairs, err = ex.evalPath(sub, nil, &node, graph)
			} else {
				pairs, err = ex.evalPath(sub, &node, nil, graph)
			}
			if err != nil {
				return nil, err
			}
			for _, p := range pairs {
				cand := p.O
				if reverse {
					cand = p.S
				}
				key := termKey(cand)
				if _, ok := visited[key]; ok {
					continue
				}
				steps++
				if steps > maxPathSteps {
					return nil, fmt.Errorf("exec: property path closure exceeded %d steps", maxPathSteps)
				}
				visited[key] = cand
				next = append(next, cand)
				reached = append(reached, cand)
			}
		}
		frontier = next
	}

	var out []pathPair
	for _, r := range reached {
		if reverse {
			out = append(out, pathPair{S: r, O: *start})
		} else {
			out = append(out, pathPair{S: *start, O: r})
		}
	}
	if zeroOk {
		out = append(out, pathPair{S: *start, O: *start})
	}
	if o != nil && !reverse {
		filtered := out[:0]
		for _, p := range out {
			if termKey(p.O) == termKey(*o) {
				filtered = append(filtered, p)
			}
		}
		out = filtered
	}
	if s != nil && reverse {
		filtered := out[:0]
		for _, p := range out {
			if termKey(p.S) == termKey(*s) {
				filtered = append(filtered, p)
			}
		}
		out = filtered
	}
	return dedupPairs(out), nil
}
