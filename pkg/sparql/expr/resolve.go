// Package expr implements SPARQL filter/bind expression evaluation
// (§4.9): the typed Value stack-machine operators, prefixed-name/term
// resolution, and the builtin function set (aggregates are computed in
// package exec), kept independent
// of the exec package's row-joining machinery so it can be exercised and
// tested without a store.
package expr

import (
	"fmt"
	"strings"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/sparql/ast"
)

// PrefixMap resolves a SPARQL prefixed name to a full IRI.
type PrefixMap map[string]string

// BuildPrefixMap collects a query's PREFIX declarations.
func BuildPrefixMap(pr ast.Prologue) PrefixMap {
	pm := PrefixMap{}
	for _, d := range pr.Prefixes {
		pm[d.Name] = d.IRI
	}
	return pm
}

// ResolveTerm converts a parsed ast.Term into an mterm.Term, expanding
// "pname:prefix:local" markers against pm. Variables and UNDEF have no
// ground term and return an error — callers must branch on t.Kind before
// calling this for variable positions.
func ResolveTerm(t ast.Term, pm PrefixMap) (mterm.Term, error) {
	switch t.Kind {
	case ast.TermIRI:
		if strings.HasPrefix(t.Name, "pname:") {
			return resolvePName(strings.TrimPrefix(t.Name, "pname:"), pm)
		}
		return mterm.IRI(t.Name), nil
	case ast.TermBlank:
		return mterm.Blank(t.Name), nil
	case ast.TermLiteral:
		return t.Literal, nil
	default:
		return mterm.Term{}, fmt.Errorf("expr: term kind %v has no ground resolution", t.Kind)
	}
}

func resolvePName(pname string, pm PrefixMap) (mterm.Term, error) {
	idx := strings.Index(pname, ":")
	if idx < 0 {
		return mterm.Term{}, fmt.Errorf("expr: malformed prefixed name %q", pname)
	}
	prefix, local := pname[:idx], pname[idx+1:]
	ns, ok := pm[prefix]
	if !ok {
		return mterm.Term{}, fmt.Errorf("expr: undefined prefix %q", prefix)
	}
	return mterm.IRI(ns + local), nil
}
