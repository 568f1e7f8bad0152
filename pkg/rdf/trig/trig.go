// Package trig implements TriG (§4.6): Turtle extended with named graph
// blocks, "GRAPH <iri> { ... }" or the bare "<iri> { ... }" form. Default
// graph statements outside any block are accepted exactly as Turtle
// would parse them.
//
// TriG's triple grammar inside a block is identical to Turtle's, so this
// package reuses package turtle's Parser via its exported
// ParseTerm/ParsePredicateObjectList/ConsumeDirective wrappers rather
// than re-implementing the term grammar.
package trig

import (
	"fmt"
	"io"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/rdfio"
	"github.com/cuemby/mercury/pkg/rdf/turtle"
)

// Decode reads a TriG document from r, calling emit for each quad. Quads
// outside any GRAPH block have the zero Term for Graph (the default
// graph).
func Decode(r io.Reader, emit rdfio.Sink) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	p := turtle.NewParser(string(data))

	for {
		p.SkipWS()
		if p.AtEnd() {
			return nil
		}
		if p.ConsumeDirective() {
			continue
		}

		term, err := p.ParseTerm()
		if err != nil {
			return err
		}

		p.SkipWS()
		switch {
		case p.ConsumeByte('{'):
			// Bare "<graph> { ... }" form: term is the graph IRI.
			if err := parseBlock(p, term, emit); err != nil {
				return err
			}
		default:
			// No block followed: term was the subject of a default-graph
			// statement. GRAPH keyword form arrives as a prefixed-name-like
			// term "GRAPH" followed by another term then '{'.
			if term.Kind == mterm.KindIRI && term.Lexical == "GRAPH" {
				graphTerm, err := p.ParseTerm()
				if err != nil {
					return err
				}
				p.SkipWS()
				if !p.ConsumeByte('{') {
					return fmt.Errorf("trig: expected '{' after GRAPH clause")
				}
				if err := parseBlock(p, graphTerm, emit); err != nil {
					return err
				}
				continue
			}
			if err := p.ParsePredicateObjectList(term, func(q rdfio.Quad) error {
				return emit(rdfio.Quad{S: q.S, P: q.P, O: q.O})
			}); err != nil {
				return err
			}
			p.SkipWS()
			if !p.ConsumeByte('.') {
				return fmt.Errorf("trig: expected '.' terminating default-graph statement")
			}
		}
	}
}

func parseBlock(p *turtle.Parser, graph mterm.Term, emit rdfio.Sink) error {
	for {
		p.SkipWS()
		if p.ConsumeByte('}') {
			return nil
		}
		if p.ConsumeDirective() {
			continue
		}
		subj, err := p.ParseTerm()
		if err != nil {
			return err
		}
		if err := p.ParsePredicateObjectList(subj, func(q rdfio.Quad) error {
			return emit(rdfio.Quad{S: q.S, P: q.P, O: q.O, G: graph})
		}); err != nil {
			return err
		}
		p.SkipWS()
		p.ConsumeByte('.')
	}
}

// Writer writes TriG, grouping consecutive quads sharing the same graph
// under one GRAPH block to stay reasonably compact, falling back to
// fully-qualified <IRI> terms for unambiguous round-tripping.
type Writer struct {
	w         io.Writer
	err       error
	openGraph mterm.Term
	graphOpen bool
}

// NewWriter wraps w as a TriG encoder.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Encode writes one quad, opening/closing GRAPH blocks as the graph
// changes between consecutive calls.
func (w *Writer) Encode(q rdfio.Quad) error {
	if w.err != nil {
		return w.err
	}
	isDefault := q.G.Kind == mterm.KindInvalid

	if w.graphOpen && (isDefault || !sameTerm(w.openGraph, q.G)) {
		fmt.Fprintln(w.w, "}")
		w.graphOpen = false
	}
	if isDefault {
		_, w.err = fmt.Fprintf(w.w, "%s %s %s .\n", mterm.Encode(q.S), mterm.Encode(q.P), mterm.Encode(q.O))
		return w.err
	}
	if !w.graphOpen {
		_, w.err = fmt.Fprintf(w.w, "GRAPH %s {\n", mterm.Encode(q.G))
		if w.err != nil {
			return w.err
		}
		w.graphOpen = true
		w.openGraph = q.G
	}
	_, w.err = fmt.Fprintf(w.w, "  %s %s %s .\n", mterm.Encode(q.S), mterm.Encode(q.P), mterm.Encode(q.O))
	return w.err
}

func sameTerm(a, b mterm.Term) bool {
	return a.Kind == b.Kind && a.Lexical == b.Lexical
}

// Close writes a closing brace if a GRAPH block is still open.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if w.graphOpen {
		_, w.err = fmt.Fprintln(w.w, "}")
	}
	return w.err
}
