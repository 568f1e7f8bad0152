// Package turtle implements a practical subset of Turtle (§4.6):
// @prefix/@base directives, the "a" rdf:type keyword, and ";"/","
// predicate-object and object-list abbreviations. Blank node property
// list shorthand ([ ... ]) and collection shorthand ( ... ) are not
// implemented — loading a file that uses them fails with a parse error
// naming the unsupported construct, rather than silently misreading it.
//
// The statement-level parser (parseStatement/parsePredicateObjectList) is
// shared with package trig through the exported wrapper methods below;
// trig wraps the same triple grammar in GRAPH blocks.
package turtle

import (
	"fmt"
	"io"
	"strings"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/rdfio"
)

// Parser holds the prefix map and base IRI accumulated from directives
// seen so far, state that must persist across statements within one
// document.
type Parser struct {
	prefixes map[string]string
	base     string
	text     string
	pos      int
}

// NewParser creates a Parser over the full document text.
func NewParser(text string) *Parser {
	return &Parser{prefixes: make(map[string]string), text: text}
}

// Decode reads a Turtle document from r, calling emit for each triple
// (Graph is always the zero Term).
func Decode(r io.Reader, emit rdfio.Sink) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	p := NewParser(string(data))
	return p.Run(func(q rdfio.Quad) error { return emit(q) })
}

// Run parses the whole document, calling emit once per triple produced
// (graph left as the zero Term by the caller if the caller wants plain
// triples; trig sets it per-block).
func (p *Parser) Run(emit func(rdfio.Quad) error) error {
	for {
		p.skipWSAndComments()
		if p.pos >= len(p.text) {
			return nil
		}
		if err := p.parseStatement(emit); err != nil {
			return err
		}
	}
}

// The following exported wrappers let package trig reuse this parser's
// term/directive/predicate-object-list grammar for the triples inside a
// GRAPH block, without duplicating the Turtle grammar.

// AtEnd reports whether the parser has consumed the whole document.
func (p *Parser) AtEnd() bool { return p.pos >= len(p.text) }

// SkipWS skips whitespace and '#' comments.
func (p *Parser) SkipWS() { p.skipWSAndComments() }

// ConsumeByte consumes c if it is next, reporting whether it matched.
func (p *Parser) ConsumeByte(c byte) bool { return p.consumeByte(c) }

// ConsumeDirective consumes a leading @prefix/@base/PREFIX directive if
// present, reporting whether one was found.
func (p *Parser) ConsumeDirective() bool { return p.consumeDirective() }

// ParseTerm parses one IRI, blank node, literal, or prefixed name.
func (p *Parser) ParseTerm() (mterm.Term, error) { return p.parseTerm() }

// ParsePredicateObjectList parses "p1 o1, o2 ; p2 o3" (without the
// trailing '.') emitting one triple per pair via emit.
func (p *Parser) ParsePredicateObjectList(subj mterm.Term, emit func(rdfio.Quad) error) error {
	return p.parsePredicateObjectList(subj, emit)
}

func (p *Parser) parseStatement(emit func(rdfio.Quad) error) error {
	if p.consumeDirective() {
		return nil
	}
	subj, err := p.parseTerm()
	if err != nil {
		return err
	}
	if err := p.parsePredicateObjectList(subj, emit); err != nil {
		return err
	}
	p.skipWSAndComments()
	if !p.consumeByte('.') {
		return fmt.Errorf("turtle: expected '.' at position %d", p.pos)
	}
	return nil
}

// parsePredicateObjectList parses "p1 o1, o2 ; p2 o3" (the trailing '.'
// is left for the caller) emitting one triple per (predicate, object)
// pair.
func (p *Parser) parsePredicateObjectList(subj mterm.Term, emit func(rdfio.Quad) error) error {
	for {
		p.skipWSAndComments()
		pred, err := p.parsePredicate()
		if err != nil {
			return err
		}
		for {
			p.skipWSAndComments()
			obj, err := p.parseTerm()
			if err != nil {
				return err
			}
			if err := emit(rdfio.Quad{S: subj, P: pred, O: obj}); err != nil {
				return err
			}
			p.skipWSAndComments()
			if p.consumeByte(',') {
				continue
			}
			break
		}
		p.skipWSAndComments()
		if p.consumeByte(';') {
			continue
		}
		return nil
	}
}

func (p *Parser) parsePredicate() (mterm.Term, error) {
	if strings.HasPrefix(p.text[p.pos:], "a") && p.boundaryAfter(p.pos+1) {
		p.pos++
		return mterm.IRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type"), nil
	}
	return p.parseTerm()
}

func (p *Parser) boundaryAfter(i int) bool {
	if i >= len(p.text) {
		return true
	}
	c := p.text[i]
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (p *Parser) consumeDirective() bool {
	start := p.pos
	rest := p.text[p.pos:]
	switch {
	case strings.HasPrefix(rest, "@prefix"):
		p.pos += len("@prefix")
		p.skipWSAndComments()
		name := p.readUntil(':')
		p.consumeByte(':')
		p.skipWSAndComments()
		iri := p.readIRIRef()
		p.prefixes[strings.TrimSpace(name)] = iri
		p.skipWSAndComments()
		p.consumeByte('.')
		return true
	case strings.HasPrefix(rest, "@base"):
		p.pos += len("@base")
		p.skipWSAndComments()
		p.base = p.readIRIRef()
		p.skipWSAndComments()
		p.consumeByte('.')
		return true
	case strings.HasPrefix(rest, "PREFIX") || strings.HasPrefix(rest, "prefix"):
		p.pos += len("PREFIX")
		p.skipWSAndComments()
		name := p.readUntil(':')
		p.consumeByte(':')
		p.skipWSAndComments()
		iri := p.readIRIRef()
		p.prefixes[strings.TrimSpace(name)] = iri
		return true
	default:
		p.pos = start
		return false
	}
}

func (p *Parser) parseTerm() (mterm.Term, error) {
	p.skipWSAndComments()
	if p.pos >= len(p.text) {
		return mterm.Term{}, fmt.Errorf("turtle: unexpected end of input")
	}
	switch p.text[p.pos] {
	case '<':
		iri := p.readIRIRef()
		return mterm.IRI(resolve(p.base, iri)), nil
	case '"':
		return p.parseLiteral()
	case '_':
		return p.parseBlank()
	case '[', '(':
		return mterm.Term{}, fmt.Errorf("turtle: blank node / collection shorthand not supported at position %d", p.pos)
	default:
		return p.parsePrefixedName()
	}
}

func (p *Parser) parseBlank() (mterm.Term, error) {
	if !strings.HasPrefix(p.text[p.pos:], "_:") {
		return mterm.Term{}, fmt.Errorf("turtle: malformed blank node at %d", p.pos)
	}
	p.pos += 2
	label := p.readWhile(func(c byte) bool { return !isBoundary(c) })
	return mterm.Blank(label), nil
}

func (p *Parser) parsePrefixedName() (mterm.Term, error) {
	name := p.readWhile(func(c byte) bool { return c != ':' && !isBoundary(c) })
	if !p.consumeByte(':') {
		if name == "GRAPH" {
			// TriG's GRAPH keyword is handed back as a bare term so
			// package trig can recognise it.
			return mterm.IRI(name), nil
		}
		return mterm.Term{}, fmt.Errorf("turtle: expected prefixed name at %d", p.pos)
	}
	local := p.readWhile(func(c byte) bool { return !isBoundary(c) && c != ',' && c != ';' })
	ns, ok := p.prefixes[name]
	if !ok {
		return mterm.Term{}, fmt.Errorf("turtle: unknown prefix %q", name)
	}
	return mterm.IRI(ns + local), nil
}

func (p *Parser) parseLiteral() (mterm.Term, error) {
	p.pos++ // consume opening quote
	var lex strings.Builder
	for p.pos < len(p.text) {
		c := p.text[p.pos]
		if c == '"' {
			p.pos++
			break
		}
		if c == '\\' && p.pos+1 < len(p.text) {
			lex.WriteByte(unescapeByte(p.text[p.pos+1]))
			p.pos += 2
			continue
		}
		lex.WriteByte(c)
		p.pos++
	}
	switch {
	case p.pos < len(p.text) && p.text[p.pos] == '@':
		p.pos++
		lang := p.readWhile(func(c byte) bool { return !isBoundary(c) && c != ',' && c != ';' })
		return mterm.LangLiteral(lex.String(), lang), nil
	case strings.HasPrefix(p.text[p.pos:], "^^"):
		p.pos += 2
		dtTerm, err := p.parseTerm()
		if err != nil {
			return mterm.Term{}, err
		}
		return mterm.TypedLiteral(lex.String(), dtTerm.Lexical), nil
	default:
		return mterm.PlainLiteral(lex.String()), nil
	}
}

func unescapeByte(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	default:
		return c
	}
}

func (p *Parser) readIRIRef() string {
	if p.pos >= len(p.text) || p.text[p.pos] != '<' {
		return ""
	}
	p.pos++
	start := p.pos
	for p.pos < len(p.text) && p.text[p.pos] != '>' {
		p.pos++
	}
	s := p.text[start:p.pos]
	if p.pos < len(p.text) {
		p.pos++
	}
	return s
}

func (p *Parser) readUntil(delim byte) string {
	start := p.pos
	for p.pos < len(p.text) && p.text[p.pos] != delim {
		p.pos++
	}
	return p.text[start:p.pos]
}

func (p *Parser) readWhile(pred func(byte) bool) string {
	start := p.pos
	for p.pos < len(p.text) && pred(p.text[p.pos]) {
		p.pos++
	}
	return p.text[start:p.pos]
}

func (p *Parser) consumeByte(c byte) bool {
	if p.pos < len(p.text) && p.text[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) skipWSAndComments() {
	for p.pos < len(p.text) {
		c := p.text[p.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			p.pos++
			continue
		}
		if c == '#' {
			for p.pos < len(p.text) && p.text[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		break
	}
}

func isBoundary(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '.' || c == ';' || c == ','
}

// resolve joins a relative IRI against base; absolute IRIs (containing a
// scheme) are returned unchanged.
func resolve(base, iri string) string {
	if base == "" || strings.Contains(iri, "://") {
		return iri
	}
	return base + iri
}

// Writer writes Turtle, falling back to fully-qualified <IRI> terms (no
// prefix abbreviation) for simplicity and unambiguous round-tripping.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w as a Turtle encoder.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Encode writes one triple statement. q.G is ignored.
func (w *Writer) Encode(q rdfio.Quad) error {
	if w.err != nil {
		return w.err
	}
	_, w.err = fmt.Fprintf(w.w, "%s %s %s .\n", mterm.Encode(q.S), mterm.Encode(q.P), mterm.Encode(q.O))
	return w.err
}

// Close is a no-op; Turtle output needs no trailing bytes.
func (w *Writer) Close() error { return w.err }
