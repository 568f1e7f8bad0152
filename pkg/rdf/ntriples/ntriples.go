// Package ntriples implements the N-Triples codec (W3C N-Triples), the
// simplest of Mercury's six RDF formats: one triple per line, no
// prefixes, no named graphs (§4.6).
package ntriples

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/rdfio"
)

// Decode reads N-Triples from r, calling emit for each parsed triple.
// Every emitted rdfio.Quad has the zero Term for Graph.
func Decode(r io.Reader, emit rdfio.Sink) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, p, o, err := parseTripleLine(line)
		if err != nil {
			return fmt.Errorf("ntriples: line %d: %w", lineNo, err)
		}
		if err := emit(rdfio.Quad{S: s, P: p, O: o}); err != nil {
			return err
		}
	}
	return sc.Err()
}

// parseTripleLine parses "subject predicate object ." as three terms.
// Term kinds are not checked per position: parseTerm accepts an IRI,
// blank node or literal in any of the three slots.
func parseTripleLine(line string) (s, p, o mterm.Term, err error) {
	rest := line
	s, rest, err = parseTerm(rest)
	if err != nil {
		return
	}
	rest = strings.TrimLeft(rest, " \t")
	p, rest, err = parseTerm(rest)
	if err != nil {
		return
	}
	rest = strings.TrimLeft(rest, " \t")
	o, rest, err = parseTerm(rest)
	if err != nil {
		return
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, ".") {
		err = fmt.Errorf("missing terminating '.'")
	}
	return
}

func parseTerm(s string) (mterm.Term, string, error) {
	if s == "" {
		return mterm.Term{}, s, fmt.Errorf("unexpected end of line")
	}
	switch s[0] {
	case '<':
		end := strings.IndexByte(s, '>')
		if end < 0 {
			return mterm.Term{}, s, fmt.Errorf("unterminated IRI")
		}
		return mterm.IRI(unescapeIRI(s[1:end])), s[end+1:], nil
	case '_':
		if len(s) < 2 || s[1] != ':' {
			return mterm.Term{}, s, fmt.Errorf("malformed blank node")
		}
		i := 2
		for i < len(s) && !isTermBoundary(s[i]) {
			i++
		}
		return mterm.Blank(s[2:i]), s[i:], nil
	case '"':
		return parseLiteral(s)
	default:
		return mterm.Term{}, s, fmt.Errorf("unexpected character %q", s[0])
	}
}

func parseLiteral(s string) (mterm.Term, string, error) {
	var lex strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c == '"' {
			break
		}
		if c == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				lex.WriteByte('\n')
			case 'r':
				lex.WriteByte('\r')
			case 't':
				lex.WriteByte('\t')
			case '"':
				lex.WriteByte('"')
			case '\\':
				lex.WriteByte('\\')
			default:
				lex.WriteByte(s[i+1])
			}
			i += 2
			continue
		}
		lex.WriteByte(c)
		i++
	}
	if i >= len(s) {
		return mterm.Term{}, s, fmt.Errorf("unterminated literal")
	}
	rest := s[i+1:]
	switch {
	case strings.HasPrefix(rest, "@"):
		j := 1
		for j < len(rest) && !isTermBoundary(rest[j]) {
			j++
		}
		return mterm.LangLiteral(lex.String(), rest[1:j]), rest[j:], nil
	case strings.HasPrefix(rest, "^^<"):
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return mterm.Term{}, s, fmt.Errorf("unterminated datatype IRI")
		}
		return mterm.TypedLiteral(lex.String(), unescapeIRI(rest[3:end])), rest[end+1:], nil
	default:
		return mterm.PlainLiteral(lex.String()), rest, nil
	}
}

func isTermBoundary(c byte) bool {
	return c == ' ' || c == '\t' || c == '.' || c == '\r' || c == '\n'
}

func unescapeIRI(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			b.WriteByte(s[i])
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Writer writes N-Triples to an underlying io.Writer.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter wraps w as an N-Triples encoder.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Encode writes one triple; q.G is ignored since N-Triples has no graph
// position.
func (w *Writer) Encode(q rdfio.Quad) error {
	if w.err != nil {
		return w.err
	}
	_, w.err = fmt.Fprintf(w.w, "%s %s %s .\n", mterm.Encode(q.S), mterm.Encode(q.P), mterm.Encode(q.O))
	return w.err
}

// Close flushes the underlying buffer.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}
