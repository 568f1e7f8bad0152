// Package nquads implements the N-Quads codec: N-Triples plus an
// optional fourth graph term per line (§4.6).
package nquads

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/rdfio"
)

// Decode reads N-Quads from r, calling emit for each parsed quad. A line
// with no fourth term yields the zero Term for Graph (the default graph).
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
		q, err := parseQuadLine(line)
		if err != nil {
			return fmt.Errorf("nquads: line %d: %w", lineNo, err)
		}
		if err := emit(q); err != nil {
			return err
		}
	}
	return sc.Err()
}

func parseQuadLine(line string) (rdfio.Quad, error) {
	rest := line
	s, rest, err := parseTerm(rest)
	if err != nil {
		return rdfio.Quad{}, err
	}
	rest = strings.TrimLeft(rest, " \t")
	p, rest, err := parseTerm(rest)
	if err != nil {
		return rdfio.Quad{}, err
	}
	rest = strings.TrimLeft(rest, " \t")
	o, rest, err := parseTerm(rest)
	if err != nil {
		return rdfio.Quad{}, err
	}
	rest = strings.TrimLeft(rest, " \t")

	var g mterm.Term
	if len(rest) > 0 && rest[0] != '.' {
		g, rest, err = parseTerm(rest)
		if err != nil {
			return rdfio.Quad{}, err
		}
		rest = strings.TrimLeft(rest, " \t")
	}
	if !strings.HasPrefix(rest, ".") {
		return rdfio.Quad{}, fmt.Errorf("missing terminating '.'")
	}
	return rdfio.Quad{S: s, P: p, O: o, G: g}, nil
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

// Writer writes N-Quads to an underlying io.Writer.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter wraps w as an N-Quads encoder.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Encode writes one quad. If q.G is the zero Term, the line has no
// fourth term (the default graph).
func (w *Writer) Encode(q rdfio.Quad) error {
	if w.err != nil {
		return w.err
	}
	if q.G.Kind == mterm.KindInvalid {
		_, w.err = fmt.Fprintf(w.w, "%s %s %s .\n", mterm.Encode(q.S), mterm.Encode(q.P), mterm.Encode(q.O))
	} else {
		_, w.err = fmt.Fprintf(w.w, "%s %s %s %s .\n", mterm.Encode(q.S), mterm.Encode(q.P), mterm.Encode(q.O), mterm.Encode(q.G))
	}
	return w.err
}

// Close flushes the underlying buffer.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}
