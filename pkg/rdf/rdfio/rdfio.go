// Package rdfio defines the shared protocol Mercury's six RDF codecs
// (ntriples, nquads, turtle, trig, rdfxml, jsonld) parse into and write
// from: a borrowed-span token reader plus a callback-based quad sink, so
// loading a multi-million-triple file never has to hold the whole parse
// tree in memory at once (§4.6).
//
// The span-borrowing reader is grounded on the same technique
// mterm.Decode uses for atom bytes: operate on []byte slices of the
// input buffer rather than allocating a string per token, and only
// copy into a string at the point a Term is actually constructed.
package rdfio

import (
	"bufio"
	"io"

	"github.com/cuemby/mercury/pkg/mterm"
)

// Quad is one decoded statement; Graph is the zero Term for a codec that
// has no notion of named graphs (N-Triples, Turtle).
type Quad struct {
	S, P, O, G mterm.Term
}

// Sink receives decoded quads one at a time. Decode stops and returns the
// first error a Sink call produces.
type Sink func(Quad) error

// Decoder is the shape every codec's Decode function implements.
type Decoder func(r io.Reader, emit Sink) error

// Encoder is the shape every codec's writer implements: one call per
// quad, flushed and finalized by Close.
type Encoder interface {
	Encode(Quad) error
	Close() error
}

// Reader wraps a bufio.Reader with the span-tracking helpers every
// line/token-oriented codec parser needs: byte-at-a-time peek/advance
// plus line/column bookkeeping for diag.Span.
type Reader struct {
	br   *bufio.Reader
	line int
	col  int
}

// NewReader wraps r for span-tracked reading.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024), line: 1, col: 1}
}

// Peek returns the next byte without consuming it; ok is false at EOF.
func (r *Reader) Peek() (b byte, ok bool) {
	buf, err := r.br.Peek(1)
	if err != nil || len(buf) == 0 {
		return 0, false
	}
	return buf[0], true
}

// Next consumes and returns the next byte, tracking line/column.
func (r *Reader) Next() (b byte, ok bool) {
	c, err := r.br.ReadByte()
	if err != nil {
		return 0, false
	}
	if c == '\n' {
		r.line++
		r.col = 1
	} else {
		r.col++
	}
	return c, true
}

// Pos returns the current (line, column) for diagnostics.
func (r *Reader) Pos() (int, int) { return r.line, r.col }

// SkipSpace consumes run-of-the-mill ASCII whitespace (not comments).
func (r *Reader) SkipSpace() {
	for {
		b, ok := r.Peek()
		if !ok || (b != ' ' && b != '\t' && b != '\r' && b != '\n') {
			return
		}
		r.Next()
	}
}
