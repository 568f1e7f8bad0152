// Package rdfxml implements a practical subset of RDF/XML (§4.6):
// rdf:Description elements (striped syntax) with rdf:about/rdf:nodeID
// subjects, property elements carrying rdf:resource, rdf:datatype,
// xml:lang or plain text content. rdf:parseType="Collection" and nested
// (non-striped) typed-node shorthand are not implemented.
//
// RDF/XML is the one codec in this set grounded on the standard library
// rather than a pack dependency or teacher pattern: no example repo
// parses XML, and encoding/xml's token-stream Decoder is exactly the
// right shape for striping RDF/XML's element structure — wiring in a
// third-party XML library here would add a dependency with no
// corresponding component anywhere else in the spec to justify it.
package rdfxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/rdfio"
)

const rdfNS = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

// Decode reads RDF/XML from r, calling emit for each resulting triple
// (Graph is always the zero Term — RDF/XML has no native graph concept).
func Decode(r io.Reader, emit rdfio.Sink) error {
	dec := xml.NewDecoder(r)
	var subject mterm.Term
	haveSubject := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("rdfxml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if isDescriptionLike(t) {
				subject, err = subjectOf(t)
				if err != nil {
					return err
				}
				haveSubject = true
				continue
			}
			if !haveSubject {
				continue
			}
			pred := mterm.IRI(t.Name.Space + t.Name.Local)
			if res, ok := attr(t, rdfNS, "resource"); ok {
				if err := emit(rdfio.Quad{S: subject, P: pred, O: mterm.IRI(res)}); err != nil {
					return err
				}
				continue
			}
			if nodeID, ok := attr(t, rdfNS, "nodeID"); ok {
				if err := emit(rdfio.Quad{S: subject, P: pred, O: mterm.Blank(nodeID)}); err != nil {
					return err
				}
				continue
			}
			text, lang, datatype, terr := readPropertyValue(dec, t)
			if terr != nil {
				return terr
			}
			var obj mterm.Term
			switch {
			case datatype != "":
				obj = mterm.TypedLiteral(text, datatype)
			case lang != "":
				obj = mterm.LangLiteral(text, lang)
			default:
				obj = mterm.PlainLiteral(text)
			}
			if err := emit(rdfio.Quad{S: subject, P: pred, O: obj}); err != nil {
				return err
			}

		case xml.EndElement:
			if isDescriptionLikeName(t.Name) {
				haveSubject = false
			}
		}
	}
}

func isDescriptionLike(t xml.StartElement) bool {
	return t.Name.Space == rdfNS && t.Name.Local == "Description"
}

func isDescriptionLikeName(n xml.Name) bool {
	return n.Space == rdfNS && n.Local == "Description"
}

func subjectOf(t xml.StartElement) (mterm.Term, error) {
	if about, ok := attr(t, rdfNS, "about"); ok {
		return mterm.IRI(about), nil
	}
	if nodeID, ok := attr(t, rdfNS, "nodeID"); ok {
		return mterm.Blank(nodeID), nil
	}
	return mterm.Blank(fmt.Sprintf("rdfxml-anon-%p", &t)), nil
}

func attr(t xml.StartElement, space, local string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

func readPropertyValue(dec *xml.Decoder, start xml.StartElement) (text, lang, datatype string, err error) {
	if dt, ok := attr(start, rdfNS, "datatype"); ok {
		datatype = dt
	}
	for _, a := range start.Attr {
		if a.Name.Space == "http://www.w3.org/XML/1998/namespace" && a.Name.Local == "lang" {
			lang = a.Value
		}
	}
	var b strings.Builder
	depth := 0
	for {
		tok, terr := dec.Token()
		if terr != nil {
			return "", "", "", terr
		}
		switch tt := tok.(type) {
		case xml.CharData:
			b.Write(tt)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return strings.TrimSpace(b.String()), lang, datatype, nil
			}
			depth--
		}
	}
}

// Writer writes RDF/XML, one rdf:Description element per triple in
// encounter order (no grouping pass — each Encode call emits a
// self-contained Description, which is valid RDF/XML even if verbose).
type Writer struct {
	w       io.Writer
	err     error
	started bool
}

// NewWriter wraps w as an RDF/XML encoder.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) writeHeader() {
	if w.started {
		return
	}
	w.started = true
	fmt.Fprintf(w.w, "<?xml version=\"1.0\"?>\n<rdf:RDF xmlns:rdf=%q>\n", rdfNS)
}

// Encode writes one triple as a standalone rdf:Description element. q.G
// is ignored.
func (w *Writer) Encode(q rdfio.Quad) error {
	if w.err != nil {
		return w.err
	}
	w.writeHeader()

	_, w.err = fmt.Fprintf(w.w, "  <rdf:Description %s>\n", subjAttr(q.S))
	if w.err != nil {
		return w.err
	}
	if err := w.writeProperty(q.P, q.O); err != nil {
		return err
	}
	_, w.err = fmt.Fprintln(w.w, "  </rdf:Description>")
	return w.err
}

func subjAttr(t mterm.Term) string {
	if t.Kind == mterm.KindBlank {
		return fmt.Sprintf("rdf:nodeID=%q", t.Lexical)
	}
	return fmt.Sprintf("rdf:about=%q", t.Lexical)
}

func (w *Writer) writeProperty(pred, obj mterm.Term) error {
	tag := "rdf:_1"
	nsAttr := ""
	if idx := strings.LastIndexAny(pred.Lexical, "#/"); idx >= 0 {
		local := pred.Lexical[idx+1:]
		if local != "" {
			tag = "p:" + local
			nsAttr = fmt.Sprintf(" xmlns:p=%q", pred.Lexical[:idx+1])
		}
	}
	switch obj.Kind {
	case mterm.KindIRI:
		_, err := fmt.Fprintf(w.w, "    <%s%s rdf:resource=%q/>\n", tag, nsAttr, obj.Lexical)
		return err
	case mterm.KindBlank:
		_, err := fmt.Fprintf(w.w, "    <%s%s rdf:nodeID=%q/>\n", tag, nsAttr, obj.Lexical)
		return err
	default:
		var attrs strings.Builder
		if obj.Lang != "" {
			attrs.WriteString(fmt.Sprintf(" xml:lang=%q", obj.Lang))
		} else if obj.Datatype != "" && obj.Datatype != mterm.XSDString {
			attrs.WriteString(fmt.Sprintf(" rdf:datatype=%q", obj.Datatype))
		}
		_, err := fmt.Fprintf(w.w, "    <%s%s%s>%s</%s>\n", tag, nsAttr, attrs.String(), xmlEscape(obj.Lexical), tag)
		return err
	}
}

func xmlEscape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

// Close writes the closing </rdf:RDF> tag.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	w.writeHeader()
	_, w.err = fmt.Fprintln(w.w, "</rdf:RDF>")
	return w.err
}
