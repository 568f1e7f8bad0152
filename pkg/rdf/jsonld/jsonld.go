// Package jsonld implements a practical subset of JSON-LD 1.1 expanded
// and compact-with-@context forms (§4.6): objects with "@id"/"@type",
// property keys resolved through an inline "@context" prefix map, and
// "@value"/"@language"/"@type" value objects. Framing, nested @graph
// arrays and remote context dereferencing are not implemented — those
// need network I/O or algorithms well beyond a storage engine's loader.
//
// Grounded on the standard library rather than a pack dependency: no
// example repo touches JSON-LD, and encoding/json's generic
// map[string]any decoding is the natural fit for JSON-LD's arbitrarily
// shaped term/value objects — there is no fixed schema to decode into a
// struct.
package jsonld

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/rdfio"
)

// Decode reads a JSON-LD document (a single node object or an array of
// node objects) from r, calling emit for each resulting triple. Graph is
// always the zero Term; named-graph ("@graph") nesting is not supported.
func Decode(r io.Reader, emit rdfio.Sink) error {
	var raw any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("jsonld: %w", err)
	}

	ctx := map[string]string{}
	nodes, err := extractNodes(raw, ctx)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := emitNode(n, ctx, emit); err != nil {
			return err
		}
	}
	return nil
}

func extractNodes(raw any, ctx map[string]string) ([]map[string]any, error) {
	switch v := raw.(type) {
	case []any:
		var out []map[string]any
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("jsonld: expected node object in array")
			}
			out = append(out, obj)
		}
		return out, nil
	case map[string]any:
		if c, ok := v["@context"]; ok {
			mergeContext(ctx, c)
		}
		return []map[string]any{v}, nil
	default:
		return nil, fmt.Errorf("jsonld: unsupported document shape")
	}
}

func mergeContext(ctx map[string]string, raw any) {
	m, ok := raw.(map[string]any)
	if !ok {
		return
	}
	for k, v := range m {
		if s, ok := v.(string); ok {
			ctx[k] = s
		}
	}
}

func expandKey(key string, ctx map[string]string) string {
	if iri, ok := ctx[key]; ok {
		return iri
	}
	return key
}

func emitNode(node map[string]any, ctx map[string]string, emit rdfio.Sink) error {
	if c, ok := node["@context"]; ok {
		mergeContext(ctx, c)
	}

	subj := subjectTerm(node)

	if t, ok := node["@type"]; ok {
		for _, typeIRI := range toStringList(t) {
			if err := emit(rdfio.Quad{
				S: subj,
				P: mterm.IRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type"),
				O: mterm.IRI(typeIRI),
			}); err != nil {
				return err
			}
		}
	}

	for key, val := range node {
		if key == "@id" || key == "@type" || key == "@context" {
			continue
		}
		pred := mterm.IRI(expandKey(key, ctx))
		for _, obj := range valueTerms(val, ctx) {
			if err := emit(rdfio.Quad{S: subj, P: pred, O: obj}); err != nil {
				return err
			}
		}
	}
	return nil
}

func subjectTerm(node map[string]any) mterm.Term {
	if id, ok := node["@id"].(string); ok {
		return mterm.IRI(id)
	}
	return mterm.Blank(fmt.Sprintf("jsonld-anon-%p", node))
}

func valueTerms(val any, ctx map[string]string) []mterm.Term {
	switch v := val.(type) {
	case []any:
		var out []mterm.Term
		for _, item := range v {
			out = append(out, valueTerms(item, ctx)...)
		}
		return out
	case map[string]any:
		return []mterm.Term{valueObjectTerm(v)}
	case string:
		return []mterm.Term{mterm.PlainLiteral(v)}
	case json.Number:
		dt := mterm.XSDDecimal
		if !containsDot(string(v)) {
			dt = mterm.XSDInteger
		}
		return []mterm.Term{mterm.TypedLiteral(string(v), dt)}
	case bool:
		return []mterm.Term{mterm.TypedLiteral(boolLexical(v), mterm.XSDBoolean)}
	default:
		return nil
	}
}

func valueObjectTerm(v map[string]any) mterm.Term {
	if id, ok := v["@id"].(string); ok {
		return mterm.IRI(id)
	}
	val, _ := v["@value"].(string)
	if lang, ok := v["@language"].(string); ok {
		return mterm.LangLiteral(val, lang)
	}
	if dt, ok := v["@type"].(string); ok {
		return mterm.TypedLiteral(val, dt)
	}
	return mterm.PlainLiteral(val)
}

func toStringList(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func containsDot(s string) bool {
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'E' {
			return true
		}
	}
	return false
}

func boolLexical(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Writer collects quads and writes them as a single JSON-LD array of
// node objects (one per distinct subject) on Close, since JSON-LD's
// document-level structure can't be streamed one triple at a time the
// way the line-oriented codecs can.
type Writer struct {
	w     io.Writer
	nodes map[string]map[string]any
	order []string
	err   error
}

// NewWriter wraps w as a JSON-LD encoder.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, nodes: make(map[string]map[string]any)}
}

// Encode buffers one triple into its subject's node object.
func (w *Writer) Encode(q rdfio.Quad) error {
	if w.err != nil {
		return w.err
	}
	key := mterm.Encode(q.S)
	node, ok := w.nodes[string(key)]
	if !ok {
		node = map[string]any{"@id": q.S.Lexical}
		if q.S.Kind == mterm.KindBlank {
			node["@id"] = "_:" + q.S.Lexical
		}
		w.nodes[string(key)] = node
		w.order = append(w.order, string(key))
	}

	predKey := q.P.Lexical
	objVal := encodeObjectValue(q.O)
	if existing, ok := node[predKey]; ok {
		node[predKey] = append(existing.([]any), objVal)
	} else {
		node[predKey] = []any{objVal}
	}
	return nil
}

func encodeObjectValue(t mterm.Term) any {
	switch t.Kind {
	case mterm.KindIRI:
		return map[string]any{"@id": t.Lexical}
	case mterm.KindBlank:
		return map[string]any{"@id": "_:" + t.Lexical}
	default:
		obj := map[string]any{"@value": t.Lexical}
		if t.Lang != "" {
			obj["@language"] = t.Lang
		} else if t.Datatype != "" && t.Datatype != mterm.XSDString {
			obj["@type"] = t.Datatype
		}
		return obj
	}
}

// Close serializes every buffered node object as a JSON array.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	docs := make([]map[string]any, 0, len(w.order))
	for _, key := range w.order {
		docs = append(docs, w.nodes[key])
	}
	enc := json.NewEncoder(w.w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}
