// Package result implements the SPARQL 1.1 result serializations named
// in §6.3: SELECT as SPARQL-Results JSON (the default), CSV, TSV, and
// XML; ASK as boolean JSON, XML, or a plain "true"/"false" line.
// CONSTRUCT/DESCRIBE reuse an L6 RDF codec (pkg/rdf/...) rather than a
// bespoke format, so WriteConstruct just adapts exec.Triple to
// rdfio.Quad and drives whatever rdfio.Encoder the caller picked.
package result

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/rdfio"
	"github.com/cuemby/mercury/pkg/sparql/exec"
)

// jsonBinding is one SPARQL-Results JSON binding value
// (https://www.w3.org/TR/sparql11-results-json/).
type jsonBinding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	DataType string `json:"datatype,omitempty"`
}

type jsonResults struct {
	Head    jsonHead `json:"head"`
	Results *struct {
		Bindings []map[string]jsonBinding `json:"bindings"`
	} `json:"results,omitempty"`
	Boolean *bool `json:"boolean,omitempty"`
}

type jsonHead struct {
	Vars []string `json:"vars,omitempty"`
}

func termToBinding(t mterm.Term) jsonBinding {
	switch t.Kind {
	case mterm.KindIRI:
		return jsonBinding{Type: "uri", Value: t.Lexical}
	case mterm.KindBlank:
		return jsonBinding{Type: "bnode", Value: t.Lexical}
	default:
		b := jsonBinding{Type: "literal", Value: t.Lexical, Lang: t.Lang}
		if t.Datatype != "" && t.Datatype != mterm.XSDString {
			b.DataType = t.Datatype
		}
		return b
	}
}

func rowBindings(vars []string, r mterm.Row) map[string]jsonBinding {
	out := map[string]jsonBinding{}
	for _, v := range vars {
		val, ok := r.GetProjected(v)
		if !ok {
			continue
		}
		t, ok := val.AsTerm()
		if !ok {
			continue
		}
		out[v] = termToBinding(t)
	}
	return out
}

// WriteSelectJSON renders a SELECT result as SPARQL-Results JSON.
func WriteSelectJSON(w io.Writer, res *exec.Result) error {
	out := jsonResults{Head: jsonHead{Vars: res.Vars}}
	out.Results = &struct {
		Bindings []map[string]jsonBinding `json:"bindings"`
	}{Bindings: make([]map[string]jsonBinding, 0, len(res.Rows))}
	for _, r := range res.Rows {
		out.Results.Bindings = append(out.Results.Bindings, rowBindings(res.Vars, r))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteAskJSON renders an ASK result as SPARQL-Results JSON.
func WriteAskJSON(w io.Writer, res *exec.Result) error {
	b := res.Bool
	out := jsonResults{Boolean: &b}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteAskPlain renders an ASK result as a bare "true"/"false" line.
func WriteAskPlain(w io.Writer, res *exec.Result) error {
	_, err := fmt.Fprintln(w, res.Bool)
	return err
}

// termCSVString renders a term the way CSV/TSV results do: bare lexical
// form, IRIs and literals alike, with no type decoration (W3C CSV/TSV
// results §3/§4 intentionally discard datatype/lang information).
func termCSVString(t mterm.Term) string {
	if t.Kind == mterm.KindIRI {
		return t.Lexical
	}
	return t.Lexical
}

// WriteSelectCSV renders a SELECT result as SPARQL 1.1 CSV results.
func WriteSelectCSV(w io.Writer, res *exec.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(res.Vars); err != nil {
		return err
	}
	row := make([]string, len(res.Vars))
	for _, r := range res.Rows {
		for i, v := range res.Vars {
			val, ok := r.GetProjected(v)
			if !ok {
				row[i] = ""
				continue
			}
			t, ok := val.AsTerm()
			if !ok {
				row[i] = ""
				continue
			}
			row[i] = termCSVString(t)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSelectTSV renders a SELECT result as SPARQL 1.1 TSV results: each
// bound value keeps its full N-Triples-style term syntax (<iri>, "lit",
// _:bnode), unlike CSV's bare lexical form.
func WriteSelectTSV(w io.Writer, res *exec.Result) error {
	for i, v := range res.Vars {
		if i > 0 {
			if _, err := io.WriteString(w, "\t"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "?%s", v); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	for _, r := range res.Rows {
		for i, v := range res.Vars {
			if i > 0 {
				if _, err := io.WriteString(w, "\t"); err != nil {
					return err
				}
			}
			val, ok := r.GetProjected(v)
			if !ok {
				continue
			}
			t, ok := val.AsTerm()
			if !ok {
				continue
			}
			if _, err := w.Write(mterm.Encode(t)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// xmlSparql mirrors the SPARQL Query Results XML Format
// (https://www.w3.org/TR/rdf-sparql-XMLres/).
type xmlSparql struct {
	XMLName xml.Name     `xml:"sparql"`
	Head    xmlHead      `xml:"head"`
	Results *xmlResults  `xml:"results,omitempty"`
	Boolean *bool        `xml:"boolean,omitempty"`
}

type xmlHead struct {
	Vars []xmlVariable `xml:"variable"`
}

type xmlVariable struct {
	Name string `xml:"name,attr"`
}

type xmlResults struct {
	Rows []xmlResult `xml:"result"`
}

type xmlResult struct {
	Bindings []xmlBinding `xml:"binding"`
}

type xmlBinding struct {
	Name    string    `xml:"name,attr"`
	URI     string    `xml:"uri,omitempty"`
	BNode   string    `xml:"bnode,omitempty"`
	Literal *xmlLiteral `xml:"literal,omitempty"`
}

type xmlLiteral struct {
	Value    string `xml:",chardata"`
	Lang     string `xml:"xml:lang,attr,omitempty"`
	DataType string `xml:"datatype,attr,omitempty"`
}

func termToXMLBinding(name string, t mterm.Term) xmlBinding {
	switch t.Kind {
	case mterm.KindIRI:
		return xmlBinding{Name: name, URI: t.Lexical}
	case mterm.KindBlank:
		return xmlBinding{Name: name, BNode: t.Lexical}
	default:
		lit := &xmlLiteral{Value: t.Lexical, Lang: t.Lang}
		if t.Datatype != "" && t.Datatype != mterm.XSDString {
			lit.DataType = t.Datatype
		}
		return xmlBinding{Name: name, Literal: lit}
	}
}

// WriteSelectXML renders a SELECT result as SPARQL Query Results XML.
func WriteSelectXML(w io.Writer, res *exec.Result) error {
	doc := xmlSparql{Head: xmlHead{}}
	for _, v := range res.Vars {
		doc.Head.Vars = append(doc.Head.Vars, xmlVariable{Name: v})
	}
	xr := &xmlResults{}
	for _, r := range res.Rows {
		xres := xmlResult{}
		for _, v := range res.Vars {
			val, ok := r.GetProjected(v)
			if !ok {
				continue
			}
			t, ok := val.AsTerm()
			if !ok {
				continue
			}
			xres.Bindings = append(xres.Bindings, termToXMLBinding(v, t))
		}
		xr.Rows = append(xr.Rows, xres)
	}
	doc.Results = xr
	return writeXML(w, doc)
}

// WriteAskXML renders an ASK result as SPARQL Query Results XML.
func WriteAskXML(w io.Writer, res *exec.Result) error {
	b := res.Bool
	doc := xmlSparql{Boolean: &b}
	return writeXML(w, doc)
}

func writeXML(w io.Writer, doc xmlSparql) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteConstruct drives enc with every triple in res (CONSTRUCT or
// DESCRIBE), so any L6 codec's writer (ntriples.NewWriter,
// turtle.NewWriter, ...) can serialize a query result exactly the way it
// serializes a loaded file.
func WriteConstruct(enc rdfio.Encoder, res *exec.Result) error {
	for _, t := range res.Triples {
		if err := enc.Encode(rdfio.Quad{S: t.S, P: t.P, O: t.O}); err != nil {
			return err
		}
	}
	return enc.Close()
}
