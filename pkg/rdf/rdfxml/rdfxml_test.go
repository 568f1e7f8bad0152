package rdfxml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/rdfio"
)

func TestDecodeResourceProperty(t *testing.T) {
	src := `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns:p="http://x/">
  <rdf:Description rdf:about="http://x/s">
    <p:knows rdf:resource="http://x/o"/>
  </rdf:Description>
</rdf:RDF>`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mterm.IRI("http://x/s"), got.S)
	assert.Equal(t, mterm.IRI("http://x/o"), got.O)
	assert.Equal(t, "http://x/knows", got.P.Lexical)
}

func TestDecodePlainLiteralProperty(t *testing.T) {
	src := `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns:p="http://x/">
  <rdf:Description rdf:about="http://x/s">
    <p:name>Alice</p:name>
  </rdf:Description>
</rdf:RDF>`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.O.Lexical)
	assert.Equal(t, mterm.XSDString, got.O.Datatype)
}

func TestDecodeLangTaggedLiteralProperty(t *testing.T) {
	src := `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns:p="http://x/">
  <rdf:Description rdf:about="http://x/s">
    <p:name xml:lang="en">Alice</p:name>
  </rdf:Description>
</rdf:RDF>`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "en", got.O.Lang)
}

func TestDecodeTypedLiteralProperty(t *testing.T) {
	src := `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns:p="http://x/">
  <rdf:Description rdf:about="http://x/s">
    <p:age rdf:datatype="http://www.w3.org/2001/XMLSchema#integer">42</p:age>
  </rdf:Description>
</rdf:RDF>`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "42", got.O.Lexical)
	assert.Equal(t, mterm.XSDInteger, got.O.Datatype)
}

func TestDecodeNodeIDSubjectAndObject(t *testing.T) {
	src := `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns:p="http://x/">
  <rdf:Description rdf:nodeID="b0">
    <p:knows rdf:nodeID="b1"/>
  </rdf:Description>
</rdf:RDF>`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mterm.Blank("b0"), got.S)
	assert.Equal(t, mterm.Blank("b1"), got.O)
}

func TestDecodeMultipleDescriptions(t *testing.T) {
	src := `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns:p="http://x/">
  <rdf:Description rdf:about="http://x/s1">
    <p:name>A</p:name>
  </rdf:Description>
  <rdf:Description rdf:about="http://x/s2">
    <p:name>B</p:name>
  </rdf:Description>
</rdf:RDF>`
	var got []rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = append(got, q)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, mterm.IRI("http://x/s1"), got[0].S)
	assert.Equal(t, mterm.IRI("http://x/s2"), got[1].S)
}

func TestDecodeMalformedXMLIsError(t *testing.T) {
	src := `<rdf:RDF><rdf:Description rdf:about="http://x/s">`
	err := Decode(strings.NewReader(src), func(rdfio.Quad) error { return nil })
	assert.Error(t, err)
}

func TestWriterEncodesResourceAndLiteralProperties(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Encode(rdfio.Quad{S: mterm.IRI("http://x/s"), P: mterm.IRI("http://x/knows"), O: mterm.IRI("http://x/o")}))
	require.NoError(t, w.Close())

	out := buf.String()
	assert.Contains(t, out, `rdf:about="http://x/s"`)
	assert.Contains(t, out, `rdf:resource="http://x/o"`)
	assert.Contains(t, out, "</rdf:RDF>")
}

func TestWriterEncodesBlankSubject(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Encode(rdfio.Quad{S: mterm.Blank("b0"), P: mterm.IRI("http://x/p"), O: mterm.PlainLiteral("hi")}))
	require.NoError(t, w.Close())

	assert.Contains(t, buf.String(), `rdf:nodeID="b0"`)
}
