package turtle

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/rdfio"
)

func TestDecodeBasicTriple(t *testing.T) {
	src := `<http://x/s> <http://x/p> <http://x/o> .`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mterm.IRI("http://x/s"), got.S)
	assert.Equal(t, mterm.IRI("http://x/o"), got.O)
}

func TestDecodePrefixDirective(t *testing.T) {
	src := `@prefix ex: <http://example.org/> .
ex:alice ex:knows ex:bob .`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mterm.IRI("http://example.org/alice"), got.S)
	assert.Equal(t, mterm.IRI("http://example.org/bob"), got.O)
}

func TestDecodeUnknownPrefixIsError(t *testing.T) {
	src := `ex:alice ex:knows ex:bob .`
	err := Decode(strings.NewReader(src), func(rdfio.Quad) error { return nil })
	assert.Error(t, err)
}

func TestDecodeRdfTypeKeyword(t *testing.T) {
	src := `<http://x/s> a <http://x/Type> .`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mterm.IRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type"), got.P)
}

func TestDecodeSemicolonAbbreviation(t *testing.T) {
	src := `<http://x/s> <http://x/p1> <http://x/o1> ; <http://x/p2> <http://x/o2> .`
	var got []rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = append(got, q)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, got[0].S, got[1].S)
}

func TestDecodeCommaAbbreviation(t *testing.T) {
	src := `<http://x/s> <http://x/p> <http://x/o1>, <http://x/o2> .`
	var got []rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = append(got, q)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, got[0].P, got[1].P)
}

func TestDecodeBlankNode(t *testing.T) {
	src := `_:b0 <http://x/p> <http://x/o> .`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mterm.Blank("b0"), got.S)
}

func TestDecodeLangLiteral(t *testing.T) {
	src := `<http://x/s> <http://x/p> "hello"@en .`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mterm.LangLiteral("hello", "en"), got.O)
}

func TestDecodeTypedLiteral(t *testing.T) {
	src := `@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .
<http://x/s> <http://x/p> "42"^^xsd:integer .`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mterm.TypedLiteral("42", mterm.XSDInteger), got.O)
}

func TestDecodeEscapedLiteral(t *testing.T) {
	src := `<http://x/s> <http://x/p> "line1\nline2" .`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", got.O.Lexical)
}

func TestDecodeBlankNodeShorthandIsUnsupportedError(t *testing.T) {
	src := `<http://x/s> <http://x/p> [ <http://x/q> <http://x/r> ] .`
	err := Decode(strings.NewReader(src), func(rdfio.Quad) error { return nil })
	assert.Error(t, err)
}

func TestDecodeMissingDotIsError(t *testing.T) {
	src := `<http://x/s> <http://x/p> <http://x/o>`
	err := Decode(strings.NewReader(src), func(rdfio.Quad) error { return nil })
	assert.Error(t, err)
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Encode(rdfio.Quad{S: mterm.IRI("http://x/s"), P: mterm.IRI("http://x/p"), O: mterm.PlainLiteral("hi")}))
	require.NoError(t, w.Close())

	var got rdfio.Quad
	err := Decode(&buf, func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", got.O.Lexical)
}
