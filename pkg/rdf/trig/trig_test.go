package trig

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/rdfio"
)

func TestDecodeDefaultGraphStatement(t *testing.T) {
	src := `<http://x/s> <http://x/p> <http://x/o> .`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mterm.IRI("http://x/s"), got.S)
	assert.Equal(t, mterm.KindInvalid, got.G.Kind)
}

func TestDecodeBareGraphBlock(t *testing.T) {
	src := `<http://x/g> { <http://x/s> <http://x/p> <http://x/o> . }`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mterm.IRI("http://x/g"), got.G)
	assert.Equal(t, mterm.IRI("http://x/s"), got.S)
}

func TestDecodeGraphKeywordBlock(t *testing.T) {
	src := `GRAPH <http://x/g> { <http://x/s> <http://x/p> <http://x/o> . }`
	var got rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mterm.IRI("http://x/g"), got.G)
}

func TestDecodeMultipleQuadsInBlock(t *testing.T) {
	src := `<http://x/g> {
		<http://x/s1> <http://x/p> <http://x/o1> .
		<http://x/s2> <http://x/p> <http://x/o2> .
	}`
	var got []rdfio.Quad
	err := Decode(strings.NewReader(src), func(q rdfio.Quad) error {
		got = append(got, q)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, q := range got {
		assert.Equal(t, mterm.IRI("http://x/g"), q.G)
	}
}

func TestDecodeMissingOpenBraceAfterGraphKeywordIsError(t *testing.T) {
	src := `GRAPH <http://x/g> <http://x/s> <http://x/p> <http://x/o> .`
	err := Decode(strings.NewReader(src), func(rdfio.Quad) error { return nil })
	assert.Error(t, err)
}

func TestDecodeMissingDotAfterDefaultGraphStatementIsError(t *testing.T) {
	src := `<http://x/s> <http://x/p> <http://x/o>`
	err := Decode(strings.NewReader(src), func(rdfio.Quad) error { return nil })
	assert.Error(t, err)
}

func TestWriterGroupsQuadsByGraph(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	g := mterm.IRI("http://x/g")
	require.NoError(t, w.Encode(rdfio.Quad{S: mterm.IRI("http://x/s1"), P: mterm.IRI("http://x/p"), O: mterm.PlainLiteral("a"), G: g}))
	require.NoError(t, w.Encode(rdfio.Quad{S: mterm.IRI("http://x/s2"), P: mterm.IRI("http://x/p"), O: mterm.PlainLiteral("b"), G: g}))
	require.NoError(t, w.Close())

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "GRAPH"))
	assert.Contains(t, out, "}")
}

func TestWriterClosesGraphBlockOnSwitchToDefaultGraph(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Encode(rdfio.Quad{S: mterm.IRI("http://x/s"), P: mterm.IRI("http://x/p"), O: mterm.PlainLiteral("a"), G: mterm.IRI("http://x/g")}))
	require.NoError(t, w.Encode(rdfio.Quad{S: mterm.IRI("http://x/s2"), P: mterm.IRI("http://x/p"), O: mterm.PlainLiteral("b")}))
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "}", strings.TrimSpace(lines[2]))
}
