package result

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/ntriples"
	"github.com/cuemby/mercury/pkg/sparql/ast"
	"github.com/cuemby/mercury/pkg/sparql/exec"
)

func sampleSelectResult() *exec.Result {
	row := mterm.EmptyRow.Extend("s", mterm.TermValue(mterm.IRI("http://x/s"))).
		Extend("n", mterm.TermValue(mterm.LangLiteral("Alice", "en")))
	return &exec.Result{Form: ast.Select, Vars: []string{"s", "n"}, Rows: []mterm.Row{row}}
}

func TestWriteSelectJSONIncludesVarsAndBindings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSelectJSON(&buf, sampleSelectResult()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	head := decoded["head"].(map[string]any)
	assert.ElementsMatch(t, []any{"s", "n"}, head["vars"])

	results := decoded["results"].(map[string]any)
	bindings := results["bindings"].([]any)
	require.Len(t, bindings, 1)
	row := bindings[0].(map[string]any)
	s := row["s"].(map[string]any)
	assert.Equal(t, "uri", s["type"])
	assert.Equal(t, "http://x/s", s["value"])
	n := row["n"].(map[string]any)
	assert.Equal(t, "literal", n["type"])
	assert.Equal(t, "en", n["xml:lang"])
}

func TestWriteAskJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAskJSON(&buf, &exec.Result{Form: ast.Ask, Bool: true}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, true, decoded["boolean"])
}

func TestWriteAskPlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAskPlain(&buf, &exec.Result{Bool: false}))
	assert.Equal(t, "false\n", buf.String())
}

func TestWriteSelectCSVHeaderAndRow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSelectCSV(&buf, sampleSelectResult()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "s,n", lines[0])
	assert.Equal(t, "http://x/s,Alice", lines[1])
}

func TestWriteSelectTSVUsesFullTermSyntax(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSelectTSV(&buf, sampleSelectResult()))

	out := buf.String()
	assert.Contains(t, out, "?s\t?n")
	assert.Contains(t, out, "<http://x/s>")
	assert.Contains(t, out, `"Alice"@en`)
}

func TestWriteSelectXML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSelectXML(&buf, sampleSelectResult()))

	var doc struct {
		XMLName xml.Name `xml:"sparql"`
		Head    struct {
			Vars []struct {
				Name string `xml:"name,attr"`
			} `xml:"variable"`
		} `xml:"head"`
		Results struct {
			Rows []struct {
				Bindings []struct {
					Name string `xml:"name,attr"`
					URI  string `xml:"uri"`
				} `xml:"binding"`
			} `xml:"result"`
		} `xml:"results"`
	}
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Head.Vars, 2)
	require.Len(t, doc.Results.Rows, 1)
	assert.Equal(t, "http://x/s", doc.Results.Rows[0].Bindings[0].URI)
}

func TestWriteAskXML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAskXML(&buf, &exec.Result{Bool: true}))
	assert.Contains(t, buf.String(), "<boolean>true</boolean>")
}

func TestWriteConstructDrivesEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := ntriples.NewWriter(&buf)
	res := &exec.Result{
		Form: ast.Construct,
		Triples: []exec.Triple{
			{S: mterm.IRI("http://x/s"), P: mterm.IRI("http://x/p"), O: mterm.PlainLiteral("hi")},
		},
	}
	require.NoError(t, WriteConstruct(enc, res))
	assert.Contains(t, buf.String(), "<http://x/s>")
	assert.Contains(t, buf.String(), "<http://x/p>")
	assert.Contains(t, buf.String(), `"hi"`)
}
