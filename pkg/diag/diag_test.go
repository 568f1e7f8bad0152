package diag

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCode(t *testing.T) {
	assert.Equal(t, "E2001", FormatCode(SeverityError, 2001))
	assert.Equal(t, "W1003", FormatCode(SeverityWarning, 11003))
	assert.Equal(t, "I1001", FormatCode(SeverityInfo, 21001))
}

func TestBagAddIsError(t *testing.T) {
	b := &Bag{}
	b.Add(CodeSemUnboundVariable, Span{}, "unbound variable %q", "x")
	require.True(t, b.HasErrors())
	require.Len(t, b.Items(), 1)
	assert.Equal(t, SeverityError, b.Items()[0].Severity)
	assert.Equal(t, `unbound variable "x"`, b.Items()[0].Message)
}

func TestBagWarnOffsetsCodeButNotHasErrors(t *testing.T) {
	b := &Bag{}
	b.Warn(CodeSemCartesianProduct, Span{}, "cartesian product detected")
	assert.False(t, b.HasErrors())
	require.Len(t, b.Items(), 1)
	assert.Equal(t, SeverityWarning, b.Items()[0].Severity)
	assert.Equal(t, "W2007", FormatCode(b.Items()[0].Severity, b.Items()[0].Code))
}

func TestBagInfoOffsetsCode(t *testing.T) {
	b := &Bag{}
	b.Info(CodeSemUngroupedVariable, Span{}, "informational")
	assert.Equal(t, "I2005", FormatCode(b.Items()[0].Severity, b.Items()[0].Code))
}

func TestBagItemsSortedByStartThenSeverity(t *testing.T) {
	b := &Bag{}
	b.Warn(CodeSemCartesianProduct, Span{Start: 5}, "later warning")
	b.Add(CodeSemUnboundVariable, Span{Start: 5}, "later error")
	b.Add(CodeParseUnexpectedToken, Span{Start: 1}, "earlier error")

	items := b.Items()
	require.Len(t, items, 3)
	assert.Equal(t, 1, items[0].Span.Start)
	assert.Equal(t, 5, items[1].Span.Start)
	assert.Equal(t, SeverityError, items[1].Severity, "at equal offsets, errors sort before warnings")
	assert.Equal(t, SeverityWarning, items[2].Severity)
}

func TestBagHasErrorsFalseWhenEmpty(t *testing.T) {
	b := &Bag{}
	assert.False(t, b.HasErrors())
}

func TestBagWriteJSON(t *testing.T) {
	b := &Bag{}
	b.Add(CodeSemUnboundVariable, Span{Line: 2, Col: 3}, "bad variable")

	var buf bytes.Buffer
	require.NoError(t, b.WriteJSON(&buf))

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "E2001", out[0]["code"])
	assert.Equal(t, "error", out[0]["severity"])
}

func TestBagWriteTerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	b := &Bag{}
	b.Add(CodeSemUnboundVariable, Span{Line: 1, Col: 1}, "bad variable")

	var buf bytes.Buffer
	b.WriteTerminal(&buf)
	assert.Contains(t, buf.String(), "E2001")
	assert.Contains(t, buf.String(), "bad variable")
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "info", SeverityInfo.String())
}
