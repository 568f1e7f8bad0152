package mterm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		term Term
	}{
		{"iri", IRI("http://example.org/x")},
		{"blank", Blank("b0")},
		{"plain literal", PlainLiteral("hello")},
		{"lang literal", LangLiteral("bonjour", "fr")},
		{"typed literal", TypedLiteral("42", XSDInteger)},
		{"literal with quote and backslash", PlainLiteral(`say "hi"\now`)},
		{"literal with newline", PlainLiteral("line1\nline2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.term)
			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.term, decoded)
		})
	}
}

func TestEncodeShapes(t *testing.T) {
	assert.Equal(t, `<http://example.org/x>`, string(Encode(IRI("http://example.org/x"))))
	assert.Equal(t, `_:b0`, string(Encode(Blank("b0"))))
	assert.Equal(t, `"hello"`, string(Encode(PlainLiteral("hello"))))
	assert.Equal(t, `"bonjour"@fr`, string(Encode(LangLiteral("bonjour", "fr"))))
	assert.Equal(t, `"42"^^<`+XSDInteger+`>`, string(Encode(TypedLiteral("42", XSDInteger))))
}

func TestDecodeErrors(t *testing.T) {
	tests := []string{
		"",
		"<unterminated",
		"_x",
		`"unterminated`,
		`"x"^^badtype`,
		"?notaterm",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := Decode([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestIsNumericAndInteger(t *testing.T) {
	assert.True(t, TypedLiteral("3", XSDInteger).IsNumeric())
	assert.True(t, TypedLiteral("3", XSDInteger).IsInteger())
	assert.True(t, TypedLiteral("3.5", XSDDecimal).IsNumeric())
	assert.False(t, TypedLiteral("3.5", XSDDecimal).IsInteger())
	assert.False(t, PlainLiteral("not a number").IsNumeric())
	assert.False(t, IRI("http://example.org/x").IsNumeric())
}

func TestAsFloatAsIntAsBool(t *testing.T) {
	f, ok := TypedLiteral("3.5", XSDDouble).AsFloat()
	require.True(t, ok)
	assert.Equal(t, 3.5, f)

	_, ok = PlainLiteral("not a number").AsFloat()
	assert.False(t, ok)

	n, ok := TypedLiteral("42", XSDInteger).AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = TypedLiteral("42", XSDDecimal).AsInt()
	assert.False(t, ok, "AsInt should only parse xsd:integer")

	b, ok := TypedLiteral("true", XSDBoolean).AsBool()
	require.True(t, ok)
	assert.True(t, b)

	b, ok = TypedLiteral("0", XSDBoolean).AsBool()
	require.True(t, ok)
	assert.False(t, b)

	_, ok = TypedLiteral("maybe", XSDBoolean).AsBool()
	assert.False(t, ok)
}

func TestStringIsEncode(t *testing.T) {
	term := IRI("http://example.org/x")
	assert.Equal(t, string(Encode(term)), term.String())
}
