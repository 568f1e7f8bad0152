package mterm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueIsBound(t *testing.T) {
	assert.False(t, UnboundValue.IsBound())
	assert.True(t, IntValue(1).IsBound())
}

func TestValueAsTermWidening(t *testing.T) {
	tests := []struct {
		name     string
		v        Value
		wantKind Kind
		wantLex  string
		wantDT   string
	}{
		{"int", IntValue(42), KindLiteral, "42", XSDInteger},
		{"bool true", BoolValue(true), KindLiteral, "true", XSDBoolean},
		{"bool false", BoolValue(false), KindLiteral, "false", XSDBoolean},
		{"term passthrough", TermValue(IRI("http://x")), KindIRI, "http://x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, ok := tt.v.AsTerm()
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, term.Kind)
			assert.Equal(t, tt.wantLex, term.Lexical)
			assert.Equal(t, tt.wantDT, term.Datatype)
		})
	}
}

func TestValueAsTermUnbound(t *testing.T) {
	_, ok := UnboundValue.AsTerm()
	assert.False(t, ok)
}

func TestValueAsFloat(t *testing.T) {
	f, ok := FloatValue(1.5).AsFloat()
	require.True(t, ok)
	assert.Equal(t, 1.5, f)

	f, ok = IntValue(3).AsFloat()
	require.True(t, ok)
	assert.Equal(t, 3.0, f)

	_, ok = BoolValue(true).AsFloat()
	assert.False(t, ok)
}

func TestValueIsIntegerValued(t *testing.T) {
	assert.True(t, IntValue(1).IsIntegerValued())
	assert.True(t, TermValue(TypedLiteral("1", XSDInteger)).IsIntegerValued())
	assert.False(t, TermValue(TypedLiteral("1.0", XSDDecimal)).IsIntegerValued())
	assert.False(t, FloatValue(1.0).IsIntegerValued())
}

func TestCompareNumeric(t *testing.T) {
	assert.Equal(t, -1, Compare(IntValue(1), IntValue(2)))
	assert.Equal(t, 1, Compare(IntValue(2), IntValue(1)))
	assert.Equal(t, 0, Compare(IntValue(1), IntValue(1)))
	assert.Equal(t, -1, Compare(IntValue(1), FloatValue(1.5)))
}

func TestCompareUnboundSortsFirst(t *testing.T) {
	assert.Equal(t, -1, Compare(UnboundValue, IntValue(1)))
	assert.Equal(t, 1, Compare(IntValue(1), UnboundValue))
	assert.Equal(t, 0, Compare(UnboundValue, UnboundValue))
}

func TestCompareTypeRankFallback(t *testing.T) {
	iri := TermValue(IRI("http://x"))
	blank := TermValue(Blank("b0"))
	lit := TermValue(PlainLiteral("x"))

	assert.Equal(t, -1, Compare(iri, blank))
	assert.Equal(t, -1, Compare(blank, lit))
	assert.Equal(t, 1, Compare(lit, iri))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(IntValue(1), FloatValue(1.0)), "numeric equality crosses Int/Double")
	assert.True(t, Equal(TermValue(IRI("http://x")), TermValue(IRI("http://x"))))
	assert.False(t, Equal(TermValue(IRI("http://x")), TermValue(IRI("http://y"))))
	assert.False(t, Equal(UnboundValue, IntValue(1)))
	assert.True(t, Equal(UnboundValue, UnboundValue))
}

func TestEqualLangLiteralsDistinguishedByLanguage(t *testing.T) {
	en := TermValue(LangLiteral("hello", "en"))
	fr := TermValue(LangLiteral("hello", "fr"))
	assert.False(t, Equal(en, fr))
}
