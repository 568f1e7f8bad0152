package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func allTokens(src string) []Token {
	l := New(src)
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func TestLexerEOFOnEmptyInput(t *testing.T) {
	toks := allTokens("")
	assert.Len(t, toks, 1)
	assert.Equal(t, EOF, toks[0].Kind)
}

func TestLexerSkipsWhitespaceAndComments(t *testing.T) {
	toks := allTokens("  # a comment\n  ?x")
	assert.Len(t, toks, 2)
	assert.Equal(t, Var, toks[0].Kind)
}

func TestLexerVariable(t *testing.T) {
	tok := New("?name").Next()
	assert.Equal(t, Var, tok.Kind)
	assert.Equal(t, "?name", tok.Text("?name"))
}

func TestLexerDollarVariable(t *testing.T) {
	tok := New("$name").Next()
	assert.Equal(t, Var, tok.Kind)
}

func TestLexerIRIRef(t *testing.T) {
	src := "<http://example.org/s>"
	tok := New(src).Next()
	assert.Equal(t, IRIRef, tok.Kind)
	assert.Equal(t, src, tok.Text(src))
}

func TestLexerUnterminatedIRIRefConsumesToEOF(t *testing.T) {
	src := "<http://example.org/s"
	tok := New(src).Next()
	assert.Equal(t, IRIRef, tok.Kind)
	assert.Equal(t, len(src), tok.End)
}

func TestLexerBlankNode(t *testing.T) {
	src := "_:b0"
	tok := New(src).Next()
	assert.Equal(t, BlankNode, tok.Kind)
	assert.Equal(t, src, tok.Text(src))
}

func TestLexerStringDoubleAndSingleQuoted(t *testing.T) {
	for _, src := range []string{`"hello"`, `'hello'`} {
		tok := New(src).Next()
		assert.Equal(t, String, tok.Kind, src)
		assert.Equal(t, src, tok.Text(src))
	}
}

func TestLexerStringWithEscapedQuote(t *testing.T) {
	src := `"a\"b"`
	tok := New(src).Next()
	assert.Equal(t, String, tok.Kind)
	assert.Equal(t, src, tok.Text(src), "an escaped quote does not terminate the string early")
}

func TestLexerLangTag(t *testing.T) {
	src := "@en-US"
	tok := New(src).Next()
	assert.Equal(t, LangTag, tok.Kind)
	assert.Equal(t, src, tok.Text(src))
}

func TestLexerIntegerDecimalDouble(t *testing.T) {
	cases := map[string]Kind{
		"42":     Integer,
		"3.14":   Decimal,
		"1e10":   Double,
		"1.5e-3": Double,
	}
	for src, want := range cases {
		tok := New(src).Next()
		assert.Equal(t, want, tok.Kind, src)
		assert.Equal(t, src, tok.Text(src))
	}
}

func TestLexerSignedInteger(t *testing.T) {
	tok := New("-5").Next()
	assert.Equal(t, Integer, tok.Kind)
	assert.Equal(t, "-5", tok.Text("-5"))
}

func TestLexerPrefixedName(t *testing.T) {
	src := "ex:alice"
	tok := New(src).Next()
	assert.Equal(t, PNameLN, tok.Kind)
	assert.Equal(t, src, tok.Text(src))
}

func TestLexerPrefixedNameNamespaceOnly(t *testing.T) {
	src := "ex:"
	tok := New(src).Next()
	assert.Equal(t, PNameNS, tok.Kind)
}

func TestLexerKeyword(t *testing.T) {
	tok := New("SELECT").Next()
	assert.Equal(t, Keyword, tok.Kind)
	assert.True(t, KeywordEquals("SELECT", tok, "select"))
	assert.False(t, KeywordEquals("SELECT", tok, "where"))
}

func TestLexerPunctuationTwoCharOperators(t *testing.T) {
	cases := map[string]Kind{
		"^^": AssignArrow,
		"!=": Ne,
		"<=": Le,
		">=": Ge,
		"&&": And,
		"||": Or,
	}
	for src, want := range cases {
		tok := New(src).Next()
		assert.Equal(t, want, tok.Kind, src)
		assert.Equal(t, 2, tok.End-tok.Start, src)
	}
}

func TestLexerSingleCharPunctuation(t *testing.T) {
	cases := map[string]Kind{
		"(": LParen, ")": RParen, "{": LBrace, "}": RBrace,
		"[": LBracket, "]": RBracket, ".": Dot, ",": Comma,
		";": Semicolon, "|": Pipe, "/": Slash, "^": Caret,
		"=": Eq, "<": Lt, ">": Gt, "*": Star,
	}
	for src, want := range cases {
		tok := New(src).Next()
		assert.Equal(t, want, tok.Kind, src)
	}
}

func TestLexerUnknownCharIsError(t *testing.T) {
	tok := New("`").Next()
	assert.Equal(t, Error, tok.Kind)
}

func TestLexerQuerySequence(t *testing.T) {
	src := "SELECT ?s WHERE { ?s <http://x/p> ?o }"
	toks := allTokens(src)
	require := []Kind{Keyword, Var, Keyword, LBrace, Var, IRIRef, Var, RBrace, EOF}
	assert.Len(t, toks, len(require))
	for i, k := range require {
		assert.Equal(t, k, toks[i].Kind, "token %d", i)
	}
}
