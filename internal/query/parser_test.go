package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenType
	}{
		{"paris", []TokenType{TokenWord, TokenEOF}},
		{"paris agreement", []TokenType{TokenWord, TokenWord, TokenEOF}},
		{"title:paris", []TokenType{TokenTitlePrefix, TokenWord, TokenEOF}},
		{"TITLE:paris", []TokenType{TokenTitlePrefix, TokenWord, TokenEOF}},
		{"标题：paris", []TokenType{TokenTitlePrefix, TokenWord, TokenEOF}},
		{`(a|b) "x y"`, []TokenType{TokenLParen, TokenWord, TokenOr, TokenWord, TokenRParen, TokenQuoted, TokenEOF}},
		{"（a｜b）", []TokenType{TokenLParen, TokenWord, TokenOr, TokenWord, TokenRParen, TokenEOF}},
		{"http://example.com", []TokenType{TokenWord, TokenEOF}},
		{"subtitle:x", []TokenType{TokenWord, TokenEOF}},
		{"   ", []TokenType{TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			require.NoError(t, err)
			got := make([]TokenType, len(tokens))
			for i, tok := range tokens {
				got[i] = tok.Type
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTokenizeValuesAndPositions(t *testing.T) {
	tokens, err := Tokenize(`  foo "bar baz" title:qux  `)
	require.NoError(t, err)
	require.Len(t, tokens, 5)

	assert.Equal(t, Token{Type: TokenWord, Value: "foo", Pos: 0}, tokens[0])
	assert.Equal(t, Token{Type: TokenQuoted, Value: "bar baz", Pos: 4}, tokens[1])
	assert.Equal(t, Token{Type: TokenTitlePrefix, Value: "title", Pos: 14}, tokens[2])
	assert.Equal(t, Token{Type: TokenWord, Value: "qux", Pos: 20}, tokens[3])
	assert.Equal(t, Token{Type: TokenEOF, Pos: 23}, tokens[4])
}

func TestTokenizeColonInsideWord(t *testing.T) {
	tokens, err := Tokenize("foo:bar")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "foo:bar", tokens[0].Value)
}

func TestTokenizeQuoteErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
		pos     int
	}{
		{"unterminated at start", `"abc`, "unterminated quote", 0},
		{"unterminated after word", `a "abc`, "unterminated quote", 2},
		{"rune offsets after CJK prefix", `标题：x "y`, "unterminated quote", 5},
		{"empty phrase", `""`, "empty quoted phrase", 0},
		{"whitespace phrase", `a "   "`, "empty quoted phrase", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected *ParseError, got %v", err)
			assert.Equal(t, tt.message, pe.Message)
			assert.Equal(t, tt.pos, pe.Position)
			assert.NotEmpty(t, pe.Suggestion)
		})
	}
}

func TestUnterminatedQuoteSuggestion(t *testing.T) {
	_, err := Parse(`"abc`)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 0, pe.Position)
	assert.Contains(t, pe.Suggestion, `"`)
	assert.Contains(t, pe.Suggestion, "matching")
}

func TestParseTrees(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"paris", "WORD(paris)"},
		{"paris agreement", "AND(WORD(paris), WORD(agreement))"},
		{"paris|tower", "OR(WORD(paris), WORD(tower))"},
		{"a|b|c", "OR(WORD(a), WORD(b), WORD(c))"},
		{"a|b c", "OR(WORD(a), AND(WORD(b), WORD(c)))"},
		{"a b|c", "OR(AND(WORD(a), WORD(b)), WORD(c))"},
		{"(a|b) c", "AND(OR(WORD(a), WORD(b)), WORD(c))"},
		{`"paris agreement"`, `EXACT("paris agreement")`},
		{"title:paris", "TITLE(WORD(paris))"},
		{"标题:paris", "TITLE(WORD(paris))"},
		{"title:(a b)", "TITLE(AND(WORD(a), WORD(b)))"},
		{`title:"a b" c`, `AND(TITLE(EXACT("a b")), WORD(c))`},
		{"title:title:x", "TITLE(WORD(x))"},
		{"title:(title:x y)", "TITLE(AND(WORD(x), WORD(y)))"},
		{"title:(a|(b title:c))", "TITLE(OR(WORD(a), AND(WORD(b), WORD(c))))"},
		{"title:x title:y", "AND(TITLE(WORD(x)), TITLE(WORD(y)))"},
		{"((a))", "WORD(a)"},
		{"（a｜b）", "OR(WORD(a), WORD(b))"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, node.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
		pos     int
	}{
		{"", "empty query", 0},
		{"   ", "empty query", 0},
		{"(a b", "missing closing parenthesis", 0},
		{"x (a", "missing closing parenthesis", 2},
		{"a)", `unexpected symbol ")"`, 1},
		{"|a", `unexpected symbol "|"`, 0},
		{"a||b", `unexpected symbol "|"`, 2},
		{"a|", "unexpected end of query", 2},
		{"()", "empty group", 0},
		{"title:", `expected a term after "title:"`, 0},
		{`"abc`, "unterminated quote", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			assert.Nil(t, node)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.message, pe.Message)
			assert.Equal(t, tt.pos, pe.Position)
			assert.NotEmpty(t, pe.Suggestion)
		})
	}
}

func TestFastPathMatchesFullParser(t *testing.T) {
	inputs := []string{"paris", "paris agreement", "  a   b\tc  ", "东京 旅行"}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			normalized := Normalize(input)
			require.True(t, IsSimple(normalized))

			tokens, err := Tokenize(input)
			require.NoError(t, err)
			full, err := ParseTokens(tokens)
			require.NoError(t, err)

			assert.Equal(t, full.String(), BuildSimple(normalized).String())
		})
	}
}

func TestIsSimple(t *testing.T) {
	assert.True(t, IsSimple("a b c"))
	assert.False(t, IsSimple("a|b"))
	assert.False(t, IsSimple(`"a"`))
	assert.False(t, IsSimple("(a)"))
	assert.False(t, IsSimple("title:a"))
}

func TestValidate(t *testing.T) {
	res := Validate("paris|(tower title:eiffel)")
	assert.True(t, res.Valid)
	assert.Nil(t, res.Error)

	res = Validate("paris)")
	assert.False(t, res.Valid)
	require.NotNil(t, res.Error)
	assert.Equal(t, 5, res.Error.Position)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		input    string
		expected Complexity
	}{
		{"paris", ComplexitySimple},
		{"paris agreement", ComplexitySimple},
		{"paris|tower", ComplexityModerate},
		{`"paris agreement"`, ComplexityModerate},
		{"(a|b) c", ComplexityComplex},
		{"title:paris", ComplexityComplex},
		{"标题：paris", ComplexityComplex},
		{"foo:bar", ComplexitySimple},
		{`"unterminated`, ComplexityModerate},
		{"(broken", ComplexityComplex},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.input))
		})
	}
}

func TestTerms(t *testing.T) {
	node, err := Parse(`paris title:notes (paris|"x y") title:paris`)
	require.NoError(t, err)

	ts := Terms(node)
	assert.Equal(t, []string{"paris", "x y"}, ts.Any)
	assert.Equal(t, []string{"notes"}, ts.TitleOnly)
	assert.Equal(t, []string{"paris", "x y", "notes"}, ts.All())
}

func TestTermsNil(t *testing.T) {
	ts := Terms(nil)
	assert.Empty(t, ts.Any)
	assert.Empty(t, ts.TitleOnly)
}
