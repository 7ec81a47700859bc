package query

import (
	"strings"
	"unicode"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenWord
	TokenQuoted
	TokenTitlePrefix
	TokenOr
	TokenLParen
	TokenRParen
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenWord:
		return "WORD"
	case TokenQuoted:
		return "QUOTED"
	case TokenTitlePrefix:
		return "TITLE_PREFIX"
	case TokenOr:
		return "OR_OPERATOR"
	case TokenLParen:
		return "LEFT_PAREN"
	case TokenRParen:
		return "RIGHT_PAREN"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token. Pos is the rune offset in the normalized query.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// titleKeywords are the accepted spellings of the title scope prefix (compared lowercased).
var titleKeywords = map[string]bool{
	"title": true,
	"标题":    true,
}

// fullWidth maps full-width punctuation to the half-width form the lexer understands.
var fullWidth = strings.NewReplacer(
	"：", ":",
	"（", "(",
	"）", ")",
	"｜", "|",
	"“", `"`,
	"”", `"`,
	"＂", `"`,
)

// Normalize maps full-width punctuation to half-width and trims surrounding whitespace.
func Normalize(raw string) string {
	return strings.TrimSpace(fullWidth.Replace(raw))
}

// Lexer tokenizes a normalized query.
type Lexer struct {
	input []rune
	pos   int
}

// NewLexer creates a Lexer for an already-normalized query.
func NewLexer(normalized string) *Lexer {
	return &Lexer{input: []rune(normalized)}
}

// Tokenize normalizes raw and returns the full token stream, terminated by one EOF token.
func Tokenize(raw string) ([]Token, error) {
	return NewLexer(Normalize(raw)).all()
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: len(l.input)}, nil
	}

	start := l.pos
	switch l.input[l.pos] {
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Pos: start}, nil
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Pos: start}, nil
	case '|':
		l.pos++
		return Token{Type: TokenOr, Value: "|", Pos: start}, nil
	case '"':
		return l.readQuoted()
	}

	return l.readWord(), nil
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) readQuoted() (Token, error) {
	open := l.pos
	l.pos++ // skip opening quote
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return Token{}, &ParseError{
			Message:    "unterminated quote",
			Position:   open,
			Suggestion: `Make sure every opening " has a matching closing "`,
		}
	}
	value := string(l.input[start:l.pos])
	l.pos++ // skip closing quote

	if strings.TrimSpace(value) == "" {
		return Token{}, &ParseError{
			Message:    "empty quoted phrase",
			Position:   open,
			Suggestion: "Put some text between the quotes, or remove them",
		}
	}
	return Token{Type: TokenQuoted, Value: value, Pos: open}, nil
}

func (l *Lexer) readWord() Token {
	start := l.pos
	for l.pos < len(l.input) && isWordRune(l.input[l.pos]) && l.input[l.pos] != ':' {
		l.pos++
	}

	if l.pos < len(l.input) && l.input[l.pos] == ':' && titleKeywords[strings.ToLower(string(l.input[start:l.pos]))] {
		value := string(l.input[start:l.pos])
		l.pos++ // consume the colon
		return Token{Type: TokenTitlePrefix, Value: value, Pos: start}
	}

	// Not a scope prefix: colons are ordinary word characters (e.g. "http://x").
	for l.pos < len(l.input) && isWordRune(l.input[l.pos]) {
		l.pos++
	}
	return Token{Type: TokenWord, Value: string(l.input[start:l.pos]), Pos: start}
}

func isWordRune(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	switch r {
	case '(', ')', '|', '"':
		return false
	}
	return true
}
