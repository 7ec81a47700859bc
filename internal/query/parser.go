package query

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Parser builds an AST from a token stream by recursive descent.
// Precedence, lowest first: OR, AND (juxtaposition), then primaries.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse compiles a raw query into an AST. Queries without special syntax take
// the fast path and skip the tokenizer entirely.
func Parse(raw string) (Node, error) {
	normalized := Normalize(raw)
	if normalized == "" {
		return nil, &ParseError{
			Message:    "empty query",
			Position:   0,
			Suggestion: "Type a word to search for",
		}
	}
	if IsSimple(normalized) {
		return BuildSimple(normalized), nil
	}

	tokens, err := NewLexer(normalized).all()
	if err != nil {
		return nil, err
	}
	return ParseTokens(tokens)
}

// ParseTokens parses a complete token stream (ending in EOF).
func ParseTokens(tokens []Token) (Node, error) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokenEOF {
		tokens = append(tokens, Token{Type: TokenEOF})
	}
	p := &Parser{tokens: tokens}

	if p.current().Type == TokenEOF {
		return nil, &ParseError{
			Message:    "empty query",
			Position:   p.current().Pos,
			Suggestion: "Type a word to search for",
		}
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Type != TokenEOF {
		return nil, unexpected(tok)
	}
	return node, nil
}

// Validate compiles raw without executing it.
func Validate(raw string) ValidationResult {
	if _, err := Parse(raw); err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return ValidationResult{Valid: false, Error: pe}
		}
		return ValidationResult{Valid: false, Error: &ParseError{Message: err.Error()}}
	}
	return ValidationResult{Valid: true}
}

func (l *Lexer) all() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

// parseOr collects every '|'-separated operand into one n-ary OR node.
func (p *Parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if p.current().Type != TokenOr {
		return first, nil
	}

	children := []Node{first}
	for p.current().Type == TokenOr {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	return &OrNode{Children: children}, nil
}

// parseAnd accumulates juxtaposed primaries. A single primary is returned unwrapped.
func (p *Parser) parseAnd() (Node, error) {
	first, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	children := []Node{first}
	for {
		switch p.current().Type {
		case TokenOr, TokenRParen, TokenEOF:
			if len(children) == 1 {
				return first, nil
			}
			return &AndNode{Children: children}, nil
		}
		next, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
}

// parsePrimary handles groups, title prefixes, quoted phrases and words.
func (p *Parser) parsePrimary() (Node, error) {
	tok := p.current()
	switch tok.Type {
	case TokenLParen:
		p.advance()
		if p.current().Type == TokenRParen {
			return nil, &ParseError{
				Message:    "empty group",
				Position:   tok.Pos,
				Suggestion: "Put at least one term inside the parentheses",
			}
		}
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current().Type != TokenRParen {
			return nil, &ParseError{
				Message:    "missing closing parenthesis",
				Position:   tok.Pos,
				Suggestion: "Add a ')' to close the group",
			}
		}
		p.advance()
		return expr, nil

	case TokenTitlePrefix:
		p.advance()
		if p.current().Type == TokenEOF {
			return nil, &ParseError{
				Message:    fmt.Sprintf("expected a term after %q", tok.Value+":"),
				Position:   tok.Pos,
				Suggestion: "Write the title term right after the colon, e.g. title:paris",
			}
		}
		child, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &TitleNode{Child: stripTitles(child)}, nil

	case TokenQuoted:
		p.advance()
		return &ExactNode{Value: tok.Value, Pos: tok.Pos}, nil

	case TokenWord:
		p.advance()
		return &WordNode{Value: tok.Value, Pos: tok.Pos}, nil

	default:
		return nil, unexpected(tok)
	}
}

func unexpected(tok Token) *ParseError {
	switch tok.Type {
	case TokenEOF:
		return &ParseError{
			Message:    "unexpected end of query",
			Position:   tok.Pos,
			Suggestion: "Add a search term after the last operator",
		}
	case TokenRParen:
		return &ParseError{
			Message:    `unexpected symbol ")"`,
			Position:   tok.Pos,
			Suggestion: "Remove the extra ')' or add a matching '('",
		}
	case TokenOr:
		return &ParseError{
			Message:    `unexpected symbol "|"`,
			Position:   tok.Pos,
			Suggestion: "'|' needs a search term on both sides",
		}
	default:
		return &ParseError{
			Message:    fmt.Sprintf("unexpected symbol %q", tok.Value),
			Position:   tok.Pos,
			Suggestion: "Check the query syntax near this position",
		}
	}
}

// IsSimple reports whether a normalized query contains no special syntax.
func IsSimple(normalized string) bool {
	return !strings.ContainsAny(normalized, `"()|:`)
}

// BuildSimple builds the AND-of-words tree for a query IsSimple accepted.
func BuildSimple(normalized string) Node {
	runes := []rune(normalized)
	var words []Node
	start := -1
	for i, r := range runes {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, &WordNode{Value: string(runes[start:i]), Pos: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, &WordNode{Value: string(runes[start:]), Pos: start})
	}

	switch len(words) {
	case 0:
		return nil
	case 1:
		return words[0]
	default:
		return &AndNode{Children: words}
	}
}

// stripTitles removes TITLE nodes below an enclosing TITLE; the scope is
// already title-only, so they change nothing.
func stripTitles(n Node) Node {
	switch n := n.(type) {
	case *TitleNode:
		return stripTitles(n.Child)
	case *AndNode:
		for i, c := range n.Children {
			n.Children[i] = stripTitles(c)
		}
	case *OrNode:
		for i, c := range n.Children {
			n.Children[i] = stripTitles(c)
		}
	}
	return n
}
