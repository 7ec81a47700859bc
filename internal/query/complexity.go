package query

import "strings"

// Complexity is a reporting tier for a query; it never changes evaluation.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"   // space-separated words only
	ComplexityModerate Complexity = "moderate" // OR or quoting
	ComplexityComplex  Complexity = "complex"  // grouping or title prefix
)

// Classify returns the complexity tier of raw.
func Classify(raw string) Complexity {
	normalized := Normalize(raw)
	if IsSimple(normalized) {
		return ComplexitySimple
	}

	tokens, err := NewLexer(normalized).all()
	if err != nil {
		// Malformed queries still get a tier from their raw characters.
		switch {
		case strings.ContainsAny(normalized, "()"):
			return ComplexityComplex
		case strings.ContainsAny(normalized, `|"`):
			return ComplexityModerate
		default:
			return ComplexitySimple
		}
	}

	tier := ComplexitySimple
	for _, tok := range tokens {
		switch tok.Type {
		case TokenLParen, TokenRParen, TokenTitlePrefix:
			return ComplexityComplex
		case TokenOr, TokenQuoted:
			tier = ComplexityModerate
		}
	}
	return tier
}
