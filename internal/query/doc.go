// Package query compiles the session search language into an expression tree.
//
// Grammar (juxtaposition is AND, '|' is OR, OR binds loosest):
//
//	Expr        := Or
//	Or          := And ('|' And)*
//	And         := Primary+
//	Primary     := '(' Or ')' | TitlePrefix Primary | '"' text '"' | word
//	TitlePrefix := ('title' | '标题') ':'
//
// Full-width punctuation (：（）｜“”) is accepted and normalized first. Compilation
// failures are reported as *ParseError with a rune position and a suggestion.
package query
