package query

import "fmt"

// ParseError describes a malformed query. Position is a rune offset into the
// normalized query.
type ParseError struct {
	Message    string `json:"message"`
	Position   int    `json:"position"`
	Suggestion string `json:"suggestion"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at position %d", e.Message, e.Position)
}

// ValidationResult is returned by Validate.
type ValidationResult struct {
	Valid bool        `json:"valid"`
	Error *ParseError `json:"error,omitempty"`
}
