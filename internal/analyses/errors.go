package analyses

import "errors"

var (
	ErrNotFound = errors.New("analysis not found")
	// ErrConflict means an analysis already exists for the document. The
	// unique constraint surfaces it when two generators race.
	ErrConflict = errors.New("analysis already exists for document")
	// ErrParseFailure means the provider answered but its content held no
	// usable JSON. Unlike transport failures this is never absorbed by the
	// demo fallback.
	ErrParseFailure = errors.New("could not parse analysis from model output")
	// ErrNoText means the document completed extraction with an empty text.
	ErrNoText = errors.New("no text available for this document")
)

// FieldViolation is one failed validation rule.
type FieldViolation struct {
	Field   string
	Message string
}

// ValidationError aggregates every failed rule for one request body.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "invalid analysis"
	}
	return "invalid analysis: " + e.Violations[0].Field + " " + e.Violations[0].Message
}
