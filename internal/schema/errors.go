package schema

import (
	"fmt"
	"strings"
)

// ValidationError reports that a document failed schema validation
// before being persisted. The document is never written when this is
// returned.
type ValidationError struct {
	Document string
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Document, strings.Join(e.Problems, ", "))
}

// NewValidationError creates a validation error for a named document.
func NewValidationError(document string, problems ...string) *ValidationError {
	return &ValidationError{Document: document, Problems: problems}
}
