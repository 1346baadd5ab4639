package triage

import (
	"errors"
	"strings"
)

var (
	ErrNotFound  = errors.New("triage not found")
	ErrForbidden = errors.New("access denied")
)

// ValidationError lists the offending fields of a rejected request
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}
