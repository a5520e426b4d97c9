package services

import (
	"strings"

	"github.com/pkg/errors"

	"example.com/backstage/services/calendar/internal/recurrence"
)

var (
	// ErrInstanceNotFound is returned by reads that need an existing instance to continue
	ErrInstanceNotFound = errors.New("recurring event instance not found")
	// ErrRuleNotFound is returned when a recurrence rule does not exist in the organization
	ErrRuleNotFound = errors.New("recurrence rule not found")
)

// ValidationError reports caller input that failed validation
type ValidationError struct {
	Violations []recurrence.Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Field == "" {
			parts = append(parts, v.Message)
			continue
		}
		parts = append(parts, v.Field+" "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field, rule, message string) *ValidationError {
	return &ValidationError{Violations: []recurrence.Violation{{Field: field, Rule: rule, Message: message}}}
}
