package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/calendar/internal/recurrence"
	"example.com/backstage/services/calendar/internal/resolver"
	"example.com/backstage/services/calendar/internal/services"
)

// ErrorResponse defines the structure of an error response
type ErrorResponse struct {
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Violations []recurrence.Violation `json:"violations,omitempty"`
}

// Error represents an API error
type Error struct {
	Message    string
	StatusCode int
	Code       string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Common API errors
var (
	ErrNotFound      = &Error{Message: "Resource not found", StatusCode: http.StatusNotFound, Code: "NOT_FOUND"}
	ErrInternal      = &Error{Message: "Internal server error", StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}
	ErrValidation    = &Error{Message: "Validation error", StatusCode: http.StatusBadRequest, Code: "VALIDATION_ERROR"}
	ErrDataIntegrity = &Error{Message: "Data integrity error", StatusCode: http.StatusInternalServerError, Code: "DATA_INTEGRITY_ERROR"}
)

// NewValidationError creates a validation error with a custom message
func NewValidationError(message string) *Error {
	return &Error{
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Code:       ErrValidation.Code,
	}
}

// WriteError maps a service error onto a JSON error response
func WriteError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message:    ErrValidation.Message,
			Code:       ErrValidation.Code,
			Violations: validationErr.Violations,
		})
		return
	}

	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, services.ErrInstanceNotFound), errors.Is(err, services.ErrRuleNotFound):
		apiErr = ErrNotFound
	case errors.Is(err, resolver.ErrTemplateNotFound):
		apiErr = ErrDataIntegrity
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled error")
		apiErr = ErrInternal
	}

	c.JSON(apiErr.StatusCode, ErrorResponse{
		Message: apiErr.Message,
		Code:    apiErr.Code,
	})
}
