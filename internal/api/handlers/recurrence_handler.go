package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/backstage/services/calendar/internal/recurrence"
	"example.com/backstage/services/calendar/internal/services"
)

const maxRuleBodyBytes = 64 << 10

// OccurrencePreviewer expands stored recurrence rules
type OccurrencePreviewer interface {
	PreviewOccurrences(ctx context.Context, ruleID, organizationID uuid.UUID, windowStart, windowEnd time.Time, max int) (*services.OccurrencePreview, error)
}

// RecurrenceHandler handles recurrence rule HTTP requests
type RecurrenceHandler struct {
	previewer OccurrencePreviewer
}

// NewRecurrenceHandler creates a new recurrence handler
func NewRecurrenceHandler(previewer OccurrencePreviewer) *RecurrenceHandler {
	return &RecurrenceHandler{previewer: previewer}
}

// ValidateRuleResponse reports the outcome of a rule validation
type ValidateRuleResponse struct {
	Valid      bool                   `json:"valid"`
	Violations []recurrence.Violation `json:"violations"`
	RRule      string                 `json:"rrule,omitempty"`
}

// RegisterRoutes registers the recurrence rule routes
func (h *RecurrenceHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/recurrence-rules/validate", h.Validate)
	router.GET("/organizations/:organizationId/recurrence-rules/:ruleId/occurrences", h.Occurrences)
}

// Validate handles POST /recurrence-rules/validate. Invalid rules are a
// normal 200 response listing every violation.
func (h *RecurrenceHandler) Validate(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRuleBodyBytes))
	if err != nil {
		WriteError(c, NewValidationError("unable to read request body"))
		return
	}

	input, violations := recurrence.DecodeAndValidateRule(body)
	if len(violations) > 0 {
		c.JSON(http.StatusOK, ValidateRuleResponse{Valid: false, Violations: violations})
		return
	}

	resp := ValidateRuleResponse{Valid: true, Violations: []recurrence.Violation{}}
	rule, err := recurrence.ToModel(input)
	if err == nil {
		if rrule, err := recurrence.CanonicalString(rule); err == nil {
			resp.RRule = rrule
		} else {
			resp.Valid = false
			resp.Violations = []recurrence.Violation{{Field: "byDay", Rule: "weekday", Message: err.Error()}}
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Occurrences handles GET /organizations/:organizationId/recurrence-rules/:ruleId/occurrences?start&end
func (h *RecurrenceHandler) Occurrences(c *gin.Context) {
	orgID, ok := pathUUID(c, "organizationId")
	if !ok {
		return
	}
	ruleID, ok := pathUUID(c, "ruleId")
	if !ok {
		return
	}

	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		WriteError(c, NewValidationError("start must be an RFC 3339 date-time"))
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		WriteError(c, NewValidationError("end must be an RFC 3339 date-time"))
		return
	}

	max := 0
	if raw := c.Query("max"); raw != "" {
		if max, err = strconv.Atoi(raw); err != nil || max < 0 {
			WriteError(c, NewValidationError("max must be a non-negative integer"))
			return
		}
	}

	preview, err := h.previewer.PreviewOccurrences(c.Request.Context(), ruleID, orgID, start, end, max)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}
