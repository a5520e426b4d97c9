package recurrence

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"example.com/backstage/services/calendar/internal/models"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report json field names so violation paths match the request body
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// dateFields are decoded separately so a bad value becomes a violation
// instead of aborting the whole decode
var dateFields = []string{"recurrenceStartDate", "recurrenceEndDate", "latestInstanceDate"}

// RuleInput is a recurrence rule as received from a caller, before any ids are parsed
type RuleInput struct {
	RecurrenceRuleString string     `json:"recurrenceRuleString" validate:"required,min=1,max=512"`
	Frequency            string     `json:"frequency" validate:"required,oneof=DAILY WEEKLY MONTHLY YEARLY"`
	Interval             *int       `json:"interval" validate:"omitempty,min=1,max=999"`
	RecurrenceStartDate  *time.Time `json:"recurrenceStartDate" validate:"required"`
	RecurrenceEndDate    *time.Time `json:"recurrenceEndDate" validate:"omitempty"`
	Count                *int       `json:"count" validate:"omitempty,min=1"`
	LatestInstanceDate   *time.Time `json:"latestInstanceDate" validate:"required"`
	ByDay                []string   `json:"byDay" validate:"omitempty,dive,min=2,max=3"`
	ByMonth              []int      `json:"byMonth" validate:"omitempty,dive,min=1,max=12"`
	ByMonthDay           []int      `json:"byMonthDay" validate:"omitempty,dive,min=-31,max=31"`
	BaseRecurringEventID string     `json:"baseRecurringEventId" validate:"required,uuid"`
	OriginalSeriesID     string     `json:"originalSeriesId" validate:"omitempty,uuid"`
	OrganizationID       string     `json:"organizationId" validate:"required,uuid"`
	CreatorID            string     `json:"creatorId" validate:"required,uuid"`
	UpdaterID            string     `json:"updaterId" validate:"omitempty,uuid"`
}

// Violation is one failed constraint on one field
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidateRule checks every constraint on the input and returns all violations.
// An empty result means the input can be converted with ToModel.
func ValidateRule(input RuleInput) []Violation {
	return ValidateStruct(input)
}

// ValidateStruct runs the validate tags of any struct and reports violations
// by json field path
func ValidateStruct(input interface{}) []Violation {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Violation{{Rule: "invalid", Message: err.Error()}}
	}

	violations := make([]Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, Violation{
			Field:   fieldPath(fe.Namespace()),
			Rule:    fe.Tag(),
			Message: describe(fe),
		})
	}
	return violations
}

// DecodeAndValidateRule decodes a JSON body into a RuleInput and validates it,
// collecting decode problems on date fields alongside constraint violations.
func DecodeAndValidateRule(body []byte) (RuleInput, []Violation) {
	var input RuleInput

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return input, []Violation{{Rule: "json", Message: "body must be a JSON object"}}
	}

	var violations []Violation
	dates := make(map[string]*time.Time, len(dateFields))
	for _, key := range dateFields {
		value, ok := raw[key]
		if !ok || string(value) == "null" {
			continue
		}
		var t time.Time
		if err := json.Unmarshal(value, &t); err != nil {
			violations = append(violations, Violation{
				Field:   key,
				Rule:    "datetime",
				Message: "must be an RFC 3339 date-time",
			})
		} else {
			dates[key] = &t
		}
		delete(raw, key)
	}

	rest, err := json.Marshal(raw)
	if err != nil {
		return input, append(violations, Violation{Rule: "json", Message: err.Error()})
	}
	if err := json.Unmarshal(rest, &input); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			violations = append(violations, Violation{
				Field:   typeErr.Field,
				Rule:    "type",
				Message: fmt.Sprintf("must be of type %s", typeErr.Type),
			})
		} else {
			violations = append(violations, Violation{Rule: "json", Message: err.Error()})
		}
	}

	input.RecurrenceStartDate = dates["recurrenceStartDate"]
	input.RecurrenceEndDate = dates["recurrenceEndDate"]
	input.LatestInstanceDate = dates["latestInstanceDate"]

	for _, v := range ValidateRule(input) {
		if hasViolation(violations, v.Field) {
			continue
		}
		violations = append(violations, v)
	}

	return input, violations
}

// ToModel converts a validated input into a recurrence rule row
func ToModel(input RuleInput) (models.RecurrenceRule, error) {
	if violations := ValidateRule(input); len(violations) > 0 {
		return models.RecurrenceRule{}, errors.Errorf("invalid recurrence rule: %s %s", violations[0].Field, violations[0].Message)
	}

	rule := models.RecurrenceRule{
		ID:                   uuid.New(),
		RecurrenceRuleString: input.RecurrenceRuleString,
		Frequency:            models.Frequency(input.Frequency),
		Interval:             1,
		RecurrenceStartDate:  *input.RecurrenceStartDate,
		RecurrenceEndDate:    input.RecurrenceEndDate,
		Count:                input.Count,
		LatestInstanceDate:   *input.LatestInstanceDate,
		ByDay:                pq.StringArray(input.ByDay),
		ByMonth:              toInt64Array(input.ByMonth),
		ByMonthDay:           toInt64Array(input.ByMonthDay),
		BaseRecurringEventID: uuid.MustParse(input.BaseRecurringEventID),
		OrganizationID:       uuid.MustParse(input.OrganizationID),
		CreatorID:            uuid.MustParse(input.CreatorID),
	}
	if input.Interval != nil {
		rule.Interval = *input.Interval
	}
	if input.OriginalSeriesID != "" {
		id := uuid.MustParse(input.OriginalSeriesID)
		rule.OriginalSeriesID = &id
	}
	if input.UpdaterID != "" {
		id := uuid.MustParse(input.UpdaterID)
		rule.UpdaterID = &id
	}

	return rule, nil
}

func toInt64Array(values []int) pq.Int64Array {
	if values == nil {
		return nil
	}
	out := make(pq.Int64Array, len(values))
	for i, v := range values {
		out[i] = int64(v)
	}
	return out
}

func hasViolation(violations []Violation, field string) bool {
	for _, v := range violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// fieldPath drops the struct name from a validator namespace ("RuleInput.byMonth[0]" -> "byMonth[0]")
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gtefield":
		return "must not be before " + lowerFirst(fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
