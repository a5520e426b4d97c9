package resolver

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"example.com/backstage/services/calendar/internal/models"
)

// ResolveInstanceWithInheritance merges template, generated instance and
// exception in that order of precedence. A nil exception applies no overrides.
func ResolveInstanceWithInheritance(instance models.RecurringEventInstance, template models.Event, exception *models.EventException) models.ResolvedRecurringEventInstance {
	resolved := models.ResolvedRecurringEventInstance{
		Name:           template.Name,
		Description:    template.Description,
		Location:       template.Location,
		AllDay:         template.AllDay,
		IsPublic:       template.IsPublic,
		IsRegisterable: template.IsRegisterable,
		IsInviteOnly:   template.IsInviteOnly,
		CreatorID:      template.CreatorID,
		UpdaterID:      template.UpdaterID,
		CreatedAt:      template.CreatedAt,
		UpdatedAt:      template.UpdatedAt,

		ID:                        instance.ID,
		BaseRecurringEventID:      instance.BaseRecurringEventID,
		RecurrenceRuleID:          instance.RecurrenceRuleID,
		OriginalSeriesID:          instance.OriginalSeriesID,
		OriginalInstanceStartTime: instance.OriginalInstanceStartTime,
		ActualStartTime:           instance.ActualStartTime,
		ActualEndTime:             instance.ActualEndTime,
		IsCancelled:               instance.IsCancelled,
		OrganizationID:            instance.OrganizationID,
		GeneratedAt:               instance.GeneratedAt,
		LastUpdatedAt:             instance.LastUpdatedAt,
		Version:                   instance.Version,
		SequenceNumber:            instance.SequenceNumber,
		TotalCount:                instance.TotalCount,
	}

	if exception == nil {
		return resolved
	}

	applied := make(map[string]interface{}, len(exception.ExceptionData))
	for key, value := range exception.ExceptionData {
		applied[key] = value
		applyOverride(&resolved, key, value)
	}

	if exception.Name != nil {
		resolved.Name = *exception.Name
	}
	if exception.Description != nil {
		resolved.Description = exception.Description
	}
	if exception.Location != nil {
		resolved.Location = exception.Location
	}

	createdBy := exception.CreatorID
	createdAt := exception.CreatedAt
	resolved.HasExceptions = true
	resolved.AppliedExceptionData = applied
	resolved.ExceptionCreatedBy = &createdBy
	resolved.ExceptionCreatedAt = &createdAt

	return resolved
}

// applyOverride sets one exceptionData key. Unknown keys, nulls and values of
// the wrong type leave the inherited value in place.
func applyOverride(resolved *models.ResolvedRecurringEventInstance, key string, value interface{}) {
	switch key {
	case "name":
		if s, ok := value.(string); ok {
			resolved.Name = s
		}
	case "description":
		if s, ok := value.(string); ok {
			resolved.Description = &s
		}
	case "location":
		if s, ok := value.(string); ok {
			resolved.Location = &s
		}
	case "allDay":
		if b, ok := value.(bool); ok {
			resolved.AllDay = b
		}
	case "isPublic":
		if b, ok := value.(bool); ok {
			resolved.IsPublic = b
		}
	case "isRegisterable":
		if b, ok := value.(bool); ok {
			resolved.IsRegisterable = b
		}
	case "isInviteOnly":
		if b, ok := value.(bool); ok {
			resolved.IsInviteOnly = b
		}
	case "isCancelled":
		if b, ok := value.(bool); ok {
			resolved.IsCancelled = b
		}
	case "startAt":
		if t, ok := toTime(value); ok {
			resolved.ActualStartTime = t
		}
	case "endAt":
		if t, ok := toTime(value); ok {
			resolved.ActualEndTime = t
		}
	}
}

func toTime(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// ResolveMultipleInstances resolves a batch in input order. An instance whose
// template is missing from the lookup aborts the batch with a TemplateNotFoundError.
func ResolveMultipleInstances(
	instances []models.RecurringEventInstance,
	templates map[uuid.UUID]*models.Event,
	exceptions map[uuid.UUID]*models.EventException,
	logger zerolog.Logger,
) ([]models.ResolvedRecurringEventInstance, error) {
	resolved := make([]models.ResolvedRecurringEventInstance, 0, len(instances))

	for _, instance := range instances {
		template, ok := templates[instance.BaseRecurringEventID]
		if !ok || template == nil {
			logger.Error().
				Str("instance_id", instance.ID.String()).
				Str("template_id", instance.BaseRecurringEventID.String()).
				Msg("Base template not found for recurring event instance")
			return nil, &TemplateNotFoundError{
				InstanceID: instance.ID,
				TemplateID: instance.BaseRecurringEventID,
			}
		}

		resolved = append(resolved, ResolveInstanceWithInheritance(instance, *template, exceptions[instance.ID]))
	}

	return resolved, nil
}

// ValidateResolvedInstance reports whether the identity, timing and name fields
// are present, logging the first one that is missing
func ValidateResolvedInstance(instance models.ResolvedRecurringEventInstance, logger zerolog.Logger) bool {
	checks := []struct {
		field   string
		missing bool
	}{
		{"id", instance.ID == uuid.Nil},
		{"baseRecurringEventId", instance.BaseRecurringEventID == uuid.Nil},
		{"recurrenceRuleId", instance.RecurrenceRuleID == uuid.Nil},
		{"originalSeriesId", instance.OriginalSeriesID == uuid.Nil},
		{"organizationId", instance.OrganizationID == uuid.Nil},
		{"originalInstanceStartTime", instance.OriginalInstanceStartTime.IsZero()},
		{"actualStartTime", instance.ActualStartTime.IsZero()},
		{"actualEndTime", instance.ActualEndTime.IsZero()},
		{"name", instance.Name == ""},
	}

	for _, check := range checks {
		if check.missing {
			logger.Error().
				Str("instance_id", instance.ID.String()).
				Msgf("Missing required field in resolved instance: %s", check.field)
			return false
		}
	}

	return true
}
