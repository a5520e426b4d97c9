package resolver

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/backstage/services/calendar/internal/models"
)

const exceptionKeyTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CreateTemplateLookupMap indexes templates by id. A duplicate id keeps the last row.
func CreateTemplateLookupMap(templates []models.Event) map[uuid.UUID]*models.Event {
	lookup := make(map[uuid.UUID]*models.Event, len(templates))
	for i := range templates {
		lookup[templates[i].ID] = &templates[i]
	}
	return lookup
}

// CreateExceptionLookupMap indexes exceptions by the instance they override.
// A duplicate instance id keeps the last row.
func CreateExceptionLookupMap(exceptions []models.EventException) map[uuid.UUID]*models.EventException {
	lookup := make(map[uuid.UUID]*models.EventException, len(exceptions))
	for i := range exceptions {
		lookup[exceptions[i].RecurringEventInstanceID] = &exceptions[i]
	}
	return lookup
}

// CreateExceptionKey builds the composite key of one occurrence of a series
func CreateExceptionKey(baseRecurringEventID uuid.UUID, originalStartTime time.Time) string {
	return fmt.Sprintf("%s:%s", baseRecurringEventID, originalStartTime.UTC().Format(exceptionKeyTimeFormat))
}
