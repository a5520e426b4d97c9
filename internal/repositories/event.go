package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/calendar/internal/models"
)

// EventRepository provides read access to template events
type EventRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB, readOnlyDB *gorm.DB) *EventRepository {
	return &EventRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetTemplateByID gets the template an instance was generated from.
// Rows are matched by id alone so a cleared template flag is not mistaken for a deleted row.
func (r *EventRepository) GetTemplateByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.readOnlyDB.WithContext(ctx).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, wrapFirst(err, "failed to get template event by ID")
	}
	return &event, nil
}

// GetTemplatesByIDs gets every template whose id is in the set
func (r *EventRepository) GetTemplatesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Event, error) {
	var events []models.Event
	err := r.readOnlyDB.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get template events by IDs")
	}
	return events, nil
}
