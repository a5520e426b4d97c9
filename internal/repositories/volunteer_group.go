package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/calendar/internal/models"
)

// VolunteerGroupRepository provides read access to volunteer groups and their per-instance exceptions
type VolunteerGroupRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewVolunteerGroupRepository creates a new volunteer group repository
func NewVolunteerGroupRepository(db *gorm.DB, readOnlyDB *gorm.DB) *VolunteerGroupRepository {
	return &VolunteerGroupRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByEventID gets the groups attached to a template event
func (r *VolunteerGroupRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) ([]models.EventVolunteerGroup, error) {
	var groups []models.EventVolunteerGroup
	err := r.readOnlyDB.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&groups).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get volunteer groups by event ID")
	}
	return groups, nil
}

// GetExceptionsForInstance gets the group overrides recorded for one instance
func (r *VolunteerGroupRepository) GetExceptionsForInstance(ctx context.Context, instanceID uuid.UUID) ([]models.EventVolunteerGroupException, error) {
	var exceptions []models.EventVolunteerGroupException
	err := r.readOnlyDB.WithContext(ctx).
		Where("recurring_event_instance_id = ?", instanceID).
		Find(&exceptions).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get volunteer group exceptions for instance")
	}
	return exceptions, nil
}
