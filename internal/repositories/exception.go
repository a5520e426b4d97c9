package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/calendar/internal/models"
)

// ExceptionRepository provides read access to per-instance exceptions
type ExceptionRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewExceptionRepository creates a new exception repository
func NewExceptionRepository(db *gorm.DB, readOnlyDB *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByInstanceID gets the exception of one instance
func (r *ExceptionRepository) GetByInstanceID(ctx context.Context, instanceID uuid.UUID) (*models.EventException, error) {
	var exception models.EventException
	err := r.readOnlyDB.WithContext(ctx).
		Where("recurring_event_instance_id = ?", instanceID).
		First(&exception).Error
	if err != nil {
		return nil, wrapFirst(err, "failed to get event exception by instance ID")
	}
	return &exception, nil
}

// GetByInstanceIDs gets the exceptions of every instance in the set
func (r *ExceptionRepository) GetByInstanceIDs(ctx context.Context, instanceIDs []uuid.UUID) ([]models.EventException, error) {
	var exceptions []models.EventException
	err := r.readOnlyDB.WithContext(ctx).
		Where("recurring_event_instance_id IN ?", instanceIDs).
		Find(&exceptions).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get event exceptions by instance IDs")
	}
	return exceptions, nil
}
