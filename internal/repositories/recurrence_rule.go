package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/backstage/services/calendar/internal/models"
)

// RecurrenceRuleRepository provides read access to recurrence rules
type RecurrenceRuleRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewRecurrenceRuleRepository creates a new recurrence rule repository
func NewRecurrenceRuleRepository(db *gorm.DB, readOnlyDB *gorm.DB) *RecurrenceRuleRepository {
	return &RecurrenceRuleRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByID gets a rule scoped to its organization
func (r *RecurrenceRuleRepository) GetByID(ctx context.Context, id, organizationID uuid.UUID) (*models.RecurrenceRule, error) {
	var rule models.RecurrenceRule
	err := r.readOnlyDB.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, organizationID).
		First(&rule).Error
	if err != nil {
		return nil, wrapFirst(err, "failed to get recurrence rule by ID")
	}
	return &rule, nil
}
