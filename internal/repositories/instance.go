package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/calendar/internal/models"
)

// DateRangeQuery selects the instances of one organization overlapping a window
type DateRangeQuery struct {
	OrganizationID     uuid.UUID
	StartDate          time.Time
	EndDate            time.Time
	IncludeCancelled   bool
	Limit              int
	ExcludeInstanceIDs []uuid.UUID
}

// BaseIDsQuery selects the instances of one or more series
type BaseIDsQuery struct {
	BaseRecurringEventIDs []uuid.UUID
	IncludeCancelled      bool
	Limit                 int
	ExcludeInstanceIDs    []uuid.UUID
}

// InstanceRepository provides read access to generated instances
type InstanceRepository struct {
	db         *gorm.DB // Write database, used for migrations only
	readOnlyDB *gorm.DB // Read-only database
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *gorm.DB, readOnlyDB *gorm.DB) *InstanceRepository {
	return &InstanceRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByID gets one instance scoped to its organization
func (r *InstanceRepository) GetByID(ctx context.Context, id, organizationID uuid.UUID) (*models.RecurringEventInstance, error) {
	var instance models.RecurringEventInstance
	err := r.readOnlyDB.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, organizationID).
		First(&instance).Error
	if err != nil {
		return nil, wrapFirst(err, "failed to get recurring event instance by ID")
	}
	return &instance, nil
}

// GetByIDs gets every instance whose id is in the set. Missing ids are skipped.
func (r *InstanceRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.RecurringEventInstance, error) {
	var instances []models.RecurringEventInstance
	err := r.readOnlyDB.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&instances).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recurring event instances by IDs")
	}
	return instances, nil
}

// FindInDateRange gets instances that start in, end in or span the window
func (r *InstanceRepository) FindInDateRange(ctx context.Context, query DateRangeQuery) ([]models.RecurringEventInstance, error) {
	var instances []models.RecurringEventInstance

	tx := r.readOnlyDB.WithContext(ctx).
		Where("organization_id = ?", query.OrganizationID).
		Where("((actual_start_time >= ? AND actual_start_time <= ?) OR (actual_end_time >= ? AND actual_end_time <= ?) OR (actual_start_time <= ? AND actual_end_time >= ?))",
			query.StartDate, query.EndDate,
			query.StartDate, query.EndDate,
			query.StartDate, query.EndDate)
	tx = filterInstances(tx, query.IncludeCancelled, query.ExcludeInstanceIDs)

	err := orderAndLimit(tx, query.Limit).Find(&instances).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recurring event instances in date range")
	}
	return instances, nil
}

// FindByBaseIDs gets the instances of the given series ordered by start time
func (r *InstanceRepository) FindByBaseIDs(ctx context.Context, query BaseIDsQuery) ([]models.RecurringEventInstance, error) {
	var instances []models.RecurringEventInstance

	tx := r.readOnlyDB.WithContext(ctx).
		Where("base_recurring_event_id IN ?", query.BaseRecurringEventIDs)
	tx = filterInstances(tx, query.IncludeCancelled, query.ExcludeInstanceIDs)

	err := orderAndLimit(tx, query.Limit).Find(&instances).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recurring event instances by base IDs")
	}
	return instances, nil
}

// FindOrphaned gets instances whose template row no longer exists
func (r *InstanceRepository) FindOrphaned(ctx context.Context, limit int) ([]models.RecurringEventInstance, error) {
	var instances []models.RecurringEventInstance
	err := r.readOnlyDB.WithContext(ctx).
		Table("recurring_event_instances AS rei").
		Select("rei.*").
		Joins("LEFT JOIN events AS e ON e.id = rei.base_recurring_event_id").
		Where("e.id IS NULL").
		Order("rei.generated_at ASC").
		Limit(limit).
		Find(&instances).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to find orphaned recurring event instances")
	}
	return instances, nil
}

func filterInstances(tx *gorm.DB, includeCancelled bool, exclude []uuid.UUID) *gorm.DB {
	if !includeCancelled {
		tx = tx.Where("is_cancelled = ?", false)
	}
	if len(exclude) > 0 {
		tx = tx.Where("id NOT IN ?", exclude)
	}
	return tx
}

// orderAndLimit sorts by start time with id as tiebreaker. A limit of zero or less means no cap.
func orderAndLimit(tx *gorm.DB, limit int) *gorm.DB {
	tx = tx.Order("actual_start_time ASC").Order("id ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	return tx
}
