package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"example.com/backstage/services/calendar/internal/models"
	"example.com/backstage/services/calendar/internal/repositories"
)

// MockInstanceRepository is a mock of InstanceRepository
type MockInstanceRepository struct {
	mock.Mock
}

func (m *MockInstanceRepository) GetByID(ctx context.Context, id, organizationID uuid.UUID) (*models.RecurringEventInstance, error) {
	args := m.Called(ctx, id, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecurringEventInstance), args.Error(1)
}

func (m *MockInstanceRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.RecurringEventInstance, error) {
	args := m.Called(ctx, ids)
	return instancesArg(args, 0), args.Error(1)
}

func (m *MockInstanceRepository) FindInDateRange(ctx context.Context, query repositories.DateRangeQuery) ([]models.RecurringEventInstance, error) {
	args := m.Called(ctx, query)
	return instancesArg(args, 0), args.Error(1)
}

func (m *MockInstanceRepository) FindByBaseIDs(ctx context.Context, query repositories.BaseIDsQuery) ([]models.RecurringEventInstance, error) {
	args := m.Called(ctx, query)
	return instancesArg(args, 0), args.Error(1)
}

func (m *MockInstanceRepository) FindOrphaned(ctx context.Context, limit int) ([]models.RecurringEventInstance, error) {
	args := m.Called(ctx, limit)
	return instancesArg(args, 0), args.Error(1)
}

func instancesArg(args mock.Arguments, i int) []models.RecurringEventInstance {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).([]models.RecurringEventInstance)
}

// MockTemplateRepository is a mock of TemplateRepository
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) GetTemplateByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockTemplateRepository) GetTemplatesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Event, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

// MockExceptionRepository is a mock of ExceptionRepository
type MockExceptionRepository struct {
	mock.Mock
}

func (m *MockExceptionRepository) GetByInstanceID(ctx context.Context, instanceID uuid.UUID) (*models.EventException, error) {
	args := m.Called(ctx, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EventException), args.Error(1)
}

func (m *MockExceptionRepository) GetByInstanceIDs(ctx context.Context, instanceIDs []uuid.UUID) ([]models.EventException, error) {
	args := m.Called(ctx, instanceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EventException), args.Error(1)
}

// MockRecurrenceRuleRepository is a mock of RecurrenceRuleRepository
type MockRecurrenceRuleRepository struct {
	mock.Mock
}

func (m *MockRecurrenceRuleRepository) GetByID(ctx context.Context, id, organizationID uuid.UUID) (*models.RecurrenceRule, error) {
	args := m.Called(ctx, id, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecurrenceRule), args.Error(1)
}

// MockVolunteerGroupRepository is a mock of VolunteerGroupRepository
type MockVolunteerGroupRepository struct {
	mock.Mock
}

func (m *MockVolunteerGroupRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) ([]models.EventVolunteerGroup, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EventVolunteerGroup), args.Error(1)
}

func (m *MockVolunteerGroupRepository) GetExceptionsForInstance(ctx context.Context, instanceID uuid.UUID) ([]models.EventVolunteerGroupException, error) {
	args := m.Called(ctx, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EventVolunteerGroupException), args.Error(1)
}

// MockTemplateCache is a mock of TemplateCache
type MockTemplateCache struct {
	mock.Mock
}

func (m *MockTemplateCache) GetTemplates(ctx context.Context, ids []uuid.UUID) ([]models.Event, []uuid.UUID, error) {
	args := m.Called(ctx, ids)
	var found []models.Event
	if args.Get(0) != nil {
		found = args.Get(0).([]models.Event)
	}
	var missing []uuid.UUID
	if args.Get(1) != nil {
		missing = args.Get(1).([]uuid.UUID)
	}
	return found, missing, args.Error(2)
}

func (m *MockTemplateCache) SetTemplates(ctx context.Context, templates []models.Event) error {
	args := m.Called(ctx, templates)
	return args.Error(0)
}
