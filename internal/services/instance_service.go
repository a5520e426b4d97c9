package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"example.com/backstage/services/calendar/internal/metrics"
	"example.com/backstage/services/calendar/internal/models"
	"example.com/backstage/services/calendar/internal/recurrence"
	"example.com/backstage/services/calendar/internal/repositories"
	"example.com/backstage/services/calendar/internal/resolver"
	"example.com/backstage/services/calendar/internal/tracing"
)

// DefaultLimit caps date-range and series queries when the caller gives no limit
const DefaultLimit = 1000

// Operation names used for metrics and tracing
const (
	opByID        = "by_id"
	opByIDs       = "by_ids"
	opDateRange   = "date_range"
	opByBaseIDs   = "by_base_ids"
	opAudit       = "integrity_audit"
	opVolunteers  = "volunteer_groups"
	opPreviewRule = "preview_occurrences"
)

// InstanceRepository reads generated instances
type InstanceRepository interface {
	GetByID(ctx context.Context, id, organizationID uuid.UUID) (*models.RecurringEventInstance, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.RecurringEventInstance, error)
	FindInDateRange(ctx context.Context, query repositories.DateRangeQuery) ([]models.RecurringEventInstance, error)
	FindByBaseIDs(ctx context.Context, query repositories.BaseIDsQuery) ([]models.RecurringEventInstance, error)
	FindOrphaned(ctx context.Context, limit int) ([]models.RecurringEventInstance, error)
}

// TemplateRepository reads template events
type TemplateRepository interface {
	GetTemplateByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetTemplatesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Event, error)
}

// ExceptionRepository reads per-instance exceptions
type ExceptionRepository interface {
	GetByInstanceID(ctx context.Context, instanceID uuid.UUID) (*models.EventException, error)
	GetByInstanceIDs(ctx context.Context, instanceIDs []uuid.UUID) ([]models.EventException, error)
}

// RecurrenceRuleRepository reads recurrence rules
type RecurrenceRuleRepository interface {
	GetByID(ctx context.Context, id, organizationID uuid.UUID) (*models.RecurrenceRule, error)
}

// VolunteerGroupRepository reads volunteer groups and their per-instance exceptions
type VolunteerGroupRepository interface {
	GetByEventID(ctx context.Context, eventID uuid.UUID) ([]models.EventVolunteerGroup, error)
	GetExceptionsForInstance(ctx context.Context, instanceID uuid.UUID) ([]models.EventVolunteerGroupException, error)
}

// TemplateCache caches template rows by id
type TemplateCache interface {
	GetTemplates(ctx context.Context, ids []uuid.UUID) ([]models.Event, []uuid.UUID, error)
	SetTemplates(ctx context.Context, templates []models.Event) error
}

// Repositories groups the readers the instance service depends on
type Repositories struct {
	Instances       InstanceRepository
	Templates       TemplateRepository
	Exceptions      ExceptionRepository
	Rules           RecurrenceRuleRepository
	VolunteerGroups VolunteerGroupRepository
}

// NewRepositories builds the gorm-backed repositories
func NewRepositories(db *gorm.DB, readOnlyDB *gorm.DB) Repositories {
	return Repositories{
		Instances:       repositories.NewInstanceRepository(db, readOnlyDB),
		Templates:       repositories.NewEventRepository(db, readOnlyDB),
		Exceptions:      repositories.NewExceptionRepository(db, readOnlyDB),
		Rules:           repositories.NewRecurrenceRuleRepository(db, readOnlyDB),
		VolunteerGroups: repositories.NewVolunteerGroupRepository(db, readOnlyDB),
	}
}

// DateRangeInput selects the instances of an organization overlapping a window
type DateRangeInput struct {
	OrganizationID     uuid.UUID   `json:"organizationId" validate:"required"`
	StartDate          time.Time   `json:"startDate" validate:"required"`
	EndDate            time.Time   `json:"endDate" validate:"required,gtefield=StartDate"`
	IncludeCancelled   bool        `json:"includeCancelled"`
	Limit              int         `json:"limit" validate:"gte=0"`
	ExcludeInstanceIDs []uuid.UUID `json:"excludeInstanceIds"`
}

// BaseIDsOptions narrows a series query
type BaseIDsOptions struct {
	IncludeCancelled   bool        `json:"includeCancelled"`
	Limit              int         `json:"limit" validate:"gte=0"`
	ExcludeInstanceIDs []uuid.UUID `json:"excludeInstanceIds"`
}

// OccurrencePreview is the expansion of a rule inside a window
type OccurrencePreview struct {
	RuleID      uuid.UUID   `json:"ruleId"`
	RRule       string      `json:"rrule"`
	Occurrences []time.Time `json:"occurrences"`
	Truncated   bool        `json:"truncated"`
}

// InstanceService resolves recurring event instances for callers
type InstanceService struct {
	repos        Repositories
	cache        TemplateCache
	metrics      *metrics.Metrics
	tracer       tracing.Tracer
	logger       zerolog.Logger
	defaultLimit int
}

// NewInstanceService creates a new instance service. cache and m may be nil.
func NewInstanceService(
	repos Repositories,
	cache TemplateCache,
	m *metrics.Metrics,
	tracer tracing.Tracer,
	logger zerolog.Logger,
	defaultLimit int,
) *InstanceService {
	if tracer == nil {
		tracer = tracing.NewDisabledTracer()
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}

	return &InstanceService{
		repos:        repos,
		cache:        cache,
		metrics:      m,
		tracer:       tracer,
		logger:       logger,
		defaultLimit: defaultLimit,
	}
}

// GetRecurringEventInstanceByID resolves one instance. A nil result with a nil
// error means the instance does not exist in the organization.
func (s *InstanceService) GetRecurringEventInstanceByID(ctx context.Context, instanceID, organizationID uuid.UUID) (*models.ResolvedRecurringEventInstance, error) {
	start := time.Now()
	txn := s.tracer.StartTransaction("get-recurring-event-instance")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "instance_id", instanceID.String())

	resolved, err := s.getByID(ctx, txn, instanceID, organizationID)
	s.metrics.ObserveQuery(opByID, start, err)
	if err != nil {
		s.tracer.RecordError(txn, err)

		s.logFailure(err).
			Str("instance_id", instanceID.String()).
			Str("organization_id", organizationID.String()).
			Msg("Failed to get recurring event instance by ID")
		return nil, err
	}

	if resolved != nil {
		s.metrics.AddResolved(opByID, 1)
	}
	return resolved, nil
}

func (s *InstanceService) getByID(ctx context.Context, txn *newrelic.Transaction, instanceID, organizationID uuid.UUID) (*models.ResolvedRecurringEventInstance, error) {
	span := s.tracer.StartSpan("fetch-instance", txn)
	instance, err := s.repos.Instances.GetByID(ctx, instanceID, organizationID)
	span.End()
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var template *models.Event
	var exception *models.EventException

	fetchSpan := s.tracer.StartSpan("fetch-template-and-exception", txn)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.fetchTemplate(gctx, instance.BaseRecurringEventID)
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.Error().
				Str("instance_id", instance.ID.String()).
				Str("template_id", instance.BaseRecurringEventID.String()).
				Msg("Base template not found for recurring event instance")
			return &resolver.TemplateNotFoundError{
				InstanceID: instance.ID,
				TemplateID: instance.BaseRecurringEventID,
			}
		}
		template = t
		return err
	})
	g.Go(func() error {
		e, err := s.repos.Exceptions.GetByInstanceID(gctx, instance.ID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		exception = e
		return err
	})
	err = g.Wait()
	fetchSpan.End()
	if err != nil {
		return nil, err
	}

	resolved := resolver.ResolveInstanceWithInheritance(*instance, *template, exception)
	return &resolved, nil
}

// GetRecurringEventInstancesByIDs resolves every instance in ids that exists,
// in the order the ids were given. Duplicate ids are returned once.
func (s *InstanceService) GetRecurringEventInstancesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ResolvedRecurringEventInstance, error) {
	if len(ids) == 0 {
		return []models.ResolvedRecurringEventInstance{}, nil
	}

	start := time.Now()
	txn := s.tracer.StartTransaction("get-recurring-event-instances-by-ids")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "requested", len(ids))

	resolved, err := s.getByIDs(ctx, txn, ids)
	s.metrics.ObserveQuery(opByIDs, start, err)
	if err != nil {
		s.tracer.RecordError(txn, err)

		s.logFailure(err).
			Int("count", len(ids)).
			Msg("Failed to get recurring event instances by IDs")
		return nil, err
	}

	s.metrics.AddResolved(opByIDs, len(resolved))
	return resolved, nil
}

func (s *InstanceService) getByIDs(ctx context.Context, txn *newrelic.Transaction, ids []uuid.UUID) ([]models.ResolvedRecurringEventInstance, error) {
	requested := distinct(ids)

	span := s.tracer.StartSpan("fetch-instances", txn)
	instances, err := s.repos.Instances.GetByIDs(ctx, requested)
	span.End()
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return []models.ResolvedRecurringEventInstance{}, nil
	}

	return s.resolveBatch(ctx, txn, orderByRequested(instances, requested))
}

// GetRecurringEventInstancesInDateRange resolves the instances of an
// organization that overlap the window, ordered by start time
func (s *InstanceService) GetRecurringEventInstancesInDateRange(ctx context.Context, input DateRangeInput) ([]models.ResolvedRecurringEventInstance, error) {
	if violations := recurrence.ValidateStruct(input); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	start := time.Now()
	txn := s.tracer.StartTransaction("get-recurring-event-instances-in-date-range")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "organization_id", input.OrganizationID.String())

	query := repositories.DateRangeQuery{
		OrganizationID:     input.OrganizationID,
		StartDate:          input.StartDate,
		EndDate:            input.EndDate,
		IncludeCancelled:   input.IncludeCancelled,
		Limit:              s.limit(input.Limit),
		ExcludeInstanceIDs: input.ExcludeInstanceIDs,
	}

	resolved, err := s.findAndResolve(ctx, txn, func(ctx context.Context) ([]models.RecurringEventInstance, error) {
		return s.repos.Instances.FindInDateRange(ctx, query)
	})
	s.metrics.ObserveQuery(opDateRange, start, err)
	if err != nil {
		s.tracer.RecordError(txn, err)

		s.logFailure(err).
			Str("organization_id", input.OrganizationID.String()).
			Time("start_date", input.StartDate).
			Time("end_date", input.EndDate).
			Msg("Failed to get recurring event instances in date range")
		return nil, err
	}

	s.metrics.AddResolved(opDateRange, len(resolved))
	return resolved, nil
}

// GetRecurringEventInstancesByBaseIDs resolves the instances of several series
func (s *InstanceService) GetRecurringEventInstancesByBaseIDs(ctx context.Context, baseIDs []uuid.UUID, opts BaseIDsOptions) ([]models.ResolvedRecurringEventInstance, error) {
	if len(baseIDs) == 0 {
		return []models.ResolvedRecurringEventInstance{}, nil
	}
	if violations := recurrence.ValidateStruct(opts); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	start := time.Now()
	txn := s.tracer.StartTransaction("get-recurring-event-instances-by-base-ids")
	defer s.tracer.EndTransaction(txn)

	query := repositories.BaseIDsQuery{
		BaseRecurringEventIDs: distinct(baseIDs),
		IncludeCancelled:      opts.IncludeCancelled,
		Limit:                 s.limit(opts.Limit),
		ExcludeInstanceIDs:    opts.ExcludeInstanceIDs,
	}

	resolved, err := s.findAndResolve(ctx, txn, func(ctx context.Context) ([]models.RecurringEventInstance, error) {
		return s.repos.Instances.FindByBaseIDs(ctx, query)
	})
	s.metrics.ObserveQuery(opByBaseIDs, start, err)
	if err != nil {
		s.tracer.RecordError(txn, err)

		s.logFailure(err).
			Int("count", len(baseIDs)).
			Msg("Failed to get recurring event instances by base IDs")
		return nil, err
	}

	s.metrics.AddResolved(opByBaseIDs, len(resolved))
	return resolved, nil
}

// GetRecurringEventInstancesByBaseID resolves the instances of one series
func (s *InstanceService) GetRecurringEventInstancesByBaseID(ctx context.Context, baseID uuid.UUID, opts BaseIDsOptions) ([]models.ResolvedRecurringEventInstance, error) {
	return s.GetRecurringEventInstancesByBaseIDs(ctx, []uuid.UUID{baseID}, opts)
}

func (s *InstanceService) findAndResolve(
	ctx context.Context,
	txn *newrelic.Transaction,
	find func(ctx context.Context) ([]models.RecurringEventInstance, error),
) ([]models.ResolvedRecurringEventInstance, error) {
	span := s.tracer.StartSpan("fetch-instances", txn)
	instances, err := find(ctx)
	span.End()
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return []models.ResolvedRecurringEventInstance{}, nil
	}

	return s.resolveBatch(ctx, txn, instances)
}

// resolveBatch fetches templates and exceptions in parallel, then resolves in order
func (s *InstanceService) resolveBatch(ctx context.Context, txn *newrelic.Transaction, instances []models.RecurringEventInstance) ([]models.ResolvedRecurringEventInstance, error) {
	templateIDs := make([]uuid.UUID, 0, len(instances))
	instanceIDs := make([]uuid.UUID, 0, len(instances))
	for _, instance := range instances {
		templateIDs = append(templateIDs, instance.BaseRecurringEventID)
		instanceIDs = append(instanceIDs, instance.ID)
	}
	templateIDs = distinct(templateIDs)

	var templates []models.Event
	var exceptions []models.EventException

	span := s.tracer.StartSpan("fetch-templates-and-exceptions", txn)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		templates, err = s.fetchTemplates(gctx, templateIDs)
		return err
	})
	g.Go(func() error {
		var err error
		exceptions, err = s.repos.Exceptions.GetByInstanceIDs(gctx, instanceIDs)
		return err
	})
	err := g.Wait()
	span.End()
	if err != nil {
		return nil, err
	}

	resolveSpan := s.tracer.StartSpan("resolve-instances", txn)
	defer resolveSpan.End()

	return resolver.ResolveMultipleInstances(
		instances,
		resolver.CreateTemplateLookupMap(templates),
		resolver.CreateExceptionLookupMap(exceptions),
		s.logger,
	)
}

// fetchTemplate reads one template through the cache
func (s *InstanceService) fetchTemplate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	if s.cache != nil {
		cached, _, err := s.cache.GetTemplates(ctx, []uuid.UUID{id})
		if err != nil {
			s.logger.Warn().Err(err).Str("template_id", id.String()).Msg("Template cache lookup failed")
		}
		if len(cached) == 1 {
			s.metrics.AddCacheLookups(1, 0)
			return &cached[0], nil
		}
		s.metrics.AddCacheLookups(0, 1)
	}

	template, err := s.repos.Templates.GetTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.storeTemplates(ctx, []models.Event{*template})
	return template, nil
}

// fetchTemplates reads templates through the cache, querying storage only for misses
func (s *InstanceService) fetchTemplates(ctx context.Context, ids []uuid.UUID) ([]models.Event, error) {
	missing := ids
	var cached []models.Event

	if s.cache != nil {
		var err error
		cached, missing, err = s.cache.GetTemplates(ctx, ids)
		if err != nil {
			s.logger.Warn().Err(err).Int("count", len(ids)).Msg("Template cache lookup failed")
			cached, missing = nil, ids
		}
		s.metrics.AddCacheLookups(len(cached), len(missing))
	}

	if len(missing) == 0 {
		return cached, nil
	}

	fetched, err := s.repos.Templates.GetTemplatesByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}

	s.storeTemplates(ctx, fetched)
	return append(cached, fetched...), nil
}

func (s *InstanceService) storeTemplates(ctx context.Context, templates []models.Event) {
	if s.cache == nil || len(templates) == 0 {
		return
	}
	if err := s.cache.SetTemplates(ctx, templates); err != nil {
		s.logger.Warn().Err(err).Int("count", len(templates)).Msg("Failed to cache templates")
	}
}

// logFailure starts the error log line of a failed operation. Template
// corruption was already logged where it was detected, so only the metric
// is recorded and a disabled event is returned.
func (s *InstanceService) logFailure(err error) *zerolog.Event {
	if errors.Is(err, resolver.ErrTemplateNotFound) {
		s.metrics.IncTemplateNotFound()
		return nil
	}
	return s.logger.Error().Err(err)
}

func (s *InstanceService) limit(requested int) int {
	if requested <= 0 {
		return s.defaultLimit
	}
	return requested
}

// distinct drops repeated ids, keeping first occurrences in order
func distinct(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// orderByRequested arranges fetched instances in the order their ids were requested
func orderByRequested(instances []models.RecurringEventInstance, ids []uuid.UUID) []models.RecurringEventInstance {
	byID := make(map[uuid.UUID]models.RecurringEventInstance, len(instances))
	for _, instance := range instances {
		byID[instance.ID] = instance
	}

	ordered := make([]models.RecurringEventInstance, 0, len(instances))
	for _, id := range ids {
		if instance, ok := byID[id]; ok {
			ordered = append(ordered, instance)
		}
	}
	return ordered
}
