package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/calendar/internal/models"
	"example.com/backstage/services/calendar/internal/repositories"
)

// GetVolunteerGroupsForInstance returns the volunteer groups of the instance's template.
// Per-instance group exceptions are read but not merged into the result.
func (s *InstanceService) GetVolunteerGroupsForInstance(ctx context.Context, instanceID, organizationID uuid.UUID) ([]models.EventVolunteerGroup, error) {
	start := time.Now()
	txn := s.tracer.StartTransaction("get-volunteer-groups-for-instance")
	defer s.tracer.EndTransaction(txn)

	groups, err := s.getVolunteerGroups(ctx, instanceID, organizationID)
	s.metrics.ObserveQuery(opVolunteers, start, err)
	if err != nil && !errors.Is(err, ErrInstanceNotFound) {
		s.tracer.RecordError(txn, err)
		s.logger.Error().
			Err(err).
			Str("instance_id", instanceID.String()).
			Msg("Failed to get volunteer groups for recurring event instance")
	}
	return groups, err
}

func (s *InstanceService) getVolunteerGroups(ctx context.Context, instanceID, organizationID uuid.UUID) ([]models.EventVolunteerGroup, error) {
	instance, err := s.repos.Instances.GetByID(ctx, instanceID, organizationID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInstanceNotFound
	}
	if err != nil {
		return nil, err
	}

	var groups []models.EventVolunteerGroup
	var exceptions []models.EventVolunteerGroupException

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		groups, err = s.repos.VolunteerGroups.GetByEventID(gctx, instance.BaseRecurringEventID)
		return err
	})
	g.Go(func() error {
		var err error
		exceptions, err = s.repos.VolunteerGroups.GetExceptionsForInstance(gctx, instance.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// TODO: merge group exceptions once it is decided whether unapplied overrides are intended
	if len(exceptions) > 0 {
		s.logger.Warn().
			Str("instance_id", instance.ID.String()).
			Int("exception_count", len(exceptions)).
			Msg("Volunteer group exceptions exist for instance but are not applied")
	}

	if groups == nil {
		groups = []models.EventVolunteerGroup{}
	}
	return groups, nil
}
