package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/backstage/services/calendar/internal/recurrence"
	"example.com/backstage/services/calendar/internal/repositories"
)

// PreviewOccurrences expands a stored rule inside [windowStart, windowEnd]
// without materializing anything. max <= 0 means recurrence.MaxOccurrences.
func (s *InstanceService) PreviewOccurrences(ctx context.Context, ruleID, organizationID uuid.UUID, windowStart, windowEnd time.Time, max int) (*OccurrencePreview, error) {
	if windowEnd.Before(windowStart) {
		return nil, NewValidationError("end", "gtefield", "must not be before start")
	}

	start := time.Now()
	txn := s.tracer.StartTransaction("preview-occurrences")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "rule_id", ruleID.String())

	preview, err := s.previewOccurrences(ctx, ruleID, organizationID, windowStart, windowEnd, max)
	s.metrics.ObserveQuery(opPreviewRule, start, err)
	if err != nil && !errors.Is(err, ErrRuleNotFound) {
		s.tracer.RecordError(txn, err)
		s.logger.Error().
			Err(err).
			Str("rule_id", ruleID.String()).
			Msg("Failed to preview recurrence rule occurrences")
	}
	return preview, err
}

func (s *InstanceService) previewOccurrences(ctx context.Context, ruleID, organizationID uuid.UUID, windowStart, windowEnd time.Time, max int) (*OccurrencePreview, error) {
	rule, err := s.repos.Rules.GetByID(ctx, ruleID, organizationID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}

	rrule, err := recurrence.CanonicalString(*rule)
	if err != nil {
		return nil, errors.Wrap(err, "stored recurrence rule cannot be expanded")
	}

	occurrences, truncated, err := recurrence.Occurrences(*rule, windowStart, windowEnd, max)
	if err != nil {
		return nil, errors.Wrap(err, "failed to expand recurrence rule")
	}
	if occurrences == nil {
		occurrences = []time.Time{}
	}

	return &OccurrencePreview{
		RuleID:      rule.ID,
		RRule:       rrule,
		Occurrences: occurrences,
		Truncated:   truncated,
	}, nil
}
