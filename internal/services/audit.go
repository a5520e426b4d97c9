package services

import (
	"context"
	"time"
)

// DefaultAuditBatchSize bounds one integrity audit pass
const DefaultAuditBatchSize = 500

// AuditSeriesIntegrity lists instances whose template row is missing and logs
// each one. It only reads and returns how many orphans it saw.
func (s *InstanceService) AuditSeriesIntegrity(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultAuditBatchSize
	}

	start := time.Now()
	txn := s.tracer.StartTransaction("audit-series-integrity")
	defer s.tracer.EndTransaction(txn)

	orphans, err := s.repos.Instances.FindOrphaned(ctx, batchSize)
	s.metrics.ObserveQuery(opAudit, start, err)
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.logger.Error().Err(err).Msg("Failed to audit recurring event instances")
		return 0, err
	}

	for _, instance := range orphans {
		s.logger.Error().
			Str("instance_id", instance.ID.String()).
			Str("template_id", instance.BaseRecurringEventID.String()).
			Str("organization_id", instance.OrganizationID.String()).
			Msg("Recurring event instance references a missing template")
	}

	s.metrics.SetOrphanedInstances(len(orphans))
	s.tracer.AddAttribute(txn, "orphaned", len(orphans))

	if len(orphans) == batchSize {
		s.logger.Warn().Int("batch_size", batchSize).Msg("Integrity audit hit its batch size; more orphans may exist")
	} else {
		s.logger.Info().Int("orphaned", len(orphans)).Msg("Integrity audit completed")
	}

	return len(orphans), nil
}
