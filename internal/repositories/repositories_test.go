package repositories

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// captured holds the statement of the last query a dry-run session built
type captured struct {
	sql     string
	vars    []interface{}
	failErr error
}

func (c *captured) hasLimit(n int) bool {
	if strings.Contains(c.sql, fmt.Sprintf("LIMIT %d", n)) {
		return true
	}
	if !strings.Contains(c.sql, "LIMIT") {
		return false
	}
	for _, v := range c.vars {
		if v == n {
			return true
		}
	}
	return false
}

func newDryRunDB(t *testing.T) (*gorm.DB, *captured) {
	t.Helper()

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=calendar dbname=calendar sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	c := &captured{}
	err = db.Callback().Query().After("gorm:query").Register("test:capture", func(tx *gorm.DB) {
		c.sql = tx.Statement.SQL.String()
		c.vars = tx.Statement.Vars
		if c.failErr != nil {
			_ = tx.AddError(c.failErr)
		}
	})
	require.NoError(t, err)

	return db, c
}

func TestInstanceRepository_GetByID(t *testing.T) {
	db, c := newDryRunDB(t)
	repo := NewInstanceRepository(db, db)

	_, err := repo.GetByID(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Contains(t, c.sql, `FROM "recurring_event_instances"`)
	assert.Contains(t, c.sql, "id = $1 AND organization_id = $2")
	assert.True(t, c.hasLimit(1))
}

func TestInstanceRepository_GetByID_NotFound(t *testing.T) {
	db, c := newDryRunDB(t)
	repo := NewInstanceRepository(db, db)

	c.failErr = gorm.ErrRecordNotFound
	_, err := repo.GetByID(context.Background(), uuid.New(), uuid.New())
	assert.Equal(t, ErrNotFound, err)

	c.failErr = errors.New("connection reset")
	_, err = repo.GetByID(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "failed to get recurring event instance by ID")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestInstanceRepository_FindInDateRange(t *testing.T) {
	db, c := newDryRunDB(t)
	repo := NewInstanceRepository(db, db)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := repo.FindInDateRange(context.Background(), DateRangeQuery{
		OrganizationID: uuid.New(),
		StartDate:      start,
		EndDate:        start.AddDate(0, 1, 0),
		Limit:          1000,
	})
	require.NoError(t, err)

	assert.Contains(t, c.sql, "organization_id = $1")
	assert.Contains(t, c.sql, "actual_start_time >= $2 AND actual_start_time <= $3")
	assert.Contains(t, c.sql, "actual_start_time <= $6 AND actual_end_time >= $7")
	assert.Contains(t, c.sql, "is_cancelled = $8")
	assert.Contains(t, c.sql, "ORDER BY actual_start_time ASC,id ASC")
	assert.NotContains(t, c.sql, "NOT IN")
	assert.True(t, c.hasLimit(1000))
}

func TestInstanceRepository_FindInDateRange_Options(t *testing.T) {
	db, c := newDryRunDB(t)
	repo := NewInstanceRepository(db, db)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := repo.FindInDateRange(context.Background(), DateRangeQuery{
		OrganizationID:     uuid.New(),
		StartDate:          start,
		EndDate:            start.AddDate(0, 1, 0),
		IncludeCancelled:   true,
		Limit:              50,
		ExcludeInstanceIDs: []uuid.UUID{uuid.New(), uuid.New()},
	})
	require.NoError(t, err)

	assert.NotContains(t, c.sql, "is_cancelled")
	assert.Contains(t, c.sql, "id NOT IN ($8,$9)")
	assert.True(t, c.hasLimit(50))
}

func TestInstanceRepository_FindByBaseIDs(t *testing.T) {
	db, c := newDryRunDB(t)
	repo := NewInstanceRepository(db, db)

	_, err := repo.FindByBaseIDs(context.Background(), BaseIDsQuery{
		BaseRecurringEventIDs: []uuid.UUID{uuid.New(), uuid.New()},
	})
	require.NoError(t, err)

	assert.Contains(t, c.sql, "base_recurring_event_id IN ($1,$2)")
	assert.Contains(t, c.sql, "is_cancelled = $3")
	assert.Contains(t, c.sql, "ORDER BY actual_start_time ASC,id ASC")
	assert.NotContains(t, c.sql, "LIMIT")
}

func TestInstanceRepository_FindOrphaned(t *testing.T) {
	db, c := newDryRunDB(t)
	repo := NewInstanceRepository(db, db)

	_, err := repo.FindOrphaned(context.Background(), 500)
	require.NoError(t, err)

	assert.Contains(t, c.sql, "LEFT JOIN events AS e ON e.id = rei.base_recurring_event_id")
	assert.Contains(t, c.sql, "e.id IS NULL")
	assert.True(t, c.hasLimit(500))
}

func TestEventRepository_Templates(t *testing.T) {
	db, c := newDryRunDB(t)
	repo := NewEventRepository(db, db)

	_, err := repo.GetTemplatesByIDs(context.Background(), []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	assert.Contains(t, c.sql, `FROM "events" WHERE id IN ($1)`)

	c.failErr = gorm.ErrRecordNotFound
	_, err = repo.GetTemplateByID(context.Background(), uuid.New())
	assert.Equal(t, ErrNotFound, err)
}

func TestExceptionRepository(t *testing.T) {
	db, c := newDryRunDB(t)
	repo := NewExceptionRepository(db, db)

	_, err := repo.GetByInstanceIDs(context.Background(), []uuid.UUID{uuid.New(), uuid.New(), uuid.New()})
	require.NoError(t, err)
	assert.Contains(t, c.sql, `FROM "event_exceptions" WHERE recurring_event_instance_id IN ($1,$2,$3)`)

	_, err = repo.GetByInstanceID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Contains(t, c.sql, "recurring_event_instance_id = $1")
}

func TestRecurrenceRuleRepository_GetByID(t *testing.T) {
	db, c := newDryRunDB(t)
	repo := NewRecurrenceRuleRepository(db, db)

	_, err := repo.GetByID(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Contains(t, c.sql, `FROM "recurrence_rules" WHERE id = $1 AND organization_id = $2`)
}

func TestVolunteerGroupRepository(t *testing.T) {
	db, c := newDryRunDB(t)
	repo := NewVolunteerGroupRepository(db, db)

	_, err := repo.GetByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Contains(t, c.sql, `FROM "event_volunteer_groups" WHERE event_id = $1 ORDER BY created_at ASC`)

	_, err = repo.GetExceptionsForInstance(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Contains(t, c.sql, `FROM "event_volunteer_group_exceptions" WHERE recurring_event_instance_id = $1`)
}
